package answer

import (
	"strings"
	"testing"
)

func TestFormatReplyNormalizesLineEndings(t *testing.T) {
	got := FormatReply("first line\r\nsecond line\rthird line")
	want := "first line\nsecond line\nthird line"
	if got != want {
		t.Fatalf("FormatReply() = %q, want %q", got, want)
	}
}

func TestFormatReplyTrims(t *testing.T) {
	if got := FormatReply("  hello  \n\n"); got != "hello" {
		t.Fatalf("FormatReply() = %q, want hello", got)
	}
}

func TestFormatReplyBreaksLongSingleLine(t *testing.T) {
	in := "The application window opens in early March every year. Late submissions are not accepted under any circumstances. Check the office board for updates."
	got := FormatReply(in)

	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("FormatReply() produced %d lines, want 3: %q", len(lines), got)
	}
	if lines[0] != "The application window opens in early March every year." {
		t.Fatalf("first line = %q", lines[0])
	}
	if strings.HasPrefix(lines[1], " ") {
		t.Fatalf("space survived the break: %q", lines[1])
	}
}

func TestFormatReplyKeepsShortSingleLine(t *testing.T) {
	in := "Yes, the deadline is March 1."
	if got := FormatReply(in); got != in {
		t.Fatalf("FormatReply() = %q, want unchanged", got)
	}
}

func TestFormatReplyKeepsMultilineUnbroken(t *testing.T) {
	in := "A first paragraph that is already long enough that it would be broken if it were one line. But it has structure.\nSecond paragraph."
	if got := FormatReply(in); got != in {
		t.Fatalf("FormatReply() = %q, want unchanged", got)
	}
}

func TestFormatReplyCollapsesBlankRuns(t *testing.T) {
	got := FormatReply("a\n\n\n\nb\n\n\nc")
	want := "a\n\nb\n\nc"
	if got != want {
		t.Fatalf("FormatReply() = %q, want %q", got, want)
	}
}

func TestFormatReplyIdempotent(t *testing.T) {
	inputs := []string{
		"The application window opens in early March every year. Late submissions are not accepted under any circumstances.",
		"a\n\n\n\nb",
		"short answer.",
		"line one\r\nline two",
	}
	for _, in := range inputs {
		once := FormatReply(in)
		twice := FormatReply(once)
		if once != twice {
			t.Fatalf("FormatReply not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestFormatReplyHandlesCJKEnders(t *testing.T) {
	in := strings.Repeat("這是一個很長的句子。", 10)
	got := FormatReply(in)
	if !strings.Contains(got, "\n") {
		t.Fatalf("FormatReply() did not break CJK sentences: %q", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Fatalf("trailing newline after final sentence: %q", got)
	}
}
