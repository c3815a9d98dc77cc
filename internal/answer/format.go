package answer

import (
	"regexp"
	"strings"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

const sentenceBreakThreshold = 80

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true, ';': true,
	'。': true, '！': true, '？': true, '；': true,
}

// FormatReply normalizes model output for chat display: CRLF to LF, trimmed
// edges, long single-line answers broken at sentence boundaries, and runs of
// blank lines collapsed. Formatting an already formatted reply is a no-op.
func FormatReply(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)

	if !strings.Contains(text, "\n") && len([]rune(text)) >= sentenceBreakThreshold {
		text = breakSentences(text)
	}

	return blankRuns.ReplaceAllString(text, "\n\n")
}

// breakSentences inserts a newline after each sentence terminator, swallowing
// the spaces that followed it.
func breakSentences(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(runes); i++ {
		b.WriteRune(runes[i])
		if !sentenceEnders[runes[i]] || i == len(runes)-1 {
			continue
		}
		j := i + 1
		for j < len(runes) && runes[j] == ' ' {
			j++
		}
		if j < len(runes) {
			b.WriteRune('\n')
		}
		i = j - 1
	}

	return strings.TrimSpace(b.String())
}
