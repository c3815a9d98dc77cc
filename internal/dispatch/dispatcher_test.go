package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/antoniostano/guides/internal/answer"
	"github.com/antoniostano/guides/internal/channel"
	"github.com/antoniostano/guides/internal/llm"
	"github.com/antoniostano/guides/internal/memory"
	"github.com/antoniostano/guides/internal/mode"
	"github.com/antoniostano/guides/internal/retrieval"
	"github.com/antoniostano/guides/internal/session"
)

type sentReply struct {
	token    string
	messages []channel.Message
}

type recorder struct {
	mu      sync.Mutex
	replies []sentReply
}

func (r *recorder) Reply(_ context.Context, token string, messages ...channel.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, sentReply{token: token, messages: messages})
	return nil
}

func (r *recorder) last(t *testing.T) sentReply {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		t.Fatal("no reply sent")
	}
	return r.replies[len(r.replies)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replies)
}

type echoBackend struct{}

func (echoBackend) Retrieve(context.Context, string, int) ([]retrieval.Passage, error) {
	return []retrieval.Passage{{Content: "reference material", Score: 1}}, nil
}

func (echoBackend) Close() error { return nil }

func textOf(t *testing.T, m channel.Message) string {
	t.Helper()
	tm, ok := m.(channel.TextMessage)
	if !ok {
		t.Fatalf("message %T, want TextMessage", m)
	}
	return tm.Text
}

func newTestDispatcher(menuAfterReply bool) (*Dispatcher, *recorder, memory.Store) {
	store := memory.NewInMemoryStore()
	registry := retrieval.NewRegistry()
	for _, m := range mode.All() {
		registry.Register(m, echoBackend{})
	}
	client := llm.NewMockClient()
	client.Reply = func(messages []llm.Message, _ float32) (string, error) {
		return "generated answer", nil
	}
	pipeline := answer.NewPipeline(store, registry, client, nil, answer.PipelineConfig{})
	rec := &recorder{}
	d := NewDispatcher(session.NewTracker(store), pipeline, rec, nil, menuAfterReply)
	return d, rec, store
}

func messageEvent(userID, text string) channel.Event {
	return channel.Event{
		Type:       channel.TypeMessage,
		ReplyToken: "rt-1",
		Source:     channel.Source{Kind: channel.SourceDirect, UserID: userID},
		Text:       text,
	}
}

func postbackEvent(userID, data string) channel.Event {
	return channel.Event{
		Type:         channel.TypePostback,
		ReplyToken:   "rt-1",
		Source:       channel.Source{Kind: channel.SourceDirect, UserID: userID},
		PostbackData: data,
	}
}

func TestMenuTriggerShowsMenu(t *testing.T) {
	d, rec, _ := newTestDispatcher(false)

	d.HandleEvent(context.Background(), messageEvent("u1", "Menu"))

	sent := rec.last(t)
	if len(sent.messages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent.messages))
	}
	if _, ok := sent.messages[0].(channel.TemplateMessage); !ok {
		t.Fatalf("message %T, want TemplateMessage", sent.messages[0])
	}
}

func TestEmptyMessageIgnored(t *testing.T) {
	d, rec, _ := newTestDispatcher(false)

	d.HandleEvent(context.Background(), messageEvent("u1", "   "))

	if rec.count() != 0 {
		t.Fatalf("empty message produced %d replies", rec.count())
	}
}

func TestQuestionWithoutModePromptsMenu(t *testing.T) {
	d, rec, _ := newTestDispatcher(false)

	d.HandleEvent(context.Background(), messageEvent("u1", "when is the deadline?"))

	sent := rec.last(t)
	if len(sent.messages) != 2 {
		t.Fatalf("sent %d messages, want prompt + menu", len(sent.messages))
	}
	if got := textOf(t, sent.messages[0]); got != msgPickCategory {
		t.Fatalf("prompt = %q", got)
	}
	if _, ok := sent.messages[1].(channel.TemplateMessage); !ok {
		t.Fatalf("second message %T, want TemplateMessage", sent.messages[1])
	}
}

func TestSelectionThenQuestion(t *testing.T) {
	ctx := context.Background()
	d, rec, _ := newTestDispatcher(false)

	d.HandleEvent(ctx, postbackEvent("u1", "mode=scholarship"))
	sel := rec.last(t)
	if got := textOf(t, sel.messages[0]); !strings.Contains(got, "Scholarships & Grants") {
		t.Fatalf("selection ack = %q", got)
	}

	d.HandleEvent(ctx, messageEvent("u1", "when is the deadline?"))
	ans := rec.last(t)
	if len(ans.messages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(ans.messages))
	}
	if got := textOf(t, ans.messages[0]); got != "generated answer" {
		t.Fatalf("answer = %q", got)
	}
}

func TestModeSwitchMentionsClearedHistory(t *testing.T) {
	ctx := context.Background()
	d, rec, store := newTestDispatcher(false)

	d.HandleEvent(ctx, postbackEvent("u1", "mode=scholarship"))
	d.HandleEvent(ctx, messageEvent("u1", "first question"))

	d.HandleEvent(ctx, postbackEvent("u1", "mode=faculty_lab"))
	sw := rec.last(t)
	if got := textOf(t, sw.messages[0]); !strings.Contains(got, "cleared") {
		t.Fatalf("switch ack = %q, want history-cleared notice", got)
	}

	turns, err := store.LoadRecentHistory(ctx, "u1", memory.DefaultHistoryLimit)
	if err != nil {
		t.Fatalf("LoadRecentHistory() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("history survived switch: %+v", turns)
	}
}

func TestUnknownSelectionPromptsMenu(t *testing.T) {
	d, rec, _ := newTestDispatcher(false)

	d.HandleEvent(context.Background(), postbackEvent("u1", "mode=astrology"))

	sent := rec.last(t)
	if got := textOf(t, sent.messages[0]); got != msgBadSelection {
		t.Fatalf("reply = %q, want bad-selection prompt", got)
	}
	if _, ok := sent.messages[1].(channel.TemplateMessage); !ok {
		t.Fatalf("second message %T, want TemplateMessage", sent.messages[1])
	}
}

func TestPostbackWithoutSelectionIgnored(t *testing.T) {
	d, rec, _ := newTestDispatcher(false)

	d.HandleEvent(context.Background(), postbackEvent("u1", "foo=bar"))

	if rec.count() != 0 {
		t.Fatalf("selection-less postback produced %d replies", rec.count())
	}
}

func TestTranslateCommandBypassesModeGate(t *testing.T) {
	d, rec, store := newTestDispatcher(false)

	d.HandleEvent(context.Background(), messageEvent("u1", "@translate bonjour"))

	sent := rec.last(t)
	if got := textOf(t, sent.messages[0]); got != "generated answer" {
		t.Fatalf("reply = %q", got)
	}

	turns, err := store.LoadRecentHistory(context.Background(), "u1", memory.DefaultHistoryLimit)
	if err != nil {
		t.Fatalf("LoadRecentHistory() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("utility command recorded turns: %+v", turns)
	}
}

func TestSummarizeWithoutPayloadFallsThrough(t *testing.T) {
	d, rec, _ := newTestDispatcher(false)

	// No payload means the prefix is treated as an ordinary message, which
	// without a mode prompts for a category.
	d.HandleEvent(context.Background(), messageEvent("u1", "@summarize   "))

	sent := rec.last(t)
	if got := textOf(t, sent.messages[0]); got != msgPickCategory {
		t.Fatalf("reply = %q, want category prompt", got)
	}
}

func TestMenuAfterReplyAppendsMenu(t *testing.T) {
	ctx := context.Background()
	d, rec, _ := newTestDispatcher(true)

	d.HandleEvent(ctx, postbackEvent("u1", "mode=scholarship"))
	d.HandleEvent(ctx, messageEvent("u1", "question"))

	sent := rec.last(t)
	if len(sent.messages) != 2 {
		t.Fatalf("sent %d messages, want answer + menu", len(sent.messages))
	}
	if _, ok := sent.messages[1].(channel.TemplateMessage); !ok {
		t.Fatalf("trailing message %T, want TemplateMessage", sent.messages[1])
	}
}

func lockCount(d *Dispatcher) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.locks)
}

func TestIdentityLocksPruned(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newTestDispatcher(false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		userID := string(rune('a' + i%5))
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			d.HandleEvent(ctx, postbackEvent(uid, "mode=scholarship"))
			d.HandleEvent(ctx, messageEvent(uid, "question"))
		}(userID)
	}
	wg.Wait()

	if got := lockCount(d); got != 0 {
		t.Fatalf("locks map holds %d idle entries, want 0", got)
	}
}

func TestPanicContained(t *testing.T) {
	d, _, _ := newTestDispatcher(false)
	d.tracker = nil // forces a nil dereference inside the handler

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.HandleEvent(context.Background(), messageEvent("u1", "boom"))
	}()
	<-done
}
