package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/antoniostano/guides/internal/channel"
	"github.com/antoniostano/guides/internal/config"
	"github.com/antoniostano/guides/internal/memory"
	"github.com/antoniostano/guides/internal/mode"
	"github.com/antoniostano/guides/internal/retrieval"
)

type captureDispatcher struct {
	events chan channel.Event
}

func (d *captureDispatcher) HandleEvent(_ context.Context, ev channel.Event) {
	d.events <- ev
}

type noopBackend struct{}

func (noopBackend) Retrieve(context.Context, string, int) ([]retrieval.Passage, error) {
	return nil, nil
}

func (noopBackend) Close() error { return nil }

func newTestServer() (*Server, *captureDispatcher) {
	cfg := config.Config{ChannelSecret: "test-secret"}
	registry := retrieval.NewRegistry()
	registry.Register(mode.Scholarship, noopBackend{})
	d := &captureDispatcher{events: make(chan channel.Event, 8)}
	return New(cfg, d, registry, memory.NewInMemoryStore(), nil), d
}

func TestHealthReportsIndexesAndDriver(t *testing.T) {
	s, _ := newTestServer()

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var payload struct {
		Status       string          `json:"status"`
		Indexes      map[string]bool `json:"indexes"`
		MemoryDriver string          `json:"memory_driver"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode health payload: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("status = %q", payload.Status)
	}
	if payload.MemoryDriver != "in-memory" {
		t.Fatalf("memory_driver = %q", payload.MemoryDriver)
	}
	if !payload.Indexes[string(mode.Scholarship)] {
		t.Fatal("scholarship index should report available")
	}
	if payload.Indexes[string(mode.FacultyLab)] {
		t.Fatal("faculty_lab index should report unavailable")
	}
	if len(payload.Indexes) != len(mode.All()) {
		t.Fatalf("health lists %d indexes, want %d", len(payload.Indexes), len(mode.All()))
	}
}

func TestCallbackRejectsBadSignature(t *testing.T) {
	s, _ := newTestServer()

	body := `{"events":[]}`
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set(channel.SignatureHeader, "bogus")

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCallbackRejectsMissingSignature(t *testing.T) {
	s, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(`{"events":[]}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCallbackRejectsMalformedBody(t *testing.T) {
	s, _ := newTestServer()

	body := []byte(`not json at all`)
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(string(body)))
	req.Header.Set(channel.SignatureHeader, channel.Sign("test-secret", body))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCallbackDispatchesEvents(t *testing.T) {
	s, d := newTestServer()

	body := []byte(`{"events":[
		{"type":"message","replyToken":"rt-1","source":{"type":"user","userId":"u1"},"message":{"type":"text","text":"hello"}},
		{"type":"postback","replyToken":"rt-2","source":{"type":"user","userId":"u1"},"postback":{"data":"mode=scholarship"}},
		{"type":"message","replyToken":"rt-3","source":{"type":"user","userId":"u1"},"message":{"type":"sticker"}}
	]}`)
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(string(body)))
	req.Header.Set(channel.SignatureHeader, channel.Sign("test-secret", body))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	got := make([]channel.Event, 0, 2)
	for i := 0; i < 2; i++ {
		select {
		case ev := <-d.events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	types := map[channel.EventType]bool{}
	for _, ev := range got {
		types[ev.Type] = true
	}
	if !types[channel.TypeMessage] || !types[channel.TypePostback] {
		t.Fatalf("dispatched events = %+v", got)
	}

	select {
	case ev := <-d.events:
		t.Fatalf("unexpected third event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCallbackKeepsDeliveryOrder(t *testing.T) {
	s, d := newTestServer()

	// A selection followed by a question from the same user must reach the
	// dispatcher in that order, or the question would be answered in the old
	// mode and the selection would then clear the fresh turns.
	body := []byte(`{"events":[
		{"type":"postback","replyToken":"rt-1","source":{"type":"user","userId":"u1"},"postback":{"data":"mode=scholarship"}},
		{"type":"message","replyToken":"rt-2","source":{"type":"user","userId":"u1"},"message":{"type":"text","text":"when is the deadline?"}}
	]}`)
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(string(body)))
	req.Header.Set(channel.SignatureHeader, channel.Sign("test-secret", body))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got []channel.Event
	for i := 0; i < 2; i++ {
		select {
		case ev := <-d.events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	if got[0].Type != channel.TypePostback || got[0].ReplyToken != "rt-1" {
		t.Fatalf("first dispatched event = %+v, want the postback", got[0])
	}
	if got[1].Type != channel.TypeMessage || got[1].ReplyToken != "rt-2" {
		t.Fatalf("second dispatched event = %+v, want the message", got[1])
	}
}

func TestReadyEndpoint(t *testing.T) {
	s, _ := newTestServer()

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ready"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
