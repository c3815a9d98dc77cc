package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/antoniostano/guides/internal/answer"
	"github.com/antoniostano/guides/internal/channel"
	"github.com/antoniostano/guides/internal/mode"
	"github.com/antoniostano/guides/internal/observability"
	"github.com/antoniostano/guides/internal/session"
)

// menuTriggers are exact-match messages (after trimming and lowercasing)
// that bring up the category menu.
var menuTriggers = map[string]bool{
	"menu":       true,
	"start":      true,
	"switch":     true,
	"categories": true,
	"es":         true,
}

const (
	translatePrefix = "@translate "
	summarizePrefix = "@summarize "
)

const (
	msgPickCategory = "Please pick a category first:"
	msgBadSelection = "That selection wasn't understood. Please pick a category from the menu:"
)

// Dispatcher routes webhook events to the right handler. Events for the same
// conversation are serialized with a per-identity lock so mode switches and
// history writes cannot interleave. Lock entries are reference-counted and
// dropped once idle, so the map does not grow with the number of distinct
// senders seen over the process lifetime.
type Dispatcher struct {
	tracker  *session.Tracker
	pipeline *answer.Pipeline
	replier  channel.Replier
	metrics  *observability.Metrics

	menuAfterReply bool

	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

func NewDispatcher(tracker *session.Tracker, pipeline *answer.Pipeline, replier channel.Replier, metrics *observability.Metrics, menuAfterReply bool) *Dispatcher {
	return &Dispatcher{
		tracker:        tracker,
		pipeline:       pipeline,
		replier:        replier,
		metrics:        metrics,
		menuAfterReply: menuAfterReply,
		locks:          make(map[string]*identityLock),
	}
}

func (d *Dispatcher) acquire(identity string) *identityLock {
	d.mu.Lock()
	l, ok := d.locks[identity]
	if !ok {
		l = &identityLock{}
		d.locks[identity] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return l
}

func (d *Dispatcher) release(identity string, l *identityLock) {
	l.mu.Unlock()

	d.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(d.locks, identity)
	}
	d.mu.Unlock()
}

// HandleEvent processes one webhook event. A panic in a handler is contained
// to that event.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev channel.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: panic handling event from %s: %v", ev.Source.SenderKey(), r)
		}
	}()

	identity := ev.Source.SenderKey()
	l := d.acquire(identity)
	defer d.release(identity, l)

	if d.metrics != nil {
		d.metrics.Events.WithLabelValues(string(ev.Type)).Inc()
	}

	switch ev.Type {
	case channel.TypePostback:
		d.handleSelection(ctx, identity, ev)
	case channel.TypeMessage:
		d.handleMessage(ctx, identity, ev)
	default:
		log.Printf("dispatch: ignoring event type %q from %s", ev.Type, identity)
	}
}

// handleSelection processes a category pick from the menu.
func (d *Dispatcher) handleSelection(ctx context.Context, identity string, ev channel.Event) {
	m, err := channel.DecodeSelection(ev.PostbackData)
	if err != nil {
		if errors.Is(err, channel.ErrNoSelection) {
			return
		}
		log.Printf("dispatch: bad selection from %s: %v", identity, err)
		d.reply(ctx, ev.ReplyToken, "menu", channel.NewText(msgBadSelection), channel.ModeMenu())
		return
	}

	cleared, err := d.tracker.SelectMode(ctx, identity, m)
	if err != nil {
		log.Printf("dispatch: selecting mode for %s: %v", identity, err)
		d.reply(ctx, ev.ReplyToken, "menu", channel.NewText(msgBadSelection), channel.ModeMenu())
		return
	}

	text := fmt.Sprintf("Category set to %s. Ask away!", m.Label())
	if cleared {
		text = fmt.Sprintf("Switched to %s. Previous conversation cleared, ask away!", m.Label())
	}
	d.reply(ctx, ev.ReplyToken, "selection", channel.NewText(text))
}

func (d *Dispatcher) handleMessage(ctx context.Context, identity string, ev channel.Event) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}

	if menuTriggers[strings.ToLower(text)] {
		d.reply(ctx, ev.ReplyToken, "menu", channel.ModeMenu())
		return
	}

	if instruction, ok := utilityInstruction(text); ok {
		d.reply(ctx, ev.ReplyToken, "general", channel.NewText(d.pipeline.General(ctx, identity, instruction)))
		return
	}

	m := d.tracker.ResolveMode(ctx, identity)
	if m == mode.None {
		d.reply(ctx, ev.ReplyToken, "menu", channel.NewText(msgPickCategory), channel.ModeMenu())
		return
	}

	messages := []channel.Message{channel.NewText(d.pipeline.Answer(ctx, identity, m, text))}
	if d.menuAfterReply {
		messages = append(messages, channel.ModeMenu())
	}
	d.reply(ctx, ev.ReplyToken, "answer", messages...)
}

// utilityInstruction maps command-prefixed messages to a plain instruction
// for the general completion path.
func utilityInstruction(text string) (string, bool) {
	switch {
	case strings.HasPrefix(text, translatePrefix):
		payload := strings.TrimSpace(strings.TrimPrefix(text, translatePrefix))
		if payload == "" {
			return "", false
		}
		return "Translate the following text. If it is in English, translate it to Traditional Chinese; otherwise translate it to English:\n" + payload, true
	case strings.HasPrefix(text, summarizePrefix):
		payload := strings.TrimSpace(strings.TrimPrefix(text, summarizePrefix))
		if payload == "" {
			return "", false
		}
		return "Summarize the following text in a few short bullet points:\n" + payload, true
	default:
		return "", false
	}
}

func (d *Dispatcher) reply(ctx context.Context, replyToken, kind string, messages ...channel.Message) {
	if err := d.replier.Reply(ctx, replyToken, messages...); err != nil {
		log.Printf("dispatch: sending %s reply failed: %v", kind, err)
		if d.metrics != nil {
			d.metrics.BackendErrors.WithLabelValues("channel").Inc()
		}
		return
	}
	if d.metrics != nil {
		d.metrics.Replies.WithLabelValues(kind).Inc()
	}
}
