package channel

import (
	"encoding/json"
	"fmt"
)

// EventType identifies inbound webhook payload variants.
type EventType string

const (
	TypeMessage  EventType = "message"
	TypePostback EventType = "postback"
)

// SourceKind tags where an event originated.
type SourceKind string

const (
	SourceDirect  SourceKind = "user"
	SourceGroup   SourceKind = "group"
	SourceRoom    SourceKind = "room"
	SourceUnknown SourceKind = "unknown"
)

// Source identifies the conversation an event belongs to. Exactly one id
// field is set for known kinds; it is resolved once at webhook ingress.
type Source struct {
	Kind    SourceKind
	UserID  string
	GroupID string
	RoomID  string
}

// SenderKey derives the stable identity key for a conversation. A direct
// user id wins over group and room ids so the same person keeps one memory
// across contexts where the platform reports their id.
func (s Source) SenderKey() string {
	switch s.Kind {
	case SourceDirect:
		return s.UserID
	case SourceGroup:
		return "group:" + s.GroupID
	case SourceRoom:
		return "room:" + s.RoomID
	default:
		return "unknown_sender"
	}
}

// Event is one normalized inbound event ready for dispatch.
type Event struct {
	Type         EventType
	ReplyToken   string
	Source       Source
	Text         string // message text, TypeMessage only
	PostbackData string // raw selection payload, TypePostback only
}

type wireEnvelope struct {
	Events []wireEvent `json:"events"`
}

type wireEvent struct {
	Type       string       `json:"type"`
	ReplyToken string       `json:"replyToken"`
	Source     wireSource   `json:"source"`
	Message    *wireMessage `json:"message,omitempty"`
	Postback   *wireData    `json:"postback,omitempty"`
}

type wireSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type wireMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireData struct {
	Data string `json:"data"`
}

// ParseWebhook decodes a signed webhook body into the events this service
// handles. Event kinds we do not handle (stickers, joins, ...) are skipped,
// not rejected: the platform batches unrelated events into one delivery.
func ParseWebhook(body []byte) ([]Event, error) {
	var env wireEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("invalid webhook body: %w", err)
	}

	events := make([]Event, 0, len(env.Events))
	for _, we := range env.Events {
		switch EventType(we.Type) {
		case TypeMessage:
			if we.Message == nil || we.Message.Type != "text" {
				continue
			}
			events = append(events, Event{
				Type:       TypeMessage,
				ReplyToken: we.ReplyToken,
				Source:     resolveSource(we.Source),
				Text:       we.Message.Text,
			})
		case TypePostback:
			if we.Postback == nil {
				continue
			}
			events = append(events, Event{
				Type:         TypePostback,
				ReplyToken:   we.ReplyToken,
				Source:       resolveSource(we.Source),
				PostbackData: we.Postback.Data,
			})
		}
	}
	return events, nil
}

func resolveSource(ws wireSource) Source {
	switch {
	case ws.UserID != "":
		return Source{Kind: SourceDirect, UserID: ws.UserID}
	case ws.GroupID != "":
		return Source{Kind: SourceGroup, GroupID: ws.GroupID}
	case ws.RoomID != "":
		return Source{Kind: SourceRoom, RoomID: ws.RoomID}
	default:
		return Source{Kind: SourceUnknown}
	}
}
