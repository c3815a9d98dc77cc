package channel

import "github.com/antoniostano/guides/internal/mode"

// Message is an outbound reply payload. The platform accepts a short list of
// them per reply token.
type Message interface {
	isMessage()
}

// TextMessage is a plain text chat bubble.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (TextMessage) isMessage() {}

// NewText builds a text reply bubble.
func NewText(text string) TextMessage {
	return TextMessage{Type: "text", Text: text}
}

// PostbackAction is one tappable menu button carrying an encoded payload.
type PostbackAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Data  string `json:"data"`
}

// ButtonsTemplate is a fixed-choice button card.
type ButtonsTemplate struct {
	Type    string           `json:"type"`
	Title   string           `json:"title"`
	Text    string           `json:"text"`
	Actions []PostbackAction `json:"actions"`
}

// TemplateMessage wraps a template card with its notification fallback text.
type TemplateMessage struct {
	Type     string          `json:"type"`
	AltText  string          `json:"altText"`
	Template ButtonsTemplate `json:"template"`
}

func (TemplateMessage) isMessage() {}

// ModeMenu builds the fixed category menu. Tapping a button posts back
// "mode=<mode>" through DecodeSelection.
func ModeMenu() TemplateMessage {
	actions := make([]PostbackAction, 0, len(mode.All()))
	for _, m := range mode.All() {
		actions = append(actions, PostbackAction{
			Type:  "postback",
			Label: m.Label(),
			Data:  "mode=" + string(m),
		})
	}
	return TemplateMessage{
		Type:    "template",
		AltText: "GuidES category menu",
		Template: ButtonsTemplate{
			Type:    "buttons",
			Title:   "GuidES",
			Text:    "Pick the category you want to ask about:",
			Actions: actions,
		},
	}
}
