// Package transport defines the boundary between the bot core and the chat
// gateway. The core renders Screens and consumes Events; how those cross the
// wire is the adapter's business.
package transport

import "context"

// EventKind says whether an inbound event carries free text or a structured
// button action.
type EventKind string

const (
	KindText   EventKind = "text"
	KindAction EventKind = "action"
)

// Event is one inbound user interaction.
type Event struct {
	ChatID int64     `json:"chat_id"`
	Kind   EventKind `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Action string    `json:"action,omitempty"`
}

// Button is one inline button. Action is the opaque payload echoed back in
// an action event when the button is pressed.
type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Screen is one rendered view. Buttons is an inline keyboard attached to the
// message; Menu is a persistent reply keyboard of plain labels. Either may
// be nil.
type Screen struct {
	Text    string     `json:"text"`
	Buttons [][]Button `json:"buttons,omitempty"`
	Menu    [][]string `json:"menu,omitempty"`
}

// MessageRef identifies a previously sent message for in-place editing.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

// Messenger is the outbound half of the gateway.
type Messenger interface {
	// SendScreen posts a new message and returns a reference to it.
	SendScreen(ctx context.Context, chatID int64, screen Screen) (MessageRef, error)

	// EditScreen replaces the text and keyboard of an earlier message.
	EditScreen(ctx context.Context, ref MessageRef, screen Screen) error

	// Notify sends plain text with no keyboard, used by the reminder sweep.
	Notify(ctx context.Context, chatID int64, text string) error
}
