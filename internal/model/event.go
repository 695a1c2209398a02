package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeAppended EventType = "appended"
	EventTypeUpdated  EventType = "updated"
	EventTypeReset    EventType = "reset"
	EventTypeError    EventType = "error"
)

// ConversationEvent describes one change to the live message list.
type ConversationEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Type      EventType `json:"type"`
	Message   *Message  `json:"message,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is the view-facing state of the chat preview.
type Snapshot struct {
	Messages []Message `json:"messages"`
	Loading  bool      `json:"loading"`
}
