// Package model defines data structures for the agent configurator and its chat preview.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the modality of a message.
type Kind string

const (
	KindText   Kind = "text"
	KindAudio  Kind = "audio"
	KindFile   Kind = "file"
	KindSystem Kind = "system"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Status is the lifecycle tag of a message.
type Status string

const (
	StatusSending          Status = "sending"
	StatusSent             Status = "sent"
	StatusDelivered        Status = "delivered"
	StatusRead             Status = "read"
	StatusTranscribing     Status = "transcribing"
	StatusGeneratingSpeech Status = "generating-speech"
)

// Body is the modality-specific payload of a message.
// Implementations are TextBody, AudioBody, FileBody and SystemBody.
type Body interface {
	Kind() Kind
	content() string
}

// TextBody carries plain text. AudioRef is set when speech was synthesized for it.
type TextBody struct {
	Text     string
	AudioRef string
}

// AudioBody carries a playable audio reference.
type AudioBody struct {
	Ref        string
	Duration   *float64
	Transcript *string
}

// FileBody carries a base64 data URL payload.
type FileBody struct {
	Payload  string
	Name     string
	MIMEType string
	Size     int64
}

// SystemBody carries a system notice shown inline in the conversation.
type SystemBody struct {
	Text string
}

func (TextBody) Kind() Kind   { return KindText }
func (AudioBody) Kind() Kind  { return KindAudio }
func (FileBody) Kind() Kind   { return KindFile }
func (SystemBody) Kind() Kind { return KindSystem }

func (b TextBody) content() string   { return b.Text }
func (b AudioBody) content() string  { return b.Ref }
func (b FileBody) content() string   { return b.Payload }
func (b SystemBody) content() string { return b.Text }

// Message is the unit of conversation.
// ID and Sender never change once a message is appended to a list.
type Message struct {
	ID        string
	Sender    Sender
	Status    Status
	CreatedAt time.Time
	Body      Body
}

// NewID returns a unique, time-ordered message identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewText creates a text message.
func NewText(sender Sender, text string, status Status) Message {
	return Message{
		ID:        NewID(),
		Sender:    sender,
		Status:    status,
		CreatedAt: time.Now(),
		Body:      TextBody{Text: text},
	}
}

// NewAudio creates an audio message. duration and transcript are optional.
func NewAudio(sender Sender, ref string, duration *float64, transcript *string, status Status) Message {
	return Message{
		ID:        NewID(),
		Sender:    sender,
		Status:    status,
		CreatedAt: time.Now(),
		Body:      AudioBody{Ref: ref, Duration: duration, Transcript: transcript},
	}
}

// NewFile creates a file message.
func NewFile(sender Sender, payload, name, mimeType string, size int64, status Status) Message {
	return Message{
		ID:        NewID(),
		Sender:    sender,
		Status:    status,
		CreatedAt: time.Now(),
		Body:      FileBody{Payload: payload, Name: name, MIMEType: mimeType, Size: size},
	}
}

// Kind returns the modality of the message.
func (m Message) Kind() Kind {
	if m.Body == nil {
		return KindText
	}
	return m.Body.Kind()
}

// Content returns the raw payload: text, audio reference or encoded file.
func (m Message) Content() string {
	if m.Body == nil {
		return ""
	}
	return m.Body.content()
}

// Transcript returns the transcript of an audio message, if any.
func (m Message) Transcript() (string, bool) {
	if b, ok := m.Body.(AudioBody); ok && b.Transcript != nil {
		return *b.Transcript, true
	}
	return "", false
}

// WithStatus returns a copy of m with a new status.
func (m Message) WithStatus(s Status) Message {
	m.Status = s
	return m
}

// WithTranscript returns a copy of an audio message with its transcript set.
// Other kinds are returned unchanged.
func (m Message) WithTranscript(text string) Message {
	b, ok := m.Body.(AudioBody)
	if !ok {
		return m
	}
	b.Transcript = &text
	m.Body = b
	return m
}

// WithText returns a copy of a text message with new content.
func (m Message) WithText(text string) Message {
	b, ok := m.Body.(TextBody)
	if !ok {
		return m
	}
	b.Text = text
	m.Body = b
	return m
}

// messageJSON is the flat wire representation of a Message.
type messageJSON struct {
	ID         string   `json:"id"`
	Kind       Kind     `json:"kind"`
	Content    string   `json:"content"`
	Sender     Sender   `json:"sender"`
	Status     Status   `json:"status"`
	CreatedAt  string   `json:"createdAt"`
	Duration   *float64 `json:"duration,omitempty"`
	FileName   string   `json:"fileName,omitempty"`
	FileSize   int64    `json:"fileSize,omitempty"`
	FileType   string   `json:"fileType,omitempty"`
	Transcript *string  `json:"transcript,omitempty"`
	AudioRef   string   `json:"audioRef,omitempty"`

	// Legacy field names written by older configurator builds.
	Type      Kind   `json:"type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// MarshalJSON encodes the message with an ISO-8601 timestamp.
func (m Message) MarshalJSON() ([]byte, error) {
	w := messageJSON{
		ID:        m.ID,
		Kind:      m.Kind(),
		Content:   m.Content(),
		Sender:    m.Sender,
		Status:    m.Status,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	switch b := m.Body.(type) {
	case TextBody:
		w.AudioRef = b.AudioRef
	case AudioBody:
		w.Duration = b.Duration
		w.Transcript = b.Transcript
	case FileBody:
		w.FileName = b.Name
		w.FileSize = b.Size
		w.FileType = b.MIMEType
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a message, accepting legacy field names.
// Missing kind defaults to text, sender to bot and status to read. A missing
// or unparsable timestamp is replaced by the current time.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	kind := w.Kind
	if kind == "" {
		kind = w.Type
	}
	if kind == "" {
		kind = KindText
	}
	ts := w.CreatedAt
	if ts == "" {
		ts = w.Timestamp
	}

	m.ID = w.ID
	m.Sender = w.Sender
	if m.Sender == "" {
		m.Sender = SenderBot
	}
	m.Status = w.Status
	if m.Status == "" {
		m.Status = StatusRead
	}
	m.CreatedAt = parseTimestamp(ts)

	switch kind {
	case KindAudio:
		m.Body = AudioBody{Ref: w.Content, Duration: w.Duration, Transcript: w.Transcript}
	case KindFile:
		m.Body = FileBody{Payload: w.Content, Name: w.FileName, MIMEType: w.FileType, Size: w.FileSize}
	case KindSystem:
		m.Body = SystemBody{Text: w.Content}
	default:
		m.Body = TextBody{Text: w.Content, AudioRef: w.AudioRef}
	}
	return nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
