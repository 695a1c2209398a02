package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
	"github.com/capitalize-ai/agent-configurator/pkg/metrics"
)

const (
	// StreamName is the name of the chat preview stream.
	StreamName = "WIDGET_PREVIEW"

	// SubjectPrefix is the prefix for all chat preview subjects.
	SubjectPrefix = "widget"
)

// EnsureStream creates the chat preview stream if it does not exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Chat preview messages and session events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// MessageSubject returns the subject for a message event.
func MessageSubject(sessionID string, sender model.Sender) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, sessionID, sender)
}

// EventSubject returns the subject for a session event that carries no message.
func EventSubject(sessionID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, sessionID, eventType)
}

// SessionFilter returns the filter subject for everything in a session.
func SessionFilter(sessionID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, sessionID)
}

// subjectFor routes message-bearing events to the sender's message subject.
func subjectFor(event *model.ConversationEvent) string {
	if event.Message != nil {
		return MessageSubject(event.SessionID, event.Message.Sender)
	}
	return EventSubject(event.SessionID, event.Type)
}

// streamPublisher is the part of jetstream.JetStream the publisher needs.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher writes conversation events to JetStream.
type Publisher struct {
	js      streamPublisher
	logger  *logger.Logger
	timeout time.Duration
}

// NewPublisher creates a publisher over js.
func NewPublisher(js jetstream.JetStream, log *logger.Logger) *Publisher {
	return newPublisher(js, log)
}

func newPublisher(js streamPublisher, log *logger.Logger) *Publisher {
	return &Publisher{js: js, logger: log, timeout: 5 * time.Second}
}

// Publish sends event to its subject. The event id doubles as the JetStream
// message id so retried publishes are deduplicated.
func (p *Publisher) Publish(ctx context.Context, event *model.ConversationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	subject := subjectFor(event)
	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID))
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "success").Inc()
	p.logger.Debug("published conversation event",
		zap.String("subject", subject),
		zap.Uint64("sequence", ack.Sequence),
	)
	return nil
}
