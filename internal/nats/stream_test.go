package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

type fakeStream struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeStream) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subject = subject
	f.data = data
	return &jetstream.PubAck{Stream: StreamName, Sequence: 1}, nil
}

func TestSubjects(t *testing.T) {
	tests := []struct {
		name  string
		event model.ConversationEvent
		want  string
	}{
		{
			name:  "user message",
			event: model.ConversationEvent{SessionID: "s1", Type: model.EventTypeAppended, Message: &model.Message{Sender: model.SenderUser}},
			want:  "widget.s1.msg.user",
		},
		{
			name:  "bot message",
			event: model.ConversationEvent{SessionID: "s1", Type: model.EventTypeUpdated, Message: &model.Message{Sender: model.SenderBot}},
			want:  "widget.s1.msg.bot",
		},
		{
			name:  "reset",
			event: model.ConversationEvent{SessionID: "s1", Type: model.EventTypeReset},
			want:  "widget.s1.event.reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := subjectFor(&tt.event); got != tt.want {
				t.Errorf("subject = %q, want %q", got, tt.want)
			}
		})
	}
	if SessionFilter("s1") != "widget.s1.>" {
		t.Error("unexpected session filter")
	}
}

func TestPublisher_Publish(t *testing.T) {
	stream := &fakeStream{}
	p := newPublisher(stream, logger.NewNop())

	msg := model.NewText(model.SenderBot, "olá", model.StatusSent)
	event := &model.ConversationEvent{ID: "e1", SessionID: "s1", Type: model.EventTypeAppended, Message: &msg}
	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	if stream.subject != "widget.s1.msg.bot" {
		t.Errorf("subject = %q", stream.subject)
	}
	var decoded model.ConversationEvent
	if err := json.Unmarshal(stream.data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Message == nil || decoded.Message.Content() != "olá" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestPublisher_PublishError(t *testing.T) {
	boom := errors.New("no responders")
	p := newPublisher(&fakeStream{err: boom}, logger.NewNop())

	err := p.Publish(context.Background(), &model.ConversationEvent{ID: "e1", SessionID: "s1", Type: model.EventTypeReset})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}
