// Package service contains the chat preview orchestrator and the configuration editor.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-configurator/internal/llm"
	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/internal/prompt"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
	"github.com/capitalize-ai/agent-configurator/pkg/metrics"
)

var (
	// ErrUnsupportedFileType is returned when an upload's MIME type is not accepted.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrNoCompletionService is returned when a submission needs a completion provider and none is configured.
	ErrNoCompletionService = errors.New("completion service not configured")
	// ErrEmptyMessage is returned for blank text or empty audio submissions.
	ErrEmptyMessage = errors.New("empty message")
)

// Conversation copy shown to the customer, in the conversation's language.
const (
	replyApology         = "Desculpe, ocorreu um erro ao processar sua mensagem. Tente novamente."
	transcriptionApology = "Desculpe, não consegui transcrever sua mensagem de voz. Tente enviar novamente."
	transcriptionFailed  = "Erro ao transcrever áudio"
	welcomeFallback      = "Olá! Como posso te ajudar hoje?"
	fileReplyFormat      = "Recebi seu arquivo \"%s\"! Como posso ajudar você com ele?"
)

// Welcome generation parameters.
const (
	welcomeTemperature = 0.9
	welcomeMaxTokens   = 150
)

// supportedFileTypes are the MIME types accepted by SubmitFile.
var supportedFileTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"text/plain":         true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// IsSupportedFileType reports whether SubmitFile accepts mimeType.
func IsSupportedFileType(mimeType string) bool {
	return supportedFileTypes[mimeType]
}

// Assistant is the completion client as seen by the orchestrator.
type Assistant interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
	SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error)
	GenerateCompletion(ctx context.Context, history []model.Message, p prompt.Config, opts llm.Options) (string, error)
}

// MediaStore keeps audio payloads and returns playable references. Clear
// drops every payload when the conversation is reset.
type MediaStore interface {
	Put(data []byte, mimeType string) string
	Clear()
}

// EventPublisher forwards conversation events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event *model.ConversationEvent) error
}

// ChatOptions configures a ChatService.
type ChatOptions struct {
	// Voice is the speech synthesis voice for audio replies.
	Voice string
	// CallTimeout bounds each pipeline's remote calls. Zero means no bound.
	CallTimeout time.Duration
	// Probe returns the duration in seconds of a synthesized payload.
	Probe func([]byte) (float64, error)
}

// ChatService is the message orchestrator behind the chat preview. It owns
// the live message list and runs one pipeline per submission.
type ChatService struct {
	assistant Assistant
	builder   *prompt.Builder
	media     MediaStore
	publisher EventPublisher
	logger    *logger.Logger
	opts      ChatOptions
	sessionID string

	mu       sync.Mutex
	messages []model.Message
	config   model.AgentConfiguration
	inflight int
	epoch    uint64
	subs     map[int]chan model.Snapshot
	nextSub  int

	wg sync.WaitGroup
}

// NewChatService creates a chat service. assistant and publisher may be nil.
func NewChatService(
	assistant Assistant,
	builder *prompt.Builder,
	media MediaStore,
	publisher EventPublisher,
	opts ChatOptions,
	log *logger.Logger,
) *ChatService {
	if opts.Voice == "" {
		opts.Voice = "fable"
	}
	return &ChatService{
		assistant: assistant,
		builder:   builder,
		media:     media,
		publisher: publisher,
		logger:    log,
		opts:      opts,
		sessionID: model.NewID(),
		config:    model.DefaultConfiguration(),
		subs:      make(map[int]chan model.Snapshot),
	}
}

// SessionID identifies this preview session on the event bus.
func (s *ChatService) SessionID() string {
	return s.sessionID
}

// SetConfiguration replaces the configuration used for new completions.
func (s *ChatService) SetConfiguration(cfg model.AgentConfiguration) {
	s.mu.Lock()
	s.config = cfg.Clone()
	s.mu.Unlock()
}

// Configuration returns the active configuration.
func (s *ChatService) Configuration() model.AgentConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Clone()
}

// Messages returns a copy of the message list.
func (s *ChatService) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.messages...)
}

// IsLoading reports whether any pipeline is waiting on a remote call.
func (s *ChatService) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Snapshot returns the message list and loading flag together.
func (s *ChatService) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives the latest snapshot after every
// change, starting with the current one. Slow readers only see the newest
// snapshot. The returned func unsubscribes and closes the channel.
func (s *ChatService) Subscribe() (<-chan model.Snapshot, func()) {
	ch := make(chan model.Snapshot, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Wait blocks until every running pipeline has settled or ctx is done.
func (s *ChatService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitText appends a user text message and starts its completion.
func (s *ChatService) SubmitText(content string) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, ErrEmptyMessage
	}
	if s.assistant == nil {
		return model.Message{}, ErrNoCompletionService
	}

	msg := model.NewText(model.SenderUser, content, model.StatusSent)
	history, epoch := s.append(msg)

	s.run("text", func(ctx context.Context) {
		s.completeText(ctx, epoch, msg.ID, history)
	})
	return msg, nil
}

func (s *ChatService) completeText(ctx context.Context, epoch uint64, userID string, history []model.Message) {
	reply, err := s.assistant.GenerateCompletion(ctx, history, s.prompt(), llm.Options{})
	if err != nil {
		s.logger.Warn("text completion failed", zap.String("message_id", userID), zap.Error(err))
		metrics.RecordPipeline("text", "error")
		s.appendIf(epoch, model.NewText(model.SenderBot, replyApology, model.StatusSent))
		return
	}
	metrics.RecordPipeline("text", "success")
	s.appendIf(epoch, model.NewText(model.SenderBot, reply, model.StatusSent))
}

// SubmitAudio stores a recorded payload, appends it as a transcribing user
// message and starts the transcribe, complete and synthesize pipeline.
func (s *ChatService) SubmitAudio(payload []byte, mimeType string, duration float64) (model.Message, error) {
	if len(payload) == 0 {
		return model.Message{}, ErrEmptyMessage
	}
	if s.assistant == nil {
		return model.Message{}, ErrNoCompletionService
	}

	var d *float64
	if duration > 0 {
		d = &duration
	}
	msg, epoch := s.appendMedia(payload, mimeType, func(ref string) model.Message {
		return model.NewAudio(model.SenderUser, ref, d, nil, model.StatusTranscribing)
	})

	s.run("audio", func(ctx context.Context) {
		s.completeAudio(ctx, epoch, msg.ID, payload, mimeType)
	})
	return msg, nil
}

func (s *ChatService) completeAudio(ctx context.Context, epoch uint64, userID string, payload []byte, mimeType string) {
	transcript, err := s.assistant.Transcribe(ctx, payload, mimeType)
	if err != nil {
		s.logger.Warn("audio transcription failed", zap.String("message_id", userID), zap.Error(err))
		metrics.RecordPipeline("audio", "transcription_error")
		s.updateIf(epoch, userID, func(m model.Message) model.Message {
			return m.WithStatus(model.StatusSent).WithTranscript(transcriptionFailed)
		})
		s.appendIf(epoch, model.NewText(model.SenderBot, transcriptionApology, model.StatusSent))
		return
	}

	history, ok := s.updateIf(epoch, userID, func(m model.Message) model.Message {
		return m.WithStatus(model.StatusSent).WithTranscript(transcript)
	})
	if !ok {
		return
	}

	reply, err := s.assistant.GenerateCompletion(ctx, history, s.prompt(), llm.Options{})
	if err != nil {
		s.logger.Warn("audio completion failed", zap.String("message_id", userID), zap.Error(err))
		metrics.RecordPipeline("audio", "completion_error")
		s.appendIf(epoch, model.NewText(model.SenderBot, replyApology, model.StatusSent))
		return
	}

	speech, err := s.assistant.SynthesizeSpeech(ctx, reply, s.opts.Voice)
	if err != nil {
		s.logger.Warn("speech synthesis failed", zap.String("message_id", userID), zap.Error(err))
		metrics.RecordPipeline("audio", "synthesis_error")
		s.appendIf(epoch, model.NewText(model.SenderBot, replyApology, model.StatusSent))
		return
	}

	var duration *float64
	if s.opts.Probe != nil {
		if d, err := s.opts.Probe(speech); err == nil {
			duration = &d
		} else {
			s.logger.Debug("could not probe reply duration", zap.Error(err))
		}
	}

	ref, ok := s.putIf(epoch, speech, "audio/mpeg")
	if !ok {
		return
	}
	metrics.RecordPipeline("audio", "success")
	s.appendIf(epoch, model.NewAudio(model.SenderBot, ref, duration, &reply, model.StatusSent))
}

// SubmitFile encodes an upload as a data URL, appends it and asks for a
// reply. Unsupported types are rejected before anything is appended.
func (s *ChatService) SubmitFile(data []byte, name, mimeType string) (model.Message, error) {
	if !IsSupportedFileType(mimeType) {
		return model.Message{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
	}

	payload := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	msg := model.NewFile(model.SenderUser, payload, name, mimeType, int64(len(data)), model.StatusSent)
	history, epoch := s.append(msg)

	s.run("file", func(ctx context.Context) {
		s.completeFile(ctx, epoch, msg.ID, name, history)
	})
	return msg, nil
}

func (s *ChatService) completeFile(ctx context.Context, epoch uint64, userID, name string, history []model.Message) {
	fallback := fmt.Sprintf(fileReplyFormat, name)

	if s.assistant == nil {
		metrics.RecordPipeline("file", "no_service")
		s.appendIf(epoch, model.NewText(model.SenderBot, fallback, model.StatusSent))
		return
	}

	s.updateIf(epoch, userID, func(m model.Message) model.Message {
		return m.WithStatus(model.StatusDelivered)
	})

	reply, err := s.assistant.GenerateCompletion(ctx, history, s.prompt(), llm.Options{})
	if err != nil {
		s.logger.Warn("file completion failed", zap.String("message_id", userID), zap.Error(err))
		metrics.RecordPipeline("file", "error")
		s.appendIf(epoch, model.NewText(model.SenderBot, fallback, model.StatusSent))
		return
	}
	metrics.RecordPipeline("file", "success")
	s.appendIf(epoch, model.NewText(model.SenderBot, reply, model.StatusSent))
}

// StartConversation clears the list and opens the conversation: with AI
// enabled a welcome message is generated, otherwise the configured initial
// messages are shown.
func (s *ChatService) StartConversation() {
	s.mu.Lock()
	epoch := s.clearLocked()
	cfg := s.config.Clone()
	useAI := cfg.UseAI && s.assistant != nil
	if !useAI {
		initial := cfg.InitialMessages
		if len(initial) == 0 {
			initial = model.DefaultGreeting()
		}
		s.messages = append([]model.Message(nil), initial...)
	}
	s.notifyLocked()
	s.mu.Unlock()

	s.publish(context.Background(), &model.ConversationEvent{Type: model.EventTypeReset})
	if !useAI {
		return
	}

	s.run("welcome", func(ctx context.Context) {
		p := s.builder.Build(cfg).WithIntent(prompt.WelcomeIntent)
		text, err := s.assistant.GenerateCompletion(ctx, nil, p, llm.Options{
			Temperature: llm.Float(welcomeTemperature),
			MaxTokens:   welcomeMaxTokens,
		})
		if err != nil {
			s.logger.Warn("welcome generation failed", zap.Error(err))
			metrics.RecordPipeline("welcome", "error")
			text = welcomeFallback
		} else {
			metrics.RecordPipeline("welcome", "success")
		}
		s.appendIf(epoch, model.NewText(model.SenderBot, strings.TrimSpace(text), model.StatusRead))
	})
}

// Reset clears the message list. Pipelines still running for earlier
// submissions are discarded when they settle.
func (s *ChatService) Reset() {
	s.mu.Lock()
	s.clearLocked()
	s.notifyLocked()
	s.mu.Unlock()

	s.publish(context.Background(), &model.ConversationEvent{Type: model.EventTypeReset})
}

// clearLocked starts a new epoch with an empty list and drops the media the
// old list referenced.
func (s *ChatService) clearLocked() uint64 {
	s.epoch++
	s.messages = nil
	s.media.Clear()
	return s.epoch
}

// run starts a pipeline with the loading flag asserted until it returns.
func (s *ChatService) run(name string, fn func(ctx context.Context)) {
	s.wg.Add(1)
	s.setLoading(+1)

	go func() {
		defer s.wg.Done()
		defer s.setLoading(-1)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("pipeline panicked", zap.String("pipeline", name), zap.Any("panic", r))
				metrics.RecordPipeline(name, "panic")
			}
		}()

		ctx := context.Background()
		if s.opts.CallTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.CallTimeout)
			defer cancel()
		}
		fn(ctx)
	}()
}

func (s *ChatService) setLoading(delta int) {
	s.mu.Lock()
	s.inflight += delta
	s.notifyLocked()
	s.mu.Unlock()
	metrics.PipelinesInFlight.Add(float64(delta))
}

func (s *ChatService) prompt() prompt.Config {
	s.mu.Lock()
	cfg := s.config.Clone()
	s.mu.Unlock()
	return s.builder.Build(cfg)
}

// append adds msg and returns the list as of the append, for use as
// completion history, and the current epoch.
func (s *ChatService) append(msg model.Message) ([]model.Message, uint64) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	history := append([]model.Message(nil), s.messages...)
	epoch := s.epoch
	s.notifyLocked()
	s.mu.Unlock()

	metrics.RecordMessage(string(msg.Kind()), string(msg.Sender))
	s.publish(context.Background(), &model.ConversationEvent{Type: model.EventTypeAppended, Message: &msg})
	return history, epoch
}

// appendMedia stores payload and appends the message built around its
// reference in one step, so a concurrent reset cannot leave a dangling ref.
func (s *ChatService) appendMedia(payload []byte, mimeType string, build func(ref string) model.Message) (model.Message, uint64) {
	s.mu.Lock()
	msg := build(s.media.Put(payload, mimeType))
	s.messages = append(s.messages, msg)
	epoch := s.epoch
	s.notifyLocked()
	s.mu.Unlock()

	metrics.RecordMessage(string(msg.Kind()), string(msg.Sender))
	s.publish(context.Background(), &model.ConversationEvent{Type: model.EventTypeAppended, Message: &msg})
	return msg, epoch
}

// putIf stores payload unless the list was reset since epoch.
func (s *ChatService) putIf(epoch uint64, payload []byte, mimeType string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return "", false
	}
	return s.media.Put(payload, mimeType), true
}

// appendIf appends msg unless the list was reset since epoch.
func (s *ChatService) appendIf(epoch uint64, msg model.Message) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug("dropping reply for a reset conversation", zap.String("message_id", msg.ID))
		return false
	}
	s.messages = append(s.messages, msg)
	s.notifyLocked()
	s.mu.Unlock()

	metrics.RecordMessage(string(msg.Kind()), string(msg.Sender))
	s.publish(context.Background(), &model.ConversationEvent{Type: model.EventTypeAppended, Message: &msg})
	return true
}

// updateIf applies fn to the message with id in place and returns the list
// after the update. It reports false when the list was reset since epoch or
// the message is gone.
func (s *ChatService) updateIf(epoch uint64, id string, fn func(model.Message) model.Message) ([]model.Message, bool) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil, false
	}

	var updated *model.Message
	next := make([]model.Message, len(s.messages))
	for i, m := range s.messages {
		if m.ID == id {
			m = fn(m)
			updated = &m
		}
		next[i] = m
	}
	if updated == nil {
		s.mu.Unlock()
		return nil, false
	}
	s.messages = next
	history := append([]model.Message(nil), next...)
	s.notifyLocked()
	s.mu.Unlock()

	s.publish(context.Background(), &model.ConversationEvent{Type: model.EventTypeUpdated, Message: updated})
	return history, true
}

func (s *ChatService) snapshotLocked() model.Snapshot {
	return model.Snapshot{
		Messages: append([]model.Message(nil), s.messages...),
		Loading:  s.inflight > 0,
	}
}

func (s *ChatService) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// replace the stale snapshot
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *ChatService) publish(ctx context.Context, event *model.ConversationEvent) {
	if s.publisher == nil {
		return
	}
	event.ID = model.NewID()
	event.SessionID = s.sessionID
	event.CreatedAt = time.Now()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish conversation event",
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}
