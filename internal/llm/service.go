package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/internal/prompt"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
	"github.com/capitalize-ai/agent-configurator/pkg/metrics"
)

// Client wraps the three remote operations behind one adapter: transcription,
// speech synthesis and conversational completion. Every failure is reported
// as one of ErrTranscription, ErrSynthesis or ErrCompletion.
type Client struct {
	completer   Completer
	transcriber Transcriber
	synthesizer Synthesizer
	defaults    Params
	logger      *logger.Logger
	tracer      trace.Tracer
}

// NewClient creates a client. Any of the providers may be nil, in which case
// the matching operation fails.
func NewClient(completer Completer, transcriber Transcriber, synthesizer Synthesizer, defaults Options, log *logger.Logger) *Client {
	return &Client{
		completer:   completer,
		transcriber: transcriber,
		synthesizer: synthesizer,
		defaults:    defaults.resolve(DefaultParams()),
		logger:      log,
		tracer:      otel.Tracer("agent-configurator/llm"),
	}
}

// Transcribe converts a recorded audio payload to text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if c.transcriber == nil {
		return "", fmt.Errorf("%w: no transcription provider configured", ErrTranscription)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio payload", ErrTranscription)
	}

	ctx, span := c.tracer.Start(ctx, "llm.transcribe", trace.WithAttributes(
		attribute.String("audio.mime_type", mimeType),
		attribute.Int("audio.size", len(audio)),
	))
	defer span.End()

	start := time.Now()
	text, err := c.transcriber.Transcribe(ctx, audio, "audio"+audioExtension(mimeType))
	c.observe(span, "transcribe", start, err)
	if err != nil {
		c.logger.Warn("transcription failed", zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	return strings.TrimSpace(text), nil
}

// SynthesizeSpeech converts text to an audio payload.
func (c *Client) SynthesizeSpeech(ctx context.Context, text, voice string) ([]byte, error) {
	if c.synthesizer == nil {
		return nil, fmt.Errorf("%w: no speech provider configured", ErrSynthesis)
	}

	ctx, span := c.tracer.Start(ctx, "llm.synthesize", trace.WithAttributes(
		attribute.String("speech.voice", voice),
		attribute.Int("speech.chars", len(text)),
	))
	defer span.End()

	start := time.Now()
	audio, err := c.synthesizer.Synthesize(ctx, text, voice)
	if err == nil && len(audio) == 0 {
		err = errors.New("empty audio payload")
	}
	c.observe(span, "synthesize", start, err)
	if err != nil {
		c.logger.Warn("speech synthesis failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	return audio, nil
}

// GenerateCompletion translates history into the completion schema, calls the
// provider and returns the reply text. Unset fields of opts take the client
// defaults.
func (c *Client) GenerateCompletion(ctx context.Context, history []model.Message, p prompt.Config, opts Options) (string, error) {
	if c.completer == nil {
		return "", fmt.Errorf("%w: no completion provider configured", ErrCompletion)
	}

	req := &CompletionRequest{
		Input:   BuildInput(history, p.SystemPrompt),
		Params: opts.resolve(c.defaults),
	}

	ctx, span := c.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", c.completer.Name()),
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.input_messages", len(req.Input)),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.completer.Complete(ctx, req)
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = errors.New("empty completion content")
	}
	c.observe(span, "complete", start, err)
	if err != nil {
		c.logger.Warn("completion failed",
			zap.String("provider", c.completer.Name()),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	metrics.RecordTokens(resp.Model, resp.TokensIn, resp.TokensOut)
	c.logger.Debug("completion generated",
		zap.String("provider", c.completer.Name()),
		zap.String("model", resp.Model),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)
	return resp.Content, nil
}

// CanComplete reports whether a completion provider is configured.
func (c *Client) CanComplete() bool {
	return c.completer != nil
}

func (c *Client) observe(span trace.Span, operation string, start time.Time, err error) {
	provider := "none"
	if c.completer != nil {
		provider = c.completer.Name()
	}
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RecordLLMCall(provider, operation, status, time.Since(start).Seconds())
}

func audioExtension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	default:
		return ".webm"
	}
}
