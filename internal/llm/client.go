// Package llm provides the completion, transcription and speech client and its provider adapters.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrTranscription is returned when audio could not be transcribed.
	ErrTranscription = errors.New("transcription failed")
	// ErrSynthesis is returned when speech could not be synthesized.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrCompletion is returned when the model produced no usable reply.
	ErrCompletion = errors.New("completion failed")
)

// Role is the author of an input message in the completion schema.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType is the type of a content block.
type BlockType string

const (
	BlockInputText  BlockType = "input_text"
	BlockOutputText BlockType = "output_text"
	BlockInputImage BlockType = "input_image"
	BlockInputFile  BlockType = "input_file"
)

// ContentBlock is one typed piece of an input message.
type ContentBlock struct {
	Type     BlockType `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
	Filename string    `json:"filename,omitempty"`
	FileData string    `json:"file_data,omitempty"`
}

// InputMessage is a role-tagged list of content blocks.
type InputMessage struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Options are the generation parameters a caller asks for. Nil and zero
// fields are unset and take the client defaults; Temperature and TopP are
// pointers so that an explicit 0 can be requested.
type Options struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	TopP        *float64
}

// Float returns a pointer to v, for Options.Temperature and Options.TopP.
func Float(v float64) *float64 {
	return &v
}

// Params are the resolved generation parameters sent to a provider.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// DefaultParams returns the generation parameters used when neither the
// caller nor the client configuration sets them.
func DefaultParams() Params {
	return Params{
		Temperature: 0.8,
		MaxTokens:   2048,
		TopP:        1,
	}
}

// resolve fills unset fields of o from defaults.
func (o Options) resolve(defaults Params) Params {
	p := defaults
	if o.Model != "" {
		p.Model = o.Model
	}
	if o.Temperature != nil {
		p.Temperature = *o.Temperature
	}
	if o.MaxTokens > 0 {
		p.MaxTokens = o.MaxTokens
	}
	if o.TopP != nil {
		p.TopP = *o.TopP
	}
	return p
}

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Input []InputMessage
	Params
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Completer is the interface for completion providers.
type Completer interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Synthesizer turns text into an audio payload.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Provider is the type of completion provider.
type Provider string

const (
	// ProviderOpenAI uses the OpenAI Responses API.
	ProviderOpenAI Provider = "openai"
	// ProviderOpenAIChat uses the chat completions API.
	ProviderOpenAIChat Provider = "openai-chat"
	ProviderAnthropic  Provider = "anthropic"
)
