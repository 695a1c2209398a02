package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultChatModel          = "gpt-4o"
	defaultTranscriptionModel = openai.Whisper1
	defaultSpeechModel        = string(openai.TTSModel1)
)

// OpenAIConfig configures the OpenAI SDK client.
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	ChatModel          string
	TranscriptionModel string
	SpeechModel        string
}

// OpenAIClient is the OpenAI client. It serves chat completions,
// transcription and speech synthesis.
type OpenAIClient struct {
	client             *openai.Client
	chatModel          string
	transcriptionModel string
	speechModel        string
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	c := &OpenAIClient{
		client:             openai.NewClientWithConfig(clientCfg),
		chatModel:          cfg.ChatModel,
		transcriptionModel: cfg.TranscriptionModel,
		speechModel:        cfg.SpeechModel,
	}
	if c.chatModel == "" {
		c.chatModel = defaultChatModel
	}
	if c.transcriptionModel == "" {
		c.transcriptionModel = defaultTranscriptionModel
	}
	if c.speechModel == "" {
		c.speechModel = defaultSpeechModel
	}
	return c, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return string(ProviderOpenAIChat)
}

// Complete sends a chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.chatModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Input))
	for _, in := range req.Input {
		messages = append(messages, toChatMessage(in))
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: nonZero(req.Temperature),
		TopP:        nonZero(req.TopP),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	return &CompletionResponse{
		Content:    resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokensIn:   resp.Usage.PromptTokens,
		TokensOut:  resp.Usage.CompletionTokens,
		StopReason: string(resp.Choices[0].FinishReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// toChatMessage maps a content-block message to the chat schema. Plain text
// messages keep the string form; anything with images becomes multi-part.
func toChatMessage(in InputMessage) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{Role: string(in.Role)}

	if len(in.Content) == 1 && in.Content[0].ImageURL == "" {
		msg.Content = blockText(in.Content[0])
		return msg
	}

	parts := make([]openai.ChatMessagePart, 0, len(in.Content))
	for _, b := range in.Content {
		if b.Type == BlockInputImage {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    b.ImageURL,
					Detail: openai.ImageURLDetailAuto,
				},
			})
			continue
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: blockText(b),
		})
	}
	msg.MultiContent = parts
	return msg
}

// blockText renders a non-image block as text. The chat schema has no file
// part, so attached documents are referenced by name.
func blockText(b ContentBlock) string {
	if b.Type == BlockInputFile {
		return fmt.Sprintf("[Arquivo anexado: %s]", b.Filename)
	}
	return b.Text
}

// Transcribe converts recorded audio to text.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Synthesize converts text to an MP3 payload.
func (c *OpenAIClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.speechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	return io.ReadAll(resp)
}

// nonZero keeps an explicit 0 from being dropped by the request's omitempty
// tags, which would make the API apply its own default of 1.
func nonZero(v float64) float32 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}
