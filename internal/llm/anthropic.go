package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

// openingTurn is sent when the history is empty, since the Messages API needs
// at least one user turn.
const openingTurn = "Inicie a conversa."

// AnthropicClient is the Anthropic completion client.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey, model string, opts ...option.RequestOption) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	if model == "" {
		model = defaultAnthropicModel
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return string(ProviderAnthropic)
}

// Complete sends a completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}

	system, messages := toAnthropicMessages(req.Input)

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(model),
		MaxTokens:   anthropic.F(int64(req.MaxTokens)),
		Messages:    anthropic.F(messages),
		Temperature: anthropic.F(clampTemperature(req.Temperature)),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(system),
		}})
	}
	if req.TopP > 0 && req.TopP < 1 {
		params.TopP = anthropic.F(req.TopP)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	return &CompletionResponse{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// clampTemperature maps the 0..2 range to Anthropic's 0..1.
func clampTemperature(t float64) float64 {
	if t > 1 {
		return 1
	}
	return t
}

type anthropicTurn struct {
	role   anthropic.MessageParamRole
	blocks []anthropic.ContentBlockParamUnion
}

// toAnthropicMessages lifts system blocks into the system prompt and merges
// consecutive same-role turns, as the Messages API requires alternation
// starting with the user.
func toAnthropicMessages(input []InputMessage) (string, []anthropic.MessageParam) {
	var system []string
	var turns []anthropicTurn

	for _, in := range input {
		if in.Role == RoleSystem {
			for _, b := range in.Content {
				system = append(system, b.Text)
			}
			continue
		}

		role := anthropic.MessageParamRoleUser
		if in.Role == RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}

		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(in.Content))
		for _, b := range in.Content {
			blocks = append(blocks, toAnthropicBlock(b))
		}

		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].blocks = append(turns[n-1].blocks, blocks...)
			continue
		}
		turns = append(turns, anthropicTurn{role: role, blocks: blocks})
	}

	if len(turns) == 0 || turns[0].role != anthropic.MessageParamRoleUser {
		opening := anthropicTurn{
			role:   anthropic.MessageParamRoleUser,
			blocks: []anthropic.ContentBlockParamUnion{textParam(openingTurn)},
		}
		turns = append([]anthropicTurn{opening}, turns...)
	}

	messages := make([]anthropic.MessageParam, len(turns))
	for i, t := range turns {
		messages[i] = anthropic.MessageParam{
			Role:    anthropic.F(t.role),
			Content: anthropic.F(t.blocks),
		}
	}
	return strings.Join(system, "\n\n"), messages
}

func toAnthropicBlock(b ContentBlock) anthropic.ContentBlockParamUnion {
	switch b.Type {
	case BlockInputImage:
		if mediaType, data, ok := splitDataURL(b.ImageURL); ok {
			return anthropic.NewImageBlockBase64(mediaType, data)
		}
		return textParam("[Imagem anexada]")
	case BlockInputFile:
		return textParam(blockText(b))
	default:
		return textParam(b.Text)
	}
}

func textParam(text string) anthropic.TextBlockParam {
	return anthropic.TextBlockParam{
		Type: anthropic.F(anthropic.TextBlockParamTypeText),
		Text: anthropic.F(text),
	}
}

// splitDataURL splits "data:<mime>;base64,<data>".
func splitDataURL(u string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(u, "data:")
	if !found {
		return "", "", false
	}
	header, data, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, found = strings.CutSuffix(header, ";base64")
	if !found || mediaType == "" {
		return "", "", false
	}
	return mediaType, data, true
}
