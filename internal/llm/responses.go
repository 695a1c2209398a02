package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultResponsesBaseURL = "https://api.openai.com/v1"
	defaultResponsesModel   = "gpt-4.1"
)

// ResponsesClient calls the OpenAI Responses API, which accepts typed
// content blocks including inline files.
type ResponsesClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewResponsesClient creates a Responses API client. An empty baseURL
// selects the public endpoint.
func NewResponsesClient(apiKey, baseURL, model string, httpClient *http.Client) (*ResponsesClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if baseURL == "" {
		baseURL = defaultResponsesBaseURL
	}
	if model == "" {
		model = defaultResponsesModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &ResponsesClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}, nil
}

// Name returns the provider name.
func (c *ResponsesClient) Name() string {
	return string(ProviderOpenAI)
}

type responsesRequest struct {
	Model           string         `json:"model"`
	Input           []InputMessage `json:"input"`
	Text            responsesText  `json:"text"`
	Temperature     float64        `json:"temperature"`
	MaxOutputTokens int            `json:"max_output_tokens"`
	TopP            float64        `json:"top_p"`
	Store           bool           `json:"store"`
}

type responsesText struct {
	Format struct {
		Type string `json:"type"`
	} `json:"format"`
}

type responsesResponse struct {
	Model  string `json:"model"`
	Status string `json:"status"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type responsesError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends a completion request.
func (c *ResponsesClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}

	body := responsesRequest{
		Model:           model,
		Input:           req.Input,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
		TopP:            req.TopP,
		Store:           true,
	}
	body.Text.Format.Type = "text"

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr responsesError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("responses api: status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("responses api: status %d", resp.StatusCode)
	}

	var parsed responsesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	content, err := parsed.text()
	if err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content:    content,
		Model:      parsed.Model,
		TokensIn:   parsed.Usage.InputTokens,
		TokensOut:  parsed.Usage.OutputTokens,
		StopReason: parsed.Status,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// text returns the first text block of the first output item that has content.
func (r *responsesResponse) text() (string, error) {
	if len(r.Output) == 0 {
		return "", errors.New("response contains no output")
	}
	for _, item := range r.Output {
		for _, block := range item.Content {
			if block.Text != "" {
				return block.Text, nil
			}
		}
	}
	return "", errors.New("response output has no text content")
}
