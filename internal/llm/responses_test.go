package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/internal/prompt"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

func newResponsesServer(t *testing.T, status int, body string, seen *responsesRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization %q", got)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestResponsesClient_Complete(t *testing.T) {
	var seen responsesRequest
	srv := newResponsesServer(t, http.StatusOK, `{
		"model": "gpt-4.1",
		"status": "completed",
		"output": [{"type": "message", "content": [{"type": "output_text", "text": "Olá, Ana!"}]}],
		"usage": {"input_tokens": 12, "output_tokens": 4}
	}`, &seen)
	defer srv.Close()

	c, err := NewResponsesClient("test-key", srv.URL, "", srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.Complete(context.Background(), &CompletionRequest{
		Input:   BuildInput(nil, "sys"),
		Params: DefaultParams(),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "Olá, Ana!" || resp.TokensIn != 12 || resp.TokensOut != 4 {
		t.Errorf("unexpected response %+v", resp)
	}
	if seen.Model != defaultResponsesModel || seen.MaxOutputTokens != 2048 || seen.Text.Format.Type != "text" {
		t.Errorf("unexpected request %+v", seen)
	}
	if len(seen.Input) != 1 || seen.Input[0].Role != RoleSystem {
		t.Errorf("unexpected input %+v", seen.Input)
	}
}

func TestResponsesClient_SkipsContentlessItems(t *testing.T) {
	srv := newResponsesServer(t, http.StatusOK, `{
		"output": [
			{"type": "reasoning", "content": []},
			{"type": "message", "content": [{"type": "output_text", "text": "ok"}]}
		]
	}`, nil)
	defer srv.Close()

	c, _ := NewResponsesClient("test-key", srv.URL, "", srv.Client())
	resp, err := c.Complete(context.Background(), &CompletionRequest{Input: BuildInput(nil, "sys")})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestResponsesClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"no output", http.StatusOK, `{"output": []}`, "no output"},
		{"empty content", http.StatusOK, `{"output": [{"content": []}]}`, "no text content"},
		{"api error", http.StatusUnauthorized, `{"error": {"message": "bad key"}}`, "bad key"},
		{"opaque error", http.StatusBadGateway, `<html>`, "status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newResponsesServer(t, tt.status, tt.body, nil)
			defer srv.Close()

			c, _ := NewResponsesClient("test-key", srv.URL, "", srv.Client())
			_, err := c.Complete(context.Background(), &CompletionRequest{Input: BuildInput(nil, "sys")})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestClient_GenerateCompletionWrapsErrors(t *testing.T) {
	srv := newResponsesServer(t, http.StatusOK, `{"output": []}`, nil)
	defer srv.Close()

	completer, _ := NewResponsesClient("test-key", srv.URL, "", srv.Client())
	client := NewClient(completer, nil, nil, Options{}, logger.NewNop())

	history := []model.Message{model.NewText(model.SenderUser, "oi", model.StatusSent)}
	_, err := client.GenerateCompletion(context.Background(), history, prompt.Config{SystemPrompt: "sys"}, Options{})
	if !errors.Is(err, ErrCompletion) {
		t.Fatalf("expected ErrCompletion, got %v", err)
	}
}

type stubCompleter struct {
	got     *CompletionRequest
	content string
}

func (s *stubCompleter) Name() string { return "stub" }

func (s *stubCompleter) Complete(_ context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	s.got = req
	return &CompletionResponse{Content: s.content, Model: "stub-model"}, nil
}

func TestClient_GenerateCompletionMergesOptions(t *testing.T) {
	stub := &stubCompleter{content: "resposta"}
	client := NewClient(stub, nil, nil, Options{Model: "m1"}, logger.NewNop())

	got, err := client.GenerateCompletion(context.Background(), nil, prompt.Config{SystemPrompt: "sys"}, Options{Temperature: Float(0.9), MaxTokens: 150})
	if err != nil {
		t.Fatal(err)
	}
	if got != "resposta" {
		t.Errorf("got %q", got)
	}

	want := Params{Model: "m1", Temperature: 0.9, MaxTokens: 150, TopP: 1}
	if stub.got.Params != want {
		t.Errorf("params = %+v, want %+v", stub.got.Params, want)
	}
}

func TestClient_GenerateCompletionHonorsExplicitZero(t *testing.T) {
	stub := &stubCompleter{content: "resposta"}
	client := NewClient(stub, nil, nil, Options{Temperature: Float(0.5)}, logger.NewNop())

	if _, err := client.GenerateCompletion(context.Background(), nil, prompt.Config{}, Options{Temperature: Float(0), TopP: Float(0)}); err != nil {
		t.Fatal(err)
	}
	if stub.got.Temperature != 0 || stub.got.TopP != 0 {
		t.Errorf("explicit zeros replaced: %+v", stub.got.Params)
	}

	if _, err := client.GenerateCompletion(context.Background(), nil, prompt.Config{}, Options{}); err != nil {
		t.Fatal(err)
	}
	if stub.got.Temperature != 0.5 || stub.got.TopP != 1 || stub.got.MaxTokens != 2048 {
		t.Errorf("unset options should take the client defaults: %+v", stub.got.Params)
	}
}

func TestClient_MissingProviders(t *testing.T) {
	client := NewClient(nil, nil, nil, Options{}, logger.NewNop())
	ctx := context.Background()

	if _, err := client.Transcribe(ctx, []byte{1}, "audio/webm"); !errors.Is(err, ErrTranscription) {
		t.Errorf("Transcribe: %v", err)
	}
	if _, err := client.SynthesizeSpeech(ctx, "oi", "fable"); !errors.Is(err, ErrSynthesis) {
		t.Errorf("SynthesizeSpeech: %v", err)
	}
	if _, err := client.GenerateCompletion(ctx, nil, prompt.Config{}, Options{}); !errors.Is(err, ErrCompletion) {
		t.Errorf("GenerateCompletion: %v", err)
	}
	if client.CanComplete() {
		t.Error("CanComplete should be false without a completer")
	}
}
