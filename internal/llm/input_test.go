package llm

import (
	"testing"

	"github.com/capitalize-ai/agent-configurator/internal/model"
)

func TestBuildInput_SystemFirst(t *testing.T) {
	input := BuildInput(nil, "be nice")

	if len(input) != 1 {
		t.Fatalf("expected 1 message, got %d", len(input))
	}
	if input[0].Role != RoleSystem || input[0].Content[0].Text != "be nice" {
		t.Errorf("unexpected system message %+v", input[0])
	}
}

func TestBuildInput_MapsModalities(t *testing.T) {
	transcript := "quero um orçamento"
	history := []model.Message{
		model.NewText(model.SenderBot, "Olá!", model.StatusRead),
		model.NewText(model.SenderUser, "oi", model.StatusSent),
		model.NewAudio(model.SenderUser, "/api/v1/media/a", nil, &transcript, model.StatusSent),
		model.NewAudio(model.SenderUser, "/api/v1/media/b", nil, nil, model.StatusTranscribing),
		model.NewFile(model.SenderUser, "data:image/png;base64,AAAA", "foto.png", "image/png", 3, model.StatusSent),
		model.NewFile(model.SenderUser, "data:application/pdf;base64,BBBB", "", "application/pdf", 3, model.StatusSent),
		model.NewFile(model.SenderBot, "data:application/pdf;base64,CCCC", "bot.pdf", "application/pdf", 3, model.StatusSent),
	}

	input := BuildInput(history, "sys")

	want := []struct {
		role  Role
		block ContentBlock
	}{
		{RoleSystem, ContentBlock{Type: BlockInputText, Text: "sys"}},
		{RoleAssistant, ContentBlock{Type: BlockOutputText, Text: "Olá!"}},
		{RoleUser, ContentBlock{Type: BlockInputText, Text: "oi"}},
		{RoleUser, ContentBlock{Type: BlockInputText, Text: transcript}},
		{RoleUser, ContentBlock{Type: BlockInputImage, ImageURL: "data:image/png;base64,AAAA"}},
		{RoleUser, ContentBlock{Type: BlockInputFile, Filename: "file", FileData: "data:application/pdf;base64,BBBB"}},
	}

	if len(input) != len(want) {
		t.Fatalf("expected %d messages, got %d: %+v", len(want), len(input), input)
	}
	for i, w := range want {
		if input[i].Role != w.role {
			t.Errorf("message %d: role %s, want %s", i, input[i].Role, w.role)
		}
		if len(input[i].Content) != 1 || input[i].Content[0] != w.block {
			t.Errorf("message %d: content %+v, want %+v", i, input[i].Content, w.block)
		}
	}
}

func TestBuildInput_BotAudioTranscriptIsOutputText(t *testing.T) {
	transcript := "resposta falada"
	history := []model.Message{
		model.NewAudio(model.SenderBot, "/api/v1/media/x", nil, &transcript, model.StatusSent),
	}

	input := BuildInput(history, "sys")

	if len(input) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(input))
	}
	got := input[1]
	if got.Role != RoleAssistant || got.Content[0].Type != BlockOutputText || got.Content[0].Text != transcript {
		t.Errorf("unexpected bot audio mapping %+v", got)
	}
}

func TestSplitDataURL(t *testing.T) {
	tests := []struct {
		in        string
		mediaType string
		data      string
		ok        bool
	}{
		{"data:image/png;base64,AAAA", "image/png", "AAAA", true},
		{"data:image/jpeg;base64,", "image/jpeg", "", true},
		{"https://example.com/a.png", "", "", false},
		{"data:image/png,AAAA", "", "", false},
		{"data:;base64,AAAA", "", "", false},
	}

	for _, tt := range tests {
		mt, data, ok := splitDataURL(tt.in)
		if mt != tt.mediaType || data != tt.data || ok != tt.ok {
			t.Errorf("splitDataURL(%q) = %q, %q, %v", tt.in, mt, data, ok)
		}
	}
}

func TestToAnthropicMessages_MergesAndOpens(t *testing.T) {
	input := []InputMessage{
		{Role: RoleSystem, Content: []ContentBlock{{Type: BlockInputText, Text: "sys"}}},
		{Role: RoleAssistant, Content: []ContentBlock{{Type: BlockOutputText, Text: "Olá"}}},
		{Role: RoleUser, Content: []ContentBlock{{Type: BlockInputText, Text: "a"}}},
		{Role: RoleUser, Content: []ContentBlock{{Type: BlockInputText, Text: "b"}}},
	}

	system, messages := toAnthropicMessages(input)

	if system != "sys" {
		t.Errorf("system = %q", system)
	}
	// opening user turn, assistant, merged user
	if len(messages) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(messages))
	}
}

func TestAudioExtension(t *testing.T) {
	tests := map[string]string{
		"audio/webm;codecs=opus": ".webm",
		"audio/mpeg":             ".mp3",
		"audio/wav":              ".wav",
		"":                       ".webm",
	}
	for in, want := range tests {
		if got := audioExtension(in); got != want {
			t.Errorf("audioExtension(%q) = %q, want %q", in, got, want)
		}
	}
}
