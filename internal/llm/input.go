package llm

import (
	"strings"

	"github.com/capitalize-ai/agent-configurator/internal/model"
)

// BuildInput translates conversation history into the completion schema. A
// system message carrying systemPrompt is always first. Messages that cannot
// be represented as text, image or file blocks are omitted.
func BuildInput(history []model.Message, systemPrompt string) []InputMessage {
	input := make([]InputMessage, 0, len(history)+1)
	input = append(input, InputMessage{
		Role:    RoleSystem,
		Content: []ContentBlock{{Type: BlockInputText, Text: systemPrompt}},
	})

	for _, msg := range history {
		if block, ok := blockFor(msg); ok {
			input = append(input, InputMessage{
				Role:    roleFor(msg.Sender),
				Content: []ContentBlock{block},
			})
		}
	}
	return input
}

func roleFor(s model.Sender) Role {
	if s == model.SenderUser {
		return RoleUser
	}
	return RoleAssistant
}

func textBlock(s model.Sender, text string) ContentBlock {
	if s == model.SenderUser {
		return ContentBlock{Type: BlockInputText, Text: text}
	}
	return ContentBlock{Type: BlockOutputText, Text: text}
}

func blockFor(msg model.Message) (ContentBlock, bool) {
	switch b := msg.Body.(type) {
	case model.TextBody:
		return textBlock(msg.Sender, b.Text), true
	case model.AudioBody:
		if b.Transcript == nil {
			return ContentBlock{}, false
		}
		return textBlock(msg.Sender, *b.Transcript), true
	case model.FileBody:
		if msg.Sender != model.SenderUser {
			return ContentBlock{}, false
		}
		if IsImage(b.MIMEType) {
			return ContentBlock{Type: BlockInputImage, ImageURL: b.Payload}, true
		}
		name := b.Name
		if name == "" {
			name = "file"
		}
		return ContentBlock{Type: BlockInputFile, Filename: name, FileData: b.Payload}, true
	}
	return ContentBlock{}, false
}

// IsImage reports whether a MIME type denotes an image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
