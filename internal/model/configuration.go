package model

import "strings"

// ConversationType frames whether the agent opens the conversation or waits for the customer.
type ConversationType string

const (
	ConversationProactive ConversationType = "proactive"
	ConversationReactive  ConversationType = "reactive"
)

const (
	// MandatoryFieldID is the id of the always-present customer name field.
	MandatoryFieldID = "nome-mandatory"
	// MandatoryFieldName is the label of the always-present customer name field.
	MandatoryFieldName = "Nome"
)

// PersonalizationField is a named customer attribute injected into the prompt.
type PersonalizationField struct {
	ID            string `json:"id"`
	SelectedField string `json:"selectedField"`
	Value         string `json:"value"`
	IsMandatory   bool   `json:"isMandatory,omitempty"`
}

// Guideline is an operator-authored conditional instruction.
type Guideline struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AgentConfiguration is the operator-authored behavior of the chat agent.
type AgentConfiguration struct {
	ObjectiveID           string                 `json:"selectedObjective"`
	ConversationType      ConversationType       `json:"conversationType"`
	RequestEvaluation     bool                   `json:"requestEvaluation"`
	PersonalizationFields []PersonalizationField `json:"personalizationFields"`
	Guidelines            []Guideline            `json:"guidelines"`
	InitialMessages       []Message              `json:"messages"`
	UseAI                 bool                   `json:"useAI"`
}

// Clone returns a deep copy of the configuration.
func (c AgentConfiguration) Clone() AgentConfiguration {
	out := c
	out.PersonalizationFields = append([]PersonalizationField(nil), c.PersonalizationFields...)
	out.Guidelines = append([]Guideline(nil), c.Guidelines...)
	out.InitialMessages = append([]Message(nil), c.InitialMessages...)
	return out
}

// MandatoryField returns the placeholder for the customer name field.
func MandatoryField() PersonalizationField {
	return PersonalizationField{
		ID:            MandatoryFieldID,
		SelectedField: MandatoryFieldName,
		IsMandatory:   true,
	}
}

// EnsureMandatoryField guarantees the mandatory Nome field is present exactly
// once and first. A stored mandatory Nome keeps its value; non-mandatory Nome
// duplicates are dropped.
func EnsureMandatoryField(fields []PersonalizationField) []PersonalizationField {
	mandatory := MandatoryField()
	rest := make([]PersonalizationField, 0, len(fields))
	found := false
	for _, f := range fields {
		if f.SelectedField == MandatoryFieldName {
			if f.IsMandatory && !found {
				mandatory = f
				found = true
			}
			continue
		}
		rest = append(rest, f)
	}
	return append([]PersonalizationField{mandatory}, rest...)
}

// InvalidFields returns the non-mandatory fields that have a type selected but no usable value.
func InvalidFields(fields []PersonalizationField) []PersonalizationField {
	var invalid []PersonalizationField
	for _, f := range fields {
		if f.IsMandatory || strings.TrimSpace(f.SelectedField) == "" {
			continue
		}
		v := strings.TrimSpace(f.Value)
		if v == "" || v == "undefined" {
			invalid = append(invalid, f)
		}
	}
	return invalid
}

// DefaultGreeting returns the scripted greeting used when no initial messages are configured.
func DefaultGreeting() []Message {
	first := NewText(SenderBot, "Olá! Aqui é o Jarbas falando. Estou aqui para tirar suas dúvidas, mas você sempre pode falar com nossa equipe.", StatusRead)
	first.ID = "greeting-1"
	second := NewText(SenderBot, "Como posso te ajudar hoje?", StatusRead)
	second.ID = "greeting-2"
	return []Message{first, second}
}

// DefaultConfiguration returns the configuration used when nothing has been saved yet.
func DefaultConfiguration() AgentConfiguration {
	return AgentConfiguration{
		ConversationType:      ConversationProactive,
		PersonalizationFields: []PersonalizationField{MandatoryField()},
		Guidelines:            []Guideline{},
		InitialMessages:       DefaultGreeting(),
	}
}
