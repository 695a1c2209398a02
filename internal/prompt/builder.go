// Package prompt assembles the system instructions sent to the completion API.
package prompt

import (
	"strings"

	"github.com/capitalize-ai/agent-configurator/internal/model"
)

const (
	proactiveClause  = "Você deve iniciar conversas de forma proativa e engajar o cliente."
	reactiveClause   = "Você deve responder de forma reativa às solicitações do cliente."
	evaluationClause = "IMPORTANTE: Ao final da conversa, solicite uma avaliação da experiência do cliente."

	generalInstructions = `INSTRUÇÕES GERAIS:
- Sempre responda em português brasileiro
- Use as informações do cliente para personalizar as respostas
- Siga o tom e estilo definidos no prompt específico acima`

	formatRules = `REGRAS DE FORMATO:
- SEMPRE envie UMA mensagem curta por vez (máximo 2-3 frases)
- NUNCA envie todas as informações de uma vez
- Espere a resposta do cliente antes de avançar para o próximo passo
- Use o nome do cliente quando apropriado`
)

// WelcomeIntent asks the model for a personalized opening message.
const WelcomeIntent = `TAREFA ESPECÍFICA: Gere uma mensagem de boas-vindas personalizada e acolhedora para iniciar a conversa.
Use as informações de personalização disponíveis para criar uma saudação única e relevante.
Mantenha a mensagem concisa (máximo 2 frases) e natural.
Não pergunte "Como posso ajudar?" - seja mais específico baseado no objetivo e contexto.`

// Config is a finished instruction set for the completion API.
type Config struct {
	SystemPrompt string `json:"system_prompt"`
	UserContext  string `json:"user_context"`
}

// WithIntent returns a copy of c with a per-call task appended to the system prompt.
func (c Config) WithIntent(intent string) Config {
	c.SystemPrompt = c.SystemPrompt + "\n\n" + intent
	return c
}

// Builder maps an agent configuration to a prompt. It holds no mutable state.
type Builder struct {
	templates *Templates
}

// NewBuilder creates a builder over a template table.
func NewBuilder(t *Templates) *Builder {
	if t == nil {
		t = DefaultTemplates()
	}
	return &Builder{templates: t}
}

// Build renders the system prompt and user context for cfg.
func (b *Builder) Build(cfg model.AgentConfiguration) Config {
	personalization := renderPersonalization(cfg.PersonalizationFields)

	sections := []string{
		b.templates.Resolve(cfg.ObjectiveID),
		"TIPO DE CONVERSA: " + conversationClause(cfg.ConversationType),
	}
	if personalization != "" {
		sections = append(sections, "INFORMAÇÕES DO CLIENTE:\n"+personalization)
	}
	if g := renderGuidelines(cfg.Guidelines); g != "" {
		sections = append(sections, "DIRETRIZES ESPECÍFICAS:\n"+g)
	}
	if cfg.RequestEvaluation {
		sections = append(sections, evaluationClause)
	}
	sections = append(sections, generalInstructions, formatRules)

	var userContext string
	if personalization != "" {
		userContext = "Informações do cliente: " + personalization
	}

	return Config{
		SystemPrompt: strings.Join(sections, "\n\n"),
		UserContext:  userContext,
	}
}

func conversationClause(t model.ConversationType) string {
	if t == model.ConversationProactive {
		return proactiveClause
	}
	return reactiveClause
}

func renderPersonalization(fields []model.PersonalizationField) string {
	var lines []string
	for _, f := range fields {
		if f.SelectedField == "" || f.Value == "" {
			continue
		}
		lines = append(lines, f.SelectedField+": "+f.Value)
	}
	return strings.Join(lines, "\n")
}

func renderGuidelines(guidelines []model.Guideline) string {
	lines := make([]string, 0, len(guidelines))
	for _, g := range guidelines {
		lines = append(lines, "- "+g.Title+": "+g.Description)
	}
	return strings.Join(lines, "\n")
}
