package model

// Objective is a behavior template the operator can select for the agent.
type Objective struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Icon             string           `json:"icon"`
	ConversationType ConversationType `json:"conversationType"`
}

// DefaultObjectiveID is used when no objective is selected or the id is unknown.
const DefaultObjectiveID = "assistente"

var objectives = []Objective{
	{ID: "leads", Title: "Aquecimento de Leads", Description: "Pré-venda, qualificação, envio de informações automáticas, redução do \"chão frio\".", Icon: "message-dots", ConversationType: ConversationProactive},
	{ID: "cobranca", Title: "Cobrança", Description: "Lembretes de pagamento, negociações, renegociação automática.", Icon: "moneybag-plus", ConversationType: ConversationProactive},
	{ID: "vendas", Title: "Vendas Diretas", Description: "Abordagem de clientes antigos, lançamento de produtos, upsell/cross-sell.", Icon: "message-dollar", ConversationType: ConversationProactive},
	{ID: "reativacao", Title: "Reativação de Clientes", Description: "Retomar contato com clientes sumidos, ofertas especiais para reengajar.", Icon: "user-plus", ConversationType: ConversationProactive},
	{ID: "onboarding", Title: "Onboarding", Description: "Guiar o novo cliente pelos primeiros passos, ativação e engajamento pós-venda.", Icon: "flag", ConversationType: ConversationProactive},
	{ID: "pesquisa", Title: "Pesquisa/NPS", Description: "Escala coleta de feedback real para decisões estratégicas.", Icon: "list-search", ConversationType: ConversationProactive},
	{ID: "suporte", Title: "Atendimento e Suporte", Description: "Escala operação, garante disponibilidade, reduz SLA.", Icon: "headset", ConversationType: ConversationReactive},
	{ID: "agendamentos", Title: "Agendamentos", Description: "Automatiza agendamentos e reservas para melhorar experiência do cliente.", Icon: "calendar", ConversationType: ConversationReactive},
	{ID: "assistente", Title: "Assistente de compra", Description: "Ajuda o cliente a encontrar a oportunidade de compra.", Icon: "shopping-cart", ConversationType: ConversationReactive},
}

// Objectives returns the full objective catalog.
func Objectives() []Objective {
	return append([]Objective(nil), objectives...)
}

// ObjectivesFor returns the objectives selectable under a conversation type.
// An empty type returns the full catalog.
func ObjectivesFor(t ConversationType) []Objective {
	if t == "" {
		return Objectives()
	}
	var out []Objective
	for _, o := range objectives {
		if o.ConversationType == t {
			out = append(out, o)
		}
	}
	return out
}

// LookupObjective finds an objective by id.
func LookupObjective(id string) (Objective, bool) {
	for _, o := range objectives {
		if o.ID == id {
			return o, true
		}
	}
	return Objective{}, false
}
