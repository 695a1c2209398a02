package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/agent-configurator/internal/middleware"
	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/internal/service"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

// ConfigurationHandler exposes the configuration working copy.
type ConfigurationHandler struct {
	editor *service.ConfigEditor
	logger *logger.Logger
}

// NewConfigurationHandler creates a new configuration handler.
func NewConfigurationHandler(editor *service.ConfigEditor, log *logger.Logger) *ConfigurationHandler {
	return &ConfigurationHandler{editor: editor, logger: log}
}

// ConfigurationResponse is the working copy plus its dirty flag.
type ConfigurationResponse struct {
	Configuration model.AgentConfiguration `json:"configuration"`
	HasChanges    bool                     `json:"has_changes"`
}

func (h *ConfigurationHandler) respond(w http.ResponseWriter, status int) {
	writeJSON(w, status, ConfigurationResponse{
		Configuration: h.editor.State(),
		HasChanges:    h.editor.HasChanges(),
	})
}

// Objectives handles GET /api/v1/objectives
func (h *ConfigurationHandler) Objectives(w http.ResponseWriter, r *http.Request) {
	t := model.ConversationType(r.URL.Query().Get("conversation_type"))
	objectives := model.ObjectivesFor(t)
	if objectives == nil {
		objectives = []model.Objective{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"objectives": objectives,
	})
}

// Get handles GET /api/v1/configuration
func (h *ConfigurationHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK)
}

// Replace handles PUT /api/v1/configuration
func (h *ConfigurationHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var cfg model.AgentConfiguration
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.editor.Replace(cfg); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// Save handles POST /api/v1/configuration/save
func (h *ConfigurationHandler) Save(w http.ResponseWriter, r *http.Request) {
	if _, err := h.editor.Save(r.Context()); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// Revert handles POST /api/v1/configuration/revert
func (h *ConfigurationHandler) Revert(w http.ResponseWriter, r *http.Request) {
	h.editor.Revert()
	h.respond(w, http.StatusOK)
}

// Reload handles POST /api/v1/configuration/reload
func (h *ConfigurationHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.editor.Reload(r.Context()); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// SetObjective handles PUT /api/v1/configuration/objective
func (h *ConfigurationHandler) SetObjective(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.editor.SetObjective(req.ID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// SetConversationType handles PUT /api/v1/configuration/conversation-type
func (h *ConfigurationHandler) SetConversationType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationType model.ConversationType `json:"conversation_type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.editor.SetConversationType(req.ConversationType); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// SetFlags handles PATCH /api/v1/configuration/flags
func (h *ConfigurationHandler) SetFlags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestEvaluation *bool `json:"request_evaluation"`
		UseAI             *bool `json:"use_ai"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RequestEvaluation != nil {
		h.editor.SetRequestEvaluation(*req.RequestEvaluation)
	}
	if req.UseAI != nil {
		h.editor.SetUseAI(*req.UseAI)
	}
	h.respond(w, http.StatusOK)
}

type fieldRequest struct {
	SelectedField string `json:"selected_field"`
	Value         string `json:"value"`
}

// AddField handles POST /api/v1/configuration/fields
func (h *ConfigurationHandler) AddField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.editor.AddField(req.SelectedField, req.Value); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusCreated)
}

// UpdateField handles PUT /api/v1/configuration/fields/{id}
func (h *ConfigurationHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.editor.UpdateField(id, req.SelectedField, req.Value); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// RemoveField handles DELETE /api/v1/configuration/fields/{id}
func (h *ConfigurationHandler) RemoveField(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.editor.RemoveField(id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

type guidelineRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AddGuideline handles POST /api/v1/configuration/guidelines
func (h *ConfigurationHandler) AddGuideline(w http.ResponseWriter, r *http.Request) {
	var req guidelineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.editor.AddGuideline(req.Title, req.Description); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusCreated)
}

// UpdateGuideline handles PUT /api/v1/configuration/guidelines/{id}
func (h *ConfigurationHandler) UpdateGuideline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req guidelineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.editor.UpdateGuideline(id, req.Title, req.Description); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// RemoveGuideline handles DELETE /api/v1/configuration/guidelines/{id}
func (h *ConfigurationHandler) RemoveGuideline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.editor.RemoveGuideline(id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

type messageRequest struct {
	Content string `json:"content"`
}

// AddMessage handles POST /api/v1/configuration/messages
func (h *ConfigurationHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.editor.AddMessage(req.Content); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusCreated)
}

// UpdateMessage handles PUT /api/v1/configuration/messages/{id}
func (h *ConfigurationHandler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.editor.UpdateMessage(id, req.Content); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// RemoveMessage handles DELETE /api/v1/configuration/messages/{id}
func (h *ConfigurationHandler) RemoveMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.editor.RemoveMessage(id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// MoveMessage handles POST /api/v1/configuration/messages/move
func (h *ConfigurationHandler) MoveMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.editor.MoveMessage(req.From, req.To); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

// ReplaceMessages handles PUT /api/v1/configuration/messages
func (h *ConfigurationHandler) ReplaceMessages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []model.Message `json:"messages"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.editor.ReplaceMessages(req.Messages); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.respond(w, http.StatusOK)
}

func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}
