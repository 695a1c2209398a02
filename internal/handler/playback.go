package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/internal/playback"
	"github.com/capitalize-ai/agent-configurator/internal/service"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

// PlaybackHandler drives the single audio playback slot.
type PlaybackHandler struct {
	coordinator *playback.Coordinator
	chat        *service.ChatService
	logger      *logger.Logger
}

// NewPlaybackHandler creates a new playback handler.
func NewPlaybackHandler(coordinator *playback.Coordinator, chat *service.ChatService, log *logger.Logger) *PlaybackHandler {
	return &PlaybackHandler{coordinator: coordinator, chat: chat, logger: log}
}

// PlaybackState reports which message holds the slot.
type PlaybackState struct {
	Playing *string `json:"playing"`
}

func (h *PlaybackHandler) state() PlaybackState {
	if id, ok := h.coordinator.Current(); ok {
		return PlaybackState{Playing: &id}
	}
	return PlaybackState{}
}

// State handles GET /api/v1/playback
func (h *PlaybackHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state())
}

// Play handles POST /api/v1/playback/{id}/play. Playing the clip that is
// already playing stops it.
func (h *PlaybackHandler) Play(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	src, err := h.source(id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if err := h.coordinator.Play(id, src); err != nil {
		if errors.Is(err, playback.ErrEmptySource) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "playback failed to start")
		return
	}
	writeJSON(w, http.StatusOK, h.state())
}

// Stop handles POST /api/v1/playback/stop
func (h *PlaybackHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.coordinator.Stop()
	writeJSON(w, http.StatusOK, h.state())
}

// Ended handles POST /api/v1/playback/{id}/ended
func (h *PlaybackHandler) Ended(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.coordinator.Ended(id)
	writeJSON(w, http.StatusOK, h.state())
}

// Failed handles POST /api/v1/playback/{id}/error
func (h *PlaybackHandler) Failed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "client reported a load error"
	}
	h.coordinator.Failed(id, errors.New(req.Reason))
	writeJSON(w, http.StatusOK, h.state())
}

// source finds the audio message id in the live list.
func (h *PlaybackHandler) source(id string) (playback.Source, error) {
	for _, m := range h.chat.Messages() {
		if m.ID != id {
			continue
		}
		body, ok := m.Body.(model.AudioBody)
		if !ok {
			return playback.Source{}, service.ErrValidation
		}
		src := playback.Source{Ref: body.Ref}
		if body.Duration != nil {
			src.Duration = time.Duration(*body.Duration * float64(time.Second))
		}
		return src, nil
	}
	return playback.Source{}, service.ErrNotFound
}
