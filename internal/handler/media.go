package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/agent-configurator/internal/audio"
	"github.com/capitalize-ai/agent-configurator/internal/middleware"
)

// MediaHandler serves stored audio payloads.
type MediaHandler struct {
	store *audio.Store
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(store *audio.Store) *MediaHandler {
	return &MediaHandler{store: store}
}

// Get handles GET /api/v1/media/{id}
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	blob, ok := h.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}

	w.Header().Set("Content-Type", blob.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}
