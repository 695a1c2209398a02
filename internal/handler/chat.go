package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-configurator/internal/middleware"
	"github.com/capitalize-ai/agent-configurator/internal/service"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

var errTooLarge = errors.New("upload exceeds maximum size")

// ChatHandler handles the chat preview endpoints.
type ChatHandler struct {
	chat      *service.ChatService
	maxUpload int64
	logger    *logger.Logger
}

// NewChatHandler creates a new chat handler. maxUpload bounds audio and file
// uploads in bytes.
func NewChatHandler(chat *service.ChatService, maxUpload int64, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, maxUpload: maxUpload, logger: log}
}

// Messages handles GET /api/v1/chat/messages
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chat.Snapshot())
}

// Start handles POST /api/v1/chat/start
func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.chat.StartConversation()
	writeJSON(w, http.StatusAccepted, h.chat.Snapshot())
}

// Reset handles POST /api/v1/chat/reset
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.chat.Reset()
	writeJSON(w, http.StatusOK, h.chat.Snapshot())
}

// SendText handles POST /api/v1/chat/text
func (h *ChatHandler) SendText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.chat.SubmitText(req.Content)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, msg)
}

// SendAudio handles POST /api/v1/chat/audio. The recording is the "audio"
// part; "duration" optionally carries its length in seconds.
func (h *ChatHandler) SendAudio(w http.ResponseWriter, r *http.Request) {
	data, header, err := h.readUpload(r, "audio")
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	var duration float64
	if v := r.FormValue("duration"); v != "" {
		if d, err := strconv.ParseFloat(v, 64); err == nil && d > 0 {
			duration = d
		}
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	msg, err := h.chat.SubmitAudio(data, mimeType, duration)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, msg)
}

// SendFile handles POST /api/v1/chat/file
func (h *ChatHandler) SendFile(w http.ResponseWriter, r *http.Request) {
	data, header, err := h.readUpload(r, "file")
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	msg, err := h.chat.SubmitFile(data, header.Filename, uploadMIMEType(header))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, msg)
}

func (h *ChatHandler) readUpload(r *http.Request, field string) ([]byte, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, errTooLarge
		}
		return nil, nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, fmt.Errorf("missing %q part: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > h.maxUpload {
		return nil, nil, errTooLarge
	}
	return data, header, nil
}

func (h *ChatHandler) writeUploadError(w http.ResponseWriter, err error) {
	if errors.Is(err, errTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	h.logger.Debug("rejected upload", zap.Error(err))
	writeError(w, http.StatusBadRequest, err.Error())
}

// uploadMIMEType returns the part's declared media type without parameters,
// falling back to the file extension.
func uploadMIMEType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		if base, _, err := mime.ParseMediaType(ct); err == nil {
			return base
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
		base, _, _ := mime.ParseMediaType(byExt)
		return base
	}
	return "application/octet-stream"
}
