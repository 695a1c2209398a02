package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-configurator/internal/middleware"
	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/internal/service"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
	"github.com/capitalize-ai/agent-configurator/pkg/metrics"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var (
	errUnknownCommand = errors.New("unknown command")
	errRateLimited    = errors.New("rate limit exceeded")
)

// WSEvent is a frame sent to WebSocket clients.
type WSEvent struct {
	Type  string          `json:"type"`
	Data  *model.Snapshot `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// WSCommand is a frame received from WebSocket clients.
type WSCommand struct {
	Type    string `json:"type"` // text | start | reset
	Content string `json:"content,omitempty"`
}

// WebSocketHandler serves the chat preview over a WebSocket: snapshots go
// out, text submissions and session commands come in.
type WebSocketHandler struct {
	chat           *service.ChatService
	logger         *logger.Logger
	limiter        *middleware.Limiter
	upgrader       websocket.Upgrader
	allowedOrigins map[string]bool
}

// NewWebSocketHandler creates a WebSocket handler. An empty origin list
// accepts any origin. Text commands count against limiter like POST
// /chat/text does.
func NewWebSocketHandler(chat *service.ChatService, allowedOrigins []string, limiter *middleware.Limiter, log *logger.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		chat:           chat,
		limiter:        limiter,
		logger:         log,
		allowedOrigins: make(map[string]bool),
	}
	for _, o := range allowedOrigins {
		h.allowedOrigins[o] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients
	}
	return h.allowedOrigins[origin]
}

// ServeHTTP handles GET /api/v1/chat/ws
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	metrics.IncrementStreamConnections("websocket")
	defer metrics.DecrementStreamConnections("websocket")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots, unsubscribe := h.chat.Subscribe()
	defer unsubscribe()

	// replies to commands are funneled through the writer
	replies := make(chan WSEvent, 8)

	go h.writeLoop(ctx, cancel, conn, snapshots, replies)

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket closed unexpectedly", zap.Error(err))
			}
			return
		}

		var cmd WSCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.reply(ctx, replies, WSEvent{Type: "error", Error: "invalid command"})
			continue
		}
		if err := h.execute(r, cmd); err != nil {
			h.reply(ctx, replies, WSEvent{Type: "error", Error: err.Error()})
		}
	}
}

func (h *WebSocketHandler) execute(r *http.Request, cmd WSCommand) error {
	switch cmd.Type {
	case "text":
		if err := middleware.ValidateMessageContent(cmd.Content); err != nil {
			return err
		}
		if !h.limiter.Allow(r) {
			return errRateLimited
		}
		_, err := h.chat.SubmitText(cmd.Content)
		return err
	case "start":
		h.chat.StartConversation()
	case "reset":
		h.chat.Reset()
	default:
		return errUnknownCommand
	}
	return nil
}

func (h *WebSocketHandler) reply(ctx context.Context, replies chan<- WSEvent, e WSEvent) {
	select {
	case replies <- e:
	case <-ctx.Done():
	}
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, snapshots <-chan model.Snapshot, replies <-chan WSEvent) {
	defer cancel()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(e WSEvent) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(e); err != nil {
			h.logger.Debug("WebSocket write failed", zap.Error(err))
			conn.Close()
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if !write(WSEvent{Type: "snapshot", Data: &snap}) {
				return
			}

		case e := <-replies:
			if !write(e) {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
