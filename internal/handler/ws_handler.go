package handler

import (
	"net/http"
	"strings"

	"vidtube-server/internal/logging"
	"vidtube-server/internal/middleware"
	"vidtube-server/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	manager  *websocket.Manager
	upgrader ws.Upgrader
}

// NewWebSocketHandler serves session event sockets. The route sits behind the auth gate, and
// since browsers send cookies on cross-site upgrades the Origin must be one of allowedOrigins.
func NewWebSocketHandler(manager *websocket.Manager, readBuf, writeBuf int, allowedOrigins string) *WebSocketHandler {
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &WebSocketHandler{
		manager: manager,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, o := range origins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	userID := middleware.GetUserID(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), userID, conn, h.manager)
	if !h.manager.Join(client) {
		logger.Debug("websocket manager stopped, dropping connection")
		conn.Close()
		return
	}

	logger.Debug("websocket connected", "client_id", client.ID)

	go client.WritePump()
	go client.ReadPump()
}
