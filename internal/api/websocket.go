package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"abegfix/internal/auth"
	"abegfix/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub      *ws.Hub
	sessions *auth.SessionService
}

func NewWebSocketHandler(hub *ws.Hub, sessions *auth.SessionService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, sessions: sessions}
}

// ServeWS upgrades an authenticated connection. The access token comes from
// the cookie for browsers, or a token query parameter for other clients.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := accessTokenFromRequest(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		unauthorized(w, "Authentication required")
		return
	}

	user, err := h.sessions.Authenticate(r.Context(), token)
	if err != nil {
		unauthorized(w, "Invalid or expired token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := ws.NewClient(h.hub, conn, user)
	client.Register()

	go client.WritePump()
	go client.ReadPump()
}
