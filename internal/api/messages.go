package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"abegfix/internal/db"
	"abegfix/internal/ws"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type MessageHandler struct {
	messages *db.MessageRepository
}

func NewMessageHandler(messages *db.MessageRepository) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// GET /api/v1/messages?with=<userID>&limit=
func (h *MessageHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	peer := strings.TrimSpace(r.URL.Query().Get("with"))
	if _, err := primitive.ObjectIDFromHex(peer); err != nil {
		badRequest(w, "with must be a valid user id")
		return
	}

	limit := int64(defaultHistoryLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			badRequest(w, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	room := ws.RoomID(user.ID.Hex(), peer)
	messages, err := h.messages.History(r.Context(), room, limit)
	if err != nil {
		slog.Error("error loading message history", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}
