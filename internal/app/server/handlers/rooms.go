package handlers

import (
	"encoding/json"
	"errors"
	"livesync/internal/core/domain"
	"livesync/internal/core/services"
	"livesync/pkg/logging"
	"net/http"
	"strconv"
)

type RoomHandler struct {
	manager services.IManagerService
}

func NewRoomHandler(manager services.IManagerService) *RoomHandler {
	return &RoomHandler{manager: manager}
}

type historyResponse struct {
	RoomID   string               `json:"room_id"`
	Messages []domain.ChatMessage `json:"messages"`
	Next     string               `json:"next,omitempty"`
}

type presenceResponse struct {
	RoomID  string                 `json:"room_id"`
	Members []domain.PresenceEvent `json:"members"`
}

// History serves GET /rooms/{room}/messages?after=<ts>&limit=<n>.
func (h *RoomHandler) History(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	var after domain.Timestamp
	if raw := r.URL.Query().Get("after"); raw != "" {
		ts, err := domain.ParseTimestamp(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_after", err.Error())
			return
		}
		after = ts
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	msgs, err := h.manager.HandleHistory(r.Context(), roomID, after, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := historyResponse{RoomID: roomID, Messages: make([]domain.ChatMessage, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, domain.NewChatMessage(m))
	}
	if len(msgs) > 0 {
		resp.Next = msgs[len(msgs)-1].Timestamp.String()
	}
	writeJSON(w, http.StatusOK, resp)
	logging.FromContext(r.Context()).DebugContext(r.Context(), "room handler - history - served", "room_id", roomID, "len_messages", len(msgs))
}

// Presence serves GET /rooms/{room}/presence.
func (h *RoomHandler) Presence(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room")
	recs, err := h.manager.HandlePresence(r.Context(), roomID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := presenceResponse{RoomID: roomID, Members: make([]domain.PresenceEvent, 0, len(recs))}
	for _, rec := range recs {
		resp.Members = append(resp.Members, domain.NewPresenceEvent(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, domain.ErrorMessage{Type: domain.TypeError, Code: code, Message: msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRoomID):
		writeError(w, http.StatusBadRequest, "invalid_room", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
