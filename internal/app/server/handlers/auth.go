package handlers

import (
	"encoding/json"
	"livesync/pkg/logging"
	"net/http"
)

type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

// AuthHandler mints tokens for local development. Production tokens come
// from the identity provider sharing JWT_SECRET.
type AuthHandler struct {
	tokens TokenIssuer
}

func NewAuthHandler(tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// IssueToken serves POST /auth/token with body {"user_id": "..."}.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		log.WarnContext(r.Context(), "auth handler - issue token - bad request")
		writeError(w, http.StatusBadRequest, "bad_request", "user_id required")
		return
	}
	token, err := h.tokens.GenerateToken(req.UserID)
	if err != nil {
		log.ErrorContext(r.Context(), "auth handler - issue token - sign failed", "user_id", req.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not sign token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
	log.InfoContext(r.Context(), "auth handler - issue token - issued", "user_id", req.UserID)
}
