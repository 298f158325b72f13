package apihttp

import (
	"encoding/json"
	"net/http"
	"time"

	"messhall-cloud/internal/auth"
)

const tokenTTL = 12 * time.Hour

// LoginHandler issues demo session tokens. Identity is self-asserted; the
// deployment fronting this service is expected to gate who reaches it.
type LoginHandler struct {
	secret []byte
}

// NewLoginHandler constructs a LoginHandler signing with secret.
func NewLoginHandler(secret []byte) *LoginHandler {
	return &LoginHandler{secret: secret}
}

// ServeHTTP handles POST /api/v1/auth/login.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || len(h.secret) == 0 {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
		Name   string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	role, _ := auth.NormalizeRole(req.Role)

	token, err := auth.IssueToken(h.secret, req.UserID, role, req.Name, tokenTTL)
	if err != nil {
		http.Error(w, "issue token error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"role":      role,
		"expiresIn": int(tokenTTL.Seconds()),
	})
}
