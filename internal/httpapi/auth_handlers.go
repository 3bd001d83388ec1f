package httpapi

import (
	"net/http"
	"strings"
	"time"

	"tasdeeq.app/internal/audit"
	"tasdeeq.app/internal/auth"
)

type tokenRequest struct {
	User  string   `json:"user" validate:"required,max=128"`
	Email string   `json:"email" validate:"omitempty,email"`
	Roles []string `json:"roles" validate:"required,min=1,dive,oneof=admin kyc_reviewer user"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAuthToken mints development tokens. Production deployments obtain
// tokens from the identity provider and leave this route disabled.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if !a.devTokens {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeKYCError(w, r, badRequest(err))
		return
	}

	user := strings.TrimSpace(req.User)
	token, err := auth.GenerateToken(user, req.Email, req.Roles, a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user":       user,
		"roles":      req.Roles,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     p.UserID,
		"email":       p.Email,
		"roles":       p.Roles,
		"permissions": p.PermissionList(),
	})
}
