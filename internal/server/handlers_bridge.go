package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/tomwolfe/storefront/internal/httputil"
	"github.com/tomwolfe/storefront/internal/identity"
)

const bridgeSessionTTL = 12 * time.Hour

type bridgeIssueRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// handleAuthBridge issues a bridge-session cookie. The route bypasses the
// gate, so issuing requires the shared secret explicitly: bridge sessions
// exist for machine callers operating without the primary provider.
func (s *Server) handleAuthBridge(w http.ResponseWriter, r *http.Request) {
	if !s.gate.secretMatches(r.Header.Get(InternalKeyHeader)) {
		httputil.RespondError(w, http.StatusUnauthorized, "valid internal system key required to issue bridge session")
		return
	}

	var req bridgeIssueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondErrorf(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	encoded, err := identity.EncodeBridgePayload(identity.BridgePayload{
		UserID: userID,
		Role:   strings.TrimSpace(req.Role),
	})
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "failed to encode bridge session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.BridgeCookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  time.Now().Add(bridgeSessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info().Str("user_id", userID).Msg("issued bridge session")
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "issued"})
}
