package identity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const providerTimeout = 5 * time.Second

// HTTPProvider resolves sessions against the primary identity provider's
// session endpoint, forwarding the caller's credentials. The provider's
// claim structure is unspecified; only a user id and an optional role claim
// are read, everything else is ignored.
type HTTPProvider struct {
	client     *http.Client
	sessionURL string
	projectID  string
}

// NewHTTPProvider creates a provider-backed session source.
func NewHTTPProvider(sessionURL, projectID string) *HTTPProvider {
	return &HTTPProvider{
		client:     &http.Client{Timeout: providerTimeout},
		sessionURL: strings.TrimSpace(sessionURL),
		projectID:  strings.TrimSpace(projectID),
	}
}

type providerClaims struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
	Sub    string `json:"sub"`
	Role   string `json:"role"`
}

// Session implements SessionProvider.
func (p *HTTPProvider) Session(r *http.Request) (Session, error) {
	if p.sessionURL == "" {
		return Session{}, fmt.Errorf("identity provider is not configured")
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, p.sessionURL, nil)
	if err != nil {
		return Session{}, fmt.Errorf("building provider session request: %w", err)
	}
	if cookies := r.Header.Get("Cookie"); cookies != "" {
		req.Header.Set("Cookie", cookies)
	}
	if authz := r.Header.Get("Authorization"); authz != "" {
		req.Header.Set("Authorization", authz)
	}
	if p.projectID != "" {
		req.Header.Set("X-Auth-Project-ID", p.projectID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("querying provider session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("provider session endpoint returned %d", resp.StatusCode)
	}

	var claims providerClaims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return Session{}, fmt.Errorf("decoding provider session: %w", err)
	}

	userID := firstNonEmpty(claims.UserID, claims.ID, claims.Sub)
	if userID == "" {
		return Session{}, fmt.Errorf("provider session has no user id")
	}
	return Session{UserID: userID, Role: strings.TrimSpace(claims.Role)}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
