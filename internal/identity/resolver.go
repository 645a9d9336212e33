// Package identity resolves the effective caller identity for a request.
package identity

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Source tags which credential path produced an identity.
type Source string

const (
	// SourcePrimary means the primary identity provider resolved the caller.
	SourcePrimary Source = "primary"
	// SourceBridge means a locally issued bridge-session cookie resolved the caller.
	SourceBridge Source = "bridge"
	// SourceNone means no credential path produced an identity.
	SourceNone Source = "none"
)

// Identity is the resolved caller identity for one request. Role is an
// opaque provider claim and may be empty.
type Identity struct {
	UserID string
	Role   string
	Source Source
}

// Session is an active primary-provider session.
type Session struct {
	UserID string
	Role   string
}

// SessionProvider resolves the primary provider's active session for a
// request. Implementations return an error for any failure, including
// "not configured" and "no active session"; the resolver treats every
// provider error as absence.
type SessionProvider interface {
	Session(r *http.Request) (Session, error)
}

// BridgePayload is the JSON body of a bridge-session cookie.
type BridgePayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// Resolver determines caller identity with strict precedence: primary
// provider first, bridge cookie second, anonymous last. A valid primary
// session always wins over a bridge cookie.
type Resolver struct {
	provider   SessionProvider
	cookieName string
	logger     zerolog.Logger
}

// NewResolver creates a resolver. provider may be nil when the primary
// identity provider is not configured.
func NewResolver(provider SessionProvider, cookieName string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		provider:   provider,
		cookieName: cookieName,
		logger:     logger.With().Str("component", "identity").Logger(),
	}
}

// Resolve returns the caller identity for the request. It never fails: a
// broken provider or malformed bridge cookie degrades to no identity.
func (res *Resolver) Resolve(r *http.Request) Identity {
	if res.provider != nil {
		session, err := res.provider.Session(r)
		if err != nil {
			res.logger.Debug().Err(err).Msg("primary provider yielded no session")
		} else if strings.TrimSpace(session.UserID) != "" {
			return Identity{
				UserID: strings.TrimSpace(session.UserID),
				Role:   strings.TrimSpace(session.Role),
				Source: SourcePrimary,
			}
		}
	}

	if payload, ok := res.bridgePayload(r); ok {
		return Identity{
			UserID: payload.UserID,
			Role:   payload.Role,
			Source: SourceBridge,
		}
	}

	return Identity{Source: SourceNone}
}

func (res *Resolver) bridgePayload(r *http.Request) (BridgePayload, bool) {
	cookie, err := r.Cookie(res.cookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return BridgePayload{}, false
	}

	payload, ok := DecodeBridgePayload(cookie.Value)
	if !ok {
		res.logger.Debug().Msg("ignoring malformed bridge-session cookie")
		return BridgePayload{}, false
	}
	return payload, true
}

// DecodeBridgePayload parses a bridge cookie value. Both raw JSON and
// base64url-encoded JSON are accepted. Returns false for anything that does
// not decode to a payload with a non-empty user id.
func DecodeBridgePayload(value string) (BridgePayload, bool) {
	raw := []byte(strings.TrimSpace(value))
	if len(raw) == 0 {
		return BridgePayload{}, false
	}

	if raw[0] != '{' {
		decoded, err := base64.RawURLEncoding.DecodeString(string(raw))
		if err != nil {
			if decoded, err = base64.URLEncoding.DecodeString(string(raw)); err != nil {
				return BridgePayload{}, false
			}
		}
		raw = decoded
	}

	var payload BridgePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return BridgePayload{}, false
	}
	payload.UserID = strings.TrimSpace(payload.UserID)
	payload.Role = strings.TrimSpace(payload.Role)
	if payload.UserID == "" {
		return BridgePayload{}, false
	}
	return payload, true
}

// EncodeBridgePayload renders a payload as a base64url cookie value.
func EncodeBridgePayload(payload BridgePayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
