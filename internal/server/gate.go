package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/tomwolfe/storefront/internal/httputil"
)

// InternalKeyHeader carries the shared secret proving a machine-to-machine
// caller for tool invocations.
const InternalKeyHeader = "x-internal-system-key"

const (
	toolNamespacePrefix = "/api/tools"
	webhookPrefix       = "/api/tools/webhook"
)

// publicRoutePrefixes bypass all gate checks. "/" matches exactly; the rest
// match themselves and any subpath.
var publicRoutePrefixes = []string{
	"/shop",
	"/search",
	"/inventory",
	"/admin",
	"/api/auth/bridge",
	"/api/inventory/sync",
}

// Decision is the gate's allow/deny outcome for one request.
type Decision struct {
	Allowed bool
	// SecretPresented reports that the request carried a valid shared
	// secret, letting downstream handlers skip their identity re-check.
	SecretPresented bool
	Reason          string
}

// Gate decides whether a shared-secret header is required and sufficient to
// authorize tool-namespace requests. The mode is fixed at construction from
// whether the primary identity provider is configured.
type Gate struct {
	secret             string
	providerConfigured bool
}

// NewGate creates an access gate.
func NewGate(secret string, providerConfigured bool) *Gate {
	return &Gate{secret: secret, providerConfigured: providerConfigured}
}

// Authorize evaluates one request. It never mutates anything.
//
// With the provider unconfigured, tool-namespace routes require the exact
// shared secret. With the provider configured, a valid secret short-circuits
// to allow but its absence is not a denial; handlers re-check identity.
func (g *Gate) Authorize(r *http.Request) Decision {
	path := r.URL.Path

	if isPublicRoute(path) || hasPrefixPath(path, webhookPrefix) {
		return Decision{Allowed: true}
	}
	if !hasPrefixPath(path, toolNamespacePrefix) {
		return Decision{Allowed: true}
	}

	secretOK := g.secretMatches(r.Header.Get(InternalKeyHeader))
	if secretOK {
		return Decision{Allowed: true, SecretPresented: true}
	}
	if g.providerConfigured {
		// Permissive guard: success short-circuits, absence does not deny.
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, Reason: "missing or invalid internal system key"}
}

// secretMatches compares the presented header against the configured secret.
// An empty value on either side never matches.
func (g *Gate) secretMatches(presented string) bool {
	if g.secret == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(g.secret), []byte(presented)) == 1
}

// Middleware enforces gate denials and records the decision in the request
// context for downstream handlers.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.Authorize(r)
		if !decision.Allowed {
			httputil.RespondError(w, http.StatusUnauthorized, decision.Reason)
			return
		}
		next.ServeHTTP(w, r.WithContext(withGateDecision(r.Context(), decision)))
	})
}

func isPublicRoute(path string) bool {
	if path == "/" {
		return true
	}
	for _, prefix := range publicRoutePrefixes {
		if hasPrefixPath(path, prefix) {
			return true
		}
	}
	return false
}

func hasPrefixPath(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

type gateContextKey struct{}

func withGateDecision(ctx context.Context, decision Decision) context.Context {
	return context.WithValue(ctx, gateContextKey{}, decision)
}

// gateDecisionFromContext returns the decision stored by Middleware.
func gateDecisionFromContext(ctx context.Context) Decision {
	decision, _ := ctx.Value(gateContextKey{}).(Decision)
	return decision
}
