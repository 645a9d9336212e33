package identity

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookieName = "storefront_bridge_session"

type mockProvider struct {
	session Session
	err     error
}

func (m *mockProvider) Session(r *http.Request) (Session, error) {
	return m.session, m.err
}

func newTestResolver(provider SessionProvider) *Resolver {
	return NewResolver(provider, testCookieName, zerolog.Nop())
}

func requestWithBridgeCookie(t *testing.T, payload BridgePayload) *http.Request {
	t.Helper()
	encoded, err := EncodeBridgePayload(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/tools", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: encoded})
	return req
}

func TestResolve_PrimaryProviderWins(t *testing.T) {
	resolver := newTestResolver(&mockProvider{session: Session{UserID: "user-1", Role: "buyer"}})
	req := requestWithBridgeCookie(t, BridgePayload{UserID: "bridge-user", Role: "admin"})

	id := resolver.Resolve(req)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "buyer", id.Role)
	assert.Equal(t, SourcePrimary, id.Source)
}

func TestResolve_ProviderFailureFallsBackToBridge(t *testing.T) {
	resolver := newTestResolver(&mockProvider{err: errors.New("provider unreachable")})
	req := requestWithBridgeCookie(t, BridgePayload{UserID: "bridge-user", Role: "admin"})

	id := resolver.Resolve(req)
	assert.Equal(t, "bridge-user", id.UserID)
	assert.Equal(t, "admin", id.Role)
	assert.Equal(t, SourceBridge, id.Source)
}

func TestResolve_ProviderEmptyUserIDIsAbsence(t *testing.T) {
	resolver := newTestResolver(&mockProvider{session: Session{UserID: "  "}})
	req := requestWithBridgeCookie(t, BridgePayload{UserID: "bridge-user"})

	id := resolver.Resolve(req)
	assert.Equal(t, SourceBridge, id.Source)
	assert.Equal(t, "bridge-user", id.UserID)
}

func TestResolve_NilProviderUsesBridge(t *testing.T) {
	resolver := newTestResolver(nil)
	req := requestWithBridgeCookie(t, BridgePayload{UserID: "bridge-user"})

	id := resolver.Resolve(req)
	assert.Equal(t, SourceBridge, id.Source)
}

func TestResolve_NoCredentialsIsAnonymous(t *testing.T) {
	resolver := newTestResolver(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/tools", nil)

	id := resolver.Resolve(req)
	assert.Empty(t, id.UserID)
	assert.Empty(t, id.Role)
	assert.Equal(t, SourceNone, id.Source)
}

func TestResolve_MalformedBridgeCookieDegradesToNone(t *testing.T) {
	resolver := newTestResolver(nil)

	for _, value := range []string{
		"not-base64-not-json!!!",
		"e30",             // base64url of "{}": valid JSON, no user id
		"eyJmb28iOiJiYXIifQ", // base64url of {"foo":"bar"}
		"{broken json",
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/tools", nil)
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: value})

		id := resolver.Resolve(req)
		assert.Equal(t, SourceNone, id.Source, "cookie value %q", value)
		assert.Empty(t, id.UserID)
	}
}

func TestDecodeBridgePayload_RawJSONAccepted(t *testing.T) {
	payload, ok := DecodeBridgePayload(`{"user_id":"u-7","role":"ops"}`)
	require.True(t, ok)
	assert.Equal(t, "u-7", payload.UserID)
	assert.Equal(t, "ops", payload.Role)
}

func TestDecodeBridgePayload_RoleIsOptional(t *testing.T) {
	encoded, err := EncodeBridgePayload(BridgePayload{UserID: "u-8"})
	require.NoError(t, err)

	payload, ok := DecodeBridgePayload(encoded)
	require.True(t, ok)
	assert.Equal(t, "u-8", payload.UserID)
	assert.Empty(t, payload.Role)
}
