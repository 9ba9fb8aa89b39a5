package websession

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sandstormgo/internal/gateway"
)

func TestCheckCSRFOrigin_GetAlwaysAllowed(t *testing.T) {
	b := NewBridge(nil, "https://example.com", nil)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://evil.example")
	assert.True(t, b.checkCSRFOrigin(r))
}

func TestCheckCSRFOrigin_PostMatchingOriginAllowed(t *testing.T) {
	b := NewBridge(nil, "https://example.com", nil)
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Origin", "https://example.com")
	assert.True(t, b.checkCSRFOrigin(r))
}

func TestCheckCSRFOrigin_PostMismatchedOriginRejected(t *testing.T) {
	b := NewBridge(nil, "https://example.com", nil)
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, b.checkCSRFOrigin(r))
}

func TestCheckCSRFOrigin_NullOriginTolerated(t *testing.T) {
	b := NewBridge(nil, "https://example.com", nil)
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Origin", "null")
	assert.True(t, b.checkCSRFOrigin(r))
}

func TestCheckCSRFOrigin_NoOriginHeaderTolerated(t *testing.T) {
	b := NewBridge(nil, "https://example.com", nil)
	r := httptest.NewRequest(http.MethodPut, "/", nil)
	assert.True(t, b.checkCSRFOrigin(r))
}

func TestIsAllowedBasicAuthUserAgent(t *testing.T) {
	assert.True(t, isAllowedBasicAuthUserAgent("git/2.40.0"))
	assert.True(t, isAllowedBasicAuthUserAgent("GitHub-Hookshot/abc123"))
	assert.True(t, isAllowedBasicAuthUserAgent("Mozilla/5.0 (iOS) ownCloud-iOS/4.0"))
	assert.False(t, isAllowedBasicAuthUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X) Chrome/120"))
	assert.False(t, isAllowedBasicAuthUserAgent(""))
}

func TestServeAPI_GenericHostRejectsBrowserBasicAuth(t *testing.T) {
	b := NewBridge(func(string) (string, bool) { return "", false }, "", nil)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X) Chrome/120")
	w := httptest.NewRecorder()

	b.ServeAPI(w, r, gateway.HostMatch{Kind: gateway.HostAPIGeneric})

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, `Basic realm="Sandstorm API"`, w.Header().Get("WWW-Authenticate"))
}

func TestServeAPI_GenericHostAllowsKnownClientBasicAuth(t *testing.T) {
	called := false
	resolve := func(string) (string, bool) {
		called = true
		return "", false // grain not running: exercises the fallback past the auth check
	}
	b := NewBridge(resolve, "", nil)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	r.Header.Set("User-Agent", "git/2.40.0")
	w := httptest.NewRecorder()

	b.ServeAPI(w, r, gateway.HostMatch{Kind: gateway.HostAPIGeneric})

	assert.True(t, called, "basic auth from an allow-listed client must reach grain resolution")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestServeAPI_OptionsIsCORSPreflight(t *testing.T) {
	b := NewBridge(nil, "", nil)
	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Access-Control-Request-Method", "DELETE")
	r.Header.Set("Access-Control-Request-Headers", "X-Custom-Header")
	w := httptest.NewRecorder()

	b.ServeAPI(w, r, gateway.HostMatch{Kind: gateway.HostAPIGrain, GrainID: "abc"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "X-Custom-Header", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET, HEAD, POST, PUT, PATCH, DELETE", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestServeAPI_OptionsAppendsUnlistedMethod(t *testing.T) {
	b := NewBridge(nil, "", nil)
	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Access-Control-Request-Method", "PROPFIND")
	w := httptest.NewRecorder()

	b.ServeAPI(w, r, gateway.HostMatch{Kind: gateway.HostAPIGrain, GrainID: "abc"})

	assert.Equal(t, "GET, HEAD, POST, PUT, PATCH, DELETE, PROPFIND", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestServeUI_RejectsCrossSiteOrigin(t *testing.T) {
	b := NewBridge(func(string) (string, bool) { return "", true }, "https://example.com", nil)
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()

	b.ServeUI(w, r, gateway.HostMatch{Kind: gateway.HostUIGrain, GrainID: "abc"})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServeUI_UnresolvedGrainReturnsBadGateway(t *testing.T) {
	b := NewBridge(func(string) (string, bool) { return "", false }, "https://example.com", nil)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	b.ServeUI(w, r, gateway.HostMatch{Kind: gateway.HostUIGrain, GrainID: "missing"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestIsWebSocketUpgrade(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Connection", "Upgrade")
	r.Header.Set("Upgrade", "websocket")
	assert.True(t, isWebSocketUpgrade(r))

	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, isWebSocketUpgrade(plain))
}
