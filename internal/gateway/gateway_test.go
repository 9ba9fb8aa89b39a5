package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWildcardMatcher(t *testing.T) {
	m := NewWildcardMatcher("*.example.com")
	require.Equal(t, "example.com", m.Base())

	label, ok := m.MatchSubdomain("ui-abc123.example.com")
	require.True(t, ok)
	require.Equal(t, "ui-abc123", label)

	_, ok = m.MatchSubdomain("deep.ui-abc123.example.com")
	require.False(t, ok, "multi-label subdomains must not match")

	require.True(t, m.IsWildcardHost("example.com"))
	require.False(t, m.IsWildcardHost("other.com"))
}

func TestClassifyHost_DispatchRules(t *testing.T) {
	m := NewWildcardMatcher("*.example.com")
	shellSubs := []string{"ddp", "static", "payments"}

	cases := []struct {
		host string
		kind HostKind
	}{
		{"example.com", HostShell},
		{"ddp.example.com", HostShell},
		{"api.example.com", HostAPIGeneric},
		{"api-abcd1234.example.com", HostAPIGrain},
		{"selftest-xyz.example.com", HostSelfTest},
		{"ui-abcd1234.example.com", HostUIGrain},
		{"abcdefghijklmnopqrst", HostStaticPublishing},
		{"totally-unrelated.net", HostForeign},
	}
	for _, c := range cases {
		match := ClassifyHost(c.host, m, shellSubs)
		require.Equal(t, c.kind, match.Kind, "host %q", c.host)
	}

	match := ClassifyHost("api-abcd1234.example.com", m, shellSubs)
	require.Equal(t, "abcd1234", match.GrainID)

	match = ClassifyHost("ui-abcd1234.example.com", m, shellSubs)
	require.Equal(t, "abcd1234", match.GrainID)
}

func TestServer_SelfTestHost(t *testing.T) {
	srv := NewServer(Config{WildcardHost: "*.example.com"})
	req := httptest.NewRequest("GET", "http://selftest-x.example.com/", nil)
	req.Host = "selftest-x.example.com"
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Self-test OK.", rec.Body.String())
}

func TestServer_ForeignHostNotFoundWithoutResolver(t *testing.T) {
	srv := NewServer(Config{WildcardHost: "*.example.com"})
	req := httptest.NewRequest("GET", "http://unrelated.net/", nil)
	req.Host = "unrelated.net"
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRealIPHandler_SetsHeaderForUntrustedPeer(t *testing.T) {
	var captured string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Get("X-Real-IP")
	})
	h := RealIPHandler(inner)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.5:4444"
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "203.0.113.5", captured)
}

func TestTlsManager_BlocksUntilCertificateProvided(t *testing.T) {
	m := NewTlsManager()
	require.False(t, m.Ready())
}
