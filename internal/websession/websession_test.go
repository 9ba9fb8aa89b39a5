package websession

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"sandstormgo/internal/httpbridge"
)

func TestBuildContext_CookiesOnlyWhenAllowed(t *testing.T) {
	h := http.Header{}
	h.Set("Cookie", "sid=abc123; other=xyz")
	h.Set("Accept", "text/html;q=0.9, application/json")

	ctx := BuildContext(h, "example.com", true)
	require.Len(t, ctx.Cookies, 2)
	require.Equal(t, "sid", ctx.Cookies[0].Name)
	require.Equal(t, "abc123", ctx.Cookies[0].Value)
	require.Len(t, ctx.Accept, 2)
	require.InDelta(t, 0.9, ctx.Accept[0].QValue, 1e-9)
	require.InDelta(t, 1.0, ctx.Accept[1].QValue, 1e-9)

	apiCtx := BuildContext(h, "example.com", false)
	require.Empty(t, apiCtx.Cookies)
}

func TestParsePrecondition_IfNoneMatchStar(t *testing.T) {
	h := http.Header{}
	h.Set("If-None-Match", "*")
	p := parsePrecondition(h)
	require.Equal(t, PreconditionDoesntExist, p.Kind)
	require.True(t, p.WasNoneMatch)
}

func TestParsePrecondition_IfMatchList(t *testing.T) {
	h := http.Header{}
	h.Set("If-Match", `"abc", "def"`)
	p := parsePrecondition(h)
	require.Equal(t, PreconditionMatchesOneOf, p.Kind)
	require.Equal(t, []string{"abc", "def"}, p.ETags)
	require.False(t, p.WasNoneMatch)
}

func TestRouteMethod_StreamingThreshold(t *testing.T) {
	require.Equal(t, CallPost, RouteMethod("POST", 100))
	require.Equal(t, CallPostStreaming, RouteMethod("POST", streamingThreshold))
	require.Equal(t, CallPropfind, RouteMethod("PROPFIND", 0))
	require.Equal(t, CallUnsupported, RouteMethod("BREW", 0))
}

func TestResolveDestination_RejectsForeignHost(t *testing.T) {
	_, err := ResolveDestination("http://evil.example/x", "ui-abc.example.com")
	require.Error(t, err)

	path, err := ResolveDestination("http://ui-abc.example.com/new/path", "ui-abc.example.com")
	require.NoError(t, err)
	require.Equal(t, "/new/path", path)
}

func TestAssembleSetCookieHeaders_RejectsInvalidNames(t *testing.T) {
	_, err := AssembleSetCookieHeaders([]SetCookie{{Name: "bad;name", Value: "v"}})
	require.Error(t, err)

	lines, err := AssembleSetCookieHeaders([]SetCookie{
		{Name: "sid", Value: "abc", Path: "/", HTTPOnly: true, Secure: true},
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "sid=abc")
	require.Contains(t, lines[0], "HttpOnly")
	require.Contains(t, lines[0], "Secure")
}

func TestTranslate_PreconditionFailedReencodesAs304(t *testing.T) {
	rec := httptest.NewRecorder()
	resp := &httpbridge.WebSessionResponse{
		Status: httpbridge.LookupStatus(412),
		ETag:   "v1",
	}
	err := Translate(rec, resp, Precondition{WasNoneMatch: true})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Equal(t, `"v1"`, rec.Header().Get("ETag"))
}

func TestTranslate_PreconditionFailedWithoutNoneMatchIs412(t *testing.T) {
	rec := httptest.NewRecorder()
	resp := &httpbridge.WebSessionResponse{Status: httpbridge.LookupStatus(412)}
	err := Translate(rec, resp, Precondition{WasNoneMatch: false})
	require.NoError(t, err)
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestAPIHostHeaders_IncludesWhitelisted(t *testing.T) {
	headers := APIHostHeaders([]string{"X-Custom"})
	require.Contains(t, headers["Access-Control-Expose-Headers"][0], "ETag")
	require.Contains(t, headers["Access-Control-Expose-Headers"][0], "X-Custom")
}
