package httpbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupStatus_KnownAndFallback(t *testing.T) {
	info := LookupStatus(404)
	require.Equal(t, KindClientError, info.Kind)
	require.Equal(t, "Not Found", info.Title)

	info = LookupStatus(499)
	require.Equal(t, KindClientError, info.Kind)

	info = LookupStatus(599)
	require.Equal(t, KindServerError, info.Kind)

	info = LookupStatus(307)
	require.Equal(t, KindRedirect, info.Kind)
	require.False(t, info.IsPermanent)
	require.False(t, info.SwitchToGet)

	info = LookupStatus(301)
	require.True(t, info.IsPermanent)
	require.True(t, info.SwitchToGet)
}

func TestParseContentDisposition_HandlesEscapes(t *testing.T) {
	d := ParseContentDisposition(`attachment; filename="My \"Report\".pdf"`)
	require.True(t, d.Attachment)
	require.Equal(t, `My "Report".pdf`, d.Filename)
}

func TestUnquoteETag(t *testing.T) {
	require.Equal(t, "abc123", unquoteETag(`"abc123"`))
	require.Equal(t, "abc123", unquoteETag(`W/"abc123"`))
	require.Equal(t, "abc123", unquoteETag("abc123"))
}

func TestBridgeDo_TranslatesResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Disposition", `attachment; filename="out.txt"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("payload"))
	}))
	defer upstream.Close()

	addr := upstream.Listener.Addr().String()
	bridge := New(addr)

	resp, err := bridge.Do(context.Background(), WebSessionRequest{
		Method:  "GET",
		Path:    "/",
		Headers: http.Header{},
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, KindContent, resp.Status.Kind)
	require.Equal(t, "v1", resp.ETag)
	require.True(t, resp.Disposition.Attachment)
	require.Equal(t, "out.txt", resp.Disposition.Filename)
}
