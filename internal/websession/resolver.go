package websession

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"time"
)

// HTTPAddrResolver resolves a grain's bridge address by querying the
// Backend process's resolve socket (spec §4.4; see
// internal/backend.ServeResolver). It dials a Unix-domain socket
// regardless of the request URL's host, the same pattern
// internal/rpc.DialUnix uses for the capability session, just without
// a generated wire schema for this one scalar lookup.
type HTTPAddrResolver struct {
	client *http.Client
}

// NewHTTPAddrResolver builds a resolver that dials socketPath for
// every lookup.
func NewHTTPAddrResolver(socketPath string) *HTTPAddrResolver {
	return &HTTPAddrResolver{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: 5 * time.Second,
		},
	}
}

// Resolve implements AddrResolver.
func (r *HTTPAddrResolver) Resolve(grainID string) (string, bool) {
	req, err := http.NewRequest(http.MethodGet, "http://unix/resolve?grain="+url.QueryEscape(grainID), nil)
	if err != nil {
		return "", false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	var out struct {
		Addr  string `json:"addr"`
		Found bool   `json:"found"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false
	}
	return out.Addr, out.Found
}
