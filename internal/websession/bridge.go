package websession

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sandstormgo/internal/gateway"
	"sandstormgo/internal/httpbridge"
	"sandstormgo/internal/metrics"
)

// AddrResolver looks up the host:port a grain's http-bridge listens on
// (spec §4.4); the real implementation asks the Backend process,
// which owns the running supervisors.
type AddrResolver func(grainID string) (addr string, ok bool)

// Bridge is the gateway-side WebSession<->HTTP translator: it
// assembles the helpers in this package (context parsing, response
// translation, security headers, cookie/CORS handling) into the API and
// UI dispatch hooks of gateway.Config (spec §4.3, §4.4 item "gateway
// turns WebSession back into outbound HTTP/WebSocket/WebDAV").
type Bridge struct {
	resolve        AddrResolver
	expectedOrigin string // scheme://wildcard-base, for UI-host CSRF checks
	allowCookies   bool
	metrics        *metrics.Registry
	log            *slog.Logger
}

// NewBridge builds a Bridge. expectedOrigin is the gateway's own
// "scheme://host" (e.g. "https://example.com"), the only Origin a
// UI-host state-changing request may carry.
func NewBridge(resolve AddrResolver, expectedOrigin string, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{resolve: resolve, expectedOrigin: expectedOrigin, log: log}
}

// SetMetrics attaches a metrics registry; a nil registry (the
// default) makes every metrics call a no-op.
func (b *Bridge) SetMetrics(m *metrics.Registry) {
	b.metrics = m
}

// ServeAPI implements gateway.Config.APIHandler: generic api.* and
// per-grain api-<id>.* hosts (spec §4.3 rules 3/4).
func (b *Bridge) ServeAPI(w http.ResponseWriter, r *http.Request, match gateway.HostMatch) {
	if r.Method == http.MethodOptions {
		writeCORSPreflight(w, r)
		return
	}

	if match.Kind == gateway.HostAPIGeneric {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Basic ") &&
			!isAllowedBasicAuthUserAgent(r.Header.Get("User-Agent")) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Sandstorm API"`)
			http.Error(w, "HTTP Basic Auth is only permitted for known non-browser clients on this host; use an API token instead.", http.StatusForbidden)
			return
		}
	}

	addr, ok := b.resolve(match.GrainID)
	if !ok {
		http.Error(w, "grain not running", http.StatusBadGateway)
		return
	}

	for k, vs := range APIHostHeaders(nil) {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	if isWebSocketUpgrade(r) {
		b.proxyWebSocket(w, r, addr)
		return
	}
	b.proxyHTTP(w, r, addr, false, "api")
}

// ServeUI implements gateway.Config.UIHandler: per-grain ui-<id>.*
// hosts (spec §4.3 rule 5). State-changing requests are subject to
// the CSRF Origin check (spec §9: "accept a null Origin").
func (b *Bridge) ServeUI(w http.ResponseWriter, r *http.Request, match gateway.HostMatch) {
	if !b.checkCSRFOrigin(r) {
		http.Error(w, "Origin header does not match this server; request rejected to prevent cross-site request forgery.", http.StatusForbidden)
		return
	}

	addr, ok := b.resolve(match.GrainID)
	if !ok {
		http.Error(w, "grain not running", http.StatusBadGateway)
		return
	}

	for k, vs := range UIHostHeaders(r.Host, "", false) {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	if isWebSocketUpgrade(r) {
		b.proxyWebSocket(w, r, addr)
		return
	}
	b.proxyHTTP(w, r, addr, true, "ui")
}

// proxyHTTP translates one non-WebSocket request through
// internal/httpbridge against the resolved grain address (spec §4.4
// items 1-7).
func (b *Bridge) proxyHTTP(w http.ResponseWriter, r *http.Request, addr string, allowCookies bool, direction string) {
	start := time.Now()
	wsCtx := BuildContext(r.Header, r.Host, allowCookies)

	bridge := httpbridge.New(addr)
	resp, err := bridge.Do(r.Context(), httpbridge.WebSessionRequest{
		Method:  r.Method,
		Path:    r.URL.RequestURI(),
		Headers: r.Header,
		Body:    r.Body,
	})
	if b.metrics != nil {
		b.metrics.BridgeLatency.WithLabelValues(direction).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		b.log.Warn("websession: bridge request failed", "err", err, "addr", addr, "path", r.URL.Path)
		http.Error(w, "grain unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if err := Translate(w, resp, wsCtx.Precondition); err != nil {
		b.log.Warn("websession: response translation failed", "err", err)
	}
}

// proxyWebSocket implements the gateway-side half of spec §4.4's
// WebSocket duality: it dials the grain's http-bridge the same way
// the app-facing direction does (raw TCP + hand-built Upgrade
// handshake, see internal/httpbridge.DialWebSocket), then relays the
// app's own 101 response — Sec-WebSocket-Accept included — back to
// the browser before shuttling bytes.
func (b *Bridge) proxyWebSocket(w http.ResponseWriter, r *http.Request, addr string) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "websocket upgrade not supported", http.StatusInternalServerError)
		return
	}

	stream, err := httpbridge.DialWebSocket(r.Context(), addr, r.URL.RequestURI(), r.Header)
	if err != nil {
		http.Error(w, "grain unavailable", http.StatusBadGateway)
		return
	}

	conn, buf, err := hijacker.Hijack()
	if err != nil {
		stream.Close()
		return
	}
	defer conn.Close()

	if werr := writeUpgradeResponse(buf, stream.Response()); werr != nil {
		stream.Close()
		return
	}
	if err := buf.Flush(); err != nil {
		stream.Close()
		return
	}

	if err := stream.Pump(r.Context(), conn); err != nil {
		b.log.Debug("websession: websocket pump ended", "err", err)
	}
}

// writeUpgradeResponse relays the app's 101 status line and headers
// verbatim to the hijacked client connection.
func writeUpgradeResponse(buf *bufio.ReadWriter, resp *http.Response) error {
	if resp == nil {
		fmt.Fprintf(buf, "HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n\r\n")
		return nil
	}
	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	for k, vs := range resp.Header {
		for _, v := range vs {
			fmt.Fprintf(buf, "%s: %s\r\n", k, v)
		}
	}
	_, err := buf.WriteString("\r\n")
	return err
}

// isWebSocketUpgrade reports whether r asks for a WebSocket upgrade
// (spec §4.4: "WebSockets are implemented by opening a plain TCP
// connection").
func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// checkCSRFOrigin validates a UI-host state-changing request's Origin
// header (spec §9's unresolved "Origin header validation for POST
// requests" open question; decided here per the null-origin exception
// named in the original gateway's own comments). GET/HEAD/OPTIONS
// never mutate state, so they're exempt. A request with no Origin
// header at all is treated as same-origin (plain navigation, not a
// cross-site script); "null" is explicitly tolerated because some
// grain apps (Etherpad, Gogs) submit forms from a sandboxed iframe,
// which browsers render with Origin: null.
func (b *Bridge) checkCSRFOrigin(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}
	return b.expectedOrigin == "" || origin == b.expectedOrigin
}

// allowedBasicAuthUserAgentPrefixes lists the non-browser clients
// permitted to use HTTP Basic Auth against the generic api.* host
// (spec §9's "hard-coded basic-auth user-agent allowlist"); browsers
// are excluded so a malicious page can't trigger a native basic-auth
// prompt as a CSRF vector.
var allowedBasicAuthUserAgentPrefixes = []string{
	"git/",
	"GitHub-Hookshot/",
	"mirall/",
	"Mozilla/5.0 (iOS) ownCloud-iOS/",
	"Mozilla/5.0 (Android) ownCloud-android/",
	"litmus/",
}

func isAllowedBasicAuthUserAgent(ua string) bool {
	for _, prefix := range allowedBasicAuthUserAgentPrefixes {
		if strings.HasPrefix(ua, prefix) {
			return true
		}
	}
	return false
}

// writeCORSPreflight answers an OPTIONS request against an API host
// (spec §8 scenario 4: CORS preflight).
func writeCORSPreflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Max-Age", "3600")
	if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		h.Set("Access-Control-Allow-Headers", reqHeaders)
	}
	methods := "GET, HEAD, POST, PUT, PATCH, DELETE"
	if reqMethod := r.Header.Get("Access-Control-Request-Method"); reqMethod != "" {
		switch reqMethod {
		case "GET", "HEAD", "POST", "PUT", "PATCH", "DELETE":
		default:
			methods += ", " + reqMethod
		}
	}
	h.Set("Access-Control-Allow-Methods", methods)
	w.WriteHeader(http.StatusOK)
}
