package httpbridge

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"sandstormgo/internal/ocerrors"
)

// WebSessionRequest is the normalized form of an inbound app-originated
// or gateway-originated call the bridge translates to plain HTTP (spec
// §4.4: "HTTP → WebSession (inside grain)").
type WebSessionRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    io.Reader
}

// WebSessionResponse carries the translated result plus enough of the
// original HTTP response to drive ETag/Set-Cookie/disposition
// handling upstream.
type WebSessionResponse struct {
	Status      StatusInfo
	ETag        string
	ContentType string
	Disposition Disposition
	Headers     http.Header
	Body        io.ReadCloser
}

// Bridge opens a TCP connection to the app's HTTP port per request and
// translates the response per the fixed status-code table (spec §4.4).
type Bridge struct {
	appAddr string
	client  *http.Client
}

func New(appAddr string) *Bridge {
	return &Bridge{
		appAddr: appAddr,
		client: &http.Client{
			Transport: &http.Transport{DisableCompression: true},
		},
	}
}

// Do performs req against the app and returns the translated response.
func (b *Bridge) Do(ctx context.Context, req WebSessionRequest) (*WebSessionResponse, error) {
	url := "http://" + b.appAddr + req.Path
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, req.Body)
	if err != nil {
		return nil, ocerrors.InvalidInput("httpbridge: build request: " + err.Error())
	}
	httpReq.Header = req.Headers

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, ocerrors.Disconnected("httpbridge: app did not respond: " + err.Error())
	}

	info := LookupStatus(resp.StatusCode)
	out := &WebSessionResponse{
		Status:      info,
		ETag:        unquoteETag(resp.Header.Get("ETag")),
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     resp.Header,
		Body:        resp.Body,
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		out.Disposition = ParseContentDisposition(cd)
	}
	return out, nil
}

// unquoteETag un-quotes an ETag before it crosses into the app's
// WebSession view (spec §3 invariant: "ETag strings sent to the app
// are always un-quoted; gateway quotes them on the way out").
func unquoteETag(etag string) string {
	s := etag
	if len(s) >= 2 && s[0] == 'W' && s[1] == '/' {
		s = s[2:]
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

// WebSocketStream is a byte-shuttling pair opened by dialing the app's
// HTTP port raw, writing a hand-constructed Upgrade request, then
// parsing the response headers until the blank line (spec §4.4:
// "WebSockets are implemented by opening a plain TCP connection...").
type WebSocketStream struct {
	conn net.Conn
	resp *http.Response
}

// Response returns the app's raw 101 Switching Protocols response,
// headers included (e.g. Sec-WebSocket-Accept), so a caller relaying
// the upgrade to its own peer can forward it unchanged instead of
// re-deriving it.
func (w *WebSocketStream) Response() *http.Response { return w.resp }

// DialWebSocket performs the raw HTTP Upgrade handshake against the
// app and returns the shuttling stream.
func DialWebSocket(ctx context.Context, appAddr, path string, headers http.Header) (*WebSocketStream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", appAddr)
	if err != nil {
		return nil, ocerrors.Disconnected("httpbridge: dial app for websocket: " + err.Error())
	}

	var req bytes.Buffer
	fmt.Fprintf(&req, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&req, "Host: %s\r\n", appAddr)
	for k, vs := range headers {
		for _, v := range vs {
			fmt.Fprintf(&req, "%s: %s\r\n", k, v)
		}
	}
	req.WriteString("\r\n")

	if _, err := conn.Write(req.Bytes()); err != nil {
		conn.Close()
		return nil, ocerrors.Disconnected("httpbridge: write upgrade request: " + err.Error())
	}

	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, nil)
	if err != nil {
		conn.Close()
		return nil, ocerrors.Disconnected("httpbridge: read upgrade response: " + err.Error())
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return nil, ocerrors.Unimplemented(fmt.Sprintf("httpbridge: app refused websocket upgrade: %d", resp.StatusCode))
	}

	return &WebSocketStream{conn: conn, resp: resp}, nil
}

// Pump shuttles bytes bidirectionally between the app connection and
// peer until either side closes or ctx is done (spec §4.4:
// "shuttling bytes via a WebSocketStream capability pair").
func (w *WebSocketStream) Pump(ctx context.Context, peer io.ReadWriter) error {
	done := make(chan error, 2)
	go func() {
		_, err := io.Copy(w.conn, peer)
		done <- err
	}()
	go func() {
		_, err := io.Copy(peer, w.conn)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		w.conn.Close()
		return ctx.Err()
	}
}

func (w *WebSocketStream) Close() error { return w.conn.Close() }

// pingInterval is the ping period for an in-flight streaming response
// body (spec §4.4). Nothing in this package references it: streaming
// bodies are copied without pings.
const pingInterval = 60 * time.Second
