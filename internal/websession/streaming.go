package websession

import (
	"context"
	"io"
)

// RequestStream is the capability a streaming PUT/POST obtains: the
// bridge pumps the inbound body into Write calls, then calls
// GetResponse, which yields a normal response once the app finishes
// reading (spec §4.4 "Streaming upload request/response duality").
// The inbound and response streams run concurrently.
type RequestStream struct {
	writes   chan []byte
	done     chan struct{}
	response chan responseResult
}

type responseResult struct {
	resp interface{}
	err  error
}

// NewRequestStream wires a RequestStream over body, calling getResponse
// right away, concurrently with pumping the body (the "request-stream
// membrane" that redirects GetResponse to this wrapper while
// byte-stream methods pass straight through).
func NewRequestStream(ctx context.Context, body io.Reader, getResponse func(context.Context) (interface{}, error)) *RequestStream {
	rs := &RequestStream{
		writes:   make(chan []byte, 8),
		done:     make(chan struct{}),
		response: make(chan responseResult, 1),
	}

	go func() {
		defer close(rs.done)
		buf := make([]byte, 32*1024)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case rs.writes <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		resp, err := getResponse(ctx)
		rs.response <- responseResult{resp: resp, err: err}
	}()

	return rs
}

// Chunks returns the channel of pumped body chunks for a caller to
// forward as the app's write() calls.
func (rs *RequestStream) Chunks() <-chan []byte { return rs.writes }

// Done signals that the inbound body has been fully read.
func (rs *RequestStream) Done() <-chan struct{} { return rs.done }

// GetResponse blocks until the concurrent getResponse call completes.
func (rs *RequestStream) GetResponse() (interface{}, error) {
	r := <-rs.response
	return r.resp, r.err
}
