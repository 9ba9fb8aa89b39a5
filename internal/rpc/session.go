package rpc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Session is a two-party connection over a Unix-domain socket (spec
// §6: "Internal cap'n-proto two-party sessions on Unix-domain sockets").
// It wraps a gRPC *ClientConn / *grpc.Server pair, the pack's closest
// real analogue to the assumed capability-RPC transport (spec §9); the
// wire schema itself is out of scope (§1), so Session only owns
// connection lifecycle, not method dispatch.
type Session struct {
	mu     sync.Mutex
	conn   *grpc.ClientConn
	closed bool
}

// DialUnix opens a two-party session over a Unix-domain socket at path.
func DialUnix(ctx context.Context, path string) (*Session, error) {
	conn, err := grpc.NewClient(
		"unix:"+path,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", path, err)
	}
	return &Session{conn: conn}, nil
}

// Conn exposes the underlying gRPC connection for generated-stub use.
func (s *Session) Conn() *grpc.ClientConn {
	return s.conn
}

// Disconnected implements Target.
func (s *Session) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	state := s.conn.GetState()
	return state.String() == "SHUTDOWN"
}

// Close tears down the session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// ListenUnix creates a gRPC server listening on a freshly created
// Unix-domain socket at path, removing any stale socket file first (the
// platform owns one socket per grain plus one gateway back-channel,
// spec §6).
func ListenUnix(path string) (*grpc.Server, net.Listener, error) {
	_ = removeStaleSocket(path)
	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, nil, fmt.Errorf("rpc: listen %s: %w", path, err)
	}
	return grpc.NewServer(), lis, nil
}

func removeStaleSocket(path string) error {
	return removeIfSocket(path)
}
