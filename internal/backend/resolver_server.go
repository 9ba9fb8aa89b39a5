package backend

import (
	"encoding/json"
	"net"
	"net/http"

	"sandstormgo/internal/ids"
)

// resolveResponse is the wire shape for a grain-address lookup.
type resolveResponse struct {
	Addr  string `json:"addr"`
	Found bool   `json:"found"`
}

// ServeResolver runs a plain HTTP server over lis answering
// "/resolve?grain=<id>" with the grain's bridge address (spec §4.4:
// the gateway, a separate process, needs to learn where each grain's
// http-bridge listens). It is deliberately not folded into the gRPC
// Unix socket in internal/rpc: that socket carries the Backend
// capability surface (§6), while this is a single read-only scalar
// lookup that doesn't need a generated wire schema.
func (b *Backend) ServeResolver(lis net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/resolve", b.handleResolve)
	return http.Serve(lis, mux)
}

func (b *Backend) handleResolve(w http.ResponseWriter, r *http.Request) {
	grainID := ids.GrainID(r.URL.Query().Get("grain"))
	addr, ok := b.ResolveGrainAddr(grainID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resolveResponse{Addr: addr, Found: ok})
}
