package gateway

import (
	"net"
	"net/http"
)

// trustedPeers are the loopback ranges whose own X-Real-IP header is
// trusted rather than overwritten (spec §4.3 "Real-IP capture").
var trustedPeers = []*net.IPNet{
	mustParseCIDR("127.0.0.0/8"),
	mustParseCIDR("::1/128"),
}

func mustParseCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// RealIPHandler wraps next, recording the peer address on each
// connection and inserting it as X-Real-IP, unless the peer is trusted
// and the request already carries one (spec §4.3).
func RealIPHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		peer := net.ParseIP(host)

		if isTrustedPeer(peer) && r.Header.Get("X-Real-IP") != "" {
			next.ServeHTTP(w, r)
			return
		}
		r.Header.Set("X-Real-IP", host)
		next.ServeHTTP(w, r)
	})
}

func isTrustedPeer(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range trustedPeers {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
