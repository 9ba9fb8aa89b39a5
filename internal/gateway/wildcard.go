// Package gateway implements the front-door HTTP/HTTPS/SMTP server:
// host-based request demultiplexing, TLS termination, and the SMTP
// STARTTLS proxy (spec §4.3).
//
// Grounded on original_source/src/sandstorm/gateway.c++/.h; the
// mux-based server wiring follows cmd/socket-gateway/main.go and
// internal/api/server.go in the teacher repo.
package gateway

import "strings"

// WildcardMatcher recognises hostnames against a configured
// wildcard-host pattern such as "*.example.com" (spec §4.3).
type WildcardMatcher struct {
	suffix string // ".example.com"
	base   string // "example.com"
}

// NewWildcardMatcher builds a matcher from a pattern like
// "*.example.com".
func NewWildcardMatcher(pattern string) WildcardMatcher {
	base := strings.TrimPrefix(pattern, "*.")
	return WildcardMatcher{suffix: "." + base, base: base}
}

// Base returns the pattern's base domain (spec §4.3 rule 1: "Host
// equals base URL").
func (m WildcardMatcher) Base() string { return m.base }

// MatchSubdomain reports whether host is exactly "<label>.<base>" and
// returns label.
func (m WildcardMatcher) MatchSubdomain(host string) (label string, ok bool) {
	if !strings.HasSuffix(host, m.suffix) {
		return "", false
	}
	label = strings.TrimSuffix(host, m.suffix)
	if label == "" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}

// IsWildcardHost reports whether host falls under the wildcard
// pattern at all (base or any direct subdomain).
func (m WildcardMatcher) IsWildcardHost(host string) bool {
	if host == m.base {
		return true
	}
	_, ok := m.MatchSubdomain(host)
	return ok
}
