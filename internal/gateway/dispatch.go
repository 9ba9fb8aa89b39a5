package gateway

import "strings"

// HostKind classifies the dispatch destination for an incoming
// request's Host header (spec §4.3, dispatch rules in first-match
// order).
type HostKind int

const (
	HostShell HostKind = iota
	HostAPIGeneric
	HostAPIGrain
	HostSelfTest
	HostUIGrain
	HostStaticPublishing
	HostForeign
)

// HostMatch is the result of classifying a Host header.
type HostMatch struct {
	Kind    HostKind
	GrainID string // for HostAPIGrain, HostUIGrain
	HostID  string // for HostStaticPublishing: the 20-char static-publish id
}

// staticPublishIDLen is the fixed length of a static-publishing host
// id (spec §4.3 rule 7: "20-character Host id").
const staticPublishIDLen = 20

// ClassifyHost applies the dispatch rules in first-match order (spec
// §4.3). shellSubdomains lists the configured ddp/static/payments-style
// subdomains that forward straight to the shell (rule 2).
func ClassifyHost(host string, matcher WildcardMatcher, shellSubdomains []string) HostMatch {
	if host == matcher.Base() {
		return HostMatch{Kind: HostShell}
	}

	label, isWildcard := matcher.MatchSubdomain(host)
	if isWildcard {
		for _, s := range shellSubdomains {
			if label == s {
				return HostMatch{Kind: HostShell}
			}
		}
		if label == "api" {
			return HostMatch{Kind: HostAPIGeneric}
		}
		if strings.HasPrefix(label, "api-") {
			return HostMatch{Kind: HostAPIGrain, GrainID: strings.TrimPrefix(label, "api-")}
		}
		if strings.HasPrefix(label, "selftest-") {
			return HostMatch{Kind: HostSelfTest}
		}
		if strings.HasPrefix(label, "ui-") {
			return HostMatch{Kind: HostUIGrain, GrainID: strings.TrimPrefix(label, "ui-")}
		}
	}

	if len(host) == staticPublishIDLen && isLowerAlnum(host) {
		return HostMatch{Kind: HostStaticPublishing, HostID: host}
	}

	return HostMatch{Kind: HostForeign}
}

func isLowerAlnum(s string) bool {
	for _, c := range s {
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
