package websession

import "fmt"

// SecurityHeaders holds the header set injected on every response,
// shaped differently for API vs UI hosts (spec §4.4 item 6).
type SecurityHeaders map[string][]string

// APIHostHeaders returns the fixed security headers for an API-host
// response. appWhitelistedHeaders are additional headers the app
// declared exposable via CORS.
func APIHostHeaders(appWhitelistedHeaders []string) SecurityHeaders {
	expose := "ETag"
	for _, h := range appWhitelistedHeaders {
		expose += ", " + h
	}
	return SecurityHeaders{
		"Vary":                          {"Authorization"},
		"Access-Control-Allow-Origin":   {"*"},
		"Access-Control-Expose-Headers": {expose},
		"Content-Security-Policy":       {"default-src 'none'; sandbox"},
	}
}

// UIHostHeaders returns the CSP/X-Frame-Options header set for a
// UI-host response (spec §4.4 item 6).
//
// parentOrigin is empty when the session is not frame-restricted.
// legacyRelaxed disables the strict default CSP for apps that
// predate it.
func UIHostHeaders(host, parentOrigin string, legacyRelaxed bool) SecurityHeaders {
	headers := SecurityHeaders{}
	if parentOrigin != "" {
		headers["Content-Security-Policy"] = []string{
			fmt.Sprintf("frame-ancestors %s 'self'", parentOrigin),
		}
		headers["X-Frame-Options"] = []string{fmt.Sprintf("ALLOW-FROM %s", parentOrigin)}
	}
	if !legacyRelaxed {
		csp := strictUICSP(host)
		headers["Content-Security-Policy"] = append(headers["Content-Security-Policy"], csp)
	}
	return headers
}

// strictUICSP builds the strict default CSP for UI hosts (spec §4.4
// item 6).
func strictUICSP(host string) string {
	const relaxed = "'unsafe-inline' 'unsafe-eval' data: blob:"
	return fmt.Sprintf(
		"default-src 'none'; img-src * %s; media-src * %s; "+
			"script-src 'self' %s; style-src 'self' %s; child-src 'self' %s; "+
			"font-src 'self' %s; frame-src 'self' %s; worker-src 'none'; "+
			"connect-src 'self' ws://%s wss://%s",
		relaxed, relaxed, relaxed, relaxed, relaxed, relaxed, host, host, host,
	)
}
