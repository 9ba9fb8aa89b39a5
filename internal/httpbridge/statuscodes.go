// Package httpbridge implements the in-grain HTTP→WebSession
// translator (sandstorm-http-bridge): it opens a TCP connection to the
// app's HTTP port per request and drives the response through the
// fixed status-code table described in spec §4.4.
//
// Grounded on original_source/src/sandstorm/sandstorm-http-bridge.c++;
// the reverse-proxy forwarding shape follows internal/sop/proxy.go's
// httputil.ReverseProxy use in the teacher repo.
package httpbridge

// ResponseKind tags which WebSession.Response variant an HTTP status
// translates to.
type ResponseKind int

const (
	KindContent ResponseKind = iota
	KindNoContent
	KindPreconditionFailed
	KindRedirect
	KindClientError
	KindServerError
)

// StatusInfo is the per-status annotation the table below carries: the
// same (code, title) pair the original's SuccessCode/ClientErrorCode
// enumerants attach via an httpStatus annotation.
type StatusInfo struct {
	Code  int
	Title string
	Kind  ResponseKind

	// ResetForm distinguishes 204 (no reset) from 205 (reset form),
	// only meaningful when Kind == KindNoContent.
	ResetForm bool
	// IsPermanent and SwitchToGet parametrize KindRedirect.
	IsPermanent bool
	SwitchToGet bool
}

// statusTable maps every HTTP status this bridge understands to its
// WebSession translation (spec §4.4: "each enumerant... carries an
// httpStatus annotation giving (code, title)").
var statusTable = map[int]StatusInfo{
	200: {Code: 200, Title: "OK", Kind: KindContent},
	201: {Code: 201, Title: "Created", Kind: KindContent},
	202: {Code: 202, Title: "Accepted", Kind: KindContent},
	203: {Code: 203, Title: "Non-Authoritative Information", Kind: KindContent},
	204: {Code: 204, Title: "No Content", Kind: KindNoContent, ResetForm: false},
	205: {Code: 205, Title: "Reset Content", Kind: KindNoContent, ResetForm: true},
	206: {Code: 206, Title: "Partial Content", Kind: KindContent},
	207: {Code: 207, Title: "Multi-Status", Kind: KindContent},

	301: {Code: 301, Title: "Moved Permanently", Kind: KindRedirect, IsPermanent: true, SwitchToGet: true},
	302: {Code: 302, Title: "Found", Kind: KindRedirect, IsPermanent: false, SwitchToGet: true},
	303: {Code: 303, Title: "See Other", Kind: KindRedirect, IsPermanent: false, SwitchToGet: true},
	307: {Code: 307, Title: "Temporary Redirect", Kind: KindRedirect, IsPermanent: false, SwitchToGet: false},
	308: {Code: 308, Title: "Permanent Redirect", Kind: KindRedirect, IsPermanent: true, SwitchToGet: false},

	304: {Code: 304, Title: "Not Modified", Kind: KindPreconditionFailed},
	412: {Code: 412, Title: "Precondition Failed", Kind: KindPreconditionFailed},

	400: {Code: 400, Title: "Bad Request", Kind: KindClientError},
	401: {Code: 401, Title: "Unauthorized", Kind: KindClientError},
	403: {Code: 403, Title: "Forbidden", Kind: KindClientError},
	404: {Code: 404, Title: "Not Found", Kind: KindClientError},
	405: {Code: 405, Title: "Method Not Allowed", Kind: KindClientError},
	406: {Code: 406, Title: "Not Acceptable", Kind: KindClientError},
	409: {Code: 409, Title: "Conflict", Kind: KindClientError},
	410: {Code: 410, Title: "Gone", Kind: KindClientError},
	413: {Code: 413, Title: "Payload Too Large", Kind: KindClientError},
	414: {Code: 414, Title: "URI Too Long", Kind: KindClientError},
	415: {Code: 415, Title: "Unsupported Media Type", Kind: KindClientError},
	418: {Code: 418, Title: "I'm a Teapot", Kind: KindClientError},
	422: {Code: 422, Title: "Unprocessable Entity", Kind: KindClientError},
	423: {Code: 423, Title: "Locked", Kind: KindClientError},
	428: {Code: 428, Title: "Precondition Required", Kind: KindClientError},
	429: {Code: 429, Title: "Too Many Requests", Kind: KindClientError},

	500: {Code: 500, Title: "Internal Server Error", Kind: KindServerError},
	501: {Code: 501, Title: "Not Implemented", Kind: KindServerError},
	502: {Code: 502, Title: "Bad Gateway", Kind: KindServerError},
	503: {Code: 503, Title: "Service Unavailable", Kind: KindServerError},
	504: {Code: 504, Title: "Gateway Timeout", Kind: KindServerError},
}

// LookupStatus returns the WebSession translation for an HTTP status
// code, falling back to a generic 4xx/5xx classification (spec §4.4:
// "4xx/5xx fallbacks") when the exact code isn't in the table.
func LookupStatus(code int) StatusInfo {
	if info, ok := statusTable[code]; ok {
		return info
	}
	switch {
	case code >= 400 && code < 500:
		return StatusInfo{Code: code, Title: "Client Error", Kind: KindClientError}
	case code >= 500:
		return StatusInfo{Code: code, Title: "Server Error", Kind: KindServerError}
	default:
		return StatusInfo{Code: code, Title: "OK", Kind: KindContent}
	}
}
