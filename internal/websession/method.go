package websession

import "strings"

// RPCCall is which WebSession method an HTTP method routes to (spec
// §4.4 item 2).
type RPCCall int

const (
	CallGet RPCCall = iota
	CallPost
	CallPostStreaming
	CallPut
	CallPutStreaming
	CallDelete
	CallPatch
	CallCopy
	CallMove
	CallMkcol
	CallLock
	CallUnlock
	CallPropfind
	CallProppatch
	CallACL
	CallReport
	CallOptions
	CallUnsupported
)

// streamingThreshold is the content-length at or above which POST/PUT use
// the streaming call variant (spec §4.4 item 2: "chosen by
// content-length ≥ 64 KiB").
const streamingThreshold = 64 * 1024

// RouteMethod picks the RPC call for method/contentLength. For POST
// and PUT, callers must retry with the buffered variant if the app
// returns "unimplemented" for the streaming one (spec §4.4 item 2).
func RouteMethod(method string, contentLength int64) RPCCall {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return CallGet
	case "POST":
		if contentLength >= streamingThreshold {
			return CallPostStreaming
		}
		return CallPost
	case "PUT":
		if contentLength >= streamingThreshold {
			return CallPutStreaming
		}
		return CallPut
	case "DELETE":
		return CallDelete
	case "PATCH":
		return CallPatch
	case "COPY":
		return CallCopy
	case "MOVE":
		return CallMove
	case "MKCOL":
		return CallMkcol
	case "LOCK":
		return CallLock
	case "UNLOCK":
		return CallUnlock
	case "PROPFIND":
		return CallPropfind
	case "PROPPATCH":
		return CallProppatch
	case "ACL":
		return CallACL
	case "REPORT":
		return CallReport
	case "OPTIONS":
		return CallOptions
	default:
		return CallUnsupported
	}
}

// RequiresXMLBody reports whether method's body must be parsed as XML
// (spec §4.4 item 3: "For PROPFIND, PROPPATCH, LOCK, ACL, read the XML
// body").
func RequiresXMLBody(call RPCCall) bool {
	switch call {
	case CallPropfind, CallProppatch, CallLock, CallACL:
		return true
	default:
		return false
	}
}

// IsXMLMimeType reports whether a Content-Type is an XML type (spec
// §4.4 item 3: "verify the MIME type is */xml or */xml;…").
func IsXMLMimeType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.HasSuffix(ct, "/xml")
}
