package websession

import (
	"fmt"
	"strings"
	"time"

	"sandstormgo/internal/ocerrors"
)

// SetCookie is one outgoing cookie the app asked the bridge to set.
type SetCookie struct {
	Name     string
	Value    string
	Path     string
	HTTPOnly bool
	Secure   bool
	Expires  *time.Time
	MaxAge   *int
}

// AssembleSetCookieHeaders validates and renders a list of app-issued
// cookies as independent Set-Cookie lines, never comma-folded (spec
// §4.4 item 7). Names/values/paths containing ';', ',', or '=' in the
// name are rejected.
func AssembleSetCookieHeaders(cookies []SetCookie) ([]string, error) {
	var out []string
	for _, c := range cookies {
		if strings.ContainsAny(c.Name, ";,=") {
			return nil, ocerrors.InvalidInput(fmt.Sprintf("websession: invalid cookie name %q", c.Name))
		}
		if strings.ContainsAny(c.Value, ";,") {
			return nil, ocerrors.InvalidInput(fmt.Sprintf("websession: invalid cookie value for %q", c.Name))
		}
		if strings.ContainsAny(c.Path, ";,") {
			return nil, ocerrors.InvalidInput(fmt.Sprintf("websession: invalid cookie path for %q", c.Name))
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s=%s", c.Name, c.Value)
		if c.Expires != nil {
			fmt.Fprintf(&b, "; Expires=%s", c.Expires.UTC().Format(time.RFC1123))
		}
		if c.MaxAge != nil {
			fmt.Fprintf(&b, "; Max-Age=%d", *c.MaxAge)
		}
		if c.Path != "" {
			fmt.Fprintf(&b, "; Path=%s", c.Path)
		}
		if c.HTTPOnly {
			b.WriteString("; HttpOnly")
		}
		if c.Secure {
			b.WriteString("; Secure")
		}
		out = append(out, b.String())
	}
	return out, nil
}
