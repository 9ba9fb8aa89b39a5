package websession

import (
	"fmt"
	"net/url"

	"sandstormgo/internal/ocerrors"
)

// ResolveDestination resolves a COPY/MOVE Destination header against
// the request host, rejecting any destination that names a different
// host (spec §4.4 item 4).
func ResolveDestination(destination, requestHost string) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", ocerrors.InvalidInput("websession: invalid Destination header")
	}
	if u.Host != "" && u.Host != requestHost {
		return "", ocerrors.InvalidInput(fmt.Sprintf("websession: Destination host %q does not match request host %q", u.Host, requestHost))
	}
	return u.Path, nil
}
