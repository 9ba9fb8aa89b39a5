package websession

import (
	"fmt"
	"io"
	"net/http"

	"sandstormgo/internal/httpbridge"
)

// Translate writes a httpbridge.WebSessionResponse to w, applying the
// precondition re-encoding and ETag quoting rules (spec §4.4 item 5):
//   - content: status from the table, Content-Type, quoted ETag,
//     streamed body; no other app headers are copied.
//   - noContent: 204 or 205 per ResetForm.
//   - preconditionFailed: 304 if the request carried If-None-Match,
//     else 412.
//   - redirect: status picked from (IsPermanent, SwitchToGet).
//   - clientError/serverError: looked-up status, app or caller body.
func Translate(w http.ResponseWriter, resp *httpbridge.WebSessionResponse, reqPrecondition Precondition) error {
	switch resp.Status.Kind {
	case httpbridge.KindContent:
		if resp.ETag != "" {
			w.Header().Set("ETag", quoteETag(resp.ETag))
		}
		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		w.WriteHeader(resp.Status.Code)
		if resp.Body != nil {
			defer resp.Body.Close()
			_, err := io.Copy(w, resp.Body)
			return err
		}
		return nil

	case httpbridge.KindNoContent:
		if resp.Status.ResetForm {
			w.WriteHeader(http.StatusResetContent)
		} else {
			w.WriteHeader(http.StatusNoContent)
		}
		return nil

	case httpbridge.KindPreconditionFailed:
		if reqPrecondition.WasNoneMatch {
			if resp.ETag != "" {
				w.Header().Set("ETag", quoteETag(resp.ETag))
			}
			w.WriteHeader(http.StatusNotModified)
		} else {
			w.WriteHeader(http.StatusPreconditionFailed)
		}
		return nil

	case httpbridge.KindRedirect:
		code := http.StatusTemporaryRedirect
		switch {
		case resp.Status.IsPermanent && resp.Status.SwitchToGet:
			code = http.StatusMovedPermanently
		case resp.Status.IsPermanent:
			code = http.StatusPermanentRedirect
		case resp.Status.SwitchToGet:
			code = http.StatusSeeOther
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(code)
		fmt.Fprintf(w, "Redirecting to the requested resource.\n")
		return nil

	case httpbridge.KindClientError, httpbridge.KindServerError:
		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		w.WriteHeader(resp.Status.Code)
		if resp.Body != nil {
			defer resp.Body.Close()
			_, err := io.Copy(w, resp.Body)
			return err
		}
		return nil

	default:
		w.WriteHeader(http.StatusInternalServerError)
		return nil
	}
}

// quoteETag re-quotes an ETag on the way out to the client (spec §3
// invariant: inverse of httpbridge.unquoteETag).
func quoteETag(etag string) string {
	return `"` + etag + `"`
}
