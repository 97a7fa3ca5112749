package hub

import (
	"fmt"
	"net/http"

	"github.com/marmos91/tensorscope/pkg/remote"
)

// APIError is a non-success response from the hub. It wraps
// remote.ErrRemote, or remote.ErrNotFound for 404 responses.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	// Code and Message come from the X-Error-Code and X-Error-Message
	// response headers, or from an {"error": ...} JSON body.
	Code    string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, msg)
}

// Unwrap maps the status onto the remote error taxonomy.
func (e *APIError) Unwrap() error {
	if e.IsNotFound() {
		return remote.ErrNotFound
	}
	return remote.ErrRemote
}

// IsAuthError reports whether the hub rejected the credentials. Gated and
// private repositories answer 401 without a token.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound reports whether the file or revision does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsRateLimited reports whether the request was throttled.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}
