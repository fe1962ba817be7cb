package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// ErrBlocked is returned when a provider answers with a captcha or an
// anti-bot page. It is never retried: the run should stop and resume later
// from the checkpoint.
var ErrBlocked = eris.New("provider blocked the request")

// TransientError marks a failure that may succeed on a later try.
type TransientError struct {
	Err        error
	StatusCode int // 0 when the failure was not an HTTP status
}

// NewTransientError wraps err as retryable.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transport failures that surface only as text.
var transientMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err is worth retrying. ErrBlocked never is.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrBlocked) {
		return false
	}
	var te *TransientError
	var ne net.Error
	switch {
	case errors.As(err, &te):
		return true
	case errors.As(err, &ne) && ne.Timeout():
		return true
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNABORTED):
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether a response status is retryable:
// timeouts, throttling and gateway or server errors.
func IsTransientHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// HTTPStatusError reports a non-2xx response. The body is cut to 200 bytes.
func HTTPStatusError(service string, code int, body string) error {
	if len(body) > 200 {
		body = body[:200]
	}
	err := eris.Errorf("%s: unexpected status %d: %s", service, code, body)
	if IsTransientHTTPStatus(code) {
		return NewTransientError(err, code)
	}
	return err
}
