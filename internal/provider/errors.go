package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
)

// HTTPError is a non-2xx response from a provider.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

// IsRetryable reports whether err is worth retrying against the same
// provider: rate limiting, server errors and dropped connections.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return retryableStatus(httpErr.StatusCode)
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	var statusErrPtr *api.StatusError
	if errors.As(err, &statusErrPtr) {
		return retryableStatus(statusErrPtr.StatusCode)
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "EOF")
}

func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
