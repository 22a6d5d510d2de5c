package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
)

// ProviderError describes a failed call to the backend.
type ProviderError struct {
	StatusCode   int
	Endpoint     string
	Message      string
	Unauthorized bool
	Cause        error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "backend error")

	if e.Endpoint != "" {
		parts = append(parts, e.Endpoint)
	}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is makes authorization failures match domain.ErrSessionExpired.
func (e *ProviderError) Is(target error) bool {
	return e != nil && e.Unauthorized && target == domain.ErrSessionExpired
}

// IsUnauthorized reports whether err came from a 401 or 403 response.
func IsUnauthorized(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Unauthorized
	}
	return false
}

func isUnauthorizedStatus(statusCode int) bool {
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}

func statusError(endpoint string, statusCode int, body string) *ProviderError {
	message := fmt.Sprintf("backend returned status %d", statusCode)
	if body = strings.TrimSpace(body); body != "" {
		message = fmt.Sprintf("%s: %s", message, truncate(body, 512))
	}

	return &ProviderError{
		StatusCode:   statusCode,
		Endpoint:     endpoint,
		Message:      message,
		Unauthorized: isUnauthorizedStatus(statusCode),
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
