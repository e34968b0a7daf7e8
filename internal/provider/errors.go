package provider

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuth        = errors.New("authentication error")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("provider unavailable")
	ErrTimeout     = errors.New("timeout")
)

// Wrap builds an error message that includes provider and operation context
// while tagging it with the provided marker for later classification. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, name, operation, message string, err error) error {
	detail := buildDetail(name, operation, message)
	if marker == nil {
		marker = ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether err is worth retrying. Authentication failures
// and missing data never resolve on their own.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrAuth), errors.Is(err, ErrNotFound):
		return false
	default:
		return true
	}
}

func buildDetail(name, operation, message string) string {
	parts := make([]string, 0, 3)
	if name = strings.TrimSpace(name); name != "" {
		parts = append(parts, name)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "provider failure"
	}
	return strings.Join(parts, ": ")
}

// MarkerForHTTPStatus maps a response status code to a sentinel marker.
func MarkerForHTTPStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 404:
		return ErrNotFound
	case status == 408 || status == 429:
		return ErrTimeout
	default:
		return ErrUnavailable
	}
}
