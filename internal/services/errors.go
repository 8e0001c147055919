package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed job descriptors and unusable stage inputs.
	ErrValidation = errors.New("validation error")
	// ErrTimeout marks an external call that exhausted its per-call deadline.
	ErrTimeout = errors.New("timeout")
	// ErrExternal marks an unexpected response or fault from an external
	// service, including unparseable generation payloads.
	ErrExternal = errors.New("external service error")
	// ErrResource marks disk or subprocess failures during rendering and
	// compilation.
	ErrResource = errors.New("resource error")
	// ErrRateLimit marks a request refused by the daily token budget under the
	// hard-stop policy. Under the default warn policy it is never returned.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrConfiguration marks missing or invalid configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups for jobs or artifacts that do not exist.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the sentinel classification of err for structured logs and
// status output. Errors outside the sentinel taxonomy report as "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrResource):
		return "resource"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExternal):
		return "external"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
