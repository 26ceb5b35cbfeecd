package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLoad marks a step unit that failed to parse or compile.
	ErrLoad = errors.New("load error")
	// ErrRuntime marks a step entry routine that failed while executing.
	ErrRuntime = errors.New("runtime error")
	// ErrConfigMissing marks an option lookup that found nothing. Never fatal.
	ErrConfigMissing = errors.New("config missing")
	// ErrAmbiguousConfig marks an option resolved through a non-exact key. Never fatal.
	ErrAmbiguousConfig = errors.New("ambiguous config")
	// ErrStopRequested marks cooperative cancellation. It is not a failure.
	ErrStopRequested = errors.New("stop requested")
	// ErrRunInProgress marks a second run attempted while the process is locked.
	ErrRunInProgress = errors.New("run in progress")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes step context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, step, operation, message string, err error) error {
	detail := buildDetail(step, operation, message)
	if marker == nil {
		marker = ErrRuntime
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails is the user-facing breakdown of a wrapped failure.
type ErrorDetails struct {
	Kind    string
	Message string
}

// Details classifies err by its marker and returns the message without the
// marker prefix.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	kind := Kind(err)
	message := strings.TrimSpace(err.Error())
	for _, marker := range markers {
		prefix := marker.Error() + ": "
		if errors.Is(err, marker) && strings.HasPrefix(message, prefix) {
			message = strings.TrimPrefix(message, prefix)
			break
		}
	}
	return ErrorDetails{Kind: kind, Message: message}
}

var markers = []error{
	ErrLoad,
	ErrRuntime,
	ErrConfigMissing,
	ErrAmbiguousConfig,
	ErrStopRequested,
	ErrRunInProgress,
	ErrValidation,
	ErrConfiguration,
	ErrNotFound,
}

// Kind returns a short classification label for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLoad):
		return "load"
	case errors.Is(err, ErrRuntime):
		return "runtime"
	case errors.Is(err, ErrConfigMissing):
		return "config_missing"
	case errors.Is(err, ErrAmbiguousConfig):
		return "ambiguous_config"
	case errors.Is(err, ErrStopRequested):
		return "stop_requested"
	case errors.Is(err, ErrRunInProgress):
		return "run_in_progress"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "runtime"
	}
}

// IsFailure reports whether err should mark a step as failed. Stop requests and
// configuration warnings are not failures.
func IsFailure(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrStopRequested),
		errors.Is(err, ErrConfigMissing),
		errors.Is(err, ErrAmbiguousConfig):
		return false
	}
	return true
}

func buildDetail(step, operation, message string) string {
	parts := make([]string, 0, 3)
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "step failure"
	}
	return strings.Join(parts, ": ")
}
