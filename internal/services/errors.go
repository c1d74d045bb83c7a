package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	// Capture taxonomy.
	ErrAcquisitionFailed = errors.New("capture acquisition failed")
	ErrCapturePlatform   = errors.New("capture platform error")
	ErrNoActiveSession   = errors.New("no active session")
	ErrStreamContention  = errors.New("stream already active")

	// Transcode taxonomy.
	ErrDecodeFailed             = errors.New("decode failed")
	ErrUnsupportedContainer     = errors.New("unsupported container")
	ErrUnsupportedBitDepth      = errors.New("unsupported bit depth")
	ErrUnsupportedChannelLayout = errors.New("unsupported channel layout")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an acquisition error is worth another attempt.
// Only stream contention qualifies; every other platform failure is terminal.
func Retryable(err error) bool {
	return errors.Is(err, ErrStreamContention)
}

// UserHint maps an error to the short guidance the UI shows alongside it,
// distinguishing "try again" conditions from ones that will not clear on
// their own.
func UserHint(err error) string {
	switch {
	case errors.Is(err, ErrAcquisitionFailed), errors.Is(err, ErrStreamContention), errors.Is(err, ErrTransient):
		return "source is busy; try again in a moment"
	case errors.Is(err, ErrCapturePlatform):
		return "capture is not available for this source"
	case errors.Is(err, ErrNoActiveSession):
		return "nothing is being captured"
	case errors.Is(err, ErrDecodeFailed):
		return "input audio could not be decoded"
	case errors.Is(err, ErrUnsupportedContainer), errors.Is(err, ErrUnsupportedBitDepth), errors.Is(err, ErrUnsupportedChannelLayout):
		return "requested conversion is not supported"
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrValidation):
		return "check the configuration and retry"
	default:
		return ""
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
