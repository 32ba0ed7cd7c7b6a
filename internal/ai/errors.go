package ai

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrReasoningUnavailable covers transport and API failures reaching the service.
	ErrReasoningUnavailable = errors.New("reasoning service unavailable")
	// ErrReasoningTimeout is returned when the call exceeded its deadline.
	ErrReasoningTimeout = errors.New("reasoning service timed out")
	// ErrReasoningMalformedResponse is returned when the response fails validation.
	ErrReasoningMalformedResponse = errors.New("reasoning service returned a malformed response")
	// ErrConfiguration marks missing credentials or endpoints at startup.
	ErrConfiguration = errors.New("reasoning configuration error")
)

// MalformedResponseError keeps the rejected payload for diagnostics.
// It matches ErrReasoningMalformedResponse with errors.Is.
type MalformedResponseError struct {
	Reason string
	Raw    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrReasoningMalformedResponse, e.Reason)
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrReasoningMalformedResponse
}

func malformed(raw, format string, args ...any) error {
	return &MalformedResponseError{Reason: fmt.Sprintf(format, args...), Raw: raw}
}

// Malformed reports a response that could not be used at all.
func Malformed(raw, reason string) error {
	return &MalformedResponseError{Reason: reason, Raw: raw}
}

// Unavailable wraps a transport failure.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrReasoningUnavailable, err)
}

// Classify maps a failed call to the reasoning taxonomy. callCtx is the context
// the call ran with; its deadline decides between timeout and unavailable.
func Classify(callCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrReasoningTimeout) ||
		errors.Is(err, ErrReasoningUnavailable) ||
		errors.Is(err, ErrReasoningMalformedResponse) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrReasoningTimeout, err)
	}
	return Unavailable(err)
}

// Kind returns a short label for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrReasoningTimeout):
		return "timeout"
	case errors.Is(err, ErrReasoningMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrReasoningUnavailable):
		return "unavailable"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "unknown"
	}
}
