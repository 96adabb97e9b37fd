package bridge

import (
	"errors"

	"llamabridge/model"
)

// ErrorKind says which boundary a failed operation broke at.
type ErrorKind int

const (
	// ConnectionFailed: the daemon could not be reached, refused the
	// request, or (for chat) never produced a first response.
	ConnectionFailed ErrorKind = iota + 1
	// StreamFailed: the daemon failed after the chat stream was open.
	StreamFailed
	// DeliveryFailed: the caller's sink rejected a notification.
	DeliveryFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectionFailed:
		return "connection_failed"
	case StreamFailed:
		return "stream_failed"
	case DeliveryFailed:
		return "delivery_failed"
	default:
		return "unknown"
	}
}

// OperationError is the only error type GetModels, Chat and Ping return.
// Error() is a human-readable reason; Kind lets callers branch without
// matching on it.
type OperationError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *OperationError) Error() string {
	return e.Reason
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func newOperationError(kind ErrorKind, prefix string, err error) *OperationError {
	return &OperationError{
		Kind:   kind,
		Reason: prefix + ": " + model.Cause(err).Error(),
		Err:    err,
	}
}

// KindOf reports the ErrorKind of err if it is (or wraps) an OperationError.
func KindOf(err error) (ErrorKind, bool) {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Kind, true
	}
	return 0, false
}

// StreamError is a failure pulling from the daemon's fragment stream.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return "stream error: " + e.Err.Error() }
func (e *StreamError) Unwrap() error { return e.Err }

// DeliveryError is a failure pushing a notification into the sink.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return "delivery failed: " + e.Err.Error() }
func (e *DeliveryError) Unwrap() error { return e.Err }
