package model

import (
	"errors"
	"fmt"
)

// ErrModelRequired is returned when a chat request names no model.
var ErrModelRequired = errors.New("model is required")

// ConnectionError reports a failure talking to the daemon: unreachable,
// an error status, a malformed response, or a fault mid-stream.
type ConnectionError struct {
	Op  string // "list models", "chat", "chat stream", "ping"
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Cause returns the underlying error of a ConnectionError, or err itself.
func Cause(err error) error {
	var connErr *ConnectionError
	if errors.As(err, &connErr) && connErr.Err != nil {
		return connErr.Err
	}
	return err
}
