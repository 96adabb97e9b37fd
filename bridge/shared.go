package bridge

import (
	"context"
	"errors"
	"fmt"

	"llamabridge/model"
)

// ErrAcquire wraps the context error returned when a caller gives up
// waiting for the shared client.
var ErrAcquire = errors.New("gave up waiting for the daemon connection")

// Shared serializes access to the single daemon client. The client is only
// reachable inside WithClient, so at most one operation talks to the daemon
// at any instant.
//
// The lock is a one-slot channel rather than a sync.Mutex so that waiting
// for it can be abandoned when the caller's context ends.
type Shared struct {
	slot   chan struct{}
	client model.Daemon
}

func NewShared(client model.Daemon) *Shared {
	return &Shared{
		slot:   make(chan struct{}, 1),
		client: client,
	}
}

// WithClient waits for exclusive access, runs op with the client and
// releases access when op returns, fails or panics. If ctx ends first, op
// is not run and the error wraps both ErrAcquire and ctx.Err().
func (s *Shared) WithClient(ctx context.Context, op func(model.Daemon) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrAcquire, err)
	}
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrAcquire, ctx.Err())
	}
	defer func() { <-s.slot }()

	return op(s.client)
}
