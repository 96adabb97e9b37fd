// Package bridge relays chat streams from the inference daemon to callers.
//
// A Facade is the public surface: GetModels and Chat. Both go through one
// Shared handle, so daemon operations run strictly one at a time in the
// order they acquire it. Chat holds the handle for the whole stream; a
// second call waits until the first stream has drained or failed.
//
//	shared := bridge.NewShared(client)
//	facade := bridge.NewFacade(shared)
//	err := facade.Chat(ctx, req, model.SinkFunc(func(n model.Notification) error {
//	    fmt.Print(n.Message)
//	    return nil
//	}))
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"llamabridge/config"
	"llamabridge/model"
)

type Facade struct {
	shared *Shared
	relay  Relay
}

type Option func(*Facade)

// WithStallTimeout gives up on a chat when the daemon sends nothing, neither
// the first response nor a later fragment, for d. Zero disables the bound.
func WithStallTimeout(d time.Duration) Option {
	return func(f *Facade) {
		f.relay.StallTimeout = d
	}
}

func NewFacade(shared *Shared, opts ...Option) *Facade {
	f := &Facade{shared: shared}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type requestIDKey struct{}

// WithRequestID tags ctx with the id Chat logs under.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// GetModels returns the names of the daemon's local models.
func (f *Facade) GetModels(ctx context.Context) ([]string, error) {
	var names []string
	err := f.shared.WithClient(ctx, func(d model.Daemon) error {
		var err error
		names, err = d.ListModels(ctx)
		return err
	})
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Warn("list models failed", "error", err)
		}
		return nil, newOperationError(ConnectionFailed, "failed to list models", err)
	}
	return names, nil
}

// Chat sends req to the daemon and pushes one notification per fragment into
// sink, in production order. It returns nil only once the daemon signalled
// completion and every fragment was delivered. Fragments already delivered
// before a failure stay delivered.
func (f *Facade) Chat(ctx context.Context, req model.ChatRequest, sink model.Sink) error {
	id := RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}

	var sent int
	start := time.Now()
	err := f.shared.WithClient(ctx, func(d model.Daemon) error {
		if config.DebugLog != nil {
			config.DebugLog.Debug("chat started", "request_id", id, "model", req.Model,
				"turns", len(req.Turns), "waited", time.Since(start))
		}

		stream, err := f.open(ctx, d, req)
		if err != nil {
			return newOperationError(ConnectionFailed, "failed to start chat", err)
		}

		sent, err = f.relay.Run(ctx, stream, sink)
		return err
	})

	opErr := toOperationError(err)
	if config.DebugLog != nil {
		if opErr != nil {
			config.DebugLog.Warn("chat failed", "request_id", id, "model", req.Model,
				"kind", opErr.Kind.String(), "fragments", sent, "elapsed", time.Since(start), "error", opErr.Reason)
		} else {
			config.DebugLog.Debug("chat finished", "request_id", id, "model", req.Model,
				"fragments", sent, "elapsed", time.Since(start))
		}
	}
	if opErr != nil {
		return opErr
	}
	return nil
}

// Ping checks that the daemon answers. It queues behind any running chat.
func (f *Facade) Ping(ctx context.Context) error {
	err := f.shared.WithClient(ctx, func(d model.Daemon) error {
		return d.Ping(ctx)
	})
	if err != nil {
		return newOperationError(ConnectionFailed, "daemon unreachable", err)
	}
	return nil
}

func toOperationError(err error) *OperationError {
	if err == nil {
		return nil
	}

	var opErr *OperationError
	var streamErr *StreamError
	var deliveryErr *DeliveryError
	switch {
	case errors.As(err, &opErr):
		return opErr
	case errors.As(err, &streamErr):
		return newOperationError(StreamFailed, "stream error", streamErr.Err)
	case errors.As(err, &deliveryErr):
		return newOperationError(DeliveryFailed, "delivery failed", deliveryErr.Err)
	default:
		// only ErrAcquire reaches here
		return newOperationError(ConnectionFailed, "failed to start chat", err)
	}
}

// open opens the chat stream, bounding the wait for the daemon's first
// response by the stall timeout when one is set.
func (f *Facade) open(ctx context.Context, d model.Daemon, req model.ChatRequest) (model.FragmentStream, error) {
	timeout := f.relay.StallTimeout
	if timeout <= 0 {
		return d.OpenChatStream(ctx, req)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(timeout, cancel)

	stream, err := d.OpenChatStream(streamCtx, req)
	if !timer.Stop() {
		if err == nil {
			stream.Close()
		}
		cancel()
		return nil, fmt.Errorf("%w: no response within %s", ErrStalled, timeout)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelOnClose{FragmentStream: stream, cancel: cancel}, nil
}

// cancelOnClose ties the lifetime of the stream's context to the stream.
type cancelOnClose struct {
	model.FragmentStream
	cancel context.CancelFunc
}

func (s *cancelOnClose) Close() error {
	err := s.FragmentStream.Close()
	s.cancel()
	return err
}
