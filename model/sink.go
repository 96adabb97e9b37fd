package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrSinkClosed is returned by a sink whose receiver has gone away.
var ErrSinkClosed = errors.New("notification sink closed")

// Sink receives the notifications of a chat call, one per fragment, in
// production order. A non-nil error from Send aborts the chat.
type Sink interface {
	Send(Notification) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(Notification) error

func (f SinkFunc) Send(n Notification) error {
	return f(n)
}

// ChannelSink forwards notifications into a channel read by another
// goroutine. Send blocks until the reader takes the value or ctx is done,
// in which case the sink is considered unavailable.
type ChannelSink struct {
	ctx context.Context
	ch  chan<- Notification
}

func NewChannelSink(ctx context.Context, ch chan<- Notification) *ChannelSink {
	return &ChannelSink{ctx: ctx, ch: ch}
}

func (s *ChannelSink) Send(n Notification) error {
	// Check first so a dead reader never wins the race against a ready send.
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkClosed, err)
	}
	select {
	case s.ch <- n:
		return nil
	case <-s.ctx.Done():
		return fmt.Errorf("%w: %v", ErrSinkClosed, s.ctx.Err())
	}
}
