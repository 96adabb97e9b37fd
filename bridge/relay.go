package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"llamabridge/model"
)

// ErrStalled is reported when the daemon sends nothing for longer than the
// configured stall timeout.
var ErrStalled = errors.New("daemon stalled")

// Relay drives a fragment stream to its end, pushing every fragment into a
// sink as soon as it is pulled.
type Relay struct {
	// StallTimeout bounds each pull; zero waits forever.
	StallTimeout time.Duration
}

// Run pulls fragments until the stream is exhausted and returns nil, or
// until a pull fails (*StreamError) or the sink rejects a notification
// (*DeliveryError). Nothing is pulled after a failure and nothing is
// buffered: each fragment is delivered before the next one is requested.
// The stream is closed on return. sent counts successful deliveries.
func (r Relay) Run(ctx context.Context, stream model.FragmentStream, sink model.Sink) (sent int, err error) {
	defer stream.Close()

	for {
		frag, err := r.next(ctx, stream)
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, &StreamError{Err: err}
		}

		if err := sink.Send(model.Notification{Message: frag.Content}); err != nil {
			return sent, &DeliveryError{Err: err}
		}
		sent++
	}
}

func (r Relay) next(ctx context.Context, stream model.FragmentStream) (model.Fragment, error) {
	if r.StallTimeout <= 0 {
		return stream.Next(ctx)
	}

	pullCtx, cancel := context.WithTimeout(ctx, r.StallTimeout)
	defer cancel()

	frag, err := stream.Next(pullCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return frag, fmt.Errorf("%w: no fragment within %s", ErrStalled, r.StallTimeout)
	}
	return frag, err
}
