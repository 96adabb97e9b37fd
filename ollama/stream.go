package ollama

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/ollama/ollama/api"

	"llamabridge/model"
)

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = errors.New("chat stream closed")

// chatStream turns api.Client.Chat, which pushes chunks into a callback,
// into a pull-style model.FragmentStream.
//
// A producer goroutine runs the HTTP call and hands each chunk over an
// unbuffered channel, so the daemon reader is never more than one fragment
// ahead of the consumer. err is written before frames is closed and only
// read after observing the close.
type chatStream struct {
	frames chan model.Fragment
	err    error
	cancel context.CancelFunc

	// consumer side, owned by the single caller of Next
	pending *model.Fragment
	final   error

	closeOnce sync.Once
}

func startChatStream(ctx context.Context, client *api.Client, req *api.ChatRequest) *chatStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &chatStream{
		frames: make(chan model.Fragment),
		cancel: cancel,
	}

	go func() {
		defer close(s.frames)
		s.err = client.Chat(ctx, req, func(resp api.ChatResponse) error {
			frag := model.Fragment{Content: resp.Message.Content, Done: resp.Done}
			select {
			case s.frames <- frag:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	return s
}

// awaitFirst blocks until the daemon produced its first chunk or the call
// ended. A call that ends without any chunk and without error leaves an
// empty stream that reports EOF.
func (s *chatStream) awaitFirst() error {
	frag, ok := <-s.frames
	if ok {
		s.pending = &frag
		return nil
	}
	s.cancel()
	if s.err != nil {
		return s.err
	}
	s.final = io.EOF
	return nil
}

func (s *chatStream) Next(ctx context.Context) (model.Fragment, error) {
	if s.pending != nil {
		frag := *s.pending
		s.pending = nil
		return frag, nil
	}
	if s.final != nil {
		return model.Fragment{}, s.final
	}

	select {
	case frag, ok := <-s.frames:
		if ok {
			return frag, nil
		}
		if s.err != nil {
			s.final = &model.ConnectionError{Op: "chat stream", Err: s.err}
		} else {
			s.final = io.EOF
		}
		return model.Fragment{}, s.final
	case <-ctx.Done():
		// The producer still holds its chunk; the stream stays usable.
		return model.Fragment{}, ctx.Err()
	}
}

// Close aborts the HTTP response if the daemon is still producing and waits
// for the producer goroutine to exit.
func (s *chatStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		for range s.frames {
		}
		s.pending = nil
		if s.final == nil {
			s.final = ErrStreamClosed
		}
	})
	return nil
}
