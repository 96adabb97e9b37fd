package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"llamabridge/model"
)

// ErrDaemonFault is the default mid-stream failure of a StubDaemon.
var ErrDaemonFault = errors.New("stub daemon fault")

// StubDaemon implements model.Daemon with scripted responses. Every stream it
// opens yields Fragments in order, the last one marked Done, then io.EOF,
// unless FailAfter is set.
//
// It also records every daemon-facing operation and notices when two of them
// overlap, which is how tests check the shared-handle invariant.
type StubDaemon struct {
	Models  []string
	ListErr error
	PingErr error

	// OpenErr fails OpenChatStream itself.
	OpenErr error

	Fragments []string

	// FailAfter >= 0 makes each stream fail with StreamErr (ErrDaemonFault
	// when nil) after that many fragments. Negative disables it.
	FailAfter int
	StreamErr error

	// Gate, when non-nil, is received from before every pull so a
	// test can hold a stream open.
	Gate chan struct{}

	// OnOpen runs inside OpenChatStream, before the stream is returned.
	OnOpen func(req model.ChatRequest)

	mu       sync.Mutex
	events   []string
	active   int
	overlap  bool
	pulls    int
	requests []model.ChatRequest
}

var _ model.Daemon = (*StubDaemon)(nil)

// NewStubDaemon creates a daemon whose streams yield fragments and succeed.
func NewStubDaemon(fragments ...string) *StubDaemon {
	return &StubDaemon{
		Models:    []string{"mock-model-1", "mock-model-2"},
		Fragments: fragments,
		FailAfter: -1,
	}
}

func (d *StubDaemon) begin(event string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active++
	if d.active > 1 {
		d.overlap = true
	}
	d.events = append(d.events, event)
}

func (d *StubDaemon) end(event string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active--
	d.events = append(d.events, event)
}

func (d *StubDaemon) ListModels(ctx context.Context) ([]string, error) {
	d.begin("list")
	defer d.end("list done")

	if d.ListErr != nil {
		return nil, &model.ConnectionError{Op: "list models", Err: d.ListErr}
	}
	return append([]string(nil), d.Models...), nil
}

func (d *StubDaemon) OpenChatStream(ctx context.Context, req model.ChatRequest) (model.FragmentStream, error) {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()

	if d.OpenErr != nil {
		return nil, &model.ConnectionError{Op: "chat", Err: d.OpenErr}
	}
	if req.Model == "" {
		return nil, &model.ConnectionError{Op: "chat", Err: model.ErrModelRequired}
	}

	tag := req.Model
	if n := len(req.Turns); n > 0 {
		tag = req.Turns[n-1].Content
	}
	d.begin("open " + tag)
	if d.OnOpen != nil {
		d.OnOpen(req)
	}

	streamErr := d.StreamErr
	if streamErr == nil {
		streamErr = ErrDaemonFault
	}
	return &stubStream{
		daemon:    d,
		tag:       tag,
		fragments: append([]string(nil), d.Fragments...),
		failAfter: d.FailAfter,
		err:       streamErr,
		gate:      d.Gate,
	}, nil
}

func (d *StubDaemon) Ping(ctx context.Context) error {
	d.begin("ping")
	defer d.end("ping done")

	if d.PingErr != nil {
		return &model.ConnectionError{Op: "ping", Err: d.PingErr}
	}
	return nil
}

// Events returns the recorded daemon operations in order.
func (d *StubDaemon) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

// Overlapped reports whether two daemon operations were ever in flight at once.
func (d *StubDaemon) Overlapped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overlap
}

// Pulls counts Next calls across all streams.
func (d *StubDaemon) Pulls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pulls
}

func (d *StubDaemon) Requests() []model.ChatRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.ChatRequest(nil), d.requests...)
}

type stubStream struct {
	daemon    *StubDaemon
	tag       string
	fragments []string
	failAfter int
	err       error
	gate      chan struct{}

	pos    int
	final  error
	closed bool
}

func (s *stubStream) Next(ctx context.Context) (model.Fragment, error) {
	s.daemon.mu.Lock()
	s.daemon.pulls++
	s.daemon.mu.Unlock()

	if s.closed {
		return model.Fragment{}, errors.New("stub stream closed")
	}
	if s.final != nil {
		return model.Fragment{}, s.final
	}

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return model.Fragment{}, ctx.Err()
		}
	}

	if s.failAfter >= 0 && s.pos == s.failAfter {
		s.final = &model.ConnectionError{Op: "chat stream", Err: s.err}
		return model.Fragment{}, s.final
	}

	if s.pos < len(s.fragments) {
		frag := model.Fragment{Content: s.fragments[s.pos], Done: s.pos == len(s.fragments)-1}
		s.pos++
		return frag, nil
	}
	s.final = io.EOF
	return model.Fragment{}, io.EOF
}

func (s *stubStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.daemon.end("close " + s.tag)
	return nil
}

// RecordingSink collects notifications. With FailOn > 0 the FailOn-th Send
// (1-based) is rejected and nothing is recorded for it.
type RecordingSink struct {
	FailOn int
	Err    error

	mu       sync.Mutex
	messages []string
	attempts int
}

func (s *RecordingSink) Send(n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts++
	if s.FailOn > 0 && s.attempts == s.FailOn {
		if s.Err != nil {
			return s.Err
		}
		return fmt.Errorf("%w: receiver gone at notification %d", model.ErrSinkClosed, s.attempts)
	}
	s.messages = append(s.messages, n.Message)
	return nil
}

func (s *RecordingSink) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// Attempts counts every Send call, rejected ones included.
func (s *RecordingSink) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}
