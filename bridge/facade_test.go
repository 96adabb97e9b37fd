package bridge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llamabridge/bridge/testutil"
	"llamabridge/model"
)

func newStubFacade(d model.Daemon, opts ...Option) *Facade {
	return NewFacade(NewShared(d), opts...)
}

func requireKind(t *testing.T, err error, want ErrorKind) *OperationError {
	t.Helper()
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, want, opErr.Kind, "reason: %s", opErr.Reason)
	return opErr
}

func TestGetModelsReturnsNamesInOrder(t *testing.T) {
	daemon := testutil.NewStubDaemon()
	daemon.Models = []string{"llama3.1:latest", "mistral:7b", "qwen2.5-coder:3b"}

	names, err := newStubFacade(daemon).GetModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:latest", "mistral:7b", "qwen2.5-coder:3b"}, names)
}

func TestGetModelsConnectionFailure(t *testing.T) {
	daemon := testutil.NewStubDaemon()
	daemon.ListErr = errors.New("connection refused")

	names, err := newStubFacade(daemon).GetModels(context.Background())
	assert.Nil(t, names)

	opErr := requireKind(t, err, ConnectionFailed)
	assert.Equal(t, "failed to list models: connection refused", opErr.Error())

	var connErr *model.ConnectionError
	assert.ErrorAs(t, err, &connErr)
}

func TestChatDeliversAllFragments(t *testing.T) {
	daemon := testutil.NewStubDaemon(testutil.Words...)
	sink := &testutil.RecordingSink{}
	req := testutil.ChatRequest("mock-model-1", "tell me")

	err := newStubFacade(daemon).Chat(context.Background(), req, sink)
	require.NoError(t, err)

	assert.Equal(t, testutil.Words, sink.Messages())
	require.Len(t, daemon.Requests(), 1)
	assert.Equal(t, req, daemon.Requests()[0])
}

func TestChatFailureAfterKFragments(t *testing.T) {
	for _, k := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			daemon := testutil.NewStubDaemon(testutil.Words...)
			daemon.FailAfter = k
			sink := &testutil.RecordingSink{}

			err := newStubFacade(daemon).Chat(context.Background(), testutil.ChatRequest("mock-model-1", "x"), sink)

			opErr := requireKind(t, err, StreamFailed)
			assert.Equal(t, "stream error: stub daemon fault", opErr.Reason)
			assert.Len(t, sink.Messages(), k)
			assert.ErrorIs(t, err, testutil.ErrDaemonFault)
		})
	}
}

func TestChatOpenFailure(t *testing.T) {
	daemon := testutil.NewStubDaemon(testutil.Words...)
	daemon.OpenErr = errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")
	sink := &testutil.RecordingSink{}

	err := newStubFacade(daemon).Chat(context.Background(), testutil.ChatRequest("mock-model-1", "x"), sink)

	opErr := requireKind(t, err, ConnectionFailed)
	assert.Contains(t, opErr.Reason, "failed to start chat: dial tcp")
	assert.Empty(t, sink.Messages())
	assert.Zero(t, sink.Attempts())
}

func TestChatEmptyModel(t *testing.T) {
	daemon := testutil.NewStubDaemon("x")

	err := newStubFacade(daemon).Chat(context.Background(), model.ChatRequest{}, &testutil.RecordingSink{})
	requireKind(t, err, ConnectionFailed)
	assert.ErrorIs(t, err, model.ErrModelRequired)
}

func TestChatDeliveryFailureStopsPulling(t *testing.T) {
	daemon := testutil.NewStubDaemon(testutil.Words...)
	sink := &testutil.RecordingSink{FailOn: 2}

	err := newStubFacade(daemon).Chat(context.Background(), testutil.ChatRequest("mock-model-1", "x"), sink)

	requireKind(t, err, DeliveryFailed)
	assert.ErrorIs(t, err, model.ErrSinkClosed)
	assert.Equal(t, []string{"The"}, sink.Messages())
	assert.Equal(t, 2, daemon.Pulls())
	assert.Equal(t, 2, sink.Attempts())
}

func TestChatsDoNotInterleave(t *testing.T) {
	daemon := testutil.NewStubDaemon("a", "b", "c")
	daemon.Gate = make(chan struct{})
	facade := newStubFacade(daemon)

	var wg sync.WaitGroup
	run := func(prompt string, sink *testutil.RecordingSink) {
		defer wg.Done()
		assert.NoError(t, facade.Chat(context.Background(), testutil.ChatRequest("mock-model-1", prompt), sink))
	}

	first, second := &testutil.RecordingSink{}, &testutil.RecordingSink{}
	wg.Add(1)
	go run("first", first)
	require.Eventually(t, func() bool {
		return slices.Contains(daemon.Events(), "open first")
	}, time.Second, time.Millisecond)

	wg.Add(1)
	go run("second", second)

	// The second request must not reach the daemon while the first streams.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"open first"}, daemon.Events())

	close(daemon.Gate)
	wg.Wait()

	assert.Equal(t, []string{"open first", "close first", "open second", "close second"}, daemon.Events())
	assert.False(t, daemon.Overlapped())
	assert.Equal(t, []string{"a", "b", "c"}, first.Messages())
	assert.Equal(t, []string{"a", "b", "c"}, second.Messages())
}

func TestGetModelsWaitsForRunningChat(t *testing.T) {
	daemon := testutil.NewStubDaemon("a")
	daemon.Gate = make(chan struct{})
	facade := newStubFacade(daemon)

	chatDone := make(chan error, 1)
	go func() {
		chatDone <- facade.Chat(context.Background(), testutil.ChatRequest("mock-model-1", "hold"), &testutil.RecordingSink{})
	}()
	require.Eventually(t, func() bool {
		return slices.Contains(daemon.Events(), "open hold")
	}, time.Second, time.Millisecond)

	// A caller with a deadline gives up instead of waiting out the stream.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := facade.GetModels(ctx)
	requireKind(t, err, ConnectionFailed)
	assert.ErrorIs(t, err, ErrAcquire)

	close(daemon.Gate)
	require.NoError(t, <-chatDone)

	names, err := facade.GetModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, daemon.Models, names)
	assert.False(t, daemon.Overlapped())
}

func TestChatIsRepeatable(t *testing.T) {
	daemon := testutil.NewStubDaemon(testutil.Words...)
	facade := newStubFacade(daemon)
	req := testutil.ChatRequest("mock-model-1", "again")

	first, second := &testutil.RecordingSink{}, &testutil.RecordingSink{}
	require.NoError(t, facade.Chat(context.Background(), req, first))
	require.NoError(t, facade.Chat(context.Background(), req, second))

	assert.Equal(t, testutil.Words, first.Messages())
	assert.Equal(t, first.Messages(), second.Messages())
}

// stallingDaemon never answers a chat until its context ends.
type stallingDaemon struct {
	*testutil.StubDaemon
}

func (d stallingDaemon) OpenChatStream(ctx context.Context, req model.ChatRequest) (model.FragmentStream, error) {
	<-ctx.Done()
	return nil, &model.ConnectionError{Op: "chat", Err: ctx.Err()}
}

func TestChatStallTimeoutBeforeFirstResponse(t *testing.T) {
	facade := newStubFacade(stallingDaemon{testutil.NewStubDaemon()}, WithStallTimeout(20*time.Millisecond))

	err := facade.Chat(context.Background(), testutil.ChatRequest("mock-model-1", "x"), &testutil.RecordingSink{})
	requireKind(t, err, ConnectionFailed)
	assert.ErrorIs(t, err, ErrStalled)
}

func TestChatStallTimeoutMidStream(t *testing.T) {
	daemon := testutil.NewStubDaemon("one", "two")
	daemon.Gate = make(chan struct{}, 1)
	daemon.Gate <- struct{}{} // release exactly one pull
	sink := &testutil.RecordingSink{}

	err := newStubFacade(daemon, WithStallTimeout(20*time.Millisecond)).
		Chat(context.Background(), testutil.ChatRequest("mock-model-1", "x"), sink)

	requireKind(t, err, StreamFailed)
	assert.ErrorIs(t, err, ErrStalled)
	assert.Equal(t, []string{"one"}, sink.Messages())
	assert.Equal(t, []string{"open x", "close x"}, daemon.Events())
}

func TestChatStallTimeoutPassesHealthyStream(t *testing.T) {
	daemon := testutil.NewStubDaemon(testutil.Words...)
	sink := &testutil.RecordingSink{}

	err := newStubFacade(daemon, WithStallTimeout(time.Second)).
		Chat(context.Background(), testutil.ChatRequest("mock-model-1", "x"), sink)
	require.NoError(t, err)
	assert.Equal(t, testutil.Words, sink.Messages())
}

func TestPing(t *testing.T) {
	daemon := testutil.NewStubDaemon()
	facade := newStubFacade(daemon)
	assert.NoError(t, facade.Ping(context.Background()))

	daemon.PingErr = errors.New("no route to host")
	err := facade.Ping(context.Background())
	opErr := requireKind(t, err, ConnectionFailed)
	assert.Equal(t, "daemon unreachable: no route to host", opErr.Reason)
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "req-1", RequestID(WithRequestID(context.Background(), "req-1")))
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("wrapped: %w", &OperationError{Kind: DeliveryFailed, Reason: "x"}))
	assert.True(t, ok)
	assert.Equal(t, DeliveryFailed, kind)
	assert.Equal(t, "delivery_failed", kind.String())

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}
