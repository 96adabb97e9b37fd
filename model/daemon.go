package model

import "context"

// Daemon is the connection to the local inference daemon.
//
// This interface lives in the model package (not ollama) so that bridge and
// the test stubs can depend on it without importing the HTTP client.
type Daemon interface {
	// ListModels returns the names of the locally available models, in the
	// order the daemon reports them.
	ListModels(ctx context.Context) ([]string, error)

	// OpenChatStream issues a chat request and returns the stream of
	// fragments the daemon produces for it. A failure of the initial
	// request is returned here; later failures come from Next.
	OpenChatStream(ctx context.Context, req ChatRequest) (FragmentStream, error)

	// Ping checks if the daemon is reachable.
	Ping(ctx context.Context) error
}

// FragmentStream is a finite, non-restartable source of fragments.
//
// Next returns io.EOF once the daemon has signalled completion. After EOF
// or an error every further call returns the same result. A stream has a
// single consumer; Next must not be called concurrently.
type FragmentStream interface {
	Next(ctx context.Context) (Fragment, error)

	// Close releases the stream. It is safe to call more than once and
	// after the stream has been drained.
	Close() error
}
