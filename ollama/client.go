package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"llamabridge/model"
)

const DefaultHost = "http://localhost:11434"

// pingTimeout bounds Ping independently of the caller's context.
const pingTimeout = 5 * time.Second

// Client owns the connection to one Ollama daemon and implements
// model.Daemon. A process creates a single Client and shares it through
// bridge.Shared.
type Client struct {
	client  *api.Client
	baseURL string
}

var _ model.Daemon = (*Client)(nil)

func NewClient(baseURL string) (*Client, error) {
	return NewClientWithHTTP(baseURL, http.DefaultClient)
}

// NewClientWithHTTP is NewClient with a caller-supplied http.Client, used by
// tests and by callers that need a custom transport (e.g. a unix socket).
func NewClientWithHTTP(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultHost
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL %q: scheme and host are required", baseURL)
	}

	return &Client{
		client:  api.NewClient(parsedURL, httpClient),
		baseURL: baseURL,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListModels returns only the names of the daemon's local models; size,
// digest and details are dropped.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, &model.ConnectionError{Op: "list models", Err: err}
	}

	names := make([]string, len(resp.Models))
	for i, m := range resp.Models {
		names[i] = m.Name
	}
	return names, nil
}

// OpenChatStream starts a streaming chat and waits for the daemon's first
// chunk, so that an unreachable daemon or a rejected request fails here
// rather than on the first Next.
//
// ctx governs the whole stream, not just the opening call: cancelling it
// aborts the HTTP response.
func (c *Client) OpenChatStream(ctx context.Context, req model.ChatRequest) (model.FragmentStream, error) {
	if req.Model == "" {
		return nil, &model.ConnectionError{Op: "chat", Err: model.ErrModelRequired}
	}

	apiReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: ConvertToOllamaMessages(req.Turns),
		Stream:   func(b bool) *bool { return &b }(true),
	}

	s := startChatStream(ctx, c.client, apiReq)
	if err := s.awaitFirst(); err != nil {
		return nil, &model.ConnectionError{Op: "chat", Err: err}
	}
	return s, nil
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.client.List(ctx); err != nil {
		return &model.ConnectionError{Op: "ping", Err: err}
	}
	return nil
}
