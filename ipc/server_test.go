package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llamabridge/bridge"
	"llamabridge/bridge/testutil"
)

func newTestServer(t *testing.T, d *testutil.StubDaemon) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(bridge.NewFacade(bridge.NewShared(d))).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postChat(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// readStream splits an NDJSON chat response into message lines and the
// terminal line.
func readStream(t *testing.T, resp *http.Response) ([]string, streamEnd) {
	t.Helper()
	var messages []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line), scanner.Text())
		if _, ok := line["done"]; ok {
			var end streamEnd
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &end))
			assert.False(t, scanner.Scan(), "nothing may follow the terminal line")
			return messages, end
		}
		messages = append(messages, line["message"].(string))
	}
	require.NoError(t, scanner.Err())
	t.Fatal("stream ended without a terminal line")
	return nil, streamEnd{}
}

const helloBody = `{"model":"mock-model-1","messages":[{"role":"system","content":"Be brief."},{"role":"user","content":"hello"}]}`

func TestModelsEndpoint(t *testing.T) {
	d := testutil.NewStubDaemon()
	d.Models = []string{"llama3.1:latest", "mistral:7b"}
	srv := newTestServer(t, d)

	resp, err := http.Get(srv.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body modelsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"llama3.1:latest", "mistral:7b"}, body.Models)
}

func TestModelsEndpointEmptyListIsArray(t *testing.T) {
	d := testutil.NewStubDaemon()
	d.Models = nil
	srv := newTestServer(t, d)

	resp, err := http.Get(srv.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw["models"]))
}

func TestModelsEndpointDaemonDown(t *testing.T) {
	d := testutil.NewStubDaemon()
	d.ListErr = errors.New("connection refused")
	srv := newTestServer(t, d)

	resp, err := http.Get(srv.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "failed to list models: connection refused", body.Error)
	assert.Equal(t, "connection_failed", body.Kind)
}

func TestChatEndpointStreamsFragments(t *testing.T) {
	d := testutil.NewStubDaemon(testutil.Words...)
	srv := newTestServer(t, d)

	resp := postChat(t, srv, helloBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	messages, end := readStream(t, resp)
	assert.Equal(t, testutil.Words, messages)
	assert.Equal(t, streamEnd{Done: true}, end)

	require.Len(t, d.Requests(), 1)
	sent := d.Requests()[0]
	assert.Equal(t, "mock-model-1", sent.Model)
	require.Len(t, sent.Turns, 2)
	assert.Equal(t, "hello", sent.Turns[1].Content)
}

func TestChatEndpointReportsStreamFailure(t *testing.T) {
	d := testutil.NewStubDaemon(testutil.Words...)
	d.FailAfter = 2
	srv := newTestServer(t, d)

	messages, end := readStream(t, postChat(t, srv, helloBody))
	assert.Equal(t, testutil.Words[:2], messages)
	assert.True(t, end.Done)
	assert.Equal(t, "stream error: stub daemon fault", end.Error)
	assert.Equal(t, "stream_failed", end.Kind)
}

func TestChatEndpointReportsOpenFailure(t *testing.T) {
	d := testutil.NewStubDaemon()
	d.OpenErr = errors.New(`model "nope" not found`)
	srv := newTestServer(t, d)

	messages, end := readStream(t, postChat(t, srv, helloBody))
	assert.Empty(t, messages)
	assert.Equal(t, "connection_failed", end.Kind)
	assert.Contains(t, end.Error, "not found")
}

func TestChatEndpointRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"model":`},
		{"missing model", `{"messages":[{"role":"user","content":"hi"}]}`},
		{"unknown role", `{"model":"m","messages":[{"role":"narrator","content":"hi"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testutil.NewStubDaemon("x")
			srv := newTestServer(t, d)

			resp := postChat(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
			assert.Empty(t, d.Requests(), "bad requests must not reach the daemon")
		})
	}
}

func TestWrongMethodIsRejected(t *testing.T) {
	srv := newTestServer(t, testutil.NewStubDaemon())

	resp, err := http.Get(srv.URL + "/api/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, testutil.NewStubDaemon())

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/models", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "client-chosen-id")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "client-chosen-id", resp.Header.Get(RequestIDHeader))

	resp, err = http.Get(srv.URL + "/api/models")
	require.NoError(t, err)
	resp.Body.Close()
	_, err = uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	d := testutil.NewStubDaemon()
	srv := newTestServer(t, d)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body.Status)

	d.PingErr = errors.New("connection refused")
	resp, err = http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	body = healthResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unreachable", body.Status)
}

func TestHealthWhileStreamingIsBusy(t *testing.T) {
	d := testutil.NewStubDaemon("a")
	d.Gate = make(chan struct{})
	srv := newTestServer(t, d)

	chatResp := make(chan *http.Response, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(helloBody))
		if err == nil {
			chatResp <- resp
		}
		close(chatResp)
	}()
	require.Eventually(t, func() bool {
		return slices.Contains(d.Events(), "open hello")
	}, 2*time.Second, time.Millisecond)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "busy", body.Status)

	close(d.Gate)
	r, ok := <-chatResp
	require.True(t, ok)
	defer r.Body.Close()
	messages, end := readStream(t, r)
	assert.Equal(t, []string{"a"}, messages)
	assert.Empty(t, end.Error)
}

func TestServeOnUnixSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "bridge.sock")
	ln, err := Listen("unix://" + sock)
	require.NoError(t, err)

	d := testutil.NewStubDaemon()
	s := NewServer(bridge.NewFacade(bridge.NewShared(d)))
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, "unix", sock)
		},
	}}
	resp, err := client.Get("http://bridge/api/models")
	require.NoError(t, err)
	var body modelsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, d.Models, body.Models)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListenRejectsEmptySocketPath(t *testing.T) {
	_, err := Listen("unix://")
	assert.Error(t, err)
}
