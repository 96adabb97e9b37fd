package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"llamabridge/model"
)

// ndjsonSink writes each notification as one JSON line and flushes it, so
// the client sees fragments as the daemon produces them. A write to a
// disconnected client fails the chat.
type ndjsonSink struct {
	ctx     context.Context
	enc     *json.Encoder
	flusher http.Flusher
}

func newNDJSONSink(ctx context.Context, w http.ResponseWriter, flusher http.Flusher) *ndjsonSink {
	return &ndjsonSink{ctx: ctx, enc: json.NewEncoder(w), flusher: flusher}
}

func (s *ndjsonSink) Send(n model.Notification) error {
	return s.write(n)
}

func (s *ndjsonSink) write(v any) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("%w: client went away: %v", model.ErrSinkClosed, err)
	}
	if err := s.enc.Encode(v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrSinkClosed, err)
	}
	s.flusher.Flush()
	return nil
}
