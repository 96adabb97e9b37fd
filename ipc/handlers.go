package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"llamabridge/bridge"
	"llamabridge/config"
	"llamabridge/model"
)

const healthTimeout = 2 * time.Second

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && config.DebugLog != nil {
		config.DebugLog.Warn("failed to write response", "error", err)
	}
}

func writeOperationError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	if kind, ok := bridge.KindOf(err); ok {
		resp.Kind = kind.String()
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	names, err := s.facade.GetModels(r.Context())
	if err != nil {
		writeOperationError(w, http.StatusBadGateway, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, modelsResponse{Models: names})
}

func decodeChatRequest(r *http.Request, w http.ResponseWriter) (model.ChatRequest, error) {
	var body chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return model.ChatRequest{}, fmt.Errorf("invalid request body: %w", err)
	}
	if body.Model == "" {
		return model.ChatRequest{}, model.ErrModelRequired
	}
	for i, turn := range body.Messages {
		if !turn.Role.Valid() {
			return model.ChatRequest{}, fmt.Errorf("message %d: unknown role %q", i, turn.Role)
		}
	}
	return model.NewChatRequest(body.Model, body.Messages), nil
}

// handleChat streams the reply as NDJSON. Once the 200 header is out, a
// failure can only be reported in the terminal line.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r, w)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := newNDJSONSink(r.Context(), w, flusher)
	end := streamEnd{Done: true}
	if err := s.facade.Chat(r.Context(), req, sink); err != nil {
		end.Error = err.Error()
		if kind, ok := bridge.KindOf(err); ok {
			end.Kind = kind.String()
		}
	}

	if err := sink.write(end); err != nil && config.DebugLog != nil {
		config.DebugLog.Debug("client gone before stream end", "request_id", bridge.RequestID(r.Context()), "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	err := s.facade.Ping(ctx)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	case errors.Is(err, bridge.ErrAcquire):
		// a chat is streaming, so the daemon is up
		writeJSON(w, http.StatusOK, healthResponse{Status: "busy"})
	default:
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unreachable", Error: err.Error()})
	}
}
