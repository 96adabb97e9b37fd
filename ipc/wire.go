package ipc

import "llamabridge/model"

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	Model    string       `json:"model"`
	Messages []model.Turn `json:"messages"`
}

type modelsResponse struct {
	Models []string `json:"models"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// streamEnd is the last NDJSON line of every chat response. Notification
// lines before it carry only "message".
type streamEnd struct {
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}
