package testutil

import "llamabridge/model"

// ChatRequest returns a small conversation for model ending in a user turn
// whose content is prompt. StubDaemon tags its events with that prompt.
func ChatRequest(modelName, prompt string) model.ChatRequest {
	return model.NewChatRequest(modelName, []model.Turn{
		{Role: model.RoleSystem, Content: "You are a helpful assistant."},
		{Role: model.RoleUser, Content: "Hello"},
		{Role: model.RoleAssistant, Content: "Hi! How can I help?"},
		{Role: model.RoleUser, Content: prompt},
	})
}

// Words is a canned multi-fragment answer.
var Words = []string{"The", " quick", " brown", " fox", " jumps"}
