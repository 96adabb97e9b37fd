package ollama

import (
	"github.com/ollama/ollama/api"

	"llamabridge/model"
)

// ConvertToOllamaMessages converts conversation turns to Ollama api.Message,
// preserving order.
//
// Example:
//
//	turns := []model.Turn{
//	    {Role: model.RoleSystem, Content: "Be brief."},
//	    {Role: model.RoleUser, Content: "Hello"},
//	}
//	msgs := ConvertToOllamaMessages(turns)
func ConvertToOllamaMessages(turns []model.Turn) []api.Message {
	result := make([]api.Message, len(turns))
	for i, t := range turns {
		result[i] = api.Message{
			Role:    string(t.Role),
			Content: t.Content,
		}
	}
	return result
}
