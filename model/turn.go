package model

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is a role the daemon understands.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Turn is one entry in the conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a single chat call: the model to run and the ordered
// conversation history to send it.
type ChatRequest struct {
	Model string
	Turns []Turn
}

// NewChatRequest builds a request that owns its own copy of turns, so later
// changes to the caller's slice never reach the daemon.
func NewChatRequest(modelName string, turns []Turn) ChatRequest {
	owned := make([]Turn, len(turns))
	copy(owned, turns)
	return ChatRequest{Model: modelName, Turns: owned}
}

// Fragment is one incremental piece of a streamed chat completion.
// Done is set on the daemon's terminal chunk.
type Fragment struct {
	Content string
	Done    bool
}

// Notification is what gets pushed to a Sink for every fragment.
// Only content crosses this boundary; the role is implied.
type Notification struct {
	Message string `json:"message"`
}
