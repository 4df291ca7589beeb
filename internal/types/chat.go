package types

// Role identifies the author of a chat message.
type Role string

// Supported chat roles
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of a conversation.
type ChatMessage struct {
	Role    Role   `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// TextDelta is one incremental fragment of a streamed answer.
type TextDelta struct {
	Content string `json:"content"`
}
