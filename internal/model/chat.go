package model

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatTurn is one prior exchange the client sends along with a question.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}
