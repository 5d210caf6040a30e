package domain

// ChatRole identifies who authored a chat message in the search overlay.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is a single bubble in the chat overlay.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatRequest is the body of POST /api/chat and of websocket frames.
type ChatRequest struct {
	Query string `json:"query"`
}

// ChatReply is the assistant answer plus how it was produced.
type ChatReply struct {
	Reply        string `json:"reply"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	Cached       bool   `json:"cached"`
	UsedFallback bool   `json:"usedFallback"`
	Degraded     bool   `json:"degraded"`
}
