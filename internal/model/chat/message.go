package chat

// Role is the speaker of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation handed to the generation client.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}
