// Package schema holds the contracts shared between chatkeeper packages:
// chat messages, the LLM provider interface and the structured-generation
// capability that both the conversation and extraction packages consume.
package schema

// Role is the speaker of one chat message on the wire.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat completion request.
type Message struct {
	Role    Role
	Content string
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToWireMap serialises a Message into the OpenAI wire-format map.
func (m Message) ToWireMap() map[string]any {
	return map[string]any{
		"role":    string(m.Role),
		"content": m.Content,
	}
}
