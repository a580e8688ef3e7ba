package conversation

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// NoResponseYet is shown in place of a participant that has not answered.
const NoResponseYet = "No response yet."

// Message is immutable once appended. AIName is set only for assistant messages.
type Message struct {
	Role         Role      `json:"role"`
	AIName       string    `json:"ai_name,omitempty"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	KeyTakeaways []string  `json:"key_takeaways,omitempty"`
}

type Session struct {
	ID           string    `json:"session_id"`
	Messages     []Message `json:"messages"`
	Participants []string  `json:"participants"`
}
