package types

import "time"

// Role represents the role of a conversation participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleWorker    Role = "worker"
)

// Turn is one utterance in a conversation. Recent turns are fed to the
// routing analyses as context snippets.
type Turn struct {
	Role      Role      `json:"role"`
	Speaker   string    `json:"speaker,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewTurn creates a turn with the current timestamp.
func NewTurn(role Role, speaker, content string) Turn {
	return Turn{Role: role, Speaker: speaker, Content: content, Timestamp: time.Now()}
}
