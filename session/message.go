// Package session manages conversation state: message history, token
// accounting and lossy compression of older turns.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is a single conversation turn.
type Message struct {
	ID      string `yaml:"id" json:"id"`
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`

	// ToolName is set on tool-role messages carrying an execution result
	ToolName string `yaml:"tool_name,omitempty" json:"tool_name,omitempty"`

	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
}

// NewMessage creates a message with a fresh ID and timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewToolMessage creates a tool-role message carrying a tool's output.
func NewToolMessage(toolName, content string) Message {
	m := NewMessage(RoleTool, content)
	m.ToolName = toolName
	return m
}
