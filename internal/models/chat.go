package models

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message exchange unit within a session.
// Turns are immutable once appended; insertion order is significant
// because the sequence is the LLM's conversational context.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest is the inbound payload of the chat API.
// SessionID may be empty; the orchestrator creates one on first contact.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply returned to the caller.
type ChatResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}
