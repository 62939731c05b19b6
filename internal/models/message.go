package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an individual entry within a conversation. It contains the participant's role, the
// text accumulated so far, and the lifecycle status that tells renderers whether more text is coming.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Status    Status
	Timestamp time.Time
}

// Role represents the role of a message participant.
type Role string

// Status represents where a message is in its lifecycle.
type Status string

const (
	// RoleUser represents a user message. A message with this role is always created complete.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message, which may be populated incrementally from a stream.
	RoleAssistant Role = "assistant"

	// StatusPending is the status of an assistant placeholder that has not received any content yet.
	StatusPending Status = "pending"
	// StatusStreaming is the status of the single assistant message currently receiving content.
	StatusStreaming Status = "streaming"
	// StatusComplete marks a message whose content will never change again.
	StatusComplete Status = "complete"
	// StatusErrored marks an assistant message whose stream failed or was cancelled. Its content holds
	// whatever arrived before the fault.
	StatusErrored Status = "errored"
)

// NewMessage creates a message with a random unique ID and the current time.
func NewMessage(role Role, content string, status Status) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Status:    status,
		Timestamp: time.Now(),
	}
}

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusErrored
}
