// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// METRICS
// =============================================================================

// Metrics are the generation statistics reported by the backend's terminal
// stream record. Durations are in nanoseconds, as sent on the wire.
type Metrics struct {
	TotalDuration      int64           `json:"total_duration,omitempty"`
	LoadDuration       int64           `json:"load_duration,omitempty"`
	PromptEvalCount    int             `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64           `json:"prompt_eval_duration,omitempty"`
	EvalCount          int             `json:"eval_count,omitempty"`
	EvalDuration       int64           `json:"eval_duration,omitempty"`
	Context            json.RawMessage `json:"context,omitempty"`
}

// Clone returns a deep copy of m. A nil receiver yields nil.
func (m *Metrics) Clone() *Metrics {
	if m == nil {
		return nil
	}
	out := *m
	if m.Context != nil {
		out.Context = append(json.RawMessage(nil), m.Context...)
	}
	return &out
}

// TokensPerSecond calculates generation speed from eval count and duration.
func (m *Metrics) TokensPerSecond() float64 {
	if m == nil || m.EvalDuration == 0 {
		return 0
	}
	return float64(m.EvalCount) / (float64(m.EvalDuration) / 1e9)
}

// Footer renders the one-line statistics shown under an assistant message.
// Unknown values (nil metrics or zero fields) render as "?".
func (m *Metrics) Footer() string {
	seconds, prompt, eval := "?", "?", "?"
	if m != nil {
		if m.TotalDuration > 0 {
			seconds = strconv.FormatFloat(time.Duration(m.TotalDuration).Seconds(), 'f', 1, 64)
		}
		if m.PromptEvalCount > 0 {
			prompt = strconv.Itoa(m.PromptEvalCount)
		}
		if m.EvalCount > 0 {
			eval = strconv.Itoa(m.EvalCount)
		}
	}
	return "Generated in " + seconds + "s · Tokens: " + prompt + " prompt / " + eval + " response"
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message type and delivery status values carried in the persisted form.
const (
	TypeText   = "text"
	StatusSent = "sent"
)

// Message represents a single message in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	SenderID  string    `json:"senderId"`

	// Metrics is nil until a terminal stream event has been applied.
	Metrics *Metrics `json:"metrics,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        NewID(),
		Content:   content,
		Role:      role,
		Type:      TypeText,
		Timestamp: time.Now(),
		Status:    StatusSent,
		SenderID:  string(role),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an empty assistant message ready for streaming.
func NewAssistantMessage() *Message {
	return NewMessage(RoleAssistant, "")
}

// IsUser returns true if this is a user message.
func (m *Message) IsUser() bool {
	return m.Role == RoleUser
}

// IsAssistant returns true if this is an assistant message.
func (m *Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// HasMetrics reports whether final generation metrics were attached.
func (m *Message) HasMetrics() bool {
	return m.Metrics != nil
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	out := *m
	out.Metrics = m.Metrics.Clone()
	return &out
}

// normalize fills fields that older saved data may lack. The role is derived
// from senderId when absent, which is how the web client stored it.
func (m *Message) normalize() {
	if m.Role == "" {
		if m.SenderID == string(RoleUser) {
			m.Role = RoleUser
		} else {
			m.Role = RoleAssistant
		}
	}
	if m.SenderID == "" {
		m.SenderID = string(m.Role)
	}
	if m.Type == "" {
		m.Type = TypeText
	}
	if m.Status == "" {
		m.Status = StatusSent
	}
}

// NewID returns a time-ordered unique identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
