// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// DefaultParticipants are the display names given to every new conversation.
var DefaultParticipants = []string{"You", "Assistant"}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a persisted chat thread.
type Conversation struct {
	ID           string     `json:"id"`
	Participants []string   `json:"participants"`
	Messages     []*Message `json:"messages"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	UnreadCount  int        `json:"unreadCount"`
	IsPinned     bool       `json:"isPinned"`
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation() *Conversation {
	return &Conversation{
		ID:           NewID(),
		Participants: append([]string(nil), DefaultParticipants...),
		Messages:     make([]*Message, 0),
		UpdatedAt:    time.Now(),
	}
}

// Append adds messages in order and bumps UpdatedAt.
func (c *Conversation) Append(msgs ...*Message) {
	if len(msgs) == 0 {
		return
	}
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = time.Now()
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// Title returns the first user message, or a placeholder for empty threads.
func (c *Conversation) Title() string {
	for _, msg := range c.Messages {
		if msg.IsUser() && msg.Content != "" {
			return strings.Join(strings.Fields(msg.Content), " ")
		}
	}
	return "New conversation"
}

// Matches reports whether query (case-insensitive) appears in any participant
// name or any message body. An empty query matches everything.
func (c *Conversation) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, p := range c.Participants {
		if strings.Contains(strings.ToLower(p), q) {
			return true
		}
	}
	for _, msg := range c.Messages {
		if strings.Contains(strings.ToLower(msg.Content), q) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.Messages = make([]*Message, len(c.Messages))
	for i, msg := range c.Messages {
		out.Messages[i] = msg.Clone()
	}
	return &out
}

// Normalize repairs fields that may be missing from older saved data.
func (c *Conversation) Normalize() {
	if len(c.Participants) < 2 {
		c.Participants = append([]string(nil), DefaultParticipants...)
	}
	if c.Messages == nil {
		c.Messages = make([]*Message, 0)
	}
	kept := c.Messages[:0]
	for _, msg := range c.Messages {
		if msg == nil {
			continue
		}
		msg.normalize()
		kept = append(kept, msg)
	}
	c.Messages = kept
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
}

// CloneAll deep-copies a conversation list.
func CloneAll(convs []*Conversation) []*Conversation {
	out := make([]*Conversation, len(convs))
	for i, c := range convs {
		out[i] = c.Clone()
	}
	return out
}
