// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/quickr1/internal/model"
)

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler owns the conversation list and the displayed message list.
//
// A turn starts with AppendUserMessage, which records the conversation the
// turn belongs to (its target). Messages of the turn are held aside until
// CommitTurn folds them into the target conversation, so switching or
// clearing the display mid-turn never loses streamed content.
//
// Every method is total: unknown ids are ignored and nothing panics.
type Reconciler struct {
	mu sync.Mutex

	convs    []*model.Conversation
	activeID string

	// In-flight turn
	inFlight bool
	target   string
	turn     []*model.Message

	participants []string
	subscribers  []func([]*model.Conversation)
	logger       *slog.Logger

	// seq numbers snapshots under mu. notifyMu orders delivery: a snapshot
	// older than one already delivered is dropped.
	seq       uint64
	notifyMu  sync.Mutex
	delivered uint64
}

// New creates a reconciler over previously loaded conversations. The slice
// is taken over by the reconciler. A nil logger uses slog.Default().
func New(convs []*model.Conversation, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if convs == nil {
		convs = make([]*model.Conversation, 0)
	}
	return &Reconciler{convs: convs, logger: logger}
}

// SetParticipants sets the display names given to conversations created
// from now on. Fewer than two names restores the defaults.
func (r *Reconciler) SetParticipants(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(names) < 2 {
		r.participants = nil
		return
	}
	r.participants = append([]string(nil), names...)
}

// Subscribe registers fn to receive a deep snapshot of the conversation list
// after every change that should be persisted. fn runs on the caller's
// goroutine, outside the reconciler's lock. Snapshots arrive in the order the
// changes were made; under concurrent mutation an older snapshot that loses
// the race to a newer one is skipped.
func (r *Reconciler) Subscribe(fn func([]*model.Conversation)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.subscribers = append(r.subscribers, fn)
	r.mu.Unlock()
}

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// CreateConversation adds an empty conversation at the top of the list and
// displays it. Returns the new id.
func (r *Reconciler) CreateConversation() string {
	r.mu.Lock()
	id := r.createLocked()
	r.commitLocked()
	return id
}

// createLocked prepends a conversation and makes it active.
func (r *Reconciler) createLocked() string {
	conv := model.NewConversation()
	if r.participants != nil {
		conv.Participants = append([]string(nil), r.participants...)
	}
	r.convs = append([]*model.Conversation{conv}, r.convs...)
	r.activeID = conv.ID
	r.logger.Debug("conversation created", "id", conv.ID)
	return conv.ID
}

// SelectConversation displays the conversation with the given id. An unknown
// id leaves nothing displayed.
func (r *Reconciler) SelectConversation(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findLocked(id) == nil {
		r.activeID = ""
		return
	}
	r.activeID = id
}

// ClearActive empties the displayed list without touching any conversation.
// The next user message starts a new conversation.
func (r *Reconciler) ClearActive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeID = ""
}

// DeleteConversation removes a conversation. A turn targeting it is dropped
// when committed.
func (r *Reconciler) DeleteConversation(id string) {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	r.convs = append(r.convs[:idx], r.convs[idx+1:]...)
	if r.activeID == id {
		r.activeID = ""
	}
	r.commitLocked()
}

// TogglePin flips the pinned flag of a conversation.
func (r *Reconciler) TogglePin(id string) {
	r.mu.Lock()
	conv := r.findLocked(id)
	if conv == nil {
		r.mu.Unlock()
		return
	}
	conv.IsPinned = !conv.IsPinned
	r.commitLocked()
}

// MarkRead resets the unread count of a conversation.
func (r *Reconciler) MarkRead(id string) {
	r.mu.Lock()
	conv := r.findLocked(id)
	if conv == nil || conv.UnreadCount == 0 {
		r.mu.Unlock()
		return
	}
	conv.UnreadCount = 0
	r.commitLocked()
}

// =============================================================================
// TURN OPERATIONS
// =============================================================================

// AppendUserMessage starts a turn with text as the user message. It returns
// false without changing anything when text is blank or a turn is already in
// flight. With nothing displayed, a new conversation is created first.
func (r *Reconciler) AppendUserMessage(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return "", false
	}

	created := false
	if r.findLocked(r.activeID) == nil {
		r.createLocked()
		created = true
	}

	msg := model.NewUserMessage(text)
	r.inFlight = true
	r.target = r.activeID
	r.turn = []*model.Message{msg}

	if created {
		r.commitLocked()
	} else {
		r.mu.Unlock()
	}
	return msg.ID, true
}

// BeginAssistantMessage adds an empty assistant message to the in-flight
// turn and returns its id. Returns "" when no turn is in flight.
func (r *Reconciler) BeginAssistantMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFlight {
		return ""
	}
	msg := model.NewAssistantMessage()
	r.turn = append(r.turn, msg)
	return msg.ID
}

// AppendAssistantMessage adds a complete assistant message to the in-flight
// turn. Used for error replies.
func (r *Reconciler) AppendAssistantMessage(content string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFlight {
		return ""
	}
	msg := model.NewAssistantMessage()
	msg.Content = content
	r.turn = append(r.turn, msg)
	return msg.ID
}

// AppendFragment appends text to an in-flight message.
func (r *Reconciler) AppendFragment(messageID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg := r.turnMessageLocked(messageID); msg != nil {
		msg.Content += text
	}
}

// FinalizeMetrics attaches metrics to an in-flight message. Only the first
// call for a message has any effect.
func (r *Reconciler) FinalizeMetrics(messageID string, metrics *model.Metrics) {
	if metrics == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := r.turnMessageLocked(messageID)
	if msg == nil || msg.Metrics != nil {
		return
	}
	msg.Metrics = metrics.Clone()
}

// CommitTurn folds the in-flight messages into the target conversation.
// Each committed assistant message counts as unread when the target is not
// the displayed conversation.
func (r *Reconciler) CommitTurn() {
	r.mu.Lock()
	if !r.inFlight {
		r.mu.Unlock()
		return
	}

	msgs, target := r.turn, r.target
	r.inFlight = false
	r.target = ""
	r.turn = nil

	conv := r.findLocked(target)
	if conv == nil {
		r.mu.Unlock()
		r.logger.Warn("dropping turn for deleted conversation", "id", target, "messages", len(msgs))
		return
	}

	conv.Append(msgs...)
	if target != r.activeID {
		for _, msg := range msgs {
			if msg.IsAssistant() {
				conv.UnreadCount++
			}
		}
	}
	r.commitLocked()
}

// =============================================================================
// QUERIES
// =============================================================================

// Conversations returns a deep copy of the conversation list.
func (r *Reconciler) Conversations() []*model.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.CloneAll(r.convs)
}

// Conversation returns a copy of one conversation.
func (r *Reconciler) Conversation(id string) (*model.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv := r.findLocked(id)
	if conv == nil {
		return nil, false
	}
	return conv.Clone(), true
}

// Search returns copies of the conversations matching query.
func (r *Reconciler) Search(query string) []*model.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Conversation, 0)
	for _, conv := range r.convs {
		if conv.Matches(query) {
			out = append(out, conv.Clone())
		}
	}
	return out
}

// ActiveID returns the displayed conversation id, or "" when none is.
func (r *Reconciler) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// Active returns a copy of the displayed message list: the committed
// messages of the displayed conversation followed by the in-flight turn
// when it targets that conversation.
func (r *Reconciler) Active() []*model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.Message, 0)
	conv := r.findLocked(r.activeID)
	if conv == nil {
		return out
	}
	for _, msg := range conv.Messages {
		out = append(out, msg.Clone())
	}
	if r.inFlight && r.target == r.activeID {
		for _, msg := range r.turn {
			out = append(out, msg.Clone())
		}
	}
	return out
}

// History returns the last limit committed messages of the displayed
// conversation, oldest first. limit <= 0 returns all of them.
func (r *Reconciler) History(limit int) []*model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv := r.findLocked(r.activeID)
	if conv == nil {
		return nil
	}
	msgs := conv.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*model.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = msg.Clone()
	}
	return out
}

// InFlight reports whether a turn has started and not been committed.
func (r *Reconciler) InFlight() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// =============================================================================
// HELPERS
// =============================================================================

func (r *Reconciler) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, conv := range r.convs {
		if conv.ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler) findLocked(id string) *model.Conversation {
	if i := r.indexLocked(id); i >= 0 {
		return r.convs[i]
	}
	return nil
}

func (r *Reconciler) turnMessageLocked(id string) *model.Message {
	if !r.inFlight || id == "" {
		return nil
	}
	for _, msg := range r.turn {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// commitLocked snapshots the list, releases the lock and notifies
// subscribers. Must be called with r.mu held.
func (r *Reconciler) commitLocked() {
	subs := r.subscribers
	if len(subs) == 0 {
		r.mu.Unlock()
		return
	}
	r.seq++
	seq := r.seq
	snapshot := model.CloneAll(r.convs)
	r.mu.Unlock()

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if seq < r.delivered {
		return
	}
	r.delivered = seq
	for _, fn := range subs {
		fn(snapshot)
	}
}
