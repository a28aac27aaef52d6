// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jeranaias/quickr1/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler() *Reconciler {
	return New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// runTurn drives one complete turn with the given fragments.
func runTurn(t *testing.T, r *Reconciler, text string, fragments ...string) string {
	t.Helper()
	_, ok := r.AppendUserMessage(text)
	require.True(t, ok, "AppendUserMessage(%q) rejected", text)
	id := r.BeginAssistantMessage()
	require.NotEmpty(t, id)
	for _, f := range fragments {
		r.AppendFragment(id, f)
	}
	r.CommitTurn()
	return id
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestCreateConversation(t *testing.T) {
	r := newTestReconciler()

	first := r.CreateConversation()
	second := r.CreateConversation()

	convs := r.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, second, convs[0].ID, "new conversations are prepended")
	assert.Equal(t, first, convs[1].ID)
	assert.Equal(t, second, r.ActiveID())

	conv := convs[0]
	assert.Empty(t, conv.Messages)
	assert.Equal(t, 0, conv.UnreadCount)
	assert.False(t, conv.IsPinned)
	assert.Equal(t, []string{"You", "Assistant"}, conv.Participants)
	assert.Empty(t, r.Active())
}

func TestSelectConversation(t *testing.T) {
	r := newTestReconciler()
	a := r.CreateConversation()
	runTurn(t, r, "in a", "reply a")
	r.CreateConversation()

	r.SelectConversation(a)
	assert.Equal(t, a, r.ActiveID())
	active := r.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "in a", active[0].Content)
	assert.Equal(t, "reply a", active[1].Content)

	r.SelectConversation("does-not-exist")
	assert.Equal(t, "", r.ActiveID())
	assert.Empty(t, r.Active())
}

func TestClearActive(t *testing.T) {
	r := newTestReconciler()
	runTurn(t, r, "hello", "hi")
	require.Len(t, r.Conversations(), 1)

	r.ClearActive()
	assert.Empty(t, r.Active())
	assert.Len(t, r.Conversations(), 1, "record must survive")

	runTurn(t, r, "again", "sure")
	assert.Len(t, r.Conversations(), 2, "next message starts a new thread")
}

func TestDeleteConversation(t *testing.T) {
	r := newTestReconciler()
	a := r.CreateConversation()
	b := r.CreateConversation()

	r.DeleteConversation(b)
	r.DeleteConversation("missing")

	convs := r.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, a, convs[0].ID)
	assert.Equal(t, "", r.ActiveID())
}

func TestTogglePinAndMarkRead(t *testing.T) {
	r := newTestReconciler()
	id := r.CreateConversation()

	r.TogglePin(id)
	conv, ok := r.Conversation(id)
	require.True(t, ok)
	assert.True(t, conv.IsPinned)

	r.TogglePin(id)
	conv, _ = r.Conversation(id)
	assert.False(t, conv.IsPinned)

	r.TogglePin("missing")
	r.MarkRead("missing")
}

func TestSearch(t *testing.T) {
	r := newTestReconciler()
	runTurn(t, r, "Tell me about Gophers", "They dig")
	r.ClearActive()
	runTurn(t, r, "weather", "sunny")

	assert.Len(t, r.Search(""), 2)
	assert.Len(t, r.Search("gopher"), 1)
	assert.Len(t, r.Search("SUNNY"), 1)
	assert.Len(t, r.Search("assistant"), 2, "participants are searched")
	assert.Empty(t, r.Search("nothing here"))
}

// =============================================================================
// TURN TESTS
// =============================================================================

func TestTurn_HelloScenario(t *testing.T) {
	r := newTestReconciler()

	_, ok := r.AppendUserMessage("  hi  ")
	require.True(t, ok)
	id := r.BeginAssistantMessage()
	r.AppendFragment(id, "Hel")
	r.AppendFragment(id, "lo")
	r.FinalizeMetrics(id, &model.Metrics{EvalCount: 2})

	active := r.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "Hello", active[1].Content)

	r.CommitTurn()
	assert.False(t, r.InFlight())

	convs := r.Conversations()
	require.Len(t, convs, 1)
	msgs := convs[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello", msgs[1].Content)
	require.NotNil(t, msgs[1].Metrics)
	assert.Equal(t, 2, msgs[1].Metrics.EvalCount)
	assert.Equal(t, 0, convs[0].UnreadCount, "displayed conversation gets no unread")
}

func TestAppendUserMessage_Rejections(t *testing.T) {
	r := newTestReconciler()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, ok := r.AppendUserMessage(text)
		assert.False(t, ok, "AppendUserMessage(%q) accepted", text)
	}
	assert.Empty(t, r.Conversations(), "blank input must not create a thread")

	_, ok := r.AppendUserMessage("first")
	require.True(t, ok)
	_, ok = r.AppendUserMessage("second")
	assert.False(t, ok, "second message while in flight")

	active := r.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "first", active[0].Content)
}

func TestFinalizeMetrics_Idempotent(t *testing.T) {
	r := newTestReconciler()
	r.AppendUserMessage("q")
	id := r.BeginAssistantMessage()

	r.FinalizeMetrics(id, &model.Metrics{EvalCount: 5})
	r.FinalizeMetrics(id, &model.Metrics{EvalCount: 9})
	r.FinalizeMetrics(id, nil)
	r.CommitTurn()

	msgs := r.Conversations()[0].Messages
	require.NotNil(t, msgs[1].Metrics)
	assert.Equal(t, 5, msgs[1].Metrics.EvalCount)
}

func TestTurn_NoMetricsStaysUnknown(t *testing.T) {
	r := newTestReconciler()
	runTurn(t, r, "q", "a")

	msgs := r.Conversations()[0].Messages
	assert.Nil(t, msgs[1].Metrics)
	assert.False(t, msgs[1].HasMetrics())
}

func TestTurn_UnknownIDsIgnored(t *testing.T) {
	r := newTestReconciler()

	r.AppendFragment("nope", "x")
	r.FinalizeMetrics("nope", &model.Metrics{})
	r.CommitTurn()
	assert.Equal(t, "", r.BeginAssistantMessage(), "no turn in flight")

	r.AppendUserMessage("q")
	id := r.BeginAssistantMessage()
	r.AppendFragment("other", "x")
	r.AppendFragment(id, "ok")
	r.CommitTurn()

	msgs := r.Conversations()[0].Messages
	assert.Equal(t, "ok", msgs[1].Content)

	// Committed messages are frozen.
	r.AppendFragment(id, "more")
	msgs = r.Conversations()[0].Messages
	assert.Equal(t, "ok", msgs[1].Content)
}

func TestTurn_EmptyAssistantMessage(t *testing.T) {
	r := newTestReconciler()
	runTurn(t, r, "q")

	msgs := r.Conversations()[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "", msgs[1].Content)
}

func TestTurn_ErrorReply(t *testing.T) {
	r := newTestReconciler()
	r.AppendUserMessage("q")
	id := r.BeginAssistantMessage()
	r.AppendFragment(id, "partial")
	r.AppendAssistantMessage("Sorry")
	r.CommitTurn()

	msgs := r.Conversations()[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "partial", msgs[1].Content)
	assert.Equal(t, "Sorry", msgs[2].Content)
	assert.Equal(t, "", r.AppendAssistantMessage("late"), "no turn in flight")
}

func TestTurn_UnreadWhenNotDisplayed(t *testing.T) {
	r := newTestReconciler()
	a := r.CreateConversation()

	r.AppendUserMessage("question")
	id := r.BeginAssistantMessage()

	// Switch away mid-turn.
	b := r.CreateConversation()
	assert.Empty(t, r.Active())

	r.AppendFragment(id, "answer")
	r.CommitTurn()

	conv, ok := r.Conversation(a)
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "answer", conv.Messages[1].Content)
	assert.Equal(t, 1, conv.UnreadCount)

	other, _ := r.Conversation(b)
	assert.Empty(t, other.Messages)

	r.MarkRead(a)
	conv, _ = r.Conversation(a)
	assert.Equal(t, 0, conv.UnreadCount)
}

func TestTurn_TargetDeleted(t *testing.T) {
	r := newTestReconciler()
	id := r.CreateConversation()
	r.AppendUserMessage("q")
	r.DeleteConversation(id)
	r.CommitTurn()

	assert.Empty(t, r.Conversations())
	assert.False(t, r.InFlight())
}

func TestHistory(t *testing.T) {
	r := newTestReconciler()
	assert.Empty(t, r.History(10))

	runTurn(t, r, "one", "1")
	runTurn(t, r, "two", "2")

	all := r.History(0)
	require.Len(t, all, 4)
	assert.Equal(t, "one", all[0].Content)

	last := r.History(3)
	require.Len(t, last, 3)
	assert.Equal(t, "1", last[0].Content)
	assert.Equal(t, "2", last[2].Content)

	r.AppendUserMessage("three")
	assert.Len(t, r.History(0), 4, "in-flight messages are not history")
}

// =============================================================================
// SUBSCRIBER TESTS
// =============================================================================

func TestSubscribe(t *testing.T) {
	r := newTestReconciler()
	var snapshots [][]*model.Conversation
	r.Subscribe(func(convs []*model.Conversation) {
		snapshots = append(snapshots, convs)
	})
	r.Subscribe(nil)

	r.CreateConversation()
	assert.Len(t, snapshots, 1)

	r.AppendUserMessage("hi")
	id := r.BeginAssistantMessage()
	r.AppendFragment(id, "x")
	assert.Len(t, snapshots, 1, "streaming is not persisted")

	r.CommitTurn()
	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[1][0].Messages, 2)

	// Snapshots are detached from live state.
	snapshots[1][0].Messages[0].Content = "mutated"
	assert.Equal(t, "hi", r.Conversations()[0].Messages[0].Content)

	r.SelectConversation("missing")
	r.ClearActive()
	assert.Len(t, snapshots, 2, "display changes are not persisted")
}

func TestSubscribe_ImplicitCreate(t *testing.T) {
	r := newTestReconciler()
	calls := 0
	r.Subscribe(func([]*model.Conversation) { calls++ })

	r.AppendUserMessage("hi")
	assert.Equal(t, 1, calls)

	// A subscriber may read the reconciler without deadlocking.
	r.Subscribe(func([]*model.Conversation) { _ = r.Conversations() })
	r.CommitTurn()
	assert.Equal(t, 2, calls)
}

func TestNew_TakesLoadedConversations(t *testing.T) {
	conv := model.NewConversation()
	r := New([]*model.Conversation{conv}, nil)

	assert.Equal(t, "", r.ActiveID())
	r.SelectConversation(conv.ID)
	assert.Equal(t, conv.ID, r.ActiveID())
}

func TestSetParticipants(t *testing.T) {
	r := newTestReconciler()
	r.SetParticipants([]string{"Me", "Bot"})
	id := r.CreateConversation()
	conv, ok := r.Conversation(id)
	require.True(t, ok)
	assert.Equal(t, []string{"Me", "Bot"}, conv.Participants)

	r.SetParticipants([]string{"Solo"})
	id = r.CreateConversation()
	conv, _ = r.Conversation(id)
	assert.Equal(t, model.DefaultParticipants, conv.Participants)
}

func TestSubscribe_ConcurrentChangesArriveInOrder(t *testing.T) {
	r := newTestReconciler()
	var (
		mu    sync.Mutex
		sizes []int
	)
	r.Subscribe(func(convs []*model.Conversation) {
		mu.Lock()
		sizes = append(sizes, len(convs))
		mu.Unlock()
	})

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				r.CreateConversation()
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, sizes)
	for i := 1; i < len(sizes); i++ {
		if sizes[i] <= sizes[i-1] {
			t.Fatalf("snapshot %d has %d conversations after one with %d", i, sizes[i], sizes[i-1])
		}
	}
	assert.Equal(t, workers*25, sizes[len(sizes)-1])
}
