// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/quickr1/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// backends returns a fresh instance of every KV implementation.
func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	fileKV, err := NewFileKV(filepath.Join(dir, "files"))
	require.NoError(t, err)
	boltKV, err := NewBoltKV(filepath.Join(dir, "q.bolt"))
	require.NoError(t, err)
	sqliteKV, err := NewSQLiteKV(filepath.Join(dir, "q.db"))
	require.NoError(t, err)

	kvs := map[string]KV{
		"file":   fileKV,
		"bolt":   boltKV,
		"sqlite": sqliteKV,
		"memory": NewMemoryKV(),
	}
	t.Cleanup(func() {
		for _, kv := range kvs {
			kv.Close()
		}
	})
	return kvs
}

func sampleConversations() []*model.Conversation {
	first := model.NewConversation()
	first.Append(model.NewUserMessage("Hello"))
	reply := model.NewAssistantMessage()
	reply.Content = "Hi there"
	reply.Metrics = &model.Metrics{TotalDuration: 1200000000, PromptEvalCount: 3, EvalCount: 7, Context: json.RawMessage(`[1,2]`)}
	first.Append(reply)
	first.IsPinned = true

	second := model.NewConversation()
	second.UnreadCount = 2

	return []*model.Conversation{first, second}
}

// =============================================================================
// KV BACKEND TESTS
// =============================================================================

func TestKV_GetSetDelete(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get("missing")
			assert.True(t, errors.Is(err, ErrNotFound), "Get(missing) = %v", err)

			require.NoError(t, kv.Set("theme", []byte(`"dark"`)))
			require.NoError(t, kv.Set("theme", []byte(`"light"`)))

			got, err := kv.Get("theme")
			require.NoError(t, err)
			assert.Equal(t, `"light"`, string(got))

			require.NoError(t, kv.Set("conversations", []byte(`[]`)))
			keys, err := kv.Keys()
			require.NoError(t, err)
			assert.Equal(t, []string{"conversations", "theme"}, keys)

			require.NoError(t, kv.Delete("theme"))
			require.NoError(t, kv.Delete("theme"))
			_, err = kv.Get("theme")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestKV_InvalidKey(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "..", "a/b", `a\b`} {
				err := kv.Set(key, []byte("x"))
				assert.ErrorIs(t, err, ErrInvalidKey, "Set(%q)", key)
			}
		})
	}
}

func TestKV_ValueIsCopied(t *testing.T) {
	kv := NewMemoryKV()
	buf := []byte("abc")
	require.NoError(t, kv.Set("k", buf))
	buf[0] = 'z'

	got, _ := kv.Get("k")
	assert.Equal(t, "abc", string(got))
}

func TestMemoryKV_Closed(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Close())
	_, err := kv.Get("k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"file", "bolt", "sqlite", "memory"} {
		kv, err := Open(backend, filepath.Join(dir, backend))
		require.NoError(t, err, backend)
		require.NoError(t, kv.Close())
	}
	_, err := Open("redis", dir)
	assert.Error(t, err)
}

func TestBoltKV_SecondHandleWhileIdle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.bolt")
	a, err := NewBoltKV(path)
	require.NoError(t, err)
	b, err := NewBoltKV(path)
	require.NoError(t, err)

	require.NoError(t, a.Set("theme", []byte(`"dark"`)))
	got, err := b.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, `"dark"`, string(got))
}

// =============================================================================
// STORE TESTS
// =============================================================================

func TestStore_ConversationsFixedPoint(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(kv, quietLogger())
			store.SaveConversations(sampleConversations())

			first := store.LoadConversations()
			require.Len(t, first, 2)

			store.SaveConversations(first)
			second := store.LoadConversations()
			assert.Equal(t, first, second)

			raw1, _ := json.Marshal(first)
			raw2, _ := json.Marshal(second)
			assert.JSONEq(t, string(raw1), string(raw2))
		})
	}
}

func TestStore_ConversationsContent(t *testing.T) {
	store := NewStore(NewMemoryKV(), quietLogger())
	want := sampleConversations()
	store.SaveConversations(want)

	got := store.LoadConversations()
	require.Len(t, got, 2)

	assert.Equal(t, want[0].ID, got[0].ID)
	assert.True(t, got[0].IsPinned)
	assert.Equal(t, 2, got[1].UnreadCount)
	require.Len(t, got[0].Messages, 2)

	reply := got[0].Messages[1]
	assert.Equal(t, model.RoleAssistant, reply.Role)
	require.NotNil(t, reply.Metrics)
	assert.Equal(t, 7, reply.Metrics.EvalCount)
	assert.JSONEq(t, `[1,2]`, string(reply.Metrics.Context))
	assert.True(t, want[0].UpdatedAt.Equal(got[0].UpdatedAt), "UpdatedAt not revived")
}

func TestStore_MissingAndCorrupt(t *testing.T) {
	var logs bytes.Buffer
	kv := NewMemoryKV()
	store := NewStore(kv, slog.New(slog.NewTextHandler(&logs, nil)))

	assert.Empty(t, store.LoadConversations())
	assert.Empty(t, logs.String(), "missing key should not warn")

	require.NoError(t, kv.Set(KeyConversations, []byte(`{not json`)))
	convs := store.LoadConversations()
	assert.NotNil(t, convs)
	assert.Empty(t, convs)
	assert.Contains(t, logs.String(), "discarding unreadable conversations")

	require.NoError(t, kv.Set(KeySidebarState, []byte(`[1,2`)))
	state := store.LoadUIState()
	assert.Empty(t, state.Expanded)
	assert.Empty(t, state.Selected)

	require.NoError(t, kv.Set(KeyTheme, []byte(`"purple"`)))
	_, ok := store.LoadTheme()
	assert.False(t, ok)
}

func TestStore_SkipsMalformedEntries(t *testing.T) {
	kv := NewMemoryKV()
	store := NewStore(kv, quietLogger())
	data := `[{"id":"a","participants":["You","Assistant"],"messages":[],"updatedAt":"2025-03-01T10:00:00.000Z"},` +
		`{"id":5},` +
		`{"participants":[]},` +
		`{"id":"b","messages":[{"id":"m","content":"hi","senderId":"user","timestamp":"2025-03-01T10:00:00.000Z"}],"updatedAt":"2025-03-01T10:00:00.000Z"}]`
	require.NoError(t, kv.Set(KeyConversations, []byte(data)))

	convs := store.LoadConversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "a", convs[0].ID)
	assert.Equal(t, "b", convs[1].ID)
	assert.Equal(t, model.RoleUser, convs[1].Messages[0].Role)
	assert.Len(t, convs[1].Participants, 2)
}

func TestStore_UIStateAndTheme(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(kv, quietLogger())

			_, ok := store.LoadTheme()
			assert.False(t, ok)

			store.SaveTheme(model.ThemeDark)
			theme, ok := store.LoadTheme()
			assert.True(t, ok)
			assert.Equal(t, model.ThemeDark, theme)

			state := model.NewUIState()
			state.Expand("x")
			state.Select("x")
			store.SaveUIState(state)

			raw, err := kv.Get(KeySidebarState)
			require.NoError(t, err)
			assert.JSONEq(t, `{"expanded":["x"],"selected":"x"}`, string(raw))

			loaded := store.LoadUIState()
			assert.Equal(t, state, loaded)
		})
	}
}

// failingKV fails every write.
type failingKV struct{ *MemoryKV }

func (failingKV) Set(string, []byte) error { return errors.New("disk full") }

func TestStore_SaveFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	store := NewStore(failingKV{NewMemoryKV()}, slog.New(slog.NewTextHandler(&logs, nil)))

	store.SaveConversations(sampleConversations())
	store.SaveTheme(model.ThemeLight)

	assert.Contains(t, logs.String(), "failed to save")
	assert.Contains(t, logs.String(), "disk full")
}

// =============================================================================
// SAVER TESTS
// =============================================================================

// countingKV records how many writes reach the backend.
type countingKV struct {
	*MemoryKV
	mu   sync.Mutex
	sets int
}

func (c *countingKV) Set(key string, value []byte) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.MemoryKV.Set(key, value)
}

func (c *countingKV) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func TestSaver_CloseFlushesLatest(t *testing.T) {
	kv := &countingKV{MemoryKV: NewMemoryKV()}
	store := NewStore(kv, quietLogger())
	// One write per hour: only the first snapshot and the flush can land.
	saver := NewSaver(store, 1.0/3600)

	var last []*model.Conversation
	for i := 0; i < 50; i++ {
		conv := model.NewConversation()
		conv.Append(model.NewUserMessage("msg"))
		last = []*model.Conversation{conv}
		saver.Enqueue(last)
	}
	require.NoError(t, saver.Close())

	assert.LessOrEqual(t, kv.count(), 2)
	got := store.LoadConversations()
	require.Len(t, got, 1)
	assert.Equal(t, last[0].ID, got[0].ID)
}

func TestSaver_WritesInBackground(t *testing.T) {
	kv := &countingKV{MemoryKV: NewMemoryKV()}
	store := NewStore(kv, quietLogger())
	saver := NewSaver(store, 0)
	defer saver.Close()

	saver.Enqueue(sampleConversations())

	assert.Eventually(t, func() bool { return saver.Writes() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, store.LoadConversations(), 2)
}

func TestSaver_EnqueueAfterClose(t *testing.T) {
	store := NewStore(NewMemoryKV(), quietLogger())
	saver := NewSaver(store, 0)
	require.NoError(t, saver.Close())
	require.NoError(t, saver.Close())

	saver.Enqueue(sampleConversations())
	assert.Len(t, store.LoadConversations(), 2)
}

// gatedKV holds the first write until release is closed.
type gatedKV struct {
	*MemoryKV
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedKV) Set(key string, value []byte) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.MemoryKV.Set(key, value)
}

func TestSaver_EnqueueDuringCloseKeepsNewest(t *testing.T) {
	kv := &gatedKV{MemoryKV: NewMemoryKV(), entered: make(chan struct{}), release: make(chan struct{})}
	store := NewStore(kv, quietLogger())
	saver := NewSaver(store, 0)

	older := model.NewConversation()
	saver.Enqueue([]*model.Conversation{older})
	<-kv.entered

	closeDone := make(chan struct{})
	go func() {
		saver.Close()
		close(closeDone)
	}()
	require.Eventually(t, func() bool {
		saver.mu.Lock()
		defer saver.mu.Unlock()
		return saver.closed
	}, 2*time.Second, time.Millisecond)

	newer := model.NewConversation()
	enqueueDone := make(chan struct{})
	go func() {
		saver.Enqueue([]*model.Conversation{newer})
		close(enqueueDone)
	}()

	close(kv.release)
	<-closeDone
	<-enqueueDone

	got := store.LoadConversations()
	require.Len(t, got, 1)
	assert.Equal(t, newer.ID, got[0].ID)
}
