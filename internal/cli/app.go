// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/jeranaias/quickr1/internal/chat"
	"github.com/jeranaias/quickr1/internal/config"
	"github.com/jeranaias/quickr1/internal/model"
	"github.com/jeranaias/quickr1/internal/ollama"
	"github.com/jeranaias/quickr1/internal/session"
	"github.com/jeranaias/quickr1/internal/storage"
	"github.com/jeranaias/quickr1/internal/ui/sidebar"
	"github.com/jeranaias/quickr1/internal/ui/styles"
)

// =============================================================================
// APPLICATION
// =============================================================================

// App wires storage, the reconciler, the backend client and the session
// together for one process.
type App struct {
	logger *slog.Logger
	store  *storage.Store
	saver  *storage.Saver
	chat   *chat.Reconciler
	client *ollama.Client
	sess   *session.Session
	ui     *model.UIState

	mu         sync.Mutex
	cfg        *config.Config
	themeName  model.Theme
	themeSaved bool
	theme      *styles.Theme
	onFragment func(text string)
	onState    func(session.State)
}

// OpenApp opens the configured storage backend and loads the saved
// conversations, sidebar state and theme.
func OpenApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path, err := cfg.StoragePath()
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	kv, err := storage.Open(cfg.Storage.Backend, path)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	store := storage.NewStore(kv, logger)

	a := &App{
		logger: logger,
		store:  store,
		cfg:    cfg,
		ui:     store.LoadUIState(),
	}

	a.chat = chat.New(store.LoadConversations(), logger)
	a.chat.SetParticipants(cfg.UI.Participants)
	a.saver = storage.NewSaver(store, cfg.Storage.SaveRatePerSec)
	a.chat.Subscribe(a.saver.Enqueue)

	a.client = ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Backend.URL,
		DefaultModel: cfg.Backend.Model,
		Logger:       logger,
	})
	a.sess = session.New(a.client, a.chat, session.ConfigFrom(cfg), session.Hooks{
		OnFragment: a.emitFragment,
		OnState:    a.emitState,
	}, logger)

	saved, ok := store.LoadTheme()
	a.themeSaved = ok
	a.setTheme(styles.Resolve(saved, ok, cfg.UI.Theme))

	logger.Debug("app opened",
		"storage", cfg.Storage.Backend,
		"path", path,
		"conversations", len(a.chat.Conversations()),
		"theme", a.themeName)
	return a, nil
}

// Close flushes pending saves and closes storage.
func (a *App) Close() error {
	saveErr := a.saver.Close()
	closeErr := a.store.Close()
	return errors.Join(saveErr, closeErr)
}

func (a *App) Chat() *chat.Reconciler    { return a.chat }
func (a *App) Session() *session.Session { return a.sess }
func (a *App) Client() *ollama.Client    { return a.client }
func (a *App) Store() *storage.Store     { return a.store }
func (a *App) UIState() *model.UIState   { return a.ui }

// Config returns the config currently in effect.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Theme returns the active styles.
func (a *App) Theme() *styles.Theme {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.theme
}

// ThemeName returns the active theme preference.
func (a *App) ThemeName() model.Theme {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.themeName
}

func (a *App) setTheme(name model.Theme) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.themeName = name
	a.theme = styles.NewTheme(name)
}

// ToggleTheme switches between light and dark and saves the choice.
func (a *App) ToggleTheme() model.Theme {
	next := a.ThemeName().Toggle()
	a.setTheme(next)
	a.mu.Lock()
	a.themeSaved = true
	a.mu.Unlock()
	a.store.SaveTheme(next)
	return next
}

// Reload applies a changed config file. Turn settings take effect from the
// next turn; a new backend URL needs a restart.
func (a *App) Reload(cfg *config.Config) {
	a.mu.Lock()
	old := a.cfg
	a.cfg = cfg
	saved := a.themeSaved
	a.mu.Unlock()

	a.sess.SetConfig(session.ConfigFrom(cfg))
	a.chat.SetParticipants(cfg.UI.Participants)
	if !saved && cfg.UI.Theme != old.UI.Theme {
		a.setTheme(styles.Resolve("", false, cfg.UI.Theme))
	}
	if cfg.Backend.URL != old.Backend.URL {
		a.logger.Warn("backend URL changed, restart to use it", "old", old.Backend.URL, "new", cfg.Backend.URL)
	}
	a.logger.Info("config reloaded", "model", cfg.Backend.Model)
}

// =============================================================================
// SESSION HOOKS
// =============================================================================

// SetStreamHandlers routes fragments and state changes of the running turn
// to the given functions. Nil clears them.
func (a *App) SetStreamHandlers(onFragment func(string), onState func(session.State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFragment = onFragment
	a.onState = onState
}

func (a *App) emitFragment(_ string, text string) {
	a.mu.Lock()
	fn := a.onFragment
	a.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

func (a *App) emitState(st session.State) {
	a.mu.Lock()
	fn := a.onState
	a.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// =============================================================================
// CONVERSATION LOOKUP
// =============================================================================

// Listing returns the conversations in display order.
func (a *App) Listing() []*model.Conversation {
	return sidebar.Sort(a.chat.Conversations())
}

// Resolve finds a conversation by its 1-based position in Listing or by a
// unique id prefix.
func (a *App) Resolve(ref string) (*model.Conversation, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrMissingArgument("conversation", "quickr1 history show 1")
	}
	convs := a.Listing()

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(convs) {
			return nil, NewNotFoundError("conversation", ref)
		}
		return convs[n-1], nil
	}

	var match *model.Conversation
	for _, conv := range convs {
		if conv.ID == ref {
			return conv, nil
		}
		if strings.HasPrefix(conv.ID, ref) {
			if match != nil {
				return nil, NewValidationError("conversation", ref, "id prefix matches more than one conversation")
			}
			match = conv
		}
	}
	if match == nil {
		return nil, NewNotFoundError("conversation", ref)
	}
	return match, nil
}

// Open displays a conversation, clears its unread count and records it as
// the selected sidebar entry.
func (a *App) Open(id string) {
	a.chat.SelectConversation(id)
	a.chat.MarkRead(id)
	a.ui.Select(id)
	a.store.SaveUIState(a.ui)
}
