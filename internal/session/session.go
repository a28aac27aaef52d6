// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jeranaias/quickr1/internal/chat"
	"github.com/jeranaias/quickr1/internal/config"
	"github.com/jeranaias/quickr1/internal/model"
	"github.com/jeranaias/quickr1/internal/ollama"
	"github.com/jeranaias/quickr1/internal/stream"
)

// ApologyMessage is the assistant reply recorded when a turn fails.
const ApologyMessage = "Sorry, I encountered an error. Please try again."

var (
	// ErrTurnInFlight is returned by Submit while another turn is running.
	ErrTurnInFlight = errors.New("a turn is already in progress")

	// ErrEmptyMessage is returned by Submit for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// =============================================================================
// STATE
// =============================================================================

// State is the turn state of a Session.
type State int32

const (
	// StateIdle accepts a new turn.
	StateIdle State = iota

	// StateAwaitingResponse means the request is sent and no content has
	// arrived yet.
	StateAwaitingResponse

	// StateStreaming means response content is arriving.
	StateStreaming

	// StateFailed is held briefly while the apology is recorded.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateStreaming:
		return "Streaming"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Busy reports whether a turn is running.
func (s State) Busy() bool {
	return s != StateIdle
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Transport starts a streamed generation. *ollama.Client implements it.
type Transport interface {
	GenerateStream(ctx context.Context, req ollama.GenerateRequest) (io.ReadCloser, error)
}

// Config holds per-turn settings.
type Config struct {
	// Model is sent with every request; empty lets the transport choose.
	Model string

	// Timeout bounds a whole turn including the streamed body. 0 disables it.
	Timeout time.Duration

	// ChunkSize is the body read size.
	ChunkSize int

	// MaxContextMessages limits the history sent as prompt context.
	// 0 sends the whole conversation.
	MaxContextMessages int
}

// ConfigFrom extracts session settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Model:              cfg.Backend.Model,
		Timeout:            cfg.Backend.Timeout(),
		ChunkSize:          cfg.Backend.StreamChunkSize,
		MaxContextMessages: cfg.History.MaxContextMessages,
	}
}

// Hooks are optional observers for presentation. They run on the goroutine
// that called Submit.
type Hooks struct {
	OnState    func(State)
	OnFragment func(messageID, text string)
	OnComplete func(Result)
}

// Result describes a finished turn.
type Result struct {
	UserMessageID      string
	AssistantMessageID string
	Content            string
	Metrics            *model.Metrics
	Stats              stream.Stats
	Duration           time.Duration
	Err                error
}

// =============================================================================
// SESSION
// =============================================================================

// Session runs chat turns against a Transport and records them in a
// Reconciler. One turn at a time: the state word is claimed with a
// compare-and-swap, so a concurrent Submit fails fast instead of queueing.
type Session struct {
	state     atomic.Int32
	transport Transport
	chat      *chat.Reconciler
	cfg       atomic.Pointer[Config]
	hooks     Hooks
	logger    *slog.Logger
	cancelMgr *cancelManager
}

// New creates a session. A nil logger uses slog.Default().
func New(transport Transport, rec *chat.Reconciler, cfg Config, hooks Hooks, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		transport: transport,
		chat:      rec,
		hooks:     hooks,
		logger:    logger,
		cancelMgr: newCancelManager(),
	}
	s.SetConfig(cfg)
	return s
}

// SetConfig replaces the per-turn settings. A running turn keeps the
// settings it started with.
func (s *Session) SetConfig(cfg Config) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = stream.DefaultChunkSize
	}
	s.cfg.Store(&cfg)
}

// Config returns the current per-turn settings.
func (s *Session) Config() Config {
	return *s.cfg.Load()
}

// State returns the current turn state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Chat returns the reconciler the session writes to.
func (s *Session) Chat() *chat.Reconciler {
	return s.chat
}

// Cancel stops the running turn, if any. Content received so far is kept.
func (s *Session) Cancel() {
	s.cancelMgr.cancel()
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	if s.hooks.OnState != nil {
		s.hooks.OnState(st)
	}
}

// Submit runs one turn for text and blocks until it is committed.
//
// Failures before or during the response record an apology reply and return
// the transport or read error. Cancellation of ctx (or Cancel) commits what
// was received and returns context.Canceled. In every case the session is
// Idle again when Submit returns, except for ErrTurnInFlight, which leaves
// the running turn untouched.
func (s *Session) Submit(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateAwaitingResponse)) {
		return nil, ErrTurnInFlight
	}
	if s.hooks.OnState != nil {
		s.hooks.OnState(StateAwaitingResponse)
	}

	cfg := s.Config()
	history := s.chat.History(cfg.MaxContextMessages)
	userID, ok := s.chat.AppendUserMessage(text)
	if !ok {
		s.setState(StateIdle)
		return nil, ErrTurnInFlight
	}

	start := time.Now()
	res := &Result{UserMessageID: userID}
	err := s.run(ctx, cfg, history, strings.TrimSpace(text), res)
	res.Duration = time.Since(start)
	res.Err = err

	s.chat.CommitTurn()
	s.setState(StateIdle)

	if s.hooks.OnComplete != nil {
		s.hooks.OnComplete(*res)
	}
	return res, err
}

// run performs the request and streams the body into the reconciler. The
// turn is still in flight when it returns.
func (s *Session) run(parent context.Context, cfg Config, history []*model.Message, text string, res *Result) error {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	s.cancelMgr.setCancelFunc(cancel)
	defer s.cancelMgr.clear()

	req := ollama.NewGenerateRequest(cfg.Model, history, text)
	body, err := s.transport.GenerateStream(ctx, req)
	if err != nil {
		if canceled(parent, ctx) {
			s.logger.Info("turn canceled before response")
			return context.Canceled
		}
		return s.fail(fmt.Errorf("generate request: %w", err))
	}
	defer body.Close()

	// A blocked read does not observe ctx on its own.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	began := false
	begin := func() {
		if began {
			return
		}
		began = true
		res.AssistantMessageID = s.chat.BeginAssistantMessage()
		s.setState(StateStreaming)
	}

	var content strings.Builder
	dec := stream.NewDecoder(&stream.DecoderConfig{ChunkSize: cfg.ChunkSize, Logger: s.logger})
	src := &firstReadReader{r: body, onFirst: begin}
	procErr := dec.Process(ctx, src, func(ev stream.Event) {
		switch ev.Kind {
		case stream.EventFragment:
			content.WriteString(ev.Text)
			s.chat.AppendFragment(res.AssistantMessageID, ev.Text)
			if s.hooks.OnFragment != nil {
				s.hooks.OnFragment(res.AssistantMessageID, ev.Text)
			}
		case stream.EventTerminal:
			if res.Metrics == nil {
				res.Metrics = ev.Metrics
			}
			s.chat.FinalizeMetrics(res.AssistantMessageID, ev.Metrics)
		}
	})
	res.Stats = dec.Stats()
	res.Content = content.String()

	switch {
	case procErr == nil:
		// An empty body still produces an (empty) assistant reply.
		begin()
		return nil
	case canceled(parent, ctx):
		s.logger.Info("turn canceled", "bytes", res.Stats.Bytes, "fragments", res.Stats.Fragments)
		return context.Canceled
	default:
		return s.fail(fmt.Errorf("read response: %w", procErr))
	}
}

// fail records the apology reply and reports err.
func (s *Session) fail(err error) error {
	s.setState(StateFailed)
	s.logger.Error("turn failed", "error", err)
	s.chat.AppendAssistantMessage(ApologyMessage)
	return err
}

// canceled reports whether the turn ended by cancellation rather than by
// its own timeout.
func canceled(parent, ctx context.Context) bool {
	if errors.Is(parent.Err(), context.Canceled) {
		return true
	}
	return errors.Is(ctx.Err(), context.Canceled)
}

// firstReadReader calls onFirst before returning the first non-empty read.
type firstReadReader struct {
	r       io.Reader
	onFirst func()
	seen    bool
}

func (f *firstReadReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if n > 0 && !f.seen {
		f.seen = true
		f.onFirst()
	}
	return n, err
}
