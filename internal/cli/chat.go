// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/quickr1/internal/config"
	"github.com/jeranaias/quickr1/internal/model"
	"github.com/jeranaias/quickr1/internal/session"
	"github.com/jeranaias/quickr1/internal/ui/styles"
)

func newChatCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (default)",
		Long: `Start an interactive chat with the configured model.

Replies stream as they are generated. Ctrl+C cancels the reply in progress
and keeps what was received; Ctrl+D or /quit exits. Type /help for the
in-chat commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, e)
		},
	}
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one line of user input per call.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with history navigation on the arrow keys.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// plainReader reads lines from a pipe or file without line editing.
type plainReader struct {
	scanner *bufio.Scanner
}

func newPlainReader(r io.Reader) *plainReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &plainReader{scanner: sc}
}

func (p *plainReader) ReadInput(string) (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}

func (p *plainReader) Close() {}

// =============================================================================
// REPL
// =============================================================================

// repl is one interactive chat on a set of streams.
type repl struct {
	app    *App
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	quiet  bool

	// interactive is set when both input and output are terminals. It
	// enables the spinner and the full-screen picker.
	interactive bool
}

func newREPL(app *App, streams IOStreams, quiet bool) *repl {
	return &repl{
		app:         app,
		in:          streams.In,
		out:         streams.Out,
		errOut:      streams.Err,
		quiet:       quiet,
		interactive: isTerminal(streams.In) && isTerminal(streams.Out),
	}
}

// runChat opens the app and runs the REPL until the user quits.
func runChat(cmd *cobra.Command, e *env) error {
	app, err := e.open()
	if err != nil {
		return err
	}

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	if _, err := os.Stat(e.cfgPath); err == nil {
		reload := func(cfg *config.Config) {
			e.applyFlags(cfg)
			app.Reload(cfg)
		}
		if err := config.Watch(ctx, e.cfgPath, 0, e.logger, reload); err != nil {
			e.logger.Warn("config live reload unavailable", "error", err)
		}
	}

	// Ctrl+C while a reply streams cancels the turn. At the prompt liner
	// reads it as a key instead.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigChan:
				if app.Session().State().Busy() {
					app.Session().Cancel()
				}
			}
		}
	}()

	r := newREPL(app, e.streams, e.flags.quiet)
	var input lineReader
	if r.interactive {
		input = NewChatCLI()
	} else {
		input = newPlainReader(e.streams.In)
	}
	defer input.Close()

	return r.loop(ctx, input)
}

// loop reads and handles lines until EOF or /quit.
func (r *repl) loop(ctx context.Context, input lineReader) error {
	if !r.quiet {
		r.printWelcome()
	}
	for {
		line, err := input.ReadInput(r.prompt())
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D, or the end of piped input.
			if !errors.Is(err, io.EOF) && !errors.Is(err, liner.ErrPromptAborted) {
				r.app.logger.Debug("input closed", "error", err)
			}
			fmt.Fprintln(r.out)
			r.printGoodbye()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			cont, err := r.handleSlashCommand(ctx, line)
			if err != nil {
				DisplayError(r.errOut, err)
			}
			if !cont {
				r.printGoodbye()
				return nil
			}
			continue
		}

		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			r.printGoodbye()
			return nil
		}

		if err := r.send(ctx, line); err != nil {
			DisplayError(r.errOut, err)
		}
	}
}

func (r *repl) prompt() string {
	if !r.interactive {
		return ""
	}
	return r.app.Theme().Prompt.Render("quickr1> ")
}

// send runs one turn and streams the reply to the output. Cancellation is
// reported inline and is not an error.
func (r *repl) send(ctx context.Context, text string) error {
	theme := r.app.Theme()
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, theme.AssistantLabel.Render(model.RoleAssistant.DisplayName()))

	sp := startSpinner(r.interactive && !r.quiet, r.out, theme.Thinking, "Thinking...")
	r.app.SetStreamHandlers(func(text string) {
		sp.Stop()
		fmt.Fprint(r.out, text)
	}, nil)
	defer r.app.SetStreamHandlers(nil, nil)

	res, err := r.app.Session().Submit(ctx, text)
	sp.Stop()

	reportTurn(r.out, r.out, theme, res, err, r.quiet)
	fmt.Fprintln(r.out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reportTurn prints what follows a streamed reply: the apology after a
// failure, a notice after cancellation, or the metrics footer.
func reportTurn(out, footer io.Writer, theme *styles.Theme, res *session.Result, err error, quiet bool) {
	streamed := res != nil && res.Content != ""
	if streamed {
		fmt.Fprintln(out)
	}
	switch {
	case err == nil:
		if !quiet && res != nil && res.Metrics != nil {
			fmt.Fprintln(footer, theme.RenderFooter(res.Metrics))
		}
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(footer, theme.RenderWarning("Cancelled, partial reply kept"))
	case errors.Is(err, session.ErrTurnInFlight), errors.Is(err, session.ErrEmptyMessage):
	default:
		fmt.Fprintln(out, theme.AssistantText.Render(session.ApologyMessage))
	}
}

// =============================================================================
// SPINNER
// =============================================================================

// spinner animates a waiting indicator on one terminal line until stopped.
type spinner struct {
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// startSpinner starts the animation when enabled. The returned spinner is
// always safe to Stop.
func startSpinner(enabled bool, w io.Writer, style lipgloss.Style, label string) *spinner {
	s := &spinner{done: make(chan struct{})}
	if !enabled {
		return s
	}
	cfg := styles.LineSpinner
	start := time.Now()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(cfg.Duration())
		defer ticker.Stop()
		for {
			fmt.Fprint(w, "\r"+style.Render(cfg.Frame(time.Since(start))+" "+label))
			select {
			case <-s.done:
				fmt.Fprint(w, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
	return s
}

// Stop ends the animation and clears its line.
func (s *spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (r *repl) printWelcome() {
	theme := r.app.Theme()
	cfg := r.app.Config()
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, theme.Title.Render("quickr1"))
	fmt.Fprintln(r.out, theme.Muted.Render(strings.Repeat("-", 30)))
	fmt.Fprintf(r.out, "%s %s\n", theme.Muted.Render("Model:"), theme.ShortcutKey.Render(cfg.Backend.Model))
	fmt.Fprintf(r.out, "%s %s\n", theme.Muted.Render("Backend:"), cfg.Backend.URL)
	fmt.Fprintf(r.out, "%s %d saved\n", theme.Muted.Render("Conversations:"), len(r.app.Chat().Conversations()))
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, theme.Muted.Render("Type a message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(r.out)
}

func (r *repl) printGoodbye() {
	if r.quiet {
		return
	}
	fmt.Fprintln(r.out, r.app.Theme().Muted.Render("Goodbye!"))
}
