// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/quickr1/internal/model"
	"github.com/jeranaias/quickr1/internal/ui/sidebar"
	"github.com/jeranaias/quickr1/internal/ui/styles"
	"github.com/jeranaias/quickr1/internal/util"
)

// recentOnOpen is how many messages /open prints.
const recentOnOpen = 10

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func (r *repl) handleSlashCommand(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
	theme := r.app.Theme()

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()

	case "/new", "/n":
		id := r.app.Chat().CreateConversation()
		r.app.UIState().Select(id)
		r.app.Store().SaveUIState(r.app.UIState())
		fmt.Fprintln(r.out, theme.RenderSuccess("Started conversation "+shortID(id)))

	case "/clear", "/c":
		r.app.Chat().ClearActive()
		if r.interactive {
			fmt.Fprint(r.out, "\033[H\033[2J")
		}
		fmt.Fprintln(r.out, theme.RenderInfo("Start a new chat. Your next message opens a new conversation."))

	case "/list", "/l":
		printConversationList(r.out, theme, r.app.Listing(), r.app.Chat().ActiveID(), time.Now())

	case "/search":
		if arg == "" {
			return true, ErrMissingArgument("query", "/search golang")
		}
		matches := sidebar.Sort(r.app.Chat().Search(arg))
		if len(matches) == 0 {
			fmt.Fprintln(r.out, theme.RenderInfo("No conversations match "+arg))
			break
		}
		printConversationList(r.out, theme, matches, r.app.Chat().ActiveID(), time.Now())

	case "/open", "/o":
		if arg == "" {
			return true, ErrMissingArgument("conversation", "/open 1")
		}
		conv, err := r.app.Resolve(arg)
		if err != nil {
			return true, err
		}
		r.open(conv)

	case "/pick", "/p":
		return true, r.pick()

	case "/pin":
		id := r.app.Chat().ActiveID()
		if arg != "" {
			conv, err := r.app.Resolve(arg)
			if err != nil {
				return true, err
			}
			id = conv.ID
		}
		if id == "" {
			return true, NewValidationError("conversation", "", "no conversation is open")
		}
		r.app.Chat().TogglePin(id)
		if conv, ok := r.app.Chat().Conversation(id); ok && conv.IsPinned {
			fmt.Fprintln(r.out, theme.RenderSuccess("Pinned "+shortID(id)))
		} else {
			fmt.Fprintln(r.out, theme.RenderSuccess("Unpinned "+shortID(id)))
		}

	case "/theme", "/t":
		want := model.Theme(strings.ToLower(arg))
		if arg != "" && !want.Valid() {
			return true, NewValidationError("theme", arg, "must be light or dark")
		}
		if arg == "" || want != r.app.ThemeName() {
			r.app.ToggleTheme()
		}
		fmt.Fprintln(r.out, r.app.Theme().RenderSuccess("Theme: "+string(r.app.ThemeName())))

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

// open displays conv and prints its most recent messages.
func (r *repl) open(conv *model.Conversation) {
	r.app.Open(conv.ID)
	theme := r.app.Theme()

	fmt.Fprintln(r.out, theme.RenderInfo(fmt.Sprintf("Opened %q (%d messages)", conv.Title(), len(conv.Messages))))
	msgs := conv.Messages
	if len(msgs) > recentOnOpen {
		fmt.Fprintln(r.out, theme.Muted.Render(fmt.Sprintf("... %d earlier messages, see: quickr1 history show %s", len(msgs)-recentOnOpen, shortID(conv.ID))))
		msgs = msgs[len(msgs)-recentOnOpen:]
	}
	for _, msg := range msgs {
		printMessage(r.out, theme, msg)
	}
	fmt.Fprintln(r.out)
}

// pick runs the full-screen conversation picker and opens the choice.
func (r *repl) pick() error {
	if !r.interactive {
		return NewValidationError("terminal", "", "/pick needs an interactive terminal, use /list and /open")
	}
	listing := r.app.Listing()
	if len(listing) == 0 {
		fmt.Fprintln(r.out, r.app.Theme().RenderInfo("No conversations yet."))
		return nil
	}
	width, height := terminalSize(r.out)
	id, err := sidebar.Run(r.in, r.out, listing, r.app.UIState(), r.app.Theme(), sidebar.Options{
		OnChange: r.app.Store().SaveUIState,
		Width:    width,
		Height:   height - 1,
	})
	if err != nil || id == "" {
		return err
	}
	if conv, ok := r.app.Chat().Conversation(id); ok {
		r.open(conv)
	}
	return nil
}

// printHelp prints available commands.
func (r *repl) printHelp() {
	theme := r.app.Theme()
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, theme.Subtitle.Render("Available Commands"))
	fmt.Fprintln(r.out, theme.Muted.Render(strings.Repeat("-", 20)))

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new, /n", "Start a new conversation"},
		{"/clear, /c", "Clear the screen; the next message starts a new conversation"},
		{"/list, /l", "List saved conversations"},
		{"/search <text>", "Find conversations by participant or content"},
		{"/open <n|id>", "Continue a saved conversation"},
		{"/pick, /p", "Browse conversations full screen"},
		{"/pin [n|id]", "Pin or unpin a conversation"},
		{"/theme [light|dark]", "Switch color theme"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n",
			theme.ShortcutKey.Render(fmt.Sprintf("%-20s", c.cmd)),
			theme.ShortcutDesc.Render(c.desc))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, theme.Muted.Render("Tip: Ctrl+C cancels the current reply, Ctrl+D exits"))
	fmt.Fprintln(r.out)
}

// =============================================================================
// SHARED PRINTERS
// =============================================================================

// printConversationList writes a numbered listing. Numbers match what
// Resolve accepts for the same listing.
func printConversationList(w io.Writer, theme *styles.Theme, convs []*model.Conversation, activeID string, now time.Time) {
	if len(convs) == 0 {
		fmt.Fprintln(w, theme.Muted.Render("No conversations yet."))
		return
	}
	for i, conv := range convs {
		marker := " "
		if conv.ID == activeID {
			marker = ">"
		}
		badges := ""
		if conv.IsPinned {
			badges += " " + theme.Pinned.Render(styles.StatusIndicators.Pinned)
		}
		if conv.UnreadCount > 0 {
			badges += " " + theme.RenderUnread(conv.UnreadCount)
		}
		fmt.Fprintf(w, "%s%3d. %s  %s%s  %s\n",
			marker,
			i+1,
			theme.ListMeta.Render(shortID(conv.ID)),
			util.PadRight(util.TruncateWidth(conv.Title(), 40), 40),
			badges,
			theme.ListMeta.Render(fmt.Sprintf("%d msgs, %s", len(conv.Messages), sidebar.FormatTimestamp(sidebar.LastActivity(conv), now))),
		)
	}
}

// printMessage writes one message with its speaker label and, for replies
// with final statistics, the metrics footer.
func printMessage(w io.Writer, theme *styles.Theme, msg *model.Message) {
	label := theme.AssistantLabel
	text := theme.AssistantText
	if msg.IsUser() {
		label = theme.UserLabel
		text = theme.UserText
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, label.Render(msg.Role.DisplayName()))
	fmt.Fprintln(w, text.Render(msg.Content))
	if msg.HasMetrics() {
		fmt.Fprintln(w, theme.RenderFooter(msg.Metrics))
	}
}
