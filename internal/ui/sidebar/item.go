// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sidebar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/quickr1/internal/model"
	"github.com/jeranaias/quickr1/internal/ui/styles"
	"github.com/jeranaias/quickr1/internal/util"
)

// defaultWidth is used before the first window size message arrives.
const defaultWidth = 48

// item adapts a conversation to list.Item.
type item struct {
	conv *model.Conversation
}

func (i item) Title() string       { return Participants(i.conv) }
func (i item) Description() string { return i.conv.Title() }

// FilterValue joins everything the search box matches against.
func (i item) FilterValue() string {
	var b strings.Builder
	b.WriteString(Participants(i.conv))
	for _, msg := range i.conv.Messages {
		b.WriteByte('\n')
		b.WriteString(msg.Content)
	}
	return b.String()
}

// substringFilter keeps items containing term, case-insensitively, in their
// original order.
func substringFilter(term string, targets []string) []list.Rank {
	q := strings.ToLower(term)
	ranks := make([]list.Rank, 0, len(targets))
	for i, target := range targets {
		idx := strings.Index(strings.ToLower(target), q)
		if idx < 0 {
			continue
		}
		var matched []int
		// Highlight only matches inside the first line, which is the one shown.
		if nl := strings.IndexByte(target, '\n'); nl < 0 || idx+len(term) <= nl {
			for j := 0; j < len([]rune(term)); j++ {
				matched = append(matched, len([]rune(target[:idx]))+j)
			}
		}
		ranks = append(ranks, list.Rank{Index: i, MatchedIndexes: matched})
	}
	return ranks
}

// =============================================================================
// DELEGATE
// =============================================================================

// delegate renders one conversation as three lines: a header with the
// participants, unread badge and timestamp, then either the title or, when
// expanded, the last two messages.
type delegate struct {
	theme *styles.Theme
	state *model.UIState
	now   func() time.Time
}

func (d delegate) Height() int                         { return 3 }
func (d delegate) Spacing() int                        { return 1 }
func (d delegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d delegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	it, ok := listItem.(item)
	if !ok {
		return
	}
	width := m.Width()
	if width <= 0 {
		width = defaultWidth
	}
	fmt.Fprint(w, d.render(it.conv, index == m.Index(), width))
}

func (d delegate) render(conv *model.Conversation, cursor bool, width int) string {
	t := d.theme
	inner := width - 3
	if inner < 10 {
		inner = 10
	}

	// Header: [marker] participants (unread) ........ timestamp
	marker := "v"
	expanded := d.state.Expanded[conv.ID]
	if !expanded {
		marker = ">"
	}
	if conv.IsPinned {
		marker += styles.StatusIndicators.Pinned
	}
	stamp := FormatTimestamp(LastActivity(conv), d.now())
	unread := ""
	if conv.UnreadCount > 0 {
		unread = fmt.Sprintf(" "+styles.StatusIndicators.Unread, conv.UnreadCount)
	}

	room := inner - runewidth.StringWidth(marker) - 1 - runewidth.StringWidth(unread) - runewidth.StringWidth(stamp) - 1
	names := util.TruncateWidth(Participants(conv), room)
	left := marker + " " + names
	gap := inner - runewidth.StringWidth(left) - runewidth.StringWidth(unread) - runewidth.StringWidth(stamp)
	if gap < 1 {
		gap = 1
	}

	header := left
	if unread != "" {
		header += t.Unread.Render(unread)
	}
	header += strings.Repeat(" ", gap) + t.ListMeta.Render(stamp)

	// Body
	var body []string
	if expanded {
		msgs := conv.Messages
		if len(msgs) > 2 {
			msgs = msgs[len(msgs)-2:]
		}
		for _, msg := range msgs {
			line := fmt.Sprintf("%s: %s %s", msg.Type, util.OneLine(msg.Content), msg.Status)
			body = append(body, t.ListPreview.Render(util.TruncateWidth(line, inner)))
		}
	} else {
		body = append(body, t.ListPreview.Render(util.TruncateWidth(conv.Title(), inner)))
	}
	for len(body) < 2 {
		body = append(body, "")
	}

	style := t.ListItem
	if d.state.Selected == conv.ID {
		style = style.Foreground(t.Palette.Cyan)
	}
	if cursor {
		style = t.ListItemSelected
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, header, body[0], body[1]))
}
