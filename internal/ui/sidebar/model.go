// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sidebar

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/quickr1/internal/model"
	"github.com/jeranaias/quickr1/internal/ui/styles"
)

// Model is the bubbletea model for the conversation picker.
type Model struct {
	list     list.Model
	theme    *styles.Theme
	state    *model.UIState
	onChange func(*model.UIState)

	chosen string
	done   bool
}

// Options configures a picker.
type Options struct {
	// OnChange is called after every expand, collapse or selection.
	OnChange func(*model.UIState)
	// Now overrides the clock used for timestamps.
	Now func() time.Time
	// Width and Height set the initial list size.
	Width, Height int
}

// New builds a picker over convs. The slice is sorted for display; state is
// updated in place as the user expands and selects conversations.
func New(convs []*model.Conversation, state *model.UIState, theme *styles.Theme, opts Options) Model {
	if state == nil {
		state = model.NewUIState()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = 20
	}

	sorted := Sort(append([]*model.Conversation(nil), convs...))
	items := make([]list.Item, 0, len(sorted))
	cursor := 0
	for i, conv := range sorted {
		items = append(items, item{conv: conv})
		if conv.ID == state.Selected {
			cursor = i
		}
	}

	d := delegate{theme: theme, state: state, now: opts.Now}
	l := list.New(items, d, opts.Width, opts.Height)
	l.Title = fmt.Sprintf("Conversations (%d)", len(items))
	l.Styles.Title = theme.ListTitle
	l.Filter = substringFilter
	l.SetShowHelp(false)
	l.SetStatusBarItemName("conversation", "conversations")
	l.DisableQuitKeybindings()
	l.Select(cursor)

	return Model{list: l, theme: theme, state: state, onChange: opts.OnChange}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-1)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			return m, tea.Quit
		}
		if m.list.FilterState() != list.Filtering {
			switch msg.String() {
			case "enter", " ":
				if id := m.current(); id != "" {
					m.state.Select(id)
					m.changed()
					m.chosen = id
					m.done = true
					return m, tea.Quit
				}
				return m, nil
			case "right", "l":
				if id := m.current(); id != "" {
					m.state.Expand(id)
					m.changed()
				}
				return m, nil
			case "left", "h":
				if id := m.current(); id != "" {
					m.state.Collapse(id)
					m.changed()
				}
				return m, nil
			case "tab":
				if id := m.current(); id != "" {
					m.state.Toggle(id)
					m.changed()
				}
				return m, nil
			case "q":
				m.done = true
				return m, tea.Quit
			case "esc":
				if m.list.FilterState() == list.Unfiltered {
					m.done = true
					return m, tea.Quit
				}
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.done {
		return ""
	}
	if len(m.list.Items()) == 0 {
		return m.theme.Muted.Render("No conversations yet.") + "\n"
	}
	help := m.theme.ShortcutKey.Render("enter") + m.theme.ShortcutDesc.Render(" open  ") +
		m.theme.ShortcutKey.Render("left/right") + m.theme.ShortcutDesc.Render(" collapse/expand  ") +
		m.theme.ShortcutKey.Render("/") + m.theme.ShortcutDesc.Render(" search  ") +
		m.theme.ShortcutKey.Render("q") + m.theme.ShortcutDesc.Render(" back")
	return m.list.View() + "\n" + help
}

// Chosen returns the conversation picked with enter, if any.
func (m Model) Chosen() (string, bool) {
	return m.chosen, m.chosen != ""
}

// State returns the sidebar state being edited.
func (m Model) State() *model.UIState { return m.state }

func (m Model) current() string {
	if it, ok := m.list.SelectedItem().(item); ok {
		return it.conv.ID
	}
	return ""
}

func (m Model) changed() {
	if m.onChange != nil {
		m.onChange(m.state)
	}
}

// Run shows the picker on the given streams and returns the chosen
// conversation id, or "" when the user backed out.
func Run(in io.Reader, out io.Writer, convs []*model.Conversation, state *model.UIState, theme *styles.Theme, opts Options) (string, error) {
	if len(convs) == 0 {
		return "", nil
	}
	p := tea.NewProgram(New(convs, state, theme, opts),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("run picker: %w", err)
	}
	id, _ := final.(Model).Chosen()
	return id, nil
}
