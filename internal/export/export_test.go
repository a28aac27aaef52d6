// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/quickr1/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

var fixedNow = time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

func testConversation() *model.Conversation {
	conv := model.NewConversation()
	conv.Participants = []string{"Ada", "R1"}

	user := model.NewUserMessage("What is *Go*?")
	user.Timestamp = fixedNow
	reply := model.NewAssistantMessage()
	reply.Content = "A language.\n"
	reply.Timestamp = fixedNow.Add(time.Second)
	reply.Metrics = &model.Metrics{TotalDuration: 1200000000, PromptEvalCount: 12, EvalCount: 34, EvalDuration: 2000000000}
	bare := model.NewAssistantMessage()
	bare.Timestamp = fixedNow.Add(2 * time.Second)

	conv.Append(user, reply, bare)
	conv.UpdatedAt = fixedNow
	return conv
}

func testOptions(dir string) *Options {
	return &Options{
		OutputDir:         dir,
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Now:               func() time.Time { return fixedNow },
	}
}

// =============================================================================
// MARKDOWN TESTS
// =============================================================================

func TestMarkdownExporter_Export(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions("")).Export(testConversation())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\n"), "frontmatter first")
	assert.Contains(t, md, "title: \"What is *Go*?\"\n")
	assert.Contains(t, md, "participants: Ada, R1\n")
	assert.Contains(t, md, "exported: 2025-03-01T10:30:00Z\n")
	assert.Contains(t, md, "generator: quickr1\n")
	assert.Contains(t, md, "# What is \\*Go\\*?\n")
	assert.Contains(t, md, "### Ada <sub>10:30:00</sub>\n\nWhat is *Go*?")
	assert.Contains(t, md, "### R1 <sub>10:30:01</sub>\n\nA language.")
	assert.Contains(t, md, "<sub>Generated in 1.2s · Tokens: 12 prompt / 34 response · 17.0 tok/s</sub>")
	assert.Contains(t, md, "<sub>Generated in ?s · Tokens: ? prompt / ? response</sub>")
	assert.Contains(t, md, "*(empty)*")
}

func TestMarkdownExporter_NoMetadata(t *testing.T) {
	out, err := NewMarkdownExporter(&Options{}).Export(testConversation())
	require.NoError(t, err)
	md := string(out)

	assert.NotContains(t, md, "generator:")
	assert.NotContains(t, md, "Tokens:")
	assert.NotContains(t, md, "<sub>10:30:00</sub>")
	assert.Contains(t, md, "### Ada\n")
}

func TestMarkdownExporter_EmptyConversation(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(model.NewConversation())
	require.NoError(t, err)
	assert.Contains(t, string(out), "# New conversation")

	_, err = NewMarkdownExporter(nil).Export(nil)
	assert.Error(t, err)
}

func TestEscapeYAML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a: b", `"a: b"`},
		{`say "hi"`, `"say \"hi\""`},
		{"two\nlines", `"two\nlines"`},
		{" padded", `" padded"`},
	}
	for _, tt := range tests {
		if got := escapeYAML(tt.in); got != tt.want {
			t.Errorf("escapeYAML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// JSON TESTS
// =============================================================================

func TestJSONExporter_Export(t *testing.T) {
	conv := testConversation()
	out, err := NewJSONExporter(nil).Export(conv)
	require.NoError(t, err)

	var back model.Conversation
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, conv.ID, back.ID)
	require.Len(t, back.Messages, 3)
	assert.Equal(t, 34, back.Messages[1].Metrics.EvalCount)
	assert.Nil(t, back.Messages[2].Metrics)
	assert.Contains(t, string(out), `"senderId": "assistant"`)
}

// =============================================================================
// FILE TESTS
// =============================================================================

func TestNew(t *testing.T) {
	for _, format := range []string{"markdown", "MD", "json"} {
		e, err := New(format, nil)
		require.NoError(t, err, format)
		assert.NotNil(t, e)
	}
	_, err := New("html", nil)
	assert.Error(t, err)
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(filepath.Join(dir, "out"))

	path, err := ExportMarkdown(testConversation(), opts)
	require.NoError(t, err)
	assert.Equal(t, "conversation_What_is_-Go--_20250301_103000.md", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "A language.")

	path, err = ExportJSON(testConversation(), opts)
	require.NoError(t, err)
	assert.Equal(t, ".json", filepath.Ext(path))
}

func TestExportToFile_OpenAfterExport(t *testing.T) {
	opts := testOptions(t.TempDir())

	var opened []string
	opts.Opener = func(path string) error {
		opened = append(opened, path)
		return nil
	}
	_, err := ExportToFile(testConversation(), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)
	assert.Empty(t, opened, "opener runs only when asked")

	opts.OpenAfterExport = true
	path, err := ExportToFile(testConversation(), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, opened)

	// A failed open still reports the written file.
	opts.Opener = func(string) error { return errors.New("no viewer") }
	path, err = ExportToFile(testConversation(), NewMarkdownExporter(opts), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no viewer")
	assert.FileExists(t, path)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello world", "hello_world"},
		{"a/b\\c:d", "a-b-c-d"},
		{"", "conversation"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
		{"tab\there", "tab_here"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// RENDER TESTS
// =============================================================================

func TestRenderer(t *testing.T) {
	for _, theme := range []model.Theme{model.ThemeLight, model.ThemeDark} {
		r, err := NewRenderer(theme, 60)
		require.NoError(t, err)

		out, err := r.RenderConversation(testConversation())
		require.NoError(t, err)
		assert.Contains(t, ansiPattern.ReplaceAllString(out, ""), "A language.")
	}

	var nilRenderer *Renderer
	assert.Equal(t, "# x", nilRenderer.Render("# x"))
}
