// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sidebar

import (
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/quickr1/internal/model"
)

// FormatTimestamp renders t relative to now: a clock time within the last
// day, "Yesterday" within two days, otherwise month and day.
func FormatTimestamp(t, now time.Time) string {
	diff := now.Sub(t)
	local := t.In(now.Location())
	switch {
	case diff < 24*time.Hour:
		return local.Format("15:04")
	case diff < 48*time.Hour:
		return "Yesterday"
	default:
		return local.Format("Jan 2")
	}
}

// LastActivity is the timestamp of the newest message, or UpdatedAt for an
// empty conversation.
func LastActivity(conv *model.Conversation) time.Time {
	if msg := conv.LastMessage(); msg != nil && !msg.Timestamp.IsZero() {
		return msg.Timestamp
	}
	return conv.UpdatedAt
}

// Participants joins the participant names for display.
func Participants(conv *model.Conversation) string {
	return strings.Join(conv.Participants, ", ")
}

// Sort orders conversations for display: pinned first, then most recent
// activity. The input slice is reordered in place and returned.
func Sort(convs []*model.Conversation) []*model.Conversation {
	sort.SliceStable(convs, func(i, j int) bool {
		if convs[i].IsPinned != convs[j].IsPinned {
			return convs[i].IsPinned
		}
		return LastActivity(convs[i]).After(LastActivity(convs[j]))
	})
	return convs
}
