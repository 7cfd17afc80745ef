// Package render produces the text of a published operation roster. Output
// depends only on its arguments, including the reference time used for the
// countdown, so re-publishing the same state at the same instant is a no-op
// on the transport side.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/muster/internal/core/policy"
)

// DefaultTimeFormat is a Go layout for the scheduled time line.
const DefaultTimeFormat = "Monday, January 02, 2006 15:04"

// EmptyPlaceholder is shown under a category nobody has claimed.
const EmptyPlaceholder = "—"

var (
	heavyRule = strings.Repeat("═", 39)
	lightRule = strings.Repeat("─", 39)
)

// Event is the operation content the renderer needs.
type Event struct {
	ID          string
	Title       string
	Description string
	ScheduledAt time.Time
	CreatorName string
}

// Entry is one signup line.
type Entry struct {
	Category    string
	DisplayName string
	SignedUpAt  time.Time
}

// Options controls presentation of the scheduled time.
type Options struct {
	Location   *time.Location
	TimeFormat string
}

// Render builds the roster text. Categories are rendered in the given order,
// except the declined category which always comes last, even when empty or
// missing from the list. Entries for categories not in the list are dropped.
func Render(event Event, entries []Entry, categories []policy.Category, now time.Time, opts Options) string {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	layout := opts.TimeFormat
	if layout == "" {
		layout = DefaultTimeFormat
	}

	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(heavyRule)
	line("📋 " + event.Title)
	line("")
	if event.Description != "" {
		line(event.Description)
		line("")
	}
	line("⏰ Time")
	line(event.ScheduledAt.In(loc).Format(layout))
	line("⏳ " + Countdown(event.ScheduledAt, now))
	line("")
	line(lightRule)

	grouped := groupEntries(entries)

	declined := policy.Category{Key: policy.DeclinedKey, Label: "Declined", Symbol: "❌"}
	for _, c := range categories {
		if c.Key == policy.DeclinedKey {
			declined = c
			continue
		}
		writeCategory(line, c, grouped[c.Key])
	}
	writeCategory(line, declined, grouped[policy.DeclinedKey])

	if footer := footerLine(event); footer != "" {
		line(footer)
	}
	b.WriteString(heavyRule)

	return b.String()
}

func writeCategory(line func(string), c policy.Category, members []Entry) {
	if len(members) == 0 {
		line(fmt.Sprintf("%s %s", c.Symbol, c.Label))
		line("  " + EmptyPlaceholder)
	} else {
		line(fmt.Sprintf("%s %s (%d)", c.Symbol, c.Label, len(members)))
		for _, m := range members {
			line("  " + m.DisplayName)
		}
	}
	line("")
}

func groupEntries(entries []Entry) map[string][]Entry {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SignedUpAt.Before(sorted[j].SignedUpAt)
	})
	grouped := make(map[string][]Entry)
	for _, e := range sorted {
		grouped[e.Category] = append(grouped[e.Category], e)
	}
	return grouped
}

func footerLine(event Event) string {
	switch {
	case event.ID != "" && event.CreatorName != "":
		return fmt.Sprintf("Operation %s · created by %s", event.ID, event.CreatorName)
	case event.ID != "":
		return "Operation " + event.ID
	case event.CreatorName != "":
		return "Created by " + event.CreatorName
	default:
		return ""
	}
}

// Countdown describes how far at lies in the future relative to now.
func Countdown(at, now time.Time) string {
	if !at.After(now) {
		return "started"
	}

	delta := at.Sub(now)
	days := int(delta / (24 * time.Hour))
	hours := int(delta / time.Hour)
	minutes := int(delta / time.Minute)

	switch {
	case days > 1:
		return fmt.Sprintf("in %d days", days)
	case days == 1:
		return "in 1 day"
	case hours > 1:
		return fmt.Sprintf("in %d hours", hours)
	case hours == 1:
		return "in 1 hour"
	case minutes > 1:
		return fmt.Sprintf("in %d minutes", minutes)
	default:
		return "starting soon"
	}
}
