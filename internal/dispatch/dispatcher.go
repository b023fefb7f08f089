// Package dispatch delivers notification digests to their recipients.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/opencourt/courtwatch/internal/model"
)

// Dispatcher sends one digest to one recipient. Delivery is at-least-once:
// a failure is surfaced to operators but the already-committed notification
// record is never rolled back, and the next admissible cycle may resend.
type Dispatcher interface {
	SendDigest(ctx context.Context, d *model.Digest) error
}

// RenderDigest formats a digest as the plain-text body shared by the SMTP
// and log dispatchers.
func RenderDigest(d *model.Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Court availability alert (%d opening", len(d.Windows))
	if len(d.Windows) != 1 {
		b.WriteString("s")
	}
	b.WriteString(")\n\n")

	windows := make([]model.ConsolidatedWindow, len(d.Windows))
	copy(windows, d.Windows)
	sort.Slice(windows, func(i, j int) bool {
		if windows[i].SourceID != windows[j].SourceID {
			return windows[i].SourceID < windows[j].SourceID
		}
		if windows[i].CourtID != windows[j].CourtID {
			return windows[i].CourtID < windows[j].CourtID
		}
		return windows[i].Start.Before(windows[j].Start)
	})

	for _, w := range windows {
		name := d.SourceNames[w.SourceID]
		if name == "" {
			name = w.SourceID
		}
		mins := int(w.Duration().Minutes())
		fmt.Fprintf(&b, "- %s, court %s: %s - %s (%d min)\n",
			name, w.CourtID,
			w.Start.Format("Mon 2 Jan 15:04"),
			w.End.Format("15:04"),
			mins)
	}
	b.WriteString("\nBook quickly - open slots go fast.\n")
	return b.String()
}
