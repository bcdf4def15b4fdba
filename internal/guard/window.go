package guard

import "time"

// Window accumulates violations over a bounded span and reports when a
// connection crosses the flag threshold. Flagging is informational only;
// no automatic kick follows.
type Window struct {
	span      time.Duration
	threshold int
	entries   []Violation
	flagged   bool
}

// NewWindow builds a violation window. A threshold of zero disables
// flagging.
func NewWindow(span time.Duration, threshold int) *Window {
	return &Window{span: span, threshold: threshold}
}

// Add appends violations at the given instant, prunes entries older than
// the span, and reports whether this call tripped the flag.
func (w *Window) Add(now time.Time, violations ...Violation) bool {
	if w == nil || len(violations) == 0 {
		return false
	}
	w.prune(now)
	w.entries = append(w.entries, violations...)
	if w.threshold <= 0 || w.flagged {
		return false
	}
	if len(w.entries) >= w.threshold {
		w.flagged = true
		return true
	}
	return false
}

// Count returns the live entries inside the window as of now.
func (w *Window) Count(now time.Time) int {
	if w == nil {
		return 0
	}
	w.prune(now)
	return len(w.entries)
}

// Flagged reports whether the connection has ever tripped the threshold.
func (w *Window) Flagged() bool {
	return w != nil && w.flagged
}

// Span returns the configured window duration.
func (w *Window) Span() time.Duration {
	if w == nil {
		return 0
	}
	return w.span
}

func (w *Window) prune(now time.Time) {
	if w.span <= 0 {
		return
	}
	cutoff := now.Add(-w.span)
	kept := w.entries[:0]
	for _, entry := range w.entries {
		if entry.At.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	w.entries = kept
}
