package aggregate

import "time"

// Hold captures the largest value seen during a transmission and keeps it
// for a fixed window after the last new maximum.
type Hold struct {
	window    time.Duration
	threshold float64

	peak     float64
	deadline time.Time
	armed    bool
}

// NewHold creates a hold that never arms below threshold watts
func NewHold(window time.Duration, threshold float64) *Hold {
	return &Hold{window: window, threshold: threshold}
}

// Update folds one value into the hold and returns the held peak.
// Once armed the peak only rises; a new maximum pushes the deadline out.
// After the deadline the peak resets to v, re-arming if v is above the
// power on threshold and reading zero otherwise.
func (h *Hold) Update(v float64, now time.Time) float64 {
	if h.armed {
		if v > h.peak {
			h.peak = v
			h.deadline = now.Add(h.window)
			return h.peak
		}
		if !now.After(h.deadline) {
			return h.peak
		}
		h.armed = false
	}

	if v < h.threshold {
		h.peak = 0
		return 0
	}
	h.peak = v
	h.armed = true
	h.deadline = now.Add(h.window)
	return h.peak
}

// Value returns the held peak
func (h *Hold) Value() float64 {
	return h.peak
}

// Armed reports whether a peak is currently held
func (h *Hold) Armed() bool {
	return h.armed
}

// Deadline returns when the held peak expires
func (h *Hold) Deadline() time.Time {
	return h.deadline
}

// Reset clears the hold
func (h *Hold) Reset() {
	h.peak = 0
	h.armed = false
	h.deadline = time.Time{}
}
