package band

// TuneTracker decides when a frequency move within a band warrants an
// antenna tuner cycle. It remembers the frequency of the last tune on
// each band.
type TuneTracker struct {
	thresholdHz int64
	previous    map[int]int64
}

// NewTuneTracker creates a tracker; thresholdKHz is the frequency move
// that triggers a retune
func NewTuneTracker(thresholdKHz int) *TuneTracker {
	return &TuneTracker{
		thresholdHz: int64(thresholdKHz) * 1000,
		previous:    make(map[int]int64),
	}
}

// SetThreshold changes the retune distance
func (t *TuneTracker) SetThreshold(thresholdKHz int) {
	t.thresholdHz = int64(thresholdKHz) * 1000
}

// Check reports whether the radio should tune for hz on band b.
// The first frequency seen on a band only records it.
func (t *TuneTracker) Check(b Band, hz int64) bool {
	if b.IsUnknown() || !b.Tune {
		return false
	}
	prev, ok := t.previous[b.Index]
	if !ok {
		t.previous[b.Index] = hz
		return false
	}
	diff := hz - prev
	if diff < 0 {
		diff = -diff
	}
	if diff <= t.thresholdHz {
		return false
	}
	t.previous[b.Index] = hz
	return true
}

// Previous returns the frequency of the last tune on band index
func (t *TuneTracker) Previous(index int) (int64, bool) {
	hz, ok := t.previous[index]
	return hz, ok
}
