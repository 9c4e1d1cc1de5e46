package band

import "time"

// AutoBand tracks the band the radio is on and, when band hopping is
// enabled, picks the next band to move to. The band the radio reports is
// resolved on every decode so the power correction never lags the radio.
// Hops run on their own poll interval and wait out the dwell interval
// since the last band change.
type AutoBand struct {
	table    *Table
	poll     time.Duration
	debounce time.Duration

	lastPoll   time.Time
	polled     bool
	lastSwitch time.Time
	active     Band
}

// NewAutoBand creates an autoband selector over table
func NewAutoBand(table *Table, poll, debounce time.Duration) *AutoBand {
	return &AutoBand{
		table:    table,
		poll:     poll,
		debounce: debounce,
		active:   Unknown,
	}
}

// SetDebounce changes the minimum time between automatic band changes
func (a *AutoBand) SetDebounce(d time.Duration) {
	a.debounce = d
}

// Debounce returns the minimum time between automatic band changes
func (a *AutoBand) Debounce() time.Duration {
	return a.debounce
}

// Active returns the selected band, refreshed from the table overlay
func (a *AutoBand) Active() Band {
	if a.active.IsUnknown() {
		return Unknown
	}
	b, err := a.table.Get(a.active.Index)
	if err != nil {
		return Unknown
	}
	return b
}

// Check resolves hz and reports whether the active band changed. A
// frequency outside every band makes the active band Unknown.
func (a *AutoBand) Check(hz int64, now time.Time) (Band, bool) {
	b := a.table.For(hz)
	if b.Index == a.active.Index {
		return a.Active(), false
	}
	a.active = b
	a.lastSwitch = now
	return b, true
}

// Clear forgets the active band. It reports whether one was set.
func (a *AutoBand) Clear() bool {
	if a.active.IsUnknown() {
		return false
	}
	a.active = Unknown
	return true
}

// Hop returns the next band marked for autoband once the dwell interval
// has passed since the last band change. It is a no-op until the poll
// interval has elapsed.
func (a *AutoBand) Hop(now time.Time) (Band, bool) {
	if a.polled && now.Sub(a.lastPoll) < a.poll {
		return Unknown, false
	}
	a.polled = true
	a.lastPoll = now

	if now.Sub(a.lastSwitch) < a.debounce {
		return Unknown, false
	}
	return a.Next()
}

// Select forces the active band, restarting the dwell interval
func (a *AutoBand) Select(index int, now time.Time) (Band, error) {
	b, err := a.table.Get(index)
	if err != nil {
		return Unknown, err
	}
	a.active = b
	a.lastSwitch = now
	return b, nil
}

// Next returns the next band after the active one whose autoband flag is
// set, wrapping at the top of the table.
func (a *AutoBand) Next() (Band, bool) {
	n := a.table.Len()
	start := a.active.Index
	for step := 1; step <= n; step++ {
		i := (start + step + n) % n
		b, _ := a.table.Get(i)
		if b.AutoBand && b.Index != a.active.Index {
			return b, true
		}
	}
	return Unknown, false
}
