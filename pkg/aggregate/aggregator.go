package aggregate

import (
	"fmt"
	"time"
)

// Config describes the aggregation timing
type Config struct {
	NetWindow time.Duration
	PeakHold  time.Duration
	PEPHold   time.Duration
	Threshold float64 // power on threshold, watts
	Profiles  Profiles
	Active    ProfileID
	Weight    int // exponential decay weight, thousandths
}

// DefaultConfig returns the stock timing
func DefaultConfig() Config {
	return Config{
		NetWindow: 50 * time.Millisecond,
		PeakHold:  2000 * time.Millisecond,
		PEPHold:   250 * time.Millisecond,
		Threshold: 0.5,
		Profiles:  DefaultProfiles(),
		Active:    Default,
		Weight:    DefaultWeight,
	}
}

// Result is one window's output
type Result struct {
	Forward   float64   `json:"forward"`   // smoothed forward watts
	Reflected float64   `json:"reflected"` // smoothed reflected watts
	Net       float64   `json:"net"`       // smoothed net watts
	WindowNet float64   `json:"window_net"`
	Peak      float64   `json:"peak"`
	PEP       float64   `json:"pep"`
	Samples   int       `json:"samples"`
	At        time.Time `json:"at"`
}

// Aggregator turns instantaneous power samples into windowed, held and
// smoothed values. Samples are added between ticks; Tick closes a window.
type Aggregator struct {
	cfg Config

	windowStart time.Time
	started     bool

	sumFwd float64
	sumRef float64
	maxNet float64
	count  int

	lastFwd float64
	lastRef float64

	peak      *Hold
	pep       *Hold
	forward   *Averager
	reflected *Averager

	result Result
}

// New creates an aggregator
func New(cfg Config) (*Aggregator, error) {
	if cfg.NetWindow <= 0 {
		return nil, fmt.Errorf("invalid net window: %v", cfg.NetWindow)
	}
	if cfg.Active < 0 || cfg.Active >= NumProfiles {
		return nil, fmt.Errorf("invalid active profile: %d", cfg.Active)
	}

	profile := cfg.Profiles[cfg.Active]
	forward, err := NewAverager(profile, cfg.Weight)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward averager: %w", err)
	}
	reflected, err := NewAverager(profile, cfg.Weight)
	if err != nil {
		return nil, fmt.Errorf("failed to create reflected averager: %w", err)
	}

	return &Aggregator{
		cfg:       cfg,
		peak:      NewHold(cfg.PeakHold, cfg.Threshold),
		pep:       NewHold(cfg.PEPHold, cfg.Threshold),
		forward:   forward,
		reflected: reflected,
	}, nil
}

// Add folds one instantaneous forward/reflected pair into the open window
func (a *Aggregator) Add(forward, reflected float64) {
	a.sumFwd += forward
	a.sumRef += reflected
	if net := forward - reflected; net > a.maxNet {
		a.maxNet = net
	}
	a.count++
	a.lastFwd = forward
	a.lastRef = reflected
}

// Tick closes the window once NetWindow has elapsed and reports whether a
// new result was produced. An empty window produces nothing.
func (a *Aggregator) Tick(now time.Time) (Result, bool) {
	if !a.started {
		a.started = true
		a.windowStart = now
		return a.result, false
	}
	if now.Sub(a.windowStart) < a.cfg.NetWindow {
		return a.result, false
	}
	a.windowStart = now

	if a.count == 0 {
		return a.result, false
	}

	meanFwd := a.sumFwd / float64(a.count)
	meanRef := a.sumRef / float64(a.count)
	windowNet := clampNet(meanFwd - meanRef)

	fwd := a.forward.Add(meanFwd)
	ref := a.reflected.Add(meanRef)

	a.result = Result{
		Forward:   fwd,
		Reflected: ref,
		Net:       clampNet(fwd - ref),
		WindowNet: windowNet,
		Peak:      a.peak.Update(windowNet, now),
		PEP:       a.pep.Update(a.maxNet, now),
		Samples:   a.count,
		At:        now,
	}

	a.sumFwd, a.sumRef, a.maxNet, a.count = 0, 0, 0, 0
	return a.result, true
}

// Result returns the last closed window
func (a *Aggregator) Result() Result {
	return a.result
}

// Transmitting reports whether smoothed net power is at or above the
// power on threshold
func (a *Aggregator) Transmitting() bool {
	return a.result.Net >= a.cfg.Threshold
}

// Active returns the selected profile
func (a *Aggregator) Active() ProfileID {
	return a.cfg.Active
}

// Profiles returns the configured profiles
func (a *Aggregator) Profiles() Profiles {
	return a.cfg.Profiles
}

// Weight returns the exponential decay weight
func (a *Aggregator) Weight() int {
	return a.cfg.Weight
}

// SetProfile switches the active profile, restarting the smoothing at the
// latest instantaneous sample
func (a *Aggregator) SetProfile(id ProfileID) error {
	if id < 0 || id >= NumProfiles {
		return fmt.Errorf("invalid profile: %d", id)
	}
	p := a.cfg.Profiles[id]
	if err := a.forward.SetProfile(p, a.lastFwd); err != nil {
		return err
	}
	if err := a.reflected.SetProfile(p, a.lastRef); err != nil {
		return err
	}
	a.cfg.Active = id
	a.result.Forward = a.lastFwd
	a.result.Reflected = a.lastRef
	a.result.Net = clampNet(a.lastFwd - a.lastRef)
	return nil
}

// UpdateProfiles replaces the profile table and weight, then re-applies the
// active profile
func (a *Aggregator) UpdateProfiles(profiles Profiles, weight int) error {
	for id, p := range profiles {
		if p.Samples <= 0 {
			return fmt.Errorf("invalid %s sample count: %d", ProfileID(id), p.Samples)
		}
	}
	if err := a.forward.SetWeight(weight); err != nil {
		return err
	}
	if err := a.reflected.SetWeight(weight); err != nil {
		return err
	}
	a.cfg.Profiles = profiles
	a.cfg.Weight = weight
	return a.SetProfile(a.cfg.Active)
}

// ResetHolds clears the peak and PEP holds
func (a *Aggregator) ResetHolds() {
	a.peak.Reset()
	a.pep.Reset()
	a.result.Peak = 0
	a.result.PEP = 0
}

func clampNet(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
