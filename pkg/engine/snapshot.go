package engine

import (
	"time"

	"github.com/dougsko/swrmeter/pkg/band"
	"github.com/dougsko/swrmeter/pkg/civ"
	"github.com/dougsko/swrmeter/pkg/options"
	"github.com/dougsko/swrmeter/pkg/power"
	"github.com/dougsko/swrmeter/pkg/protocol"
	"github.com/dougsko/swrmeter/pkg/sampler"
)

// Snapshot is a copy of the meter state for readers on other goroutines.
// It lags the cycle by at most one pass.
type Snapshot struct {
	Reading        power.Reading   `json:"reading"`
	SupplyVolts    float64         `json:"supply_volts"`
	ForwardVolts   float64         `json:"forward_volts"`
	ReflectedVolts float64         `json:"reflected_volts"`
	Transmitting   bool            `json:"transmitting"`
	Profile        string          `json:"profile"`
	Weight         int             `json:"weight"`
	Band           band.Band       `json:"band"`
	Multiplier     float64         `json:"multiplier"`
	Bands          []band.Band     `json:"bands"`
	Options        options.Options `json:"options"`
	Sampler        sampler.Stats   `json:"sampler"`
	CIVEnabled     bool            `json:"civ_enabled"`
	Radio          civ.RadioStatus `json:"radio"`
	CIVState       string          `json:"civ_state,omitempty"`
	CIVStats       civ.Stats       `json:"civ_stats"`
	Cycles         uint64          `json:"cycles"`
	At             time.Time       `json:"at"`
}

func (m *Meter) publishSnapshot(now time.Time) {
	s := Snapshot{
		Reading:        m.reading,
		SupplyVolts:    m.last.Supply.Volts,
		ForwardVolts:   m.last.Forward.Volts,
		ReflectedVolts: m.last.Reflected.Volts,
		Transmitting:   m.agg.Transmitting(),
		Profile:        m.agg.Active().String(),
		Weight:         m.agg.Weight(),
		Band:           m.activeBand(),
		Multiplier:     m.converter.Multiplier(),
		Bands:          m.bands,
		Options:        m.opts,
		Sampler:        m.sampler.Stats(),
		CIVEnabled:     m.civ != nil,
		Radio:          civ.RadioStatus{Stale: true},
		Cycles:         m.cycles,
		At:             now,
	}
	if m.civ != nil {
		s.Radio = m.civ.Status()
		s.CIVState = m.civ.State().String()
		s.CIVStats = m.civ.Stats()
	}

	m.mu.Lock()
	m.snap = s
	m.mu.Unlock()
}

// Snapshot returns the state published by the last cycle
func (m *Meter) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Status summarises the meter for STATUS
func (m *Meter) Status() protocol.Status {
	snap := m.Snapshot()
	status := protocol.Status{
		Version:      Version,
		Uptime:       time.Since(m.startTime).Round(time.Second).String(),
		StartTime:    m.startTime,
		Transmitting: snap.Transmitting,
		Profile:      snap.Profile,
		Band:         snap.Band.Name,
		CIVEnabled:   snap.CIVEnabled,
		RadioStale:   snap.Radio.Stale,
	}
	if !snap.Radio.Stale {
		status.FrequencyHz = snap.Radio.FrequencyHz
	}
	return status
}
