package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/dougsko/swrmeter/pkg/aggregate"
	"github.com/dougsko/swrmeter/pkg/band"
	"github.com/dougsko/swrmeter/pkg/civ"
	"github.com/dougsko/swrmeter/pkg/options"
)

// Command errors
var (
	ErrBusy        = errors.New("command queue full")
	ErrCIVDisabled = errors.New("CI-V is disabled")
)

// command is applied at the start of the next cycle, so it never sees a
// half-finished pass
type command struct {
	name  string
	apply func(now time.Time) error
}

func (m *Meter) submit(name string, apply func(now time.Time) error) error {
	select {
	case m.commands <- command{name: name, apply: apply}:
		return nil
	default:
		return ErrBusy
	}
}

func (m *Meter) applyCommands(now time.Time) {
	for {
		select {
		case cmd := <-m.commands:
			if err := cmd.apply(now); err != nil {
				m.log.Warnf("%s failed: %v", cmd.name, err)
			}
		default:
			return
		}
	}
}

// SetProfile selects the averaging profile
func (m *Meter) SetProfile(id aggregate.ProfileID) error {
	if id < 0 || id >= aggregate.NumProfiles {
		return fmt.Errorf("invalid profile: %d", id)
	}
	return m.submit("set profile", func(time.Time) error {
		return m.agg.SetProfile(id)
	})
}

// ResetHolds clears the peak and PEP holds
func (m *Meter) ResetHolds() error {
	return m.submit("reset holds", func(time.Time) error {
		m.agg.ResetHolds()
		return nil
	})
}

// SetOptions validates, persists and applies a complete option set
func (m *Meter) SetOptions(o options.Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	return m.submit("set options", func(time.Time) error {
		return m.applyOptions(o)
	})
}

// SetOption changes one option by key, see options.Options.Set
func (m *Meter) SetOption(key, value string) error {
	check := m.Snapshot().Options
	if err := check.Set(key, value); err != nil {
		return err
	}
	return m.submit("set option "+key, func(time.Time) error {
		o := m.opts
		if err := o.Set(key, value); err != nil {
			return err
		}
		return m.applyOptions(o)
	})
}

func (m *Meter) applyOptions(o options.Options) error {
	if err := o.ApplyBands(m.table); err != nil {
		return err
	}
	if err := m.agg.UpdateProfiles(o.Profiles(), o.Weight.Value); err != nil {
		return err
	}
	m.opts = o
	m.bands = m.table.All()
	if m.autoband != nil {
		m.autoband.SetDebounce(m.autobandDebounce())
		m.tune.SetThreshold(o.FreqTune.Value)
		if b := m.autoband.Active(); !b.IsUnknown() {
			m.applyBand(b)
		}
	}
	m.persist("save options", func() error {
		if err := options.Save(m.store, o); err != nil {
			return err
		}
		m.log.Infof("options saved")
		return nil
	})
	return nil
}

// SelectBand makes band index active and moves the radio to its FT8
// frequency
func (m *Meter) SelectBand(index int) error {
	if m.civ == nil {
		return ErrCIVDisabled
	}
	if index < 0 || index >= band.Count {
		return fmt.Errorf("no band %d", index)
	}
	return m.submit("select band", func(now time.Time) error {
		return m.selectBand(index, now)
	})
}

func (m *Meter) selectBand(index int, now time.Time) error {
	b, err := m.autoband.Select(index, now)
	if err != nil {
		return err
	}
	m.applyBand(b)
	m.log.Infof("band %s selected, moving to %d Hz", b.Name, b.FT8Hz)
	return m.civ.SetFrequency(b.FT8Hz)
}

// NextBand hops to the next band marked for autoband
func (m *Meter) NextBand() error {
	if m.civ == nil {
		return ErrCIVDisabled
	}
	return m.submit("next band", func(now time.Time) error {
		b, ok := m.autoband.Next()
		if !ok {
			return fmt.Errorf("no band is marked for autoband")
		}
		return m.selectBand(b.Index, now)
	})
}

// SelectBandByName resolves a band name and selects it
func (m *Meter) SelectBandByName(name string) (band.Band, error) {
	b, ok := m.names.ByName(name)
	if !ok {
		return band.Unknown, fmt.Errorf("unknown band %q", name)
	}
	return b, m.SelectBand(b.Index)
}

// SetFrequency tunes the radio
func (m *Meter) SetFrequency(hz int64) error {
	if m.civ == nil {
		return ErrCIVDisabled
	}
	if _, err := civ.EncodeFrequency(hz); err != nil {
		return err
	}
	return m.submit("set frequency", func(time.Time) error {
		return m.civ.SetFrequency(hz)
	})
}

// SetPower sets the radio RF power in percent
func (m *Meter) SetPower(percent int) error {
	if m.civ == nil {
		return ErrCIVDisabled
	}
	if percent < 0 || percent > 100 {
		return fmt.Errorf("power %d%% out of range", percent)
	}
	return m.submit("set power", func(time.Time) error {
		return m.civ.SetPower(percent)
	})
}

// Tune starts an antenna tuner cycle
func (m *Meter) Tune() error {
	if m.civ == nil {
		return ErrCIVDisabled
	}
	return m.submit("tune", func(time.Time) error {
		return m.civ.Tune()
	})
}
