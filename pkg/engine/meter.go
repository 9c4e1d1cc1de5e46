package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dougsko/swrmeter/pkg/aggregate"
	"github.com/dougsko/swrmeter/pkg/band"
	"github.com/dougsko/swrmeter/pkg/civ"
	"github.com/dougsko/swrmeter/pkg/config"
	"github.com/dougsko/swrmeter/pkg/display"
	"github.com/dougsko/swrmeter/pkg/logging"
	"github.com/dougsko/swrmeter/pkg/options"
	"github.com/dougsko/swrmeter/pkg/power"
	"github.com/dougsko/swrmeter/pkg/sampler"
	"github.com/dougsko/swrmeter/pkg/storage"
)

// Version is reported by STATUS
const Version = "0.1.0"

const commandQueueSize = 16

// Config describes the measurement pipeline
type Config struct {
	Sampler      sampler.Config
	Aggregate    aggregate.Config
	Forward      power.Curve
	Reflected    power.Curve
	PlotPoints   int
	PlotInterval time.Duration

	CIVEnabled   bool
	CIV          civ.Config
	AutoBandPoll time.Duration
}

// ConfigFrom builds the pipeline configuration from the daemon config
func ConfigFrom(cfg *config.Config) Config {
	agg := aggregate.DefaultConfig()
	agg.NetWindow = time.Duration(cfg.Meter.NetWindowMs) * time.Millisecond
	agg.PeakHold = time.Duration(cfg.Meter.PeakHoldMs) * time.Millisecond
	agg.PEPHold = time.Duration(cfg.Meter.PEPHoldMs) * time.Millisecond
	agg.Threshold = cfg.Meter.PowerThreshold

	return Config{
		Sampler: sampler.Config{
			SampleFreq:     cfg.Meter.SampleFreq,
			Capacity:       cfg.Meter.MaxBuffer,
			ResolutionBits: cfg.Meter.ResolutionBits,
			VRef:           cfg.Meter.VRef,
			SupplyDivider:  cfg.Meter.SupplyDivider,
			FwdZeroAdj:     cfg.Meter.FwdZeroAdj,
			RefZeroAdj:     cfg.Meter.RefZeroAdj,
		},
		Aggregate:    agg,
		Forward:      power.CurveFromConfig(cfg.Calibration.Forward),
		Reflected:    power.CurveFromConfig(cfg.Calibration.Reflected),
		PlotPoints:   cfg.Meter.PlotPoints,
		PlotInterval: time.Duration(cfg.Meter.PlotMs) * time.Millisecond,
		CIVEnabled:   cfg.CIV.Enabled,
		CIV: civ.Config{
			RadioAddress: byte(cfg.CIV.RadioAddress),
			PollInterval: time.Duration(cfg.CIV.PollMs) * time.Millisecond,
			Watchdog:     time.Duration(cfg.CIV.WatchdogMs) * time.Millisecond,
		},
		AutoBandPoll: time.Duration(cfg.CIV.AutoBandPollMs) * time.Millisecond,
	}
}

// HistoryRecorder stores completed transmissions
type HistoryRecorder interface {
	RecordTransmission(t storage.Transmission) (int64, error)
}

// Devices are the collaborators the meter drives
type Devices struct {
	ADC     sampler.ADC
	Radio   io.ReadWriter     // CI-V port; nil when there is no radio
	Store   options.ByteStore // persistent options; nil keeps them in memory
	History HistoryRecorder   // optional
}

// Meter runs the measurement and control cycle. Everything except the
// snapshot, the board and the envelope monitor belongs to the goroutine
// calling Cycle.
type Meter struct {
	cfg Config
	log *logging.ComponentLogger

	sampler   *sampler.Sampler
	converter *power.Converter
	agg       *aggregate.Aggregator
	envelope  *aggregate.EnvelopeMonitor
	board     *display.Board
	table     *band.Table
	names     *band.Table // static copy for lookups off the cycle goroutine

	civ      *civ.Controller
	autoband *band.AutoBand
	tune     *band.TuneTracker

	store   options.ByteStore
	history HistoryRecorder
	opts    options.Options
	bands   []band.Band
	writes  *writer

	commands chan command
	tx       transmission

	last    sampler.Frame
	reading power.Reading
	cycles  uint64

	mu        sync.RWMutex
	snap      Snapshot
	startTime time.Time
}

// New builds the pipeline and loads the persisted options
func New(cfg Config, dev Devices) (*Meter, error) {
	s, err := sampler.New(dev.ADC, cfg.Sampler)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}

	m := &Meter{
		cfg:       cfg,
		log:       logging.For("meter"),
		sampler:   s,
		converter: power.NewConverter(cfg.Forward, cfg.Reflected),
		board:     display.NewBoard(),
		table:     band.NewTable(),
		names:     band.NewTable(),
		store:     dev.Store,
		history:   dev.History,
		reading:   power.Derive(0, 0, 0, 0, time.Time{}),
		commands:  make(chan command, commandQueueSize),
		startTime: time.Now(),
	}
	if m.store == nil {
		m.store = options.NewMemoryStore(options.Size)
	}

	m.opts = m.loadOptions()
	if err := m.opts.ApplyBands(m.table); err != nil {
		return nil, err
	}
	m.bands = m.table.All()

	aggCfg := cfg.Aggregate
	aggCfg.Profiles = m.opts.Profiles()
	aggCfg.Weight = m.opts.Weight.Value
	if m.agg, err = aggregate.New(aggCfg); err != nil {
		return nil, fmt.Errorf("failed to create aggregator: %w", err)
	}

	if m.envelope, err = aggregate.NewEnvelopeMonitor(cfg.PlotPoints, cfg.PlotInterval); err != nil {
		return nil, fmt.Errorf("failed to create envelope monitor: %w", err)
	}

	if cfg.CIVEnabled {
		if dev.Radio == nil {
			return nil, fmt.Errorf("CI-V enabled without a radio port")
		}
		if m.civ, err = civ.NewController(dev.Radio, cfg.CIV); err != nil {
			return nil, fmt.Errorf("failed to create CI-V controller: %w", err)
		}
		m.autoband = band.NewAutoBand(m.table, cfg.AutoBandPoll, m.autobandDebounce())
		m.tune = band.NewTuneTracker(m.opts.FreqTune.Value)
	}

	m.startWriter()
	m.publishSnapshot(time.Time{})
	return m, nil
}

// loadOptions reads the store and writes back whatever had to be repaired
func (m *Meter) loadOptions() options.Options {
	o, repairs := options.Load(m.store)
	if len(repairs) == 0 {
		return o
	}
	for _, r := range repairs {
		m.log.Warnf("option repaired: %s", r)
	}
	if err := options.Save(m.store, o); err != nil {
		m.log.Errorf("failed to save repaired options: %v", err)
	}
	return o
}

func (m *Meter) autobandDebounce() time.Duration {
	return time.Duration(m.opts.AutoBand.Value) * time.Second
}

// Cycle runs one pass of the pipeline. Band changes made late in the
// cycle take effect on the next one.
func (m *Meter) Cycle(now time.Time) {
	m.applyCommands(now)

	m.sampler.Tick(now)
	for _, f := range m.sampler.Drain() {
		fwd := m.converter.VoltageToWatts(f.Forward.Volts, sampler.Forward)
		ref := m.converter.VoltageToWatts(f.Reflected.Volts, sampler.Reflected)
		m.agg.Add(fwd, ref)
		m.last = f
	}

	if res, ok := m.agg.Tick(now); ok {
		m.reading = power.Derive(res.Forward, res.Reflected, res.Peak, res.PEP, now)
		m.trackTransmission(now)
	}
	m.envelope.Tick(now, m.reading.Net)
	m.publishBoard()

	if m.civ != nil {
		fresh := m.civ.Tick(now)
		m.checkBand(now, fresh)
	}

	m.cycles++
	m.publishSnapshot(now)
}

// checkBand follows the radio onto its band, runs the frequency tune check
// and hops bands when autoband is on. A stale radio leaves no band
// active, so the power correction falls back to 1.0.
func (m *Meter) checkBand(now time.Time, fresh bool) {
	status := m.civ.Status()
	if status.Stale {
		if m.autoband.Clear() {
			m.log.Warnf("radio not responding, band unknown")
			m.applyBand(band.Unknown)
		}
		return
	}

	if fresh {
		if b, changed := m.autoband.Check(status.FrequencyHz, now); changed {
			m.log.Infof("band %s at %d Hz", b.Name, status.FrequencyHz)
			m.applyBand(b)
		}
	}

	if fresh && m.opts.FreqTune.Flag {
		b := m.autoband.Active()
		if m.tune.Check(b, status.FrequencyHz) {
			m.log.Infof("frequency moved to %d Hz on %s, tuning", status.FrequencyHz, b.Name)
			if err := m.civ.Tune(); err != nil {
				m.log.Warnf("failed to queue tune: %v", err)
			}
		}
	}

	if m.opts.AutoBand.Flag && !m.agg.Transmitting() {
		if b, ok := m.autoband.Hop(now); ok {
			m.log.Infof("autoband: hopping to %s", b.Name)
			if err := m.selectBand(b.Index, now); err != nil {
				m.log.Warnf("autoband hop failed: %v", err)
			}
		}
	}
}

// applyBand makes b the active band for power correction and the scope
func (m *Meter) applyBand(b band.Band) {
	if err := m.converter.SetMultiplier(b.Multiplier); err != nil {
		m.log.Warnf("band %s: %v", b.Name, err)
	}
	if m.civ != nil && !b.IsUnknown() {
		if err := m.civ.SetScopeRef(b.Reference); err != nil {
			m.log.Warnf("failed to queue scope reference: %v", err)
		}
	}
}

// activeBand returns the band used for power correction
func (m *Meter) activeBand() band.Band {
	if m.autoband == nil {
		return band.Unknown
	}
	return m.autoband.Active()
}

func (m *Meter) publishBoard() {
	r := m.reading
	b := m.board
	b.Set(display.SupplyVolts, m.last.Supply.Volts)
	b.Set(display.NetPower, r.Net)
	b.Set(display.PeakPower, r.Peak)
	b.Set(display.PEPPower, r.PEP)
	b.Set(display.VSWR, r.VSWR)
	b.Set(display.DBm, r.DBm)
	b.Set(display.ForwardPower, r.Forward)
	b.Set(display.ReflectedPower, r.Reflected)
	b.Set(display.ForwardVolts, m.last.Forward.Volts)
	b.Set(display.ReflectedVolts, m.last.Reflected.Volts)
	b.Set(display.Weighting, float64(m.agg.Weight())/1000)
	b.Set(display.SpectrumRef, m.activeBand().Reference)
	if m.civ != nil {
		status := m.civ.Status()
		if status.Stale {
			b.Set(display.Frequency, 0)
			b.Set(display.TxPercent, 0)
		} else {
			b.Set(display.Frequency, float64(status.FrequencyHz)/1e6)
			b.Set(display.TxPercent, float64(status.PowerPercent))
		}
	}
}

// Run drives Cycle at the sampling period until ctx is done
func (m *Meter) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.sampler.Period())
	defer ticker.Stop()

	m.log.Infof("meter running, sample period %v", m.sampler.Period())
	for {
		select {
		case <-ctx.Done():
			m.finishTransmission(time.Now())
			return ctx.Err()
		case now := <-ticker.C:
			m.Cycle(now)
		}
	}
}

// Board returns the display board
func (m *Meter) Board() *display.Board {
	return m.board
}

// Envelope returns the envelope monitor
func (m *Meter) Envelope() *aggregate.EnvelopeMonitor {
	return m.envelope
}

// CIVEnabled reports whether the meter talks to a radio
func (m *Meter) CIVEnabled() bool {
	return m.civ != nil
}

// StartTime returns when the meter was created
func (m *Meter) StartTime() time.Time {
	return m.startTime
}
