package hardware

import (
	"math"
	"sync"
	"time"

	"github.com/dougsko/swrmeter/pkg/power"
	"github.com/dougsko/swrmeter/pkg/sampler"
)

// MockADCConfig describes the synthetic coupler
type MockADCConfig struct {
	ResolutionBits  int
	VRef            float64
	SupplyDivider   float64
	Forward         power.Curve
	Reflected       power.Curve
	SupplyVolts     float64 // reported on the supply channel
	ModulationDepth float64 // 0..1, envelope ripple while keyed
	ModulationHz    float64
}

// MockADC implements sampler.ADC by running the calibration curves
// backwards: it turns a requested carrier and load into the raw codes a
// real coupler would produce.
type MockADC struct {
	config MockADCConfig
	mu     sync.RWMutex

	keyed   bool
	carrier float64 // forward watts while keyed
	vswr    float64
	start   time.Time
	clock   func() time.Time
	fullScl float64
}

// NewMockADC creates a synthetic ADC, unkeyed into a matched load
func NewMockADC(config MockADCConfig) *MockADC {
	if config.ResolutionBits <= 0 || config.ResolutionBits > 16 {
		config.ResolutionBits = 16
	}
	if config.VRef <= 0 {
		config.VRef = 3.3
	}
	if config.SupplyDivider <= 0 {
		config.SupplyDivider = 1
	}
	return &MockADC{
		config:  config,
		vswr:    1,
		start:   time.Now(),
		clock:   time.Now,
		fullScl: float64(uint32(1)<<config.ResolutionBits - 1),
	}
}

// SetClock replaces the clock driving the modulation
func (a *MockADC) SetClock(clock func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clock = clock
	a.start = clock()
}

// Key switches the carrier on or off
func (a *MockADC) Key(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keyed = on
}

// Keyed reports whether the carrier is on
func (a *MockADC) Keyed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.keyed
}

// SetCarrier sets the forward power produced while keyed
func (a *MockADC) SetCarrier(watts float64) {
	if watts < 0 || math.IsNaN(watts) {
		watts = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.carrier = watts
}

// SetLoad sets the mismatch the reflected channel reports
func (a *MockADC) SetLoad(vswr float64) {
	if vswr < 1 || math.IsNaN(vswr) {
		vswr = 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vswr = vswr
}

// Watts returns the forward and reflected power currently simulated
func (a *MockADC) Watts() (forward, reflected float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.wattsLocked()
}

func (a *MockADC) wattsLocked() (float64, float64) {
	if !a.keyed {
		return 0, 0
	}
	fwd := a.carrier
	if d := a.config.ModulationDepth; d > 0 && a.config.ModulationHz > 0 {
		t := a.clock().Sub(a.start).Seconds()
		fwd *= 1 - d/2 + d/2*math.Sin(2*math.Pi*a.config.ModulationHz*t)
	}
	gamma := (a.vswr - 1) / (a.vswr + 1)
	return fwd, fwd * gamma * gamma
}

// Read implements sampler.ADC
func (a *MockADC) Read(ch sampler.Channel) (uint16, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	fwd, ref := a.wattsLocked()
	var v float64
	switch ch {
	case sampler.Forward:
		v = a.config.Forward.Volts(fwd)
	case sampler.Reflected:
		v = a.config.Reflected.Volts(ref)
	case sampler.Supply:
		v = a.config.SupplyVolts / a.config.SupplyDivider
	}
	return a.code(v), nil
}

func (a *MockADC) code(v float64) uint16 {
	c := math.Round(v / a.config.VRef * a.fullScl)
	if c < 0 {
		return 0
	}
	if c > a.fullScl {
		return uint16(a.fullScl)
	}
	return uint16(c)
}

// Close implements io.Closer
func (a *MockADC) Close() error {
	return nil
}
