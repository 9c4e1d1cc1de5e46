package power

import (
	"fmt"
	"math"

	"github.com/dougsko/swrmeter/pkg/config"
	"github.com/dougsko/swrmeter/pkg/sampler"
)

// Curve is a split-point piecewise calibration.
// Below SplitVolts: watts = LoMult * v^LoExp.
// At or above:      watts = HiA*v*v + HiB*v + HiC.
// The pieces are fitted independently and are not continuous at the split.
type Curve struct {
	SplitVolts float64
	LoExp      float64
	LoMult     float64
	HiA        float64
	HiB        float64
	HiC        float64
}

// CurveFromConfig converts a configured curve
func CurveFromConfig(c config.Curve) Curve {
	return Curve{
		SplitVolts: c.SplitVolts,
		LoExp:      c.LoExp,
		LoMult:     c.LoMult,
		HiA:        c.HiA,
		HiB:        c.HiB,
		HiC:        c.HiC,
	}
}

// Watts evaluates the curve without any band correction
func (c Curve) Watts(v float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v < c.SplitVolts {
		return c.LoMult * math.Pow(v, c.LoExp)
	}
	return c.HiA*v*v + c.HiB*v + c.HiC
}

// Volts inverts Watts. A power falling inside the step at the split maps
// to the split voltage.
func (c Curve) Volts(w float64) float64 {
	if w <= 0 || math.IsNaN(w) || c.LoMult <= 0 || c.LoExp <= 0 {
		return 0
	}
	s := c.SplitVolts
	if w < c.LoMult*math.Pow(s, c.LoExp) {
		return math.Pow(w/c.LoMult, 1/c.LoExp)
	}
	if w < c.HiA*s*s+c.HiB*s+c.HiC {
		return s
	}
	if c.HiA == 0 {
		return (w - c.HiC) / c.HiB
	}
	disc := c.HiB*c.HiB - 4*c.HiA*(c.HiC-w)
	return (-c.HiB + math.Sqrt(disc)) / (2 * c.HiA)
}

// StepAtSplit returns high-regime minus low-regime power at the split voltage
func (c Curve) StepAtSplit() float64 {
	v := c.SplitVolts
	return (c.HiA*v*v + c.HiB*v + c.HiC) - c.LoMult*math.Pow(v, c.LoExp)
}

// Converter maps rectified coupler voltages to watts
type Converter struct {
	forward    Curve
	reflected  Curve
	multiplier float64
}

// NewConverter creates a converter with a unity band multiplier
func NewConverter(forward, reflected Curve) *Converter {
	return &Converter{forward: forward, reflected: reflected, multiplier: 1}
}

// VoltageToWatts converts one channel's corrected voltage to watts,
// scaled by the active band multiplier
func (c *Converter) VoltageToWatts(v float64, ch sampler.Channel) float64 {
	switch ch {
	case sampler.Forward:
		return c.forward.Watts(v) * c.multiplier
	case sampler.Reflected:
		return c.reflected.Watts(v) * c.multiplier
	default:
		return 0
	}
}

// SetMultiplier sets the band power correction; invalid values reset it to 1
func (c *Converter) SetMultiplier(m float64) error {
	if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		c.multiplier = 1
		return fmt.Errorf("invalid power multiplier %v", m)
	}
	c.multiplier = m
	return nil
}

// Multiplier returns the active band power correction
func (c *Converter) Multiplier() float64 {
	return c.multiplier
}

// Curve returns the calibration used for a channel
func (c *Converter) Curve(ch sampler.Channel) Curve {
	if ch == sampler.Reflected {
		return c.reflected
	}
	return c.forward
}
