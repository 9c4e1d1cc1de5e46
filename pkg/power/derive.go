package power

import (
	"math"
	"time"
)

const (
	// MaxVSWR caps the ratio as the reflection coefficient approaches 1
	MaxVSWR = 100.0
	// NoSignal is reported as VSWR when there is no forward power
	NoSignal = -1.0
	// MinWatts floors net power before taking dBm
	MinWatts = 1e-6
)

// Reading is one published set of derived values
type Reading struct {
	Forward   float64   `json:"forward_watts"`
	Reflected float64   `json:"reflected_watts"`
	Net       float64   `json:"net_watts"`
	Peak      float64   `json:"peak_watts"`
	PEP       float64   `json:"pep_watts"`
	VSWR      float64   `json:"vswr"`
	DBm       float64   `json:"dbm"`
	At        time.Time `json:"at"`
}

// HasSignal reports whether VSWR was computed rather than the sentinel
func (r Reading) HasSignal() bool {
	return r.VSWR != NoSignal
}

// Gamma returns the reflection coefficient magnitude, clamped to [0,1]
func Gamma(forward, reflected float64) float64 {
	if forward <= 0 {
		return 0
	}
	if reflected <= 0 {
		return 0
	}
	g := math.Sqrt(reflected / forward)
	if g > 1 {
		return 1
	}
	return g
}

// VSWR returns (1+Γ)/(1-Γ) clamped to MaxVSWR, or NoSignal when forward is zero
func VSWR(forward, reflected float64) float64 {
	if forward <= 0 || math.IsNaN(forward) {
		return NoSignal
	}
	g := Gamma(forward, reflected)
	if g >= 1 {
		return MaxVSWR
	}
	swr := (1 + g) / (1 - g)
	if swr > MaxVSWR {
		return MaxVSWR
	}
	return swr
}

// DBm converts watts to dBm with a floor to avoid -Inf
func DBm(watts float64) float64 {
	if watts < MinWatts || math.IsNaN(watts) {
		watts = MinWatts
	}
	return 10 * math.Log10(watts*1000)
}

// Derive builds a reading from forward/reflected watts and the holds
func Derive(forward, reflected, peak, pep float64, at time.Time) Reading {
	net := forward - reflected
	if net < 0 {
		net = 0
	}
	return Reading{
		Forward:   forward,
		Reflected: reflected,
		Net:       net,
		Peak:      peak,
		PEP:       pep,
		VSWR:      VSWR(forward, reflected),
		DBm:       DBm(net),
		At:        at,
	}
}
