package display

import (
	"fmt"
	"sync"
)

// Metric names one displayed value
type Metric int

const (
	SupplyVolts Metric = iota
	NetPower
	PeakPower
	PEPPower
	VSWR
	DBm
	ForwardPower
	ReflectedPower
	ForwardVolts
	ReflectedVolts
	Weighting
	SpectrumRef
	Frequency
	TxPercent
	NumMetrics
)

var metricInfo = [NumMetrics]struct {
	name   string
	format string
}{
	SupplyVolts:    {"vin", "%6.1f"},
	NetPower:       {"net", "%1.0f"},
	PeakPower:      {"peak", "%1.0f"},
	PEPPower:       {"pep", "%1.0f"},
	VSWR:           {"vswr", "%3.1f"},
	DBm:            {"dbm", "%1.0f"},
	ForwardPower:   {"fwd_power", "%5.2f"},
	ReflectedPower: {"ref_power", "%5.2f"},
	ForwardVolts:   {"fwd_volts", "%3.5f"},
	ReflectedVolts: {"ref_volts", "%3.5f"},
	Weighting:      {"weighting", "%3.3f"},
	SpectrumRef:    {"spectrum_ref", "%3.1f"},
	Frequency:      {"freq", "%3.5f"},
	TxPercent:      {"tx_percent", "%3.0f"},
}

// String returns the metric's wire name
func (m Metric) String() string {
	if m < 0 || m >= NumMetrics {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricInfo[m].name
}

// ParseMetric finds a metric by wire name
func ParseMetric(name string) (Metric, bool) {
	for m := Metric(0); m < NumMetrics; m++ {
		if metricInfo[m].name == name {
			return m, true
		}
	}
	return 0, false
}

// Value is what the renderer pulls for one metric
type Value struct {
	Value    float64 `json:"value"`
	Format   string  `json:"format"`
	IsUpdate bool    `json:"is_update"`
}

// Text formats the value
func (v Value) Text() string {
	return fmt.Sprintf(v.Format, v.Value)
}

// Text formats metric m's value. A negative VSWR is the no signal
// sentinel and a zero frequency means the radio is not answering.
func Text(m Metric, v Value) string {
	switch {
	case m == VSWR && v.Value < 0:
		return "-.-"
	case m == Frequency && v.Value <= 0:
		return "unknown"
	}
	return v.Text()
}

// Board holds the latest value of every metric with a dirty flag per
// metric. The renderer repaints only what Pull reports as updated.
type Board struct {
	mu     sync.Mutex
	values [NumMetrics]Value
}

// NewBoard creates a board with every metric dirty so the first paint
// draws everything
func NewBoard() *Board {
	b := &Board{}
	for m := range b.values {
		b.values[m] = Value{Format: metricInfo[m].format, IsUpdate: true}
	}
	return b
}

// Set stores v for m, marking it dirty when it changed
func (b *Board) Set(m Metric, v float64) {
	if m < 0 || m >= NumMetrics {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := &b.values[m]
	if cur.Value != v {
		cur.Value = v
		cur.IsUpdate = true
	}
}

// Pull returns m and clears its dirty flag
func (b *Board) Pull(m Metric) Value {
	if m < 0 || m >= NumMetrics {
		return Value{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	v := b.values[m]
	b.values[m].IsUpdate = false
	return v
}

// Peek returns m without touching its dirty flag
func (b *Board) Peek(m Metric) Value {
	if m < 0 || m >= NumMetrics {
		return Value{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values[m]
}

// PullDirty returns every updated metric keyed by name and clears them
func (b *Board) PullDirty() map[string]Value {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]Value)
	for m := range b.values {
		if b.values[m].IsUpdate {
			out[Metric(m).String()] = b.values[m]
			b.values[m].IsUpdate = false
		}
	}
	return out
}

// Snapshot returns every metric keyed by name without clearing flags
func (b *Board) Snapshot() map[string]Value {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]Value, NumMetrics)
	for m := range b.values {
		out[Metric(m).String()] = b.values[m]
	}
	return out
}

// Invalidate marks every metric dirty
func (b *Board) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for m := range b.values {
		b.values[m].IsUpdate = true
	}
}
