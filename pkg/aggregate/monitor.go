package aggregate

import (
	"math"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/dougsko/swrmeter/pkg/sampler"
)

// EnvelopeTrace is the recent net power plot
type EnvelopeTrace struct {
	Timestamp int64     `json:"timestamp"`
	Interval  int64     `json:"interval_ms"`
	Points    []float64 `json:"points"` // net watts, oldest first
}

// EnvelopeSpectrum is the modulation spectrum of the trace
type EnvelopeSpectrum struct {
	Timestamp int64     `json:"timestamp"`
	Spectrum  []float64 `json:"spectrum"`  // magnitude in dB
	FreqStep  float64   `json:"freq_step"` // Hz per bin
}

// EnvelopeMonitor samples net power on a plot timer and keeps a trace plus
// its Hann-windowed FFT, so the display can show the modulation envelope.
// It is read from HTTP handlers, so it carries its own lock.
type EnvelopeMonitor struct {
	mutex sync.RWMutex

	size     int
	interval time.Duration
	holdFor  time.Duration

	trace     *sampler.Buffer[float64]
	fftBuffer []complex128
	window    []float64
	spectrum  []float64

	lastPlot     time.Time
	started      bool
	spectrumTime time.Time

	peakHold     float64
	peakHoldTime time.Time
	sampleCount  int64
}

// NewEnvelopeMonitor creates a monitor with size trace points plotted every interval
func NewEnvelopeMonitor(size int, interval time.Duration) (*EnvelopeMonitor, error) {
	trace, err := sampler.NewBuffer[float64](size)
	if err != nil {
		return nil, err
	}
	return &EnvelopeMonitor{
		size:      size,
		interval:  interval,
		holdFor:   2 * time.Second,
		trace:     trace,
		fftBuffer: make([]complex128, size),
		window:    makeHannWindow(size),
		spectrum:  make([]float64, size/2),
	}, nil
}

func makeHannWindow(size int) []float64 {
	window := make([]float64, size)
	if size == 1 {
		window[0] = 1
		return window
	}
	for i := 0; i < size; i++ {
		window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}

// Tick plots net once the plot interval has elapsed and reports whether it did
func (m *EnvelopeMonitor) Tick(now time.Time, net float64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.started && now.Sub(m.lastPlot) < m.interval {
		return false
	}
	m.started = true
	m.lastPlot = now

	m.trace.Push(net)
	m.sampleCount++

	if net > m.peakHold || now.Sub(m.peakHoldTime) > m.holdFor {
		m.peakHold = net
		m.peakHoldTime = now
	}

	if m.trace.Len() == m.size {
		m.calculateSpectrum(now)
	}
	return true
}

func (m *EnvelopeMonitor) calculateSpectrum(now time.Time) {
	points := m.trace.Snapshot()

	// remove the carrier level so bin 0 does not swamp the envelope
	var mean float64
	for _, p := range points {
		mean += p
	}
	mean /= float64(len(points))

	for i, p := range points {
		m.fftBuffer[i] = complex((p-mean)*m.window[i], 0)
	}

	result := fft.FFT(m.fftBuffer)
	for i := range m.spectrum {
		magnitude := math.Hypot(real(result[i]), imag(result[i]))
		if magnitude > 0 {
			m.spectrum[i] = 20.0 * math.Log10(magnitude)
		} else {
			m.spectrum[i] = -100.0
		}
	}
	m.spectrumTime = now
}

// Trace returns a copy of the plotted points
func (m *EnvelopeMonitor) Trace() EnvelopeTrace {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return EnvelopeTrace{
		Timestamp: m.lastPlot.UnixMilli(),
		Interval:  m.interval.Milliseconds(),
		Points:    m.trace.Snapshot(),
	}
}

// Spectrum returns a copy of the latest modulation spectrum
func (m *EnvelopeMonitor) Spectrum() EnvelopeSpectrum {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	spectrum := make([]float64, len(m.spectrum))
	copy(spectrum, m.spectrum)

	var step float64
	if m.interval > 0 {
		step = (float64(time.Second) / float64(m.interval)) / float64(m.size)
	}

	return EnvelopeSpectrum{
		Timestamp: m.spectrumTime.UnixMilli(),
		Spectrum:  spectrum,
		FreqStep:  step,
	}
}

// Statistics returns monitoring statistics
func (m *EnvelopeMonitor) Statistics() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return map[string]interface{}{
		"sample_count":    m.sampleCount,
		"peak_hold_watts": m.peakHold,
		"trace_points":    m.trace.Len(),
		"trace_size":      m.size,
		"plot_interval":   m.interval.String(),
	}
}

// Reset clears the trace
func (m *EnvelopeMonitor) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.trace.Reset()
	for i := range m.spectrum {
		m.spectrum[i] = 0
	}
	m.peakHold = 0
	m.started = false
}
