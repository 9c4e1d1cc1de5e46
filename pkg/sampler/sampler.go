package sampler

import (
	"fmt"
	"time"
)

// Channel identifies one analog input
type Channel int

const (
	Forward Channel = iota
	Reflected
	Supply
	numChannels
)

// String returns the channel name
func (c Channel) String() string {
	switch c {
	case Forward:
		return "forward"
	case Reflected:
		return "reflected"
	case Supply:
		return "supply"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// Sample is a single ADC reading
type Sample struct {
	Channel Channel
	Raw     uint16
	Volts   float64
	At      time.Time
}

// Frame groups the three readings taken in one acquisition
type Frame struct {
	Forward   Sample
	Reflected Sample
	Supply    Sample
}

// ADC reads one raw conversion from a channel
type ADC interface {
	Read(ch Channel) (uint16, error)
}

// Config describes the acquisition hardware
type Config struct {
	SampleFreq     int     // effective sampling frequency, Hz
	Capacity       int     // per-channel ring capacity
	ResolutionBits int     // ADC resolution
	VRef           float64 // ADC reference volts
	SupplyDivider  float64 // supply input divider ratio
	FwdZeroAdj     float64 // forward zero offset volts
	RefZeroAdj     float64 // reflected zero offset volts
}

// Stats are the sampler health counters
type Stats struct {
	Acquired uint64 `json:"acquired"`
	Dropped  uint64 `json:"dropped"`
	Errors   uint64 `json:"errors"`
}

// Sampler polls the ADC at a fixed period and feeds per-channel rings
type Sampler struct {
	adc     ADC
	cfg     Config
	period  time.Duration
	fullScl float64
	clock   func() time.Time

	buffers [numChannels]*Buffer[Sample]

	last    time.Time
	started bool
	stats   Stats
}

// New creates a sampler
func New(adc ADC, cfg Config) (*Sampler, error) {
	if adc == nil {
		return nil, fmt.Errorf("sampler requires an ADC")
	}
	if cfg.SampleFreq <= 0 {
		return nil, fmt.Errorf("invalid sample frequency: %d", cfg.SampleFreq)
	}
	if cfg.ResolutionBits <= 0 || cfg.ResolutionBits > 16 {
		return nil, fmt.Errorf("invalid ADC resolution: %d bits", cfg.ResolutionBits)
	}
	if cfg.SupplyDivider == 0 {
		cfg.SupplyDivider = 1
	}

	s := &Sampler{
		adc:     adc,
		cfg:     cfg,
		period:  time.Second / time.Duration(cfg.SampleFreq),
		fullScl: float64(uint32(1)<<cfg.ResolutionBits - 1),
		clock:   time.Now,
	}
	for ch := range s.buffers {
		buf, err := NewBuffer[Sample](cfg.Capacity)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s buffer: %w", Channel(ch), err)
		}
		s.buffers[ch] = buf
	}
	return s, nil
}

// SetClock replaces the clock used to time an acquisition
func (s *Sampler) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Period returns the sampling period
func (s *Sampler) Period() time.Duration {
	return s.period
}

// Volts converts a raw code on a channel to corrected volts
func (s *Sampler) Volts(ch Channel, raw uint16) float64 {
	v := float64(raw) / s.fullScl * s.cfg.VRef
	switch ch {
	case Forward:
		v += s.cfg.FwdZeroAdj
	case Reflected:
		v += s.cfg.RefZeroAdj
	case Supply:
		v *= s.cfg.SupplyDivider
	}
	return v
}

// Acquire reads all three channels and pushes them into their rings.
// An acquisition slower than one sample period is discarded and counted
// as dropped; so is one that fails to read.
func (s *Sampler) Acquire(now time.Time) (Frame, error) {
	start := s.clock()

	var samples [numChannels]Sample
	for ch := Channel(0); ch < numChannels; ch++ {
		raw, err := s.adc.Read(ch)
		if err != nil {
			s.stats.Errors++
			s.stats.Dropped++
			return Frame{}, fmt.Errorf("failed to read %s channel: %w", ch, err)
		}
		samples[ch] = Sample{Channel: ch, Raw: raw, Volts: s.Volts(ch, raw), At: now}
	}

	if elapsed := s.clock().Sub(start); elapsed > s.period {
		s.stats.Dropped++
		return Frame{}, fmt.Errorf("acquisition took %v, period is %v", elapsed, s.period)
	}

	for ch := range samples {
		s.buffers[ch].Push(samples[ch])
	}
	s.stats.Acquired++

	return Frame{Forward: samples[Forward], Reflected: samples[Reflected], Supply: samples[Supply]}, nil
}

// Tick acquires one frame if a sample period has elapsed since the last
// acquisition. Whole periods that were skipped are counted as dropped.
func (s *Sampler) Tick(now time.Time) bool {
	if s.started {
		elapsed := now.Sub(s.last)
		if elapsed < s.period {
			return false
		}
		periods := int64(elapsed / s.period)
		s.stats.Dropped += uint64(periods - 1)
		s.last = s.last.Add(time.Duration(periods) * s.period)
	} else {
		s.started = true
		s.last = now
	}

	_, err := s.Acquire(now)
	return err == nil
}

// Drain removes every buffered frame, oldest first
func (s *Sampler) Drain() []Frame {
	fwd := s.buffers[Forward].Drain()
	ref := s.buffers[Reflected].Drain()
	sup := s.buffers[Supply].Drain()

	frames := make([]Frame, len(fwd))
	for i := range fwd {
		frames[i] = Frame{Forward: fwd[i], Reflected: ref[i], Supply: sup[i]}
	}
	return frames
}

// Buffered returns the number of frames waiting
func (s *Sampler) Buffered() int {
	return s.buffers[Forward].Len()
}

// Stats returns the health counters
func (s *Sampler) Stats() Stats {
	return s.stats
}
