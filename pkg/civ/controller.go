package civ

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dougsko/swrmeter/pkg/logging"
	"github.com/dougsko/swrmeter/pkg/verbose"
)

// State is the exchange state of the controller
type State int

const (
	Idle State = iota
	AwaitingResponse
	Decoded
	TimedOut
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting_response"
	case Decoded:
		return "decoded"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RadioStatus is the last known radio state. A stale status means unknown.
type RadioStatus struct {
	FrequencyHz  int64     `json:"frequency_hz"`
	Transmitting bool      `json:"transmitting"`
	PowerPercent int       `json:"power_percent"`
	UpdatedAt    time.Time `json:"updated_at"`
	Stale        bool      `json:"stale"`
}

// Stats counts exchanges
type Stats struct {
	Sent         uint64 `json:"sent"`
	Decoded      uint64 `json:"decoded"`
	Timeouts     uint64 `json:"timeouts"`
	DecodeErrors uint64 `json:"decode_errors"`
	Rejected     uint64 `json:"rejected"`
	Ignored      uint64 `json:"ignored"`
	WriteErrors  uint64 `json:"write_errors"`
}

// Config describes the controller timing
type Config struct {
	RadioAddress byte
	PollInterval time.Duration
	Watchdog     time.Duration
}

// ErrQueueFull is returned when too many writes are pending
var ErrQueueFull = errors.New("civ write queue full")

const maxQueuedWrites = 8

var readRotation = []Frame{
	{Cmd: CmdReadFreq},
	{Cmd: CmdTX, Data: []byte{SubTXStatus}},
	{Cmd: CmdLevel, Data: []byte{SubRFPower}},
}

// Controller runs one CI-V exchange at a time against a radio.
// Port reads must not block beyond a short timeout; a read returning no
// bytes simply means nothing has arrived yet.
type Controller struct {
	port io.ReadWriter
	cfg  Config
	log  *logging.ComponentLogger

	state    State
	outcome  State
	pending  Frame
	isWrite  bool
	sentAt   time.Time
	lastPoll time.Time
	polled   bool

	nextRead int
	writes   []Frame

	parser  Parser
	readBuf [64]byte
	readErr string

	status RadioStatus
	stats  Stats
}

// NewController creates a controller talking over port
func NewController(port io.ReadWriter, cfg Config) (*Controller, error) {
	if port == nil {
		return nil, fmt.Errorf("civ controller requires a port")
	}
	if cfg.RadioAddress == 0 {
		cfg.RadioAddress = DefaultRadioAddress
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid poll interval: %v", cfg.PollInterval)
	}
	if cfg.Watchdog <= 0 || cfg.Watchdog >= cfg.PollInterval {
		return nil, fmt.Errorf("watchdog %v must be positive and shorter than the poll interval %v", cfg.Watchdog, cfg.PollInterval)
	}
	return &Controller{
		port:   port,
		cfg:    cfg,
		log:    logging.For("civ"),
		status: RadioStatus{Stale: true},
	}, nil
}

// Tick drives the exchange state machine and reports whether a fresh
// frequency was decoded during this tick.
func (c *Controller) Tick(now time.Time) bool {
	freq := c.receive(now)

	if c.state == AwaitingResponse && now.Sub(c.sentAt) > c.cfg.Watchdog {
		c.timeout(now)
	}

	if c.state == Idle && (!c.polled || now.Sub(c.lastPoll) >= c.cfg.PollInterval) {
		c.polled = true
		c.lastPoll = now
		c.send(now)
	}
	return freq
}

func (c *Controller) receive(now time.Time) bool {
	n, err := c.port.Read(c.readBuf[:])
	if err != nil && !errors.Is(err, io.EOF) && err.Error() != c.readErr {
		c.readErr = err.Error()
		c.log.Warnf("read failed: %v", err)
	}
	if n == 0 {
		return false
	}

	freq := false
	for _, f := range c.parser.Feed(c.readBuf[:n]) {
		verbose.Frame("rx", f.Bytes())
		if c.handle(f, now) {
			freq = true
		}
	}
	return freq
}

// handle returns true when f carried a frequency
func (c *Controller) handle(f Frame, now time.Time) bool {
	if f.From != c.cfg.RadioAddress || (f.To != ControllerAddress && f.To != Broadcast) {
		// our own echo on the shared bus, or another device's traffic
		c.stats.Ignored++
		return false
	}

	if f.Cmd == CmdTransceiveFreq {
		hz, err := DecodeFrequency(f.Data)
		if err != nil {
			c.stats.DecodeErrors++
			c.log.Debugf("bad transceive frequency: %v", err)
			return false
		}
		c.status.FrequencyHz = hz
		c.fresh(now)
		return true
	}

	if c.state != AwaitingResponse {
		c.stats.Ignored++
		return false
	}

	if c.isWrite {
		freq := false
		switch {
		case f.IsAck():
			// an acknowledged frequency change is where the radio now is
			if c.pending.Cmd == CmdSetFreq {
				if hz, err := DecodeFrequency(c.pending.Data); err == nil {
					c.status.FrequencyHz = hz
					c.fresh(now)
					freq = true
				}
			}
		case f.IsNak():
			c.stats.Rejected++
			c.log.Warnf("radio rejected %s", c.pending)
		default:
			c.stats.Ignored++
			return false
		}
		c.finish(Decoded)
		return freq
	}

	if f.IsNak() {
		c.stats.Rejected++
		c.timeout(now)
		return false
	}
	if f.Cmd != c.pending.Cmd {
		c.stats.Ignored++
		return false
	}

	freq, err := c.decode(f)
	if err != nil {
		c.stats.DecodeErrors++
		c.log.Debugf("discarding %s: %v", f, err)
		c.timeout(now)
		return false
	}
	c.fresh(now)
	c.stats.Decoded++
	c.finish(Decoded)
	return freq
}

func (c *Controller) decode(f Frame) (bool, error) {
	switch f.Cmd {
	case CmdReadFreq:
		hz, err := DecodeFrequency(f.Data)
		if err != nil {
			return false, err
		}
		c.status.FrequencyHz = hz
		return true, nil

	case CmdTX:
		if len(f.Data) != 2 || f.Data[0] != SubTXStatus {
			return false, fmt.Errorf("malformed transmit status: % x", f.Data)
		}
		v, err := BCDToDecimal(f.Data[1])
		if err != nil {
			return false, err
		}
		c.status.Transmitting = v == 1
		return false, nil

	case CmdLevel:
		if len(f.Data) != 3 || f.Data[0] != SubRFPower {
			return false, fmt.Errorf("malformed rf power: % x", f.Data)
		}
		level, err := DecodeLevel(f.Data[1:])
		if err != nil {
			return false, err
		}
		c.status.PowerPercent = LevelToPercent(level)
		return false, nil
	}
	return false, fmt.Errorf("unexpected command 0x%02x", f.Cmd)
}

func (c *Controller) fresh(now time.Time) {
	c.status.UpdatedAt = now
	c.status.Stale = false
}

func (c *Controller) timeout(now time.Time) {
	c.stats.Timeouts++
	if c.isWrite {
		c.log.Debugf("no acknowledgement for %s", c.pending)
	} else {
		c.status.Stale = true
	}
	c.finish(TimedOut)
}

func (c *Controller) finish(outcome State) {
	c.outcome = outcome
	c.state = Idle
	c.pending = Frame{}
	c.isWrite = false
}

func (c *Controller) send(now time.Time) {
	var f Frame
	if len(c.writes) > 0 {
		f = c.writes[0]
		c.writes = c.writes[1:]
		c.isWrite = true
	} else {
		r := readRotation[c.nextRead]
		c.nextRead = (c.nextRead + 1) % len(readRotation)
		f = NewRequest(c.cfg.RadioAddress, r.Cmd, r.Data...)
		c.isWrite = false
	}

	wire := f.Bytes()
	verbose.Frame("tx", wire)
	if _, err := c.port.Write(wire); err != nil {
		c.stats.WriteErrors++
		c.log.Warnf("write failed: %v", err)
		c.pending = f
		c.timeout(now)
		return
	}
	c.stats.Sent++
	c.pending = f
	c.sentAt = now
	c.state = AwaitingResponse
}

func (c *Controller) enqueue(f Frame) error {
	if len(c.writes) >= maxQueuedWrites {
		return ErrQueueFull
	}
	c.writes = append(c.writes, f)
	return nil
}

// SetPower queues an RF power change in percent
func (c *Controller) SetPower(percent int) error {
	level, err := EncodeLevel(PercentToLevel(percent))
	if err != nil {
		return err
	}
	return c.enqueue(NewRequest(c.cfg.RadioAddress, CmdLevel, append([]byte{SubRFPower}, level...)...))
}

// SetFrequency queues a frequency change
func (c *Controller) SetFrequency(hz int64) error {
	data, err := EncodeFrequency(hz)
	if err != nil {
		return err
	}
	return c.enqueue(NewRequest(c.cfg.RadioAddress, CmdSetFreq, data...))
}

// Tune queues an antenna tuner cycle
func (c *Controller) Tune() error {
	return c.enqueue(NewRequest(c.cfg.RadioAddress, CmdTX, SubTuner, TunerStart))
}

// SetScopeRef queues a spectrum scope reference level in dB (-20..+20,
// 0.5 dB steps) for the main scope
func (c *Controller) SetScopeRef(db float64) error {
	if math.IsNaN(db) || db < -20 || db > 20 {
		return fmt.Errorf("scope reference %v out of range", db)
	}
	hundredths := int(math.Round(math.Abs(db)*2)) * 50
	hi, _ := DecimalToBCD(hundredths / 100)
	lo, _ := DecimalToBCD(hundredths % 100)
	var sign byte
	if db < 0 {
		sign = 1
	}
	return c.enqueue(NewRequest(c.cfg.RadioAddress, CmdScope, SubScopeRef, 0x00, hi, lo, sign))
}

// Status returns the radio status
func (c *Controller) Status() RadioStatus {
	return c.status
}

// State returns the exchange state
func (c *Controller) State() State {
	return c.state
}

// LastOutcome returns how the previous exchange ended
func (c *Controller) LastOutcome() State {
	return c.outcome
}

// Pending returns the number of queued writes
func (c *Controller) Pending() int {
	return len(c.writes)
}

// Stats returns exchange counters
func (c *Controller) Stats() Stats {
	s := c.stats
	s.Ignored += uint64(c.parser.Discards)
	return s
}
