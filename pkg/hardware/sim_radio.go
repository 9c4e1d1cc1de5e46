package hardware

import (
	"bytes"
	"errors"
	"sync"

	"github.com/dougsko/swrmeter/pkg/civ"
)

// ErrRadioClosed is returned by a closed simulated radio
var ErrRadioClosed = errors.New("simulated radio closed")

// SimulatedRadioConfig describes the simulated transceiver
type SimulatedRadioConfig struct {
	Address      byte
	FrequencyHz  int64
	PowerPercent int
	Echo         bool // repeat every written byte, as a one-wire CI-V bus does
	Transceive   bool // broadcast frequency changes made on the front panel
}

// RadioState is what the simulated radio currently holds
type RadioState struct {
	FrequencyHz  int64  `json:"frequency_hz"`
	Transmitting bool   `json:"transmitting"`
	PowerPercent int    `json:"power_percent"`
	Tunes        int    `json:"tunes"`
	ScopeRef     []byte `json:"scope_ref,omitempty"`
}

// SimulatedRadio answers CI-V requests the way an IC-7300 does. It
// implements a non-blocking io.ReadWriteCloser: Read returns whatever
// replies are queued, possibly nothing.
type SimulatedRadio struct {
	config SimulatedRadioConfig
	mu     sync.Mutex

	parser civ.Parser
	rx     bytes.Buffer
	state  RadioState
	silent bool
	closed bool

	onChange func(RadioState)
}

// NewSimulatedRadio creates a simulated IC-7300
func NewSimulatedRadio(config SimulatedRadioConfig) *SimulatedRadio {
	if config.Address == 0 {
		config.Address = civ.DefaultRadioAddress
	}
	if config.FrequencyHz == 0 {
		config.FrequencyHz = 14074000
	}
	if config.PowerPercent == 0 {
		config.PowerPercent = 50
	}
	return &SimulatedRadio{
		config: config,
		state: RadioState{
			FrequencyHz:  config.FrequencyHz,
			PowerPercent: config.PowerPercent,
		},
	}
}

// OnChange registers a callback run after the transmit state or power
// level changes
func (r *SimulatedRadio) OnChange(fn func(RadioState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Read implements io.Reader without blocking
func (r *SimulatedRadio) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRadioClosed
	}
	if r.rx.Len() == 0 {
		return 0, nil
	}
	return r.rx.Read(p)
}

// Write implements io.Writer, answering every complete request
func (r *SimulatedRadio) Write(p []byte) (int, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, ErrRadioClosed
	}
	if r.config.Echo {
		r.rx.Write(p)
	}

	changed := false
	for _, f := range r.parser.Feed(p) {
		reply, ch := r.respond(f)
		changed = changed || ch
		if reply != nil && !r.silent {
			r.rx.Write(reply.Bytes())
		}
	}
	fn, state := r.onChange, r.snapshot()
	r.mu.Unlock()

	if changed && fn != nil {
		fn(state)
	}
	return len(p), nil
}

func (r *SimulatedRadio) reply(f civ.Frame, data ...byte) *civ.Frame {
	return &civ.Frame{To: f.From, From: r.config.Address, Cmd: f.Cmd, Data: data}
}

func (r *SimulatedRadio) ack(f civ.Frame) *civ.Frame {
	return &civ.Frame{To: f.From, From: r.config.Address, Cmd: civ.OK}
}

func (r *SimulatedRadio) nak(f civ.Frame) *civ.Frame {
	return &civ.Frame{To: f.From, From: r.config.Address, Cmd: civ.NG}
}

// respond returns the reply to f and whether keying or power changed
func (r *SimulatedRadio) respond(f civ.Frame) (*civ.Frame, bool) {
	if f.To != r.config.Address && f.To != civ.Broadcast {
		return nil, false
	}

	switch f.Cmd {
	case civ.CmdReadFreq:
		data, err := civ.EncodeFrequency(r.state.FrequencyHz)
		if err != nil {
			return r.nak(f), false
		}
		return r.reply(f, data...), false

	case civ.CmdSetFreq:
		hz, err := civ.DecodeFrequency(f.Data)
		if err != nil {
			return r.nak(f), false
		}
		r.state.FrequencyHz = hz
		return r.ack(f), false

	case civ.CmdTX:
		switch {
		case len(f.Data) == 1 && f.Data[0] == civ.SubTXStatus:
			var tx byte
			if r.state.Transmitting {
				tx = 1
			}
			return r.reply(f, civ.SubTXStatus, tx), false
		case len(f.Data) == 2 && f.Data[0] == civ.SubTXStatus && f.Data[1] <= 1:
			r.state.Transmitting = f.Data[1] == 1
			return r.ack(f), true
		case len(f.Data) == 2 && f.Data[0] == civ.SubTuner && f.Data[1] == civ.TunerStart:
			r.state.Tunes++
			return r.ack(f), false
		}

	case civ.CmdLevel:
		if len(f.Data) == 0 || f.Data[0] != civ.SubRFPower {
			break
		}
		if len(f.Data) == 1 {
			level, _ := civ.EncodeLevel(civ.PercentToLevel(r.state.PowerPercent))
			return r.reply(f, append([]byte{civ.SubRFPower}, level...)...), false
		}
		level, err := civ.DecodeLevel(f.Data[1:])
		if err != nil {
			return r.nak(f), false
		}
		r.state.PowerPercent = civ.LevelToPercent(level)
		return r.ack(f), true

	case civ.CmdScope:
		if len(f.Data) == 5 && f.Data[0] == civ.SubScopeRef {
			r.state.ScopeRef = append([]byte(nil), f.Data[1:]...)
			return r.ack(f), false
		}
	}
	return r.nak(f), false
}

func (r *SimulatedRadio) snapshot() RadioState {
	s := r.state
	s.ScopeRef = append([]byte(nil), r.state.ScopeRef...)
	return s
}

// State returns the radio's current settings
func (r *SimulatedRadio) State() RadioState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Dial changes frequency from the front panel. With transceive enabled
// the radio broadcasts the new frequency.
func (r *SimulatedRadio) Dial(hz int64) error {
	data, err := civ.EncodeFrequency(hz)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.FrequencyHz = hz
	if r.config.Transceive && !r.closed {
		f := civ.Frame{To: civ.Broadcast, From: r.config.Address, Cmd: civ.CmdTransceiveFreq, Data: data}
		r.rx.Write(f.Bytes())
	}
	return nil
}

// SetTransmitting keys or unkeys the radio from the front panel
func (r *SimulatedRadio) SetTransmitting(on bool) {
	r.mu.Lock()
	r.state.Transmitting = on
	fn, state := r.onChange, r.snapshot()
	r.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

// SetSilent stops the radio replying, as if the cable were pulled
func (r *SimulatedRadio) SetSilent(silent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.silent = silent
}

// Close implements io.Closer
func (r *SimulatedRadio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.rx.Reset()
	return nil
}
