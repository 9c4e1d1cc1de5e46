package civ

import (
	"bytes"
	"errors"
	"fmt"
)

// Protocol constants
const (
	Preamble   byte = 0xFE
	Terminator byte = 0xFD
	Collision  byte = 0xFC
	OK         byte = 0xFB
	NG         byte = 0xFA

	ControllerAddress   byte = 0xE2
	DefaultRadioAddress byte = 0x94 // IC-7300
	Broadcast           byte = 0x00

	// MaxFrameLen bounds any frame accepted from the wire
	MaxFrameLen = 32
)

// Commands and sub commands used by the meter
const (
	CmdTransceiveFreq byte = 0x00
	CmdReadFreq       byte = 0x03
	CmdSetFreq        byte = 0x05
	CmdLevel          byte = 0x14
	CmdTX             byte = 0x1C
	CmdScope          byte = 0x27

	SubRFPower  byte = 0x0A
	SubTXStatus byte = 0x00
	SubTuner    byte = 0x01
	SubScopeRef byte = 0x19

	TunerStart byte = 0x02
)

// Frame errors
var (
	ErrShortFrame    = errors.New("frame too short")
	ErrNoPreamble    = errors.New("frame missing preamble")
	ErrNoTerminator  = errors.New("frame missing terminator")
	ErrFrameTooLong  = errors.New("frame too long")
	ErrUnexpectedEnd = errors.New("terminator inside frame body")
)

// Frame is one CI-V message. Data holds everything after the command
// byte, sub command included.
type Frame struct {
	To   byte
	From byte
	Cmd  byte
	Data []byte
}

// NewRequest builds a frame from this controller to radio
func NewRequest(radio, cmd byte, data ...byte) Frame {
	return Frame{To: radio, From: ControllerAddress, Cmd: cmd, Data: data}
}

// Bytes encodes the frame for the wire
func (f Frame) Bytes() []byte {
	out := make([]byte, 0, 6+len(f.Data))
	out = append(out, Preamble, Preamble, f.To, f.From, f.Cmd)
	out = append(out, f.Data...)
	return append(out, Terminator)
}

// Sub returns the first data byte, or false when there is none
func (f Frame) Sub() (byte, bool) {
	if len(f.Data) == 0 {
		return 0, false
	}
	return f.Data[0], true
}

// IsAck reports whether the frame is an OK reply
func (f Frame) IsAck() bool {
	return f.Cmd == OK && len(f.Data) == 0
}

// IsNak reports whether the frame is an NG reply
func (f Frame) IsNak() bool {
	return f.Cmd == NG && len(f.Data) == 0
}

// String formats the frame for logs
func (f Frame) String() string {
	return fmt.Sprintf("to=%02x from=%02x cmd=%02x data=% x", f.To, f.From, f.Cmd, f.Data)
}

// Parse decodes exactly one frame
func Parse(b []byte) (Frame, error) {
	if len(b) > MaxFrameLen {
		return Frame{}, ErrFrameTooLong
	}
	if len(b) < 6 {
		return Frame{}, ErrShortFrame
	}
	if b[0] != Preamble || b[1] != Preamble {
		return Frame{}, ErrNoPreamble
	}
	if b[len(b)-1] != Terminator {
		return Frame{}, ErrNoTerminator
	}
	body := b[2 : len(b)-1]
	if bytes.IndexByte(body, Terminator) >= 0 {
		return Frame{}, ErrUnexpectedEnd
	}

	data := make([]byte, len(body)-3)
	copy(data, body[3:])
	return Frame{To: body[0], From: body[1], Cmd: body[2], Data: data}, nil
}

// Parser reassembles frames from a byte stream. Its buffer never grows
// past MaxFrameLen; garbage and over-long frames are discarded.
type Parser struct {
	buf      []byte
	Discards int
}

// Feed appends b and returns every complete frame found
func (p *Parser) Feed(b []byte) []Frame {
	var frames []Frame
	for _, c := range b {
		switch {
		case len(p.buf) == 0 && c != Preamble:
			p.Discards++
			continue
		case len(p.buf) == 1 && c != Preamble:
			p.buf = p.buf[:0]
			p.Discards++
			continue
		case len(p.buf) == 2 && c == Preamble:
			// extra preamble bytes are allowed before the address
			continue
		case c == Collision:
			p.buf = p.buf[:0]
			p.Discards++
			continue
		}

		p.buf = append(p.buf, c)
		if c == Terminator {
			f, err := Parse(p.buf)
			if err != nil {
				p.Discards++
			} else {
				frames = append(frames, f)
			}
			p.buf = p.buf[:0]
			continue
		}
		if len(p.buf) >= MaxFrameLen {
			p.buf = p.buf[:0]
			p.Discards++
		}
	}
	return frames
}

// Reset drops any partial frame
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
}
