package civ

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/dougsko/swrmeter/pkg/logging"
)

// serialReadTimeout bounds each blocking read in the reader goroutine
const serialReadTimeout = 20 * time.Millisecond

// Port adapts a blocking byte stream into the non-blocking reads the
// controller expects. A goroutine moves received bytes into a channel;
// Read drains whatever has arrived and never waits.
type Port struct {
	stream io.ReadWriteCloser

	rx      chan []byte
	partial []byte

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	mu  sync.Mutex
	err error
}

// OpenSerial opens a CI-V serial device at 8N1
func OpenSerial(device string, baud int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", device, err)
	}
	if err := p.SetReadTimeout(serialReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", device, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		logging.For("civ").Warnf("could not flush %s: %v", device, err)
	}
	return NewPort(p), nil
}

// ListSerialPorts returns the serial devices present on the system
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// NewPort wraps stream and starts its reader
func NewPort(stream io.ReadWriteCloser) *Port {
	p := &Port{
		stream: stream,
		rx:     make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.readLoop()
	return p
}

func (p *Port) readLoop() {
	defer p.wg.Done()
	buf := make([]byte, MaxFrameLen)
	for {
		n, err := p.stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.rx <- chunk:
			case <-p.done:
				return
			default:
				// consumer stalled; the watchdog will notice
			}
		}
		if err != nil {
			select {
			case <-p.done:
			default:
				p.mu.Lock()
				p.err = err
				p.mu.Unlock()
			}
			return
		}
		select {
		case <-p.done:
			return
		default:
		}
	}
}

// Read copies received bytes into b without blocking. It returns the
// reader's terminal error once no buffered bytes remain.
func (p *Port) Read(b []byte) (int, error) {
	n := 0
	if len(p.partial) > 0 {
		n = copy(b, p.partial)
		p.partial = p.partial[n:]
	}
	for n < len(b) {
		select {
		case chunk := <-p.rx:
			c := copy(b[n:], chunk)
			n += c
			if c < len(chunk) {
				p.partial = append(p.partial, chunk[c:]...)
			}
		default:
			if n == 0 {
				return 0, p.Err()
			}
			return n, nil
		}
	}
	return n, nil
}

// Write sends b to the radio
func (p *Port) Write(b []byte) (int, error) {
	return p.stream.Write(b)
}

// Err returns the error that stopped the reader, if any
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close stops the reader and closes the stream
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.stream.Close()
		p.wg.Wait()
	})
	return err
}
