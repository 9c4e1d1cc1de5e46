package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dougsko/swrmeter/pkg/sampler"
)

// IIOChannels maps meter channels to in_voltageN_raw indices
type IIOChannels struct {
	Forward   int
	Reflected int
	Supply    int
}

// DefaultIIOChannels wires forward, reflected and supply to inputs 0, 1, 2
var DefaultIIOChannels = IIOChannels{Forward: 0, Reflected: 1, Supply: 2}

// IIOADC reads raw conversions from a Linux industrial I/O device
// through sysfs. Each attribute file stays open and is re-read from
// offset zero, which triggers a fresh conversion.
type IIOADC struct {
	dir   string
	mu    sync.Mutex
	files [3]*os.File
	buf   [16]byte
}

// OpenIIOADC opens the three channel attributes under dir
func OpenIIOADC(dir string, channels IIOChannels) (*IIOADC, error) {
	a := &IIOADC{dir: dir}
	for ch, idx := range [3]int{channels.Forward, channels.Reflected, channels.Supply} {
		path := filepath.Join(dir, fmt.Sprintf("in_voltage%d_raw", idx))
		f, err := os.Open(path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open %s channel: %w", sampler.Channel(ch), err)
		}
		a.files[ch] = f
	}
	return a, nil
}

// Read implements sampler.ADC
func (a *IIOADC) Read(ch sampler.Channel) (uint16, error) {
	if ch < 0 || int(ch) >= len(a.files) {
		return 0, fmt.Errorf("no such channel %s", ch)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	f := a.files[ch]
	if f == nil {
		return 0, fmt.Errorf("iio device %s closed", a.dir)
	}
	n, err := f.ReadAt(a.buf[:], 0)
	if n == 0 && err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(a.buf[:n])), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("bad %s conversion: %w", ch, err)
	}
	return uint16(v), nil
}

// Close releases the attribute files
func (a *IIOADC) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var first error
	for i, f := range a.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		a.files[i] = nil
	}
	return first
}
