package verbose

import (
	"encoding/hex"
	"log"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

// SetEnabled sets the global verbose logging flag
func SetEnabled(enable bool) {
	enabled.Store(enable)
}

// IsEnabled returns whether verbose logging is enabled
func IsEnabled() bool {
	return enabled.Load()
}

// Printf prints a verbose log message if verbose logging is enabled
func Printf(format string, args ...interface{}) {
	if IsEnabled() {
		log.Printf("[VERBOSE] "+format, args...)
	}
}

// Frame dumps a protocol frame as spaced hex, e.g. "tx: fe fe 94 e2 03 fd"
func Frame(direction string, frame []byte) {
	if !IsEnabled() {
		return
	}
	log.Printf("[VERBOSE] %s: %s", direction, HexString(frame))
}

// HexString formats bytes as lower-case hex pairs separated by spaces
func HexString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	encoded := hex.EncodeToString(b)
	pairs := make([]string, 0, len(b))
	for i := 0; i < len(encoded); i += 2 {
		pairs = append(pairs, encoded[i:i+2])
	}
	return strings.Join(pairs, " ")
}
