package display

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// FrequencyText renders hz with an SI prefix, "14.074 MHz"
func FrequencyText(hz int64) string {
	if hz <= 0 {
		return "unknown"
	}
	return humanize.SIWithDigits(float64(hz), 6, "Hz")
}

// PowerText renders watts with an SI prefix, "96 W" or "250 mW"
func PowerText(watts float64) string {
	if watts <= 0 {
		return "0 W"
	}
	return humanize.SIWithDigits(watts, 1, "W")
}

// VSWRText renders a ratio as "1.5:1", or "-.-" without a signal
func VSWRText(vswr float64) string {
	if vswr < 0 {
		return "-.-"
	}
	return strings.TrimSuffix(humanize.FtoaWithDigits(vswr, 2), ".") + ":1"
}
