package civ

import (
	"errors"
	"fmt"
)

// ErrInvalidBCD is returned when a nibble holds a value above 9
var ErrInvalidBCD = errors.New("invalid BCD digit")

// DecimalToBCD packs n (0..99) into one byte, tens in the high nibble
func DecimalToBCD(n int) (byte, error) {
	if n < 0 || n > 99 {
		return 0, fmt.Errorf("value %d does not fit one BCD byte", n)
	}
	return byte(n/10*16 + n%10), nil
}

// BCDToDecimal unpacks one BCD byte
func BCDToDecimal(b byte) (int, error) {
	hi, lo := int(b>>4), int(b&0x0f)
	if hi > 9 || lo > 9 {
		return 0, fmt.Errorf("%w: 0x%02x", ErrInvalidBCD, b)
	}
	return hi*10 + lo, nil
}

// FrequencyBytes is the length of a frequency field
const FrequencyBytes = 5

// MaxFrequency is the largest frequency a five byte field can hold
const MaxFrequency = 9999999999

// EncodeFrequency packs hz into five BCD bytes, least significant pair first
func EncodeFrequency(hz int64) ([]byte, error) {
	if hz < 0 || hz > MaxFrequency {
		return nil, fmt.Errorf("frequency %d out of range", hz)
	}
	out := make([]byte, FrequencyBytes)
	for i := range out {
		b, _ := DecimalToBCD(int(hz % 100))
		out[i] = b
		hz /= 100
	}
	return out, nil
}

// DecodeFrequency unpacks a little-endian BCD frequency field into Hz
func DecodeFrequency(data []byte) (int64, error) {
	if len(data) != FrequencyBytes {
		return 0, fmt.Errorf("frequency field is %d bytes, want %d", len(data), FrequencyBytes)
	}
	var hz int64
	for i := len(data) - 1; i >= 0; i-- {
		d, err := BCDToDecimal(data[i])
		if err != nil {
			return 0, err
		}
		hz = hz*100 + int64(d)
	}
	return hz, nil
}

// EncodeLevel packs a 0..255 level into two big-endian BCD bytes
func EncodeLevel(level int) ([]byte, error) {
	if level < 0 || level > 255 {
		return nil, fmt.Errorf("level %d out of range", level)
	}
	hi, _ := DecimalToBCD(level / 100)
	lo, _ := DecimalToBCD(level % 100)
	return []byte{hi, lo}, nil
}

// DecodeLevel unpacks a two byte BCD level
func DecodeLevel(data []byte) (int, error) {
	if len(data) != 2 {
		return 0, fmt.Errorf("level field is %d bytes, want 2", len(data))
	}
	hi, err := BCDToDecimal(data[0])
	if err != nil {
		return 0, err
	}
	lo, err := BCDToDecimal(data[1])
	if err != nil {
		return 0, err
	}
	level := hi*100 + lo
	if level > 255 {
		return 0, fmt.Errorf("level %d out of range", level)
	}
	return level, nil
}

// PercentToLevel maps 0..100 percent onto the 0..255 level scale
func PercentToLevel(percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return (percent*255 + 50) / 100
}

// LevelToPercent maps a 0..255 level onto 0..100 percent
func LevelToPercent(level int) int {
	return (level*100 + 127) / 255
}
