package options

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Store layout. Every record sits at a fixed address so that resizing
// one field never moves another.
const (
	HeaderAddr = 0
	Magic      = "PM"
	Version    = 1

	ParamBase = 10  // first parameter record
	BandBase  = 100 // first per-band record
	Stride    = 16  // distance between records

	paramSize = 5 // int32 value + flag byte
	bandSize  = 6 // float32 reference + tune + autoband

	// Size is the number of bytes the layout spans
	Size = BandBase + bandCount*Stride

	// Blank is the content of erased memory
	Blank byte = 0xFF
)

// Parameter offsets from ParamBase
const (
	OffsetFreqTune  = 0x00
	OffsetAutoBand  = 0x10
	OffsetCalibrate = 0x20
	OffsetDefault   = 0x30
	OffsetAlternate = 0x40
	OffsetWeight    = 0x50
)

// ParamAddr returns the address of the parameter at offset
func ParamAddr(offset int) int64 {
	return int64(ParamBase + offset)
}

// BandAddr returns the address of band index's record
func BandAddr(index int) int64 {
	return int64(BandBase + index*Stride)
}

// ByteStore is the raw persistent memory behind the options
type ByteStore interface {
	io.ReaderAt
	io.WriterAt
}

func encodeParam(p Param) []byte {
	buf := make([]byte, paramSize)
	binary.LittleEndian.PutUint32(buf, uint32(int32(p.Value)))
	if p.Flag {
		buf[4] = 1
	}
	return buf
}

// rawParam is a record as read, before repair
type rawParam struct {
	value int32
	flag  byte
}

func decodeParam(buf []byte) rawParam {
	return rawParam{
		value: int32(binary.LittleEndian.Uint32(buf)),
		flag:  buf[4],
	}
}

func encodeBand(o bandRecord) []byte {
	buf := make([]byte, bandSize)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(o.reference)))
	if o.tune {
		buf[4] = 1
	}
	if o.autoBand {
		buf[5] = 1
	}
	return buf
}

type bandRecord struct {
	reference float64
	tune      bool
	autoBand  bool
}

type rawBand struct {
	reference float32
	tune      byte
	autoBand  byte
}

func decodeBand(buf []byte) rawBand {
	return rawBand{
		reference: math.Float32frombits(binary.LittleEndian.Uint32(buf)),
		tune:      buf[4],
		autoBand:  buf[5],
	}
}

func readRecord(store ByteStore, addr int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = Blank
	}
	if _, err := store.ReadAt(buf, addr); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read %d bytes at %d: %w", n, addr, err)
	}
	return buf, nil
}

func writeRecord(store ByteStore, addr int64, buf []byte) error {
	if _, err := store.WriteAt(buf, addr); err != nil {
		return fmt.Errorf("failed to write %d bytes at %d: %w", len(buf), addr, err)
	}
	return nil
}
