package options

import (
	"fmt"
	"math"

	"github.com/dougsko/swrmeter/pkg/aggregate"
	"github.com/dougsko/swrmeter/pkg/band"
)

const bandCount = band.Count

// Param is one persisted tunable with its flag
type Param struct {
	Value int  `json:"value"`
	Flag  bool `json:"flag"`
}

// Options are the persisted tunables
type Options struct {
	FreqTune  Param `json:"freq_tune"` // retune distance kHz; flag enables frequency tune
	AutoBand  Param `json:"autoband"`  // seconds between band hops; flag enables band hopping
	Calibrate Param `json:"calibrate"` // samples; flag selects exponential averaging
	Default   Param `json:"default"`
	Alternate Param `json:"alternate"`
	Weight    Param `json:"weight"` // exponential weight, thousandths

	Bands [bandCount]band.Overlay `json:"bands"`
}

// Repair records a field that was replaced or clamped on load
type Repair struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// String formats the repair for logs
func (r Repair) String() string {
	return r.Field + ": " + r.Reason
}

// Limits for each parameter
type limit struct{ min, max int }

var (
	freqTuneLimit = limit{1, 10000}
	autoBandLimit = limit{1, 3600}
	samplesLimit  = limit{1, 1000}
	weightLimit   = limit{1, 1000}
)

const (
	minReference = -20.0
	maxReference = 20.0
)

// Defaults returns the compiled-in options
func Defaults() Options {
	o := Options{
		FreqTune:  Param{Value: 200, Flag: false},
		AutoBand:  Param{Value: 120, Flag: false},
		Calibrate: Param{Value: 75, Flag: true},
		Default:   Param{Value: 5, Flag: true},
		Alternate: Param{Value: 25, Flag: true},
		Weight:    Param{Value: aggregate.DefaultWeight, Flag: true},
	}
	for i := range o.Bands {
		o.Bands[i] = band.DefaultOverlay(i)
	}
	return o
}

type paramField struct {
	name   string
	offset int
	limit  limit
	get    func(*Options) *Param
}

var paramFields = []paramField{
	{"freq_tune", OffsetFreqTune, freqTuneLimit, func(o *Options) *Param { return &o.FreqTune }},
	{"autoband", OffsetAutoBand, autoBandLimit, func(o *Options) *Param { return &o.AutoBand }},
	{"calibrate", OffsetCalibrate, samplesLimit, func(o *Options) *Param { return &o.Calibrate }},
	{"default", OffsetDefault, samplesLimit, func(o *Options) *Param { return &o.Default }},
	{"alternate", OffsetAlternate, samplesLimit, func(o *Options) *Param { return &o.Alternate }},
	{"weight", OffsetWeight, weightLimit, func(o *Options) *Param { return &o.Weight }},
}

// Load reads the options from store. It never fails: a missing or foreign
// header yields the defaults, and each damaged field is clamped or
// defaulted on its own. The returned repairs say what was changed.
func Load(store ByteStore) (Options, []Repair) {
	defaults := Defaults()
	var repairs []Repair

	header, err := readRecord(store, HeaderAddr, len(Magic)+1)
	if err != nil {
		return defaults, []Repair{{Field: "header", Reason: err.Error()}}
	}
	if string(header[:len(Magic)]) != Magic {
		return defaults, []Repair{{Field: "header", Reason: "store not initialised"}}
	}
	if header[len(Magic)] != Version {
		return defaults, []Repair{{Field: "header", Reason: fmt.Sprintf("version %d, want %d", header[len(Magic)], Version)}}
	}

	o := defaults
	for _, f := range paramFields {
		buf, err := readRecord(store, ParamAddr(f.offset), paramSize)
		if err != nil {
			repairs = append(repairs, Repair{Field: f.name, Reason: err.Error()})
			continue
		}
		p, reason := repairParam(decodeParam(buf), *f.get(&defaults), f.limit)
		*f.get(&o) = p
		if reason != "" {
			repairs = append(repairs, Repair{Field: f.name, Reason: reason})
		}
	}

	for i := range o.Bands {
		name := fmt.Sprintf("band[%d]", i)
		buf, err := readRecord(store, BandAddr(i), bandSize)
		if err != nil {
			repairs = append(repairs, Repair{Field: name, Reason: err.Error()})
			continue
		}
		ov, reasons := repairBand(decodeBand(buf), defaults.Bands[i])
		o.Bands[i] = ov
		for _, r := range reasons {
			repairs = append(repairs, Repair{Field: name, Reason: r})
		}
	}
	return o, repairs
}

func repairParam(raw rawParam, def Param, l limit) (Param, string) {
	var reasons []string
	p := Param{Value: int(raw.value)}

	switch {
	case raw.value == -1:
		p.Value = def.Value
		reasons = append(reasons, "blank value")
	case p.Value < l.min:
		p.Value = l.min
		reasons = append(reasons, fmt.Sprintf("value %d below %d", raw.value, l.min))
	case p.Value > l.max:
		p.Value = l.max
		reasons = append(reasons, fmt.Sprintf("value %d above %d", raw.value, l.max))
	}

	switch raw.flag {
	case 0:
	case 1:
		p.Flag = true
	default:
		p.Flag = def.Flag
		reasons = append(reasons, fmt.Sprintf("flag 0x%02x", raw.flag))
	}

	if len(reasons) == 0 {
		return p, ""
	}
	return p, joinReasons(reasons)
}

func repairBand(raw rawBand, def band.Overlay) (band.Overlay, []string) {
	var reasons []string
	o := band.Overlay{Reference: float64(raw.reference)}

	switch {
	case math.IsNaN(o.Reference) || math.IsInf(o.Reference, 0):
		o.Reference = def.Reference
		reasons = append(reasons, "reference not a number")
	case o.Reference < minReference:
		o.Reference = minReference
		reasons = append(reasons, "reference below range")
	case o.Reference > maxReference:
		o.Reference = maxReference
		reasons = append(reasons, "reference above range")
	}

	var ok bool
	if o.Tune, ok = flagByte(raw.tune, def.Tune); !ok {
		reasons = append(reasons, fmt.Sprintf("tune flag 0x%02x", raw.tune))
	}
	if o.AutoBand, ok = flagByte(raw.autoBand, def.AutoBand); !ok {
		reasons = append(reasons, fmt.Sprintf("autoband flag 0x%02x", raw.autoBand))
	}
	return o, reasons
}

func flagByte(b byte, def bool) (bool, bool) {
	switch b {
	case 0:
		return false, true
	case 1:
		return true, true
	default:
		return def, false
	}
}

func joinReasons(reasons []string) string {
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += ", " + r
	}
	return out
}

// Validate checks every field against its range
func (o Options) Validate() error {
	for _, f := range paramFields {
		p := *f.get(&o)
		if p.Value < f.limit.min || p.Value > f.limit.max {
			return fmt.Errorf("%s must be between %d and %d, got %d", f.name, f.limit.min, f.limit.max, p.Value)
		}
	}
	for i, b := range o.Bands {
		if math.IsNaN(b.Reference) || b.Reference < minReference || b.Reference > maxReference {
			return fmt.Errorf("band %d reference must be between %v and %v, got %v", i, minReference, maxReference, b.Reference)
		}
	}
	return nil
}

// Save writes the options and header to store
func Save(store ByteStore, o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}

	for _, f := range paramFields {
		if err := writeRecord(store, ParamAddr(f.offset), encodeParam(*f.get(&o))); err != nil {
			return err
		}
	}
	for i, b := range o.Bands {
		rec := bandRecord{reference: b.Reference, tune: b.Tune, autoBand: b.AutoBand}
		if err := writeRecord(store, BandAddr(i), encodeBand(rec)); err != nil {
			return err
		}
	}

	// header last so a torn save reads as uninitialised
	header := append([]byte(Magic), Version)
	return writeRecord(store, HeaderAddr, header)
}

// Profiles converts the averaging parameters into aggregator profiles
func (o Options) Profiles() aggregate.Profiles {
	return aggregate.Profiles{
		aggregate.Calibrate: {Samples: o.Calibrate.Value, Exponential: o.Calibrate.Flag},
		aggregate.Default:   {Samples: o.Default.Value, Exponential: o.Default.Flag},
		aggregate.Alternate: {Samples: o.Alternate.Value, Exponential: o.Alternate.Flag},
	}
}

// ApplyBands copies the per-band overlays into table
func (o Options) ApplyBands(table *band.Table) error {
	for i, ov := range o.Bands {
		if err := table.Apply(i, ov); err != nil {
			return err
		}
	}
	return nil
}
