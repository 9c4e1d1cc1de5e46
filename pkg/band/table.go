package band

import (
	"fmt"
	"sort"
)

// Band is one amateur allocation plus its user-editable overlay
type Band struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	Meters     int     `json:"meters"`
	LowerHz    int64   `json:"lower_hz"`
	UpperHz    int64   `json:"upper_hz"`
	FT8Hz      int64   `json:"ft8_hz"`
	Multiplier float64 `json:"multiplier"`

	// Persisted per band
	Reference float64 `json:"reference"` // spectrum scope reference level, dB
	Tune      bool    `json:"tune"`
	AutoBand  bool    `json:"autoband"`
}

// Unknown is returned for frequencies outside every band
var Unknown = Band{Index: -1, Name: "Unknown", Multiplier: 1.0}

// IsUnknown reports whether b is the unknown sentinel
func (b Band) IsUnknown() bool {
	return b.Index < 0
}

// Contains reports whether hz is inside the band, bounds inclusive
func (b Band) Contains(hz int64) bool {
	return !b.IsUnknown() && hz >= b.LowerHz && hz <= b.UpperHz
}

var defaults = [Count]Band{
	{0, "160 Mtrs", 160, 1810000, 2000000, 1840000, 1.000, 0, false, false},
	{1, "80 Mtrs", 80, 3500000, 3800000, 3573000, 1.000, 0, false, true},
	{2, "60 Mtrs", 60, 5258500, 5406500, 5357000, 1.000, 0, false, false},
	{3, "40 Mtrs", 40, 7000000, 7200000, 7074000, 1.010, 0, true, true},
	{4, "30 Mtrs", 30, 10100000, 10150000, 10136000, 1.040, 0, false, true},
	{5, "20 Mtrs", 20, 14000000, 14350000, 14074000, 1.050, 0, true, true},
	{6, "17 Mtrs", 17, 18068000, 18168000, 18100000, 1.050, 0, true, true},
	{7, "15 Mtrs", 15, 21000000, 21450000, 21074000, 1.015, 0, true, true},
	{8, "12 Mtrs", 12, 24890000, 24990000, 24915000, 0.970, 0, true, true},
	{9, "10 Mtrs", 10, 28000000, 29700000, 28074000, 0.940, 0, true, true},
	{10, "6 Mtrs", 6, 50000000, 52000000, 50313000, 1.220, 0, false, false},
	{11, "4 Mtrs", 4, 70000000, 70500000, 70150000, 0.868, 0, false, false},
}

// Count is the number of bands in the table
const Count = 12

// Overlay is the persisted, user-editable part of a band
type Overlay struct {
	Reference float64 `json:"reference"`
	Tune      bool    `json:"tune"`
	AutoBand  bool    `json:"autoband"`
}

// Table is the static band plan plus a mutable overlay
type Table struct {
	bands []Band
}

// NewTable returns the compiled-in band plan with default overlays
func NewTable() *Table {
	bands := make([]Band, len(defaults))
	copy(bands, defaults[:])
	return &Table{bands: bands}
}

// DefaultOverlay returns the compiled-in overlay for index i
func DefaultOverlay(i int) Overlay {
	if i < 0 || i >= len(defaults) {
		return Overlay{}
	}
	b := defaults[i]
	return Overlay{Reference: b.Reference, Tune: b.Tune, AutoBand: b.AutoBand}
}

// Len returns the number of bands
func (t *Table) Len() int {
	return len(t.bands)
}

// All returns a copy of every band, ascending
func (t *Table) All() []Band {
	out := make([]Band, len(t.bands))
	copy(out, t.bands)
	return out
}

// Get returns the band at index i
func (t *Table) Get(i int) (Band, error) {
	if i < 0 || i >= len(t.bands) {
		return Unknown, fmt.Errorf("band index %d out of range", i)
	}
	return t.bands[i], nil
}

// ByName finds a band by name or by meters ("20", "20m", "20 Mtrs")
func (t *Table) ByName(name string) (Band, bool) {
	for _, b := range t.bands {
		m := fmt.Sprint(b.Meters)
		if name == b.Name || name == m || name == m+"m" {
			return b, true
		}
	}
	return Unknown, false
}

// For resolves a frequency to its band with a binary search over the
// ascending ranges; outside every range it returns Unknown.
func (t *Table) For(hz int64) Band {
	i := sort.Search(len(t.bands), func(i int) bool {
		return t.bands[i].UpperHz >= hz
	})
	if i < len(t.bands) && t.bands[i].Contains(hz) {
		return t.bands[i]
	}
	return Unknown
}

// Apply replaces the overlay of band i
func (t *Table) Apply(i int, o Overlay) error {
	if i < 0 || i >= len(t.bands) {
		return fmt.Errorf("band index %d out of range", i)
	}
	t.bands[i].Reference = o.Reference
	t.bands[i].Tune = o.Tune
	t.bands[i].AutoBand = o.AutoBand
	return nil
}

// Overlay returns the overlay of band i
func (t *Table) Overlay(i int) Overlay {
	if i < 0 || i >= len(t.bands) {
		return Overlay{}
	}
	b := t.bands[i]
	return Overlay{Reference: b.Reference, Tune: b.Tune, AutoBand: b.AutoBand}
}
