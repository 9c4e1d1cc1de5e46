package aggregate

import (
	"fmt"

	"github.com/dougsko/swrmeter/pkg/sampler"
)

// ProfileID names one of the averaging profiles
type ProfileID int

const (
	Calibrate ProfileID = iota
	Default
	Alternate
	NumProfiles
)

// String returns the profile name
func (p ProfileID) String() string {
	switch p {
	case Calibrate:
		return "calibrate"
	case Default:
		return "default"
	case Alternate:
		return "alternate"
	default:
		return fmt.Sprintf("profile(%d)", int(p))
	}
}

// ParseProfile converts a name into a ProfileID
func ParseProfile(name string) (ProfileID, error) {
	for p := Calibrate; p < NumProfiles; p++ {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown averaging profile: %s", name)
}

// Profile is one averaging setup
type Profile struct {
	Samples     int  `json:"samples"`     // window results averaged in block mode
	Exponential bool `json:"exponential"` // use the shared decay weight instead
}

// Profiles holds every averaging profile, indexed by ProfileID
type Profiles [NumProfiles]Profile

// DefaultProfiles returns the stock averaging setups
func DefaultProfiles() Profiles {
	return Profiles{
		Calibrate: {Samples: 75, Exponential: true},
		Default:   {Samples: 5, Exponential: true},
		Alternate: {Samples: 25, Exponential: true},
	}
}

// DefaultWeight is the stock exponential decay weight in thousandths
const DefaultWeight = 500

// Averager smooths a stream of window results under one profile
type Averager struct {
	profile Profile
	weight  int

	block    *sampler.Buffer[float64]
	smoothed float64
	primed   bool
}

// NewAverager creates an averager; weight is in thousandths
func NewAverager(p Profile, weight int) (*Averager, error) {
	a := &Averager{weight: weight}
	if err := a.configure(p); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Averager) configure(p Profile) error {
	if p.Samples <= 0 {
		return fmt.Errorf("invalid profile sample count: %d", p.Samples)
	}
	block, err := sampler.NewBuffer[float64](p.Samples)
	if err != nil {
		return err
	}
	a.profile = p
	a.block = block
	return nil
}

// Alpha returns the exponential smoothing factor
func (a *Averager) Alpha() float64 {
	return float64(a.weight) / 1000
}

// SetWeight changes the exponential decay weight (1..1000)
func (a *Averager) SetWeight(weight int) error {
	if weight < 1 || weight > 1000 {
		return fmt.Errorf("invalid decay weight: %d", weight)
	}
	a.weight = weight
	return nil
}

// Add folds x in and returns the smoothed value
func (a *Averager) Add(x float64) float64 {
	a.block.Push(x)
	if !a.primed {
		a.smoothed = x
		a.primed = true
		return a.smoothed
	}

	if a.profile.Exponential {
		alpha := a.Alpha()
		a.smoothed = a.smoothed*(1-alpha) + x*alpha
		return a.smoothed
	}

	var sum float64
	values := a.block.Snapshot()
	for _, v := range values {
		sum += v
	}
	a.smoothed = sum / float64(len(values))
	return a.smoothed
}

// Value returns the smoothed value
func (a *Averager) Value() float64 {
	return a.smoothed
}

// Reset restarts the accumulator at x
func (a *Averager) Reset(x float64) {
	a.block.Reset()
	a.block.Push(x)
	a.smoothed = x
	a.primed = true
}

// SetProfile switches profile and restarts the accumulator at current
func (a *Averager) SetProfile(p Profile, current float64) error {
	if err := a.configure(p); err != nil {
		return err
	}
	a.Reset(current)
	return nil
}

// Profile returns the active profile
func (a *Averager) Profile() Profile {
	return a.profile
}
