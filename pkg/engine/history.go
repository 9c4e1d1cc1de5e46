package engine

import (
	"time"

	"github.com/dougsko/swrmeter/pkg/storage"
)

// transmission accumulates one keyed period for the history
type transmission struct {
	active  bool
	rec     storage.Transmission
	sumNet  float64
	windows int
}

// trackTransmission follows Transmitting across window results and
// records the transmission when it ends
func (m *Meter) trackTransmission(now time.Time) {
	r := m.reading
	if !m.agg.Transmitting() {
		m.finishTransmission(now)
		return
	}

	t := &m.tx
	if !t.active {
		*t = transmission{active: true}
		t.rec.StartedAt = now
	}
	t.sumNet += r.Net
	t.windows++
	if r.Peak > t.rec.PeakWatts {
		t.rec.PeakWatts = r.Peak
	}
	if r.PEP > t.rec.PEPWatts {
		t.rec.PEPWatts = r.PEP
	}
	if r.HasSignal() {
		t.rec.VSWR = r.VSWR
		if r.VSWR > t.rec.MaxVSWR {
			t.rec.MaxVSWR = r.VSWR
		}
	}
}

func (m *Meter) finishTransmission(now time.Time) {
	t := &m.tx
	if !t.active {
		return
	}
	t.active = false

	rec := t.rec
	rec.EndedAt = now
	rec.AvgWatts = t.sumNet / float64(t.windows)
	b := m.activeBand()
	if !b.IsUnknown() {
		rec.Band = b.Name
	}
	if m.civ != nil && !m.civ.Status().Stale {
		rec.FrequencyHz = m.civ.Status().FrequencyHz
	}

	m.log.Infof("transmission ended: %.0f W avg, %.0f W PEP, VSWR %.1f, %v",
		rec.AvgWatts, rec.PEPWatts, rec.MaxVSWR, rec.Duration())

	if m.history == nil {
		return
	}
	m.persist("record transmission", func() error {
		_, err := m.history.RecordTransmission(rec)
		return err
	})
}
