package hardware

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dougsko/swrmeter/pkg/config"
	"github.com/dougsko/swrmeter/pkg/power"
	"github.com/dougsko/swrmeter/pkg/sampler"
)

var testCurve = power.CurveFromConfig(config.Presets[config.PresetNewCoupler])

func newTestMockADC() *MockADC {
	return NewMockADC(MockADCConfig{
		ResolutionBits: 16,
		VRef:           3.3,
		SupplyDivider:  5.7,
		Forward:        testCurve,
		Reflected:      testCurve,
		SupplyVolts:    13.8,
	})
}

func TestMockADC(t *testing.T) {
	adc := newTestMockADC()
	s, err := sampler.New(adc, sampler.Config{
		SampleFreq:     1000,
		Capacity:       4,
		ResolutionBits: 16,
		VRef:           3.3,
		SupplyDivider:  5.7,
	})
	if err != nil {
		t.Fatalf("Failed to create sampler: %v", err)
	}

	t.Run("Unkeyed Reads Zero", func(t *testing.T) {
		for _, ch := range []sampler.Channel{sampler.Forward, sampler.Reflected} {
			raw, err := adc.Read(ch)
			if err != nil || raw != 0 {
				t.Errorf("%s: expected 0, got %d (%v)", ch, raw, err)
			}
		}
	})

	t.Run("Supply", func(t *testing.T) {
		raw, _ := adc.Read(sampler.Supply)
		if v := s.Volts(sampler.Supply, raw); math.Abs(v-13.8) > 0.01 {
			t.Errorf("Expected 13.8 V, got %v", v)
		}
	})

	t.Run("Carrier Round Trips Through Curve", func(t *testing.T) {
		adc.SetCarrier(100)
		adc.SetLoad(3)
		adc.Key(true)
		if !adc.Keyed() {
			t.Fatal("Expected keyed")
		}

		raw, _ := adc.Read(sampler.Forward)
		fwd := testCurve.Watts(s.Volts(sampler.Forward, raw))
		if math.Abs(fwd-100) > 0.5 {
			t.Errorf("Expected ~100 W forward, got %v", fwd)
		}

		raw, _ = adc.Read(sampler.Reflected)
		ref := testCurve.Watts(s.Volts(sampler.Reflected, raw))
		if math.Abs(ref-25) > 0.5 {
			t.Errorf("Expected ~25 W reflected at 3:1, got %v", ref)
		}
	})

	t.Run("Full Scale Clamp", func(t *testing.T) {
		adc.SetCarrier(1e6)
		raw, _ := adc.Read(sampler.Forward)
		if raw != math.MaxUint16 {
			t.Errorf("Expected full scale, got %d", raw)
		}
		adc.Key(false)
	})
}

func TestMockADCModulation(t *testing.T) {
	adc := NewMockADC(MockADCConfig{
		Forward:         testCurve,
		Reflected:       testCurve,
		ModulationDepth: 0.5,
		ModulationHz:    1,
	})
	base := time.Unix(1000, 0)
	now := base
	adc.SetClock(func() time.Time { return now })
	adc.SetCarrier(100)
	adc.Key(true)

	now = base.Add(250 * time.Millisecond)
	top, _ := adc.Watts()
	now = base.Add(750 * time.Millisecond)
	bottom, _ := adc.Watts()

	if math.Abs(top-100) > 1e-9 || math.Abs(bottom-50) > 1e-9 {
		t.Errorf("Expected envelope 100..50 W, got %v..%v", top, bottom)
	}
}

func writeIIO(t *testing.T, dir string, idx int, value string) {
	t.Helper()
	path := filepath.Join(dir, "in_voltage"+string(rune('0'+idx))+"_raw")
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestIIOADC(t *testing.T) {
	dir := t.TempDir()
	writeIIO(t, dir, 0, "1234\n")
	writeIIO(t, dir, 1, "56\n")
	writeIIO(t, dir, 2, "40000\n")

	adc, err := OpenIIOADC(dir, DefaultIIOChannels)
	if err != nil {
		t.Fatalf("OpenIIOADC failed: %v", err)
	}
	defer adc.Close()

	expected := map[sampler.Channel]uint16{sampler.Forward: 1234, sampler.Reflected: 56, sampler.Supply: 40000}
	for ch, want := range expected {
		got, err := adc.Read(ch)
		if err != nil || got != want {
			t.Errorf("%s: expected %d, got %d (%v)", ch, want, got, err)
		}
	}

	t.Run("Rereads Attribute", func(t *testing.T) {
		writeIIO(t, dir, 0, "99\n")
		got, _ := adc.Read(sampler.Forward)
		if got != 99 {
			t.Errorf("Expected fresh conversion 99, got %d", got)
		}
	})

	t.Run("Bad Value", func(t *testing.T) {
		writeIIO(t, dir, 1, "banana\n")
		if _, err := adc.Read(sampler.Reflected); err == nil {
			t.Error("Expected parse error")
		}
	})

	t.Run("Closed", func(t *testing.T) {
		adc.Close()
		if _, err := adc.Read(sampler.Forward); err == nil {
			t.Error("Expected error after close")
		}
	})
}

func TestIIOADCMissingChannel(t *testing.T) {
	dir := t.TempDir()
	writeIIO(t, dir, 0, "1\n")
	if _, err := OpenIIOADC(dir, DefaultIIOChannels); err == nil {
		t.Error("Expected error for missing reflected channel")
	}
}
