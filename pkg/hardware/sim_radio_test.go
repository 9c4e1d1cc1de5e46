package hardware

import (
	"testing"
	"time"

	"github.com/dougsko/swrmeter/pkg/civ"
)

func newSimController(t *testing.T, radio *SimulatedRadio) *civ.Controller {
	t.Helper()
	c, err := civ.NewController(radio, civ.Config{
		RadioAddress: civ.DefaultRadioAddress,
		PollInterval: 250 * time.Millisecond,
		Watchdog:     100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	return c
}

// exchange runs one poll: send on the first tick, decode on the second
func exchange(c *civ.Controller, now time.Time) time.Time {
	c.Tick(now)
	c.Tick(now.Add(10 * time.Millisecond))
	return now.Add(250 * time.Millisecond)
}

func TestSimulatedRadioPolling(t *testing.T) {
	radio := NewSimulatedRadio(SimulatedRadioConfig{FrequencyHz: 7074000, PowerPercent: 40, Echo: true})
	c := newSimController(t, radio)
	now := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		now = exchange(c, now)
	}

	status := c.Status()
	if status.Stale {
		t.Fatal("Expected fresh status")
	}
	if status.FrequencyHz != 7074000 {
		t.Errorf("Expected 7074000 Hz, got %d", status.FrequencyHz)
	}
	if status.PowerPercent != 40 {
		t.Errorf("Expected 40%%, got %d", status.PowerPercent)
	}
	if status.Transmitting {
		t.Error("Expected receive")
	}
	if c.Stats().Decoded != 3 {
		t.Errorf("Expected 3 decoded replies, got %+v", c.Stats())
	}
}

func TestSimulatedRadioWrites(t *testing.T) {
	radio := NewSimulatedRadio(SimulatedRadioConfig{})
	c := newSimController(t, radio)
	now := time.Unix(1000, 0)

	var changes []RadioState
	radio.OnChange(func(s RadioState) { changes = append(changes, s) })

	if err := c.SetFrequency(21074000); err != nil {
		t.Fatalf("SetFrequency failed: %v", err)
	}
	if err := c.SetPower(75); err != nil {
		t.Fatalf("SetPower failed: %v", err)
	}
	if err := c.Tune(); err != nil {
		t.Fatalf("Tune failed: %v", err)
	}
	if err := c.SetScopeRef(-10.5); err != nil {
		t.Fatalf("SetScopeRef failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		now = exchange(c, now)
	}

	state := radio.State()
	if state.FrequencyHz != 21074000 {
		t.Errorf("Expected 21074000 Hz, got %d", state.FrequencyHz)
	}
	if state.PowerPercent != 75 {
		t.Errorf("Expected 75%%, got %d", state.PowerPercent)
	}
	if state.Tunes != 1 {
		t.Errorf("Expected one tune, got %d", state.Tunes)
	}
	if len(state.ScopeRef) != 4 || state.ScopeRef[1] != 0x10 || state.ScopeRef[2] != 0x50 || state.ScopeRef[3] != 1 {
		t.Errorf("Unexpected scope reference % x", state.ScopeRef)
	}
	if c.Stats().Rejected != 0 {
		t.Errorf("Expected no rejections, got %+v", c.Stats())
	}
	if len(changes) != 1 || changes[0].PowerPercent != 75 {
		t.Errorf("Expected one power change callback, got %+v", changes)
	}
}

func TestSimulatedRadioRejectsUnknown(t *testing.T) {
	radio := NewSimulatedRadio(SimulatedRadioConfig{})
	req := civ.NewRequest(civ.DefaultRadioAddress, 0x19, 0x00)
	if _, err := radio.Write(req.Bytes()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	buf := make([]byte, 32)
	n, _ := radio.Read(buf)
	f, err := civ.Parse(buf[:n])
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !f.IsNak() || f.To != civ.ControllerAddress {
		t.Errorf("Expected NG to controller, got %s", f)
	}

	// frames for another address are not answered
	other := civ.NewRequest(0x70, civ.CmdReadFreq)
	radio.Write(other.Bytes())
	if n, _ := radio.Read(buf); n != 0 {
		t.Errorf("Expected silence, read %d bytes", n)
	}
}

func TestSimulatedRadioTransceive(t *testing.T) {
	radio := NewSimulatedRadio(SimulatedRadioConfig{Transceive: true})
	c := newSimController(t, radio)

	if err := radio.Dial(3573000); err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	if !c.Tick(time.Unix(1000, 0)) {
		t.Fatal("Expected transceive frequency")
	}
	if c.Status().FrequencyHz != 3573000 {
		t.Errorf("Expected 3573000 Hz, got %d", c.Status().FrequencyHz)
	}

	if err := radio.Dial(-1); err == nil {
		t.Error("Expected error for negative frequency")
	}
}

func TestSimulatedRadioSilent(t *testing.T) {
	radio := NewSimulatedRadio(SimulatedRadioConfig{})
	radio.SetSilent(true)
	c := newSimController(t, radio)

	now := time.Unix(1000, 0)
	c.Tick(now)
	c.Tick(now.Add(150 * time.Millisecond))

	if c.LastOutcome() != civ.TimedOut {
		t.Errorf("Expected timeout, got %s", c.LastOutcome())
	}
	if !c.Status().Stale {
		t.Error("Expected stale status")
	}
}

func TestSimulatedRadioClose(t *testing.T) {
	radio := NewSimulatedRadio(SimulatedRadioConfig{})
	radio.Close()

	if _, err := radio.Write([]byte{0xFE}); err != ErrRadioClosed {
		t.Errorf("Expected ErrRadioClosed, got %v", err)
	}
	if _, err := radio.Read(make([]byte, 4)); err != ErrRadioClosed {
		t.Errorf("Expected ErrRadioClosed, got %v", err)
	}
}
