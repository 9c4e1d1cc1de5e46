package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "swrmeter-config-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	t.Run("Valid Config", func(t *testing.T) {
		configContent := `
meter:
  sample_freq: 4000
  max_buffer: 500
  peak_hold_ms: 1500
  power_threshold: 1.0

calibration:
  preset: "24_turn"

civ:
  enabled: true
  device: "/dev/ttyACM0"
  baud_rate: 115200
  radio_address: 0xa4

web:
  port: 9090

storage:
  database_path: "/tmp/swrmeter.db"

logging:
  level: "debug"
  console: true
`
		configPath := filepath.Join(tempDir, "valid.yaml")
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if config.Meter.SampleFreq != 4000 {
			t.Errorf("Expected sample freq 4000, got %d", config.Meter.SampleFreq)
		}
		if config.Meter.MaxBuffer != 500 {
			t.Errorf("Expected max buffer 500, got %d", config.Meter.MaxBuffer)
		}
		if config.Meter.PeakHoldMs != 1500 {
			t.Errorf("Expected peak hold 1500, got %d", config.Meter.PeakHoldMs)
		}
		if config.CIV.RadioAddress != 0xa4 {
			t.Errorf("Expected radio address 0xa4, got 0x%02x", config.CIV.RadioAddress)
		}
		if config.CIV.BaudRate != 115200 {
			t.Errorf("Expected baud rate 115200, got %d", config.CIV.BaudRate)
		}
		if config.Calibration.Forward != Presets[Preset24Turn] {
			t.Errorf("Expected 24 turn forward curve, got %+v", config.Calibration.Forward)
		}
		if config.Logging.Level != "debug" {
			t.Errorf("Expected log level debug, got %s", config.Logging.Level)
		}
	})

	t.Run("Config With Defaults", func(t *testing.T) {
		configPath := filepath.Join(tempDir, "minimal.yaml")
		if err := os.WriteFile(configPath, []byte("civ:\n  enabled: false\n"), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if config.Meter.SampleFreq != 5000 {
			t.Errorf("Expected default sample freq 5000, got %d", config.Meter.SampleFreq)
		}
		if config.Meter.MaxBuffer != 1000 {
			t.Errorf("Expected default buffer 1000, got %d", config.Meter.MaxBuffer)
		}
		if config.Meter.PeakHoldMs != 2000 {
			t.Errorf("Expected default peak hold 2000, got %d", config.Meter.PeakHoldMs)
		}
		if config.Meter.PEPHoldMs != 250 {
			t.Errorf("Expected default pep hold 250, got %d", config.Meter.PEPHoldMs)
		}
		if config.Meter.PowerThreshold != 0.5 {
			t.Errorf("Expected default threshold 0.5, got %f", config.Meter.PowerThreshold)
		}
		if config.Meter.FwdZeroAdj != -0.0001 {
			t.Errorf("Expected default forward zero adj -0.0001, got %f", config.Meter.FwdZeroAdj)
		}
		if config.Calibration.Preset != PresetNewCoupler {
			t.Errorf("Expected default preset %s, got %s", PresetNewCoupler, config.Calibration.Preset)
		}
		if config.Calibration.Reflected.SplitVolts != 0.015 {
			t.Errorf("Expected reflected split 0.015, got %f", config.Calibration.Reflected.SplitVolts)
		}
		if config.CIV.RadioAddress != 0x94 {
			t.Errorf("Expected default radio address 0x94, got 0x%02x", config.CIV.RadioAddress)
		}
		if config.CIV.WatchdogMs != 100 {
			t.Errorf("Expected default watchdog 100, got %d", config.CIV.WatchdogMs)
		}
		if config.Logging.MaxSize != 100 {
			t.Errorf("Expected default log max size 100, got %d", config.Logging.MaxSize)
		}
	})

	t.Run("Explicit Curve Overrides Preset", func(t *testing.T) {
		configContent := `
calibration:
  reflected:
    split_volts: 0.03
    lo_exp: 0.2
    lo_mult: 1.1
    hi_a: 9
    hi_b: 4
    hi_c: 0.5
`
		configPath := filepath.Join(tempDir, "curve.yaml")
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if config.Calibration.Reflected.SplitVolts != 0.03 {
			t.Errorf("Expected reflected split 0.03, got %f", config.Calibration.Reflected.SplitVolts)
		}
		if config.Calibration.Forward != Presets[PresetNewCoupler] {
			t.Errorf("Expected forward curve from preset, got %+v", config.Calibration.Forward)
		}
	})

	t.Run("File Not Found", func(t *testing.T) {
		_, err := LoadConfig("/nonexistent/path/config.yaml")
		if err == nil {
			t.Fatal("Expected error for nonexistent file, got nil")
		}
		if !strings.Contains(err.Error(), "failed to read config file") {
			t.Errorf("Expected 'failed to read config file' error, got: %v", err)
		}
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		configPath := filepath.Join(tempDir, "invalid.yaml")
		if err := os.WriteFile(configPath, []byte("meter:\n  sample_freq: [oops\n"), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		_, err := LoadConfig(configPath)
		if err == nil {
			t.Fatal("Expected error for invalid YAML, got nil")
		}
		if !strings.Contains(err.Error(), "failed to parse config file") {
			t.Errorf("Expected 'failed to parse config file' error, got: %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("Defaults Are Valid", func(t *testing.T) {
		if err := Default().Validate(); err != nil {
			t.Errorf("Expected defaults to validate, got: %v", err)
		}
	})

	t.Run("Unknown Preset", func(t *testing.T) {
		config := Default()
		config.Calibration.Preset = "mystery"
		err := config.Validate()
		if err == nil || !strings.Contains(err.Error(), "unknown calibration preset") {
			t.Errorf("Expected preset error, got: %v", err)
		}
	})

	t.Run("Plot Points Not Power Of Two", func(t *testing.T) {
		config := Default()
		config.Meter.PlotPoints = 48
		if err := config.Validate(); err == nil {
			t.Error("Expected error for 48 plot points")
		}
	})

	t.Run("CIV Without Device", func(t *testing.T) {
		config := Default()
		config.CIV.Enabled = true
		config.CIV.Device = ""
		err := config.Validate()
		if err == nil || !strings.Contains(err.Error(), "CI-V device is required") {
			t.Errorf("Expected device error, got: %v", err)
		}

		config.CIV.Simulate = true
		if err := config.Validate(); err != nil {
			t.Errorf("Expected simulated radio without device to validate, got: %v", err)
		}
	})

	t.Run("Watchdog Longer Than Poll", func(t *testing.T) {
		config := Default()
		config.CIV.WatchdogMs = 500
		if err := config.Validate(); err == nil {
			t.Error("Expected error when watchdog exceeds poll interval")
		}
	})
}

func TestSaveRoundTrip(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "swrmeter-config-save")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	config := Default()
	config.Web.Port = 8181
	config.CIV.Enabled = true

	path := filepath.Join(tempDir, "saved.yaml")
	if err := config.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Web.Port != 8181 || !loaded.CIV.Enabled {
		t.Errorf("Saved values not restored: port=%d civ=%t", loaded.Web.Port, loaded.CIV.Enabled)
	}
}
