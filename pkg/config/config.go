package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"
)

// Curve holds one channel's split-point calibration
type Curve struct {
	SplitVolts float64 `yaml:"split_volts"`
	LoExp      float64 `yaml:"lo_exp"`
	LoMult     float64 `yaml:"lo_mult"`
	HiA        float64 `yaml:"hi_a"`
	HiB        float64 `yaml:"hi_b"`
	HiC        float64 `yaml:"hi_c"`
}

// IsZero reports whether no coefficient was supplied
func (c Curve) IsZero() bool {
	return c == Curve{}
}

// Config represents the swrmeter configuration
type Config struct {
	Meter struct {
		SampleFreq     int     `yaml:"sample_freq"`      // effective ADC sampling frequency (Hz)
		MaxBuffer      int     `yaml:"max_buffer"`       // circular buffer capacity
		ResolutionBits int     `yaml:"resolution_bits"`  // ADC resolution
		VRef           float64 `yaml:"vref"`             // ADC reference volts
		SupplyDivider  float64 `yaml:"supply_divider"`   // supply channel divider ratio
		NetWindowMs    int     `yaml:"net_window_ms"`    // net power averaging window
		PeakHoldMs     int     `yaml:"peak_hold_ms"`     // average peak hold
		PEPHoldMs      int     `yaml:"pep_hold_ms"`      // envelope peak hold
		PlotMs         int     `yaml:"plot_ms"`          // envelope trace period
		PlotPoints     int     `yaml:"plot_points"`      // envelope trace length (power of two)
		PowerThreshold float64 `yaml:"power_threshold"`  // power on threshold watts
		FwdZeroAdj     float64 `yaml:"fwd_zero_adj"`     // forward zero offset volts
		RefZeroAdj     float64 `yaml:"ref_zero_adj"`     // reflected zero offset volts
		ADC            string  `yaml:"adc"`              // "mock" or "iio"
		IIODevice      string  `yaml:"iio_device"`       // sysfs iio device directory
	} `yaml:"meter"`

	Calibration struct {
		Preset    string `yaml:"preset"` // "new_coupler" or "24_turn"
		Forward   Curve  `yaml:"forward"`
		Reflected Curve  `yaml:"reflected"`
	} `yaml:"calibration"`

	CIV struct {
		Enabled        bool   `yaml:"enabled"`
		Device         string `yaml:"device"`
		BaudRate       int    `yaml:"baud_rate"`
		RadioAddress   int    `yaml:"radio_address"`
		PollMs         int    `yaml:"poll_ms"`
		WatchdogMs     int    `yaml:"watchdog_ms"`
		AutoBandPollMs int    `yaml:"autoband_poll_ms"`
		Simulate       bool   `yaml:"simulate"` // talk to a simulated IC-7300
	} `yaml:"civ"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	API struct {
		UnixSocket string `yaml:"unix_socket"`
	} `yaml:"api"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
		MaxHistory   int    `yaml:"max_history"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
		Verbose    bool   `yaml:"verbose"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var config Config
	config.ApplyDefaults()
	return &config
}

// ApplyDefaults fills every unset field with its build-time default
func (c *Config) ApplyDefaults() {
	if c.Meter.SampleFreq == 0 {
		c.Meter.SampleFreq = 5000
	}
	if c.Meter.MaxBuffer == 0 {
		c.Meter.MaxBuffer = 1000
	}
	if c.Meter.ResolutionBits == 0 {
		c.Meter.ResolutionBits = 16
	}
	if c.Meter.VRef == 0 {
		c.Meter.VRef = 3.3
	}
	if c.Meter.SupplyDivider == 0 {
		c.Meter.SupplyDivider = 5.7
	}
	if c.Meter.NetWindowMs == 0 {
		c.Meter.NetWindowMs = 50
	}
	if c.Meter.PeakHoldMs == 0 {
		c.Meter.PeakHoldMs = 2000
	}
	if c.Meter.PEPHoldMs == 0 {
		c.Meter.PEPHoldMs = 250
	}
	if c.Meter.PlotMs == 0 {
		c.Meter.PlotMs = 50
	}
	if c.Meter.PlotPoints == 0 {
		c.Meter.PlotPoints = 64
	}
	if c.Meter.PowerThreshold == 0 {
		c.Meter.PowerThreshold = 0.5
	}
	if c.Meter.FwdZeroAdj == 0 {
		c.Meter.FwdZeroAdj = -0.0001
	}
	if c.Meter.ADC == "" {
		c.Meter.ADC = "mock"
	}
	if c.Meter.IIODevice == "" {
		c.Meter.IIODevice = "/sys/bus/iio/devices/iio:device0"
	}

	if c.Calibration.Preset == "" {
		c.Calibration.Preset = PresetNewCoupler
	}
	preset := Presets[c.Calibration.Preset]
	if c.Calibration.Forward.IsZero() {
		c.Calibration.Forward = preset
	}
	if c.Calibration.Reflected.IsZero() {
		c.Calibration.Reflected = preset
	}

	if c.CIV.Device == "" {
		c.CIV.Device = "/dev/ttyUSB0"
	}
	if c.CIV.BaudRate == 0 {
		c.CIV.BaudRate = 19200
	}
	if c.CIV.RadioAddress == 0 {
		c.CIV.RadioAddress = 0x94
	}
	if c.CIV.PollMs == 0 {
		c.CIV.PollMs = 250
	}
	if c.CIV.WatchdogMs == 0 {
		c.CIV.WatchdogMs = 100
	}
	if c.CIV.AutoBandPollMs == 0 {
		c.CIV.AutoBandPollMs = 1000
	}

	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "0.0.0.0"
	}
	if c.API.UnixSocket == "" {
		c.API.UnixSocket = "/tmp/swrmeter.sock"
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "./swrmeter.db"
	}
	if c.Storage.MaxHistory == 0 {
		c.Storage.MaxHistory = 5000
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 30
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Meter.SampleFreq < 1 || c.Meter.SampleFreq > 100000 {
		return fmt.Errorf("sample frequency %d Hz out of range", c.Meter.SampleFreq)
	}
	if c.Meter.MaxBuffer < 1 {
		return fmt.Errorf("max buffer must be positive")
	}
	if c.Meter.ResolutionBits < 8 || c.Meter.ResolutionBits > 16 {
		return fmt.Errorf("ADC resolution %d bits not supported", c.Meter.ResolutionBits)
	}
	if c.Meter.PlotPoints&(c.Meter.PlotPoints-1) != 0 {
		return fmt.Errorf("plot points must be a power of two, got %d", c.Meter.PlotPoints)
	}
	if c.Meter.ADC != "mock" && c.Meter.ADC != "iio" {
		return fmt.Errorf("unknown ADC type %q", c.Meter.ADC)
	}
	if _, ok := Presets[c.Calibration.Preset]; !ok {
		return fmt.Errorf("unknown calibration preset %q", c.Calibration.Preset)
	}
	for name, curve := range map[string]Curve{"forward": c.Calibration.Forward, "reflected": c.Calibration.Reflected} {
		if curve.SplitVolts <= 0 || math.IsNaN(curve.SplitVolts) {
			return fmt.Errorf("%s calibration split voltage must be positive", name)
		}
	}
	if c.CIV.Enabled && c.CIV.Device == "" && !c.CIV.Simulate {
		return fmt.Errorf("CI-V device is required when CI-V is enabled")
	}
	if c.CIV.RadioAddress < 0 || c.CIV.RadioAddress > 0xDF {
		return fmt.Errorf("CI-V radio address 0x%02x out of range", c.CIV.RadioAddress)
	}
	if c.CIV.WatchdogMs >= c.CIV.PollMs {
		return fmt.Errorf("CI-V watchdog (%d ms) must be shorter than the poll interval (%d ms)",
			c.CIV.WatchdogMs, c.CIV.PollMs)
	}
	return nil
}

// Save writes the configuration back to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
