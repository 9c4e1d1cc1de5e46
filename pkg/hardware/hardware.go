package hardware

import (
	"fmt"
	"io"
	"sync"

	"github.com/dougsko/swrmeter/pkg/civ"
	"github.com/dougsko/swrmeter/pkg/config"
	"github.com/dougsko/swrmeter/pkg/logging"
	"github.com/dougsko/swrmeter/pkg/power"
	"github.com/dougsko/swrmeter/pkg/sampler"
)

// ADC kinds
const (
	ADCMock = "mock"
	ADCIIO  = "iio"
)

// Maximum carrier the simulated radio produces at 100 % RF power
const simulatedFullPower = 100.0

// HardwareConfig represents hardware configuration
type HardwareConfig struct {
	ADC            string
	IIODevice      string
	IIOChannels    IIOChannels
	ResolutionBits int
	VRef           float64
	SupplyDivider  float64
	Forward        power.Curve
	Reflected      power.Curve

	EnableCIV     bool
	CIVDevice     string
	CIVBaudRate   int
	RadioAddress  byte
	SimulateRadio bool
}

// HardwareConfigFrom extracts the hardware settings from the daemon config
func HardwareConfigFrom(cfg *config.Config) HardwareConfig {
	return HardwareConfig{
		ADC:            cfg.Meter.ADC,
		IIODevice:      cfg.Meter.IIODevice,
		IIOChannels:    DefaultIIOChannels,
		ResolutionBits: cfg.Meter.ResolutionBits,
		VRef:           cfg.Meter.VRef,
		SupplyDivider:  cfg.Meter.SupplyDivider,
		Forward:        power.CurveFromConfig(cfg.Calibration.Forward),
		Reflected:      power.CurveFromConfig(cfg.Calibration.Reflected),
		EnableCIV:      cfg.CIV.Enabled,
		CIVDevice:      cfg.CIV.Device,
		CIVBaudRate:    cfg.CIV.BaudRate,
		RadioAddress:   byte(cfg.CIV.RadioAddress),
		SimulateRadio:  cfg.CIV.Simulate,
	}
}

// Info describes what the manager opened
type Info struct {
	ADC       string `json:"adc"`
	Radio     string `json:"radio"`
	Simulated bool   `json:"simulated"`
}

// HardwareManager owns the ADC and the CI-V port
type HardwareManager struct {
	config HardwareConfig
	mutex  sync.RWMutex
	log    *logging.ComponentLogger

	adc      sampler.ADC
	adcClose io.Closer
	mockADC  *MockADC
	port     io.ReadWriteCloser
	sim      *SimulatedRadio

	initialized bool
}

// NewHardwareManager creates a new hardware manager
func NewHardwareManager(config HardwareConfig) *HardwareManager {
	return &HardwareManager{
		config: config,
		log:    logging.For("hardware"),
	}
}

// Initialize opens the ADC and, when enabled, the CI-V port
func (h *HardwareManager) Initialize() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.initialized {
		return nil
	}

	h.log.Infof("Initializing hardware manager...")

	switch h.config.ADC {
	case ADCIIO:
		adc, err := OpenIIOADC(h.config.IIODevice, h.config.IIOChannels)
		if err != nil {
			return fmt.Errorf("failed to initialize ADC: %w", err)
		}
		h.adc, h.adcClose = adc, adc
		h.log.Infof("ADC initialized (iio at %s)", h.config.IIODevice)
	case ADCMock, "":
		h.mockADC = NewMockADC(MockADCConfig{
			ResolutionBits:  h.config.ResolutionBits,
			VRef:            h.config.VRef,
			SupplyDivider:   h.config.SupplyDivider,
			Forward:         h.config.Forward,
			Reflected:       h.config.Reflected,
			SupplyVolts:     13.8,
			ModulationDepth: 0.2,
			ModulationHz:    2,
		})
		h.adc, h.adcClose = h.mockADC, h.mockADC
		h.log.Infof("ADC initialized (mock)")
	default:
		return fmt.Errorf("unknown ADC type %q", h.config.ADC)
	}

	if h.config.EnableCIV {
		if err := h.openRadioLocked(); err != nil {
			h.adcClose.Close()
			h.adc, h.adcClose, h.mockADC = nil, nil, nil
			return fmt.Errorf("failed to initialize radio: %w", err)
		}
	}

	h.initialized = true
	h.log.Infof("Hardware manager initialized successfully")
	return nil
}

func (h *HardwareManager) openRadioLocked() error {
	if h.config.SimulateRadio {
		h.sim = NewSimulatedRadio(SimulatedRadioConfig{
			Address:    h.config.RadioAddress,
			Transceive: true,
		})
		if h.mockADC != nil {
			adc := h.mockADC
			h.sim.OnChange(func(s RadioState) {
				adc.SetCarrier(simulatedFullPower * float64(s.PowerPercent) / 100)
				adc.Key(s.Transmitting)
			})
			adc.SetCarrier(simulatedFullPower * float64(h.sim.State().PowerPercent) / 100)
		}
		h.port = h.sim
		h.log.Infof("Radio initialized (simulated IC-7300 at 0x%02x)", h.config.RadioAddress)
		return nil
	}

	port, err := civ.OpenSerial(h.config.CIVDevice, h.config.CIVBaudRate)
	if err != nil {
		return err
	}
	h.port = port
	h.log.Infof("Radio initialized (%s at %d baud)", h.config.CIVDevice, h.config.CIVBaudRate)
	return nil
}

// Close shuts down all hardware interfaces
func (h *HardwareManager) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.initialized {
		return nil
	}

	h.log.Infof("Shutting down hardware manager...")

	if h.port != nil {
		if err := h.port.Close(); err != nil {
			h.log.Warnf("Error closing radio: %v", err)
		}
		h.port = nil
	}
	if h.adcClose != nil {
		if err := h.adcClose.Close(); err != nil {
			h.log.Warnf("Error closing ADC: %v", err)
		}
	}
	h.adc, h.adcClose, h.mockADC, h.sim = nil, nil, nil, nil

	h.initialized = false
	h.log.Infof("Hardware manager shut down")
	return nil
}

// IsInitialized returns whether the hardware is initialized
func (h *HardwareManager) IsInitialized() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.initialized
}

// GetConfig returns the hardware configuration
func (h *HardwareManager) GetConfig() HardwareConfig {
	return h.config
}

// ADC returns the opened ADC
func (h *HardwareManager) ADC() sampler.ADC {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.adc
}

// RadioPort returns the CI-V port, or nil when CI-V is disabled
func (h *HardwareManager) RadioPort() io.ReadWriter {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if h.port == nil {
		return nil
	}
	return h.port
}

// SimulatedRadio returns the simulated radio, or nil on real hardware
func (h *HardwareManager) SimulatedRadio() *SimulatedRadio {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.sim
}

// MockADC returns the synthetic ADC, or nil on real hardware
func (h *HardwareManager) MockADC() *MockADC {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.mockADC
}

// Info describes the opened devices
func (h *HardwareManager) Info() Info {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	info := Info{ADC: h.config.ADC, Radio: "none"}
	switch {
	case h.sim != nil:
		info.Radio = "simulated IC-7300"
		info.Simulated = true
	case h.port != nil:
		info.Radio = h.config.CIVDevice
	}
	return info
}
