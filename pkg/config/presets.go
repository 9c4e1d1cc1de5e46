package config

// Calibration preset names
const (
	PresetNewCoupler = "new_coupler"
	Preset24Turn     = "24_turn"
)

// Presets are the two measured coupler calibrations.
// new_coupler: 25/07/2020, 16 bit ADC, load 1k.
// 24_turn: 17/07/2020, 16 bit ADC, averaging 16, load 1k.
var Presets = map[string]Curve{
	PresetNewCoupler: {
		SplitVolts: 0.015,
		LoExp:      0.175,
		LoMult:     1,
		HiA:        10.408,
		HiB:        3.6618,
		HiC:        0.5786,
	},
	Preset24Turn: {
		SplitVolts: 0.020,
		LoExp:      0.2181,
		LoMult:     1.071,
		HiA:        9.5842,
		HiB:        4.1913,
		HiC:        0.4588,
	},
}
