package datafeed

// MQ is the measured quantity of an Analog packet: what physical value is
// being reported, independent of unit or modifier flags.
type MQ int

const (
	MQVoltage MQ = iota
	MQCurrent
	MQResistance
	MQCapacitance
	MQTemperature
	MQFrequency
	MQDutyCycle
	MQContinuity
	MQPulseWidth
	MQConductance
	MQPower
	MQGain
	MQSoundPressureLevel
	MQGasConcentration
	MQRelativeHumidity
)

var mqNames = [...]string{
	"voltage", "current", "resistance", "capacitance", "temperature",
	"frequency", "duty-cycle", "continuity", "pulse-width", "conductance",
	"power", "gain", "sound-pressure-level", "gas-concentration",
	"relative-humidity",
}

func (m MQ) String() string {
	if int(m) < 0 || int(m) >= len(mqNames) {
		return "unknown"
	}
	return mqNames[m]
}

// Unit is the SI or derived unit a measurement is expressed in.
type Unit int

const (
	UnitVolt Unit = iota
	UnitAmpere
	UnitOhm
	UnitFarad
	UnitHertz
	UnitKelvin
	UnitCelsius
	UnitFahrenheit
	UnitPercentage
	UnitSecond
	UnitSiemens
	UnitDecibelMW
	UnitDecibelV
	UnitDecibelSPL
	UnitUnitless
	UnitBoolean
	UnitRatio
)

var unitNames = [...]string{
	"V", "A", "Ω", "F", "Hz", "K", "°C", "°F", "%", "s", "S", "dBm", "dBV",
	"dB-SPL", "unitless", "boolean", "ratio",
}

func (u Unit) String() string {
	if int(u) < 0 || int(u) >= len(unitNames) {
		return "?"
	}
	return unitNames[u]
}

// MQFlags is a bitset of modifiers that qualify an MQ/Unit reading.
type MQFlags uint32

const (
	MQFlagAC MQFlags = 1 << iota
	MQFlagDC
	MQFlagRMS
	MQFlagDiode
	MQFlagHold
	MQFlagMax
	MQFlagMin
	MQFlagAutorange
	MQFlagRelative
	MQFlagSPLWeightA
	MQFlagSPLWeightC
	MQFlagSPLWeightZ
	MQFlagSPLWeightFlat
	MQFlagSPLTimeS
	MQFlagSPLTimeF
	MQFlagSPLLAT
	MQFlagSPLOverAlarm
)

// Has reports whether all bits in want are set in f.
func (f MQFlags) Has(want MQFlags) bool {
	return f&want == want
}
