package dmm

import (
	"fmt"
	"math"

	"github.com/openbench/acquire-core/pkg/datafeed"
)

// rs9lcdFrameSize is RS9LCD_PACKET_SIZE: one byte per LCD segment group
// plus a trailing checksum.
const rs9lcdFrameSize = 9

// Byte 1 (indicatrix1) mode bits.
const (
	ind1Hz    = 0x80
	ind1Ohm   = 0x40
	ind1Kilo  = 0x20
	ind1Mega  = 0x10
	ind1Farad = 0x08
	ind1Amp   = 0x04
	ind1Volt  = 0x02
	ind1Milli = 0x01
)

// Byte 2 (indicatrix2) mode bits.
const (
	ind2Micro = 0x80
	ind2Nano  = 0x40
	ind2Dbm   = 0x20
	ind2Sec   = 0x10
	ind2Duty  = 0x08
	ind2Hfe   = 0x04
	ind2Rel   = 0x02
	ind2Min   = 0x01
)

// Byte 7 (info) bits.
const (
	infoBeep  = 0x80
	infoDiode = 0x30
	infoBat   = 0x20
	infoHold  = 0x10
	infoNeg   = 0x08
	infoAC    = 0x04
	infoRS232 = 0x02
	infoAuto  = 0x01
)

// digit1's decimal-point bit means MAX-hold instead of a decimal point
// (rs9lcd.c's DIG4_MAX comment, see SPEC_FULL.md §4.5).
const digitMaxBit = 0x08

// dpMask strips the decimal-point bit from a digit byte before table
// lookup.
const dpMask = 0x08

// rs9lcdMode enumerates the rs9lcd mode byte's values.
type rs9lcdMode uint8

const (
	modeDCV rs9lcdMode = iota
	modeACV
	modeDCUA
	modeDCMA
	modeDCA
	modeACUA
	modeACMA
	modeACA
	modeOhm
	modeFarad
	modeHz
	modeVoltHz
	modeAmpHz
	modeDuty
	modeVoltDuty
	modeAmpDuty
	modeWidth
	modeVoltWidth
	modeAmpWidth
	modeDiode
	modeCont
	modeHfe
	modeLogic
	modeDbm
	modeUnused24
	modeTemp
	modeInvalid // 26: sentinel, not a valid reading
)

// seven-segment digit table (decode_digit). rs9lcd.c defines LCD_E, LCD_F,
// LCD_I, LCD_n, LCD_r as macros with no value -- a compile-time bug in the
// original that happens to still build because decode_digit's switch never
// references them. This table omits those identifiers entirely rather than
// inventing segment values; any byte not listed here decodes to (0, false).
var sevenSegmentDigits = map[byte]byte{
	0x00: 0,
	0xd7: 0,
	0x50: 1,
	0xb5: 2,
	0xf1: 3,
	0x72: 4,
	0xe3: 5,
	0xe7: 6,
	0x51: 7,
	0xf7: 8,
	0xf3: 9,
}

const lcdC = 0x87
const lcdH = 0x76
const lcdLowerH = 0x66

func decodeDigit(raw byte) (digit byte, ok bool) {
	d, ok := sevenSegmentDigits[raw&^dpMask]
	return d, ok
}

// Parser implements FrameParser for the RadioShack 22-812 (rs9lcd): a
// 9-byte 1:1 mapping of the LCD's segments with no device identification of
// its own, so every possible check is used to filter out non-matching
// traffic (rs9lcd.c's sr_rs9lcd_packet_valid comment).
type Parser struct{}

func (Parser) FrameSize() int { return rs9lcdFrameSize }

func (Parser) Validate(frame []byte) error {
	if len(frame) != rs9lcdFrameSize {
		return fmt.Errorf("dmm: rs9lcd frame must be %d bytes, got %d", rs9lcdFrameSize, len(frame))
	}
	mode := rs9lcdMode(frame[0])
	if mode >= modeInvalid {
		return fmt.Errorf("dmm: rs9lcd mode %d out of range", mode)
	}
	if !checksumValid(frame) {
		return fmt.Errorf("dmm: rs9lcd checksum mismatch")
	}
	if !selectionGood(frame) {
		return fmt.Errorf("dmm: rs9lcd selection bits ambiguous")
	}
	return nil
}

// checksumValid implements checksum_valid: sum of the first 8 bytes plus a
// fixed offset of 57 must equal the trailing checksum byte, mod 256.
func checksumValid(frame []byte) bool {
	var sum byte
	for i := 0; i < rs9lcdFrameSize-1; i++ {
		sum += frame[i]
	}
	sum += 57
	return sum == frame[rs9lcdFrameSize-1]
}

// selectionGood implements selection_good: at most one multiplier bit and
// at most one quantity bit may be set.
func selectionGood(frame []byte) bool {
	ind1, ind2 := frame[1], frame[2]

	multipliers := 0
	for _, bit := range []byte{ind1Kilo, ind1Mega, ind1Milli} {
		if ind1&bit != 0 {
			multipliers++
		}
	}
	for _, bit := range []byte{ind2Micro, ind2Nano} {
		if ind2&bit != 0 {
			multipliers++
		}
	}
	if multipliers > 1 {
		return false
	}

	quantities := 0
	for _, bit := range []byte{ind1Hz, ind1Ohm, ind1Farad, ind1Amp, ind1Volt} {
		if ind1&bit != 0 {
			quantities++
		}
	}
	for _, bit := range []byte{ind2Dbm, ind2Sec, ind2Duty, ind2Hfe} {
		if ind2&bit != 0 {
			quantities++
		}
	}
	return quantities <= 1
}

// lcdToDouble implements lcd_to_double: reassemble the 4 LCD digits
// (most-significant first) into a signed, scaled double. skipLast mirrors
// READ_TEMP's "don't parse the last digit" pass used when re-decoding a
// temperature reading.
func lcdToDouble(frame []byte, skipLast bool) float64 {
	// Wire order is digit4, digit3, digit2, digit1 (bytes 3-6); the most
	// significant digit read first is digit1 (byte 6).
	digits := []byte{frame[6], frame[5], frame[4], frame[3]} // digit1..digit4, MSD first

	rawval := 0.0
	multiplier := 1.0
	dpReached := false

	for i, raw := range digits {
		if skipLast && i == len(digits)-1 {
			break
		}
		digit, ok := decodeDigit(raw)
		if !ok {
			return math.NaN()
		}
		// digit1 (i==0) has no decimal point; its DP bit means MAX-hold,
		// not a fractional boundary.
		if i > 0 && raw&dpMask != 0 {
			dpReached = true
		}
		if dpReached {
			multiplier /= 10
		}
		rawval = rawval*10 + float64(digit)
	}
	rawval *= multiplier

	if frame[7]&infoNeg != 0 {
		rawval *= -1
	}

	ind1, ind2 := frame[1], frame[2]
	switch {
	case ind2&ind2Nano != 0:
		rawval *= 1e-9
	case ind2&ind2Micro != 0:
		rawval *= 1e-6
	case ind1&ind1Milli != 0:
		rawval *= 1e-3
	case ind1&ind1Kilo != 0:
		rawval *= 1e3
	case ind1&ind1Mega != 0:
		rawval *= 1e6
	}
	return rawval
}

func isCelsius(frame []byte) bool   { return frame[3]&^dpMask == lcdC }
func isShortCirc(frame []byte) bool { return frame[5]&^dpMask == lcdLowerH }
func isLogicHigh(frame []byte) bool { return frame[5]&^dpMask == lcdH }

// Decode implements sr_rs9lcd_parse. Assumes Validate already passed.
func (Parser) Decode(frame []byte) (datafeed.Analog, error) {
	rawval := lcdToDouble(frame, false)
	mode := rs9lcdMode(frame[0])

	analog := datafeed.Analog{Samples: []float64{rawval}}

	switch mode {
	case modeDCV:
		analog.MQ, analog.Unit, analog.MQFlags = datafeed.MQVoltage, datafeed.UnitVolt, datafeed.MQFlagDC
	case modeACV:
		analog.MQ, analog.Unit, analog.MQFlags = datafeed.MQVoltage, datafeed.UnitVolt, datafeed.MQFlagAC
	case modeDCUA, modeDCMA, modeDCA:
		analog.MQ, analog.Unit, analog.MQFlags = datafeed.MQCurrent, datafeed.UnitAmpere, datafeed.MQFlagDC
	case modeACUA, modeACMA, modeACA:
		analog.MQ, analog.Unit, analog.MQFlags = datafeed.MQCurrent, datafeed.UnitAmpere, datafeed.MQFlagAC
	case modeOhm:
		analog.MQ, analog.Unit = datafeed.MQResistance, datafeed.UnitOhm
	case modeFarad:
		analog.MQ, analog.Unit = datafeed.MQCapacitance, datafeed.UnitFarad
	case modeCont:
		analog.MQ, analog.Unit = datafeed.MQContinuity, datafeed.UnitBoolean
		analog.Samples = []float64{boolToFloat(isShortCirc(frame))}
	case modeDiode:
		analog.MQ, analog.Unit, analog.MQFlags = datafeed.MQVoltage, datafeed.UnitVolt, datafeed.MQFlagDiode|datafeed.MQFlagDC
	case modeHz, modeVoltHz, modeAmpHz:
		analog.MQ, analog.Unit = datafeed.MQFrequency, datafeed.UnitHertz
	case modeLogic:
		analog.MQ = datafeed.MQVoltage
		if !math.IsNaN(rawval) {
			analog.Unit = datafeed.UnitVolt
		} else {
			analog.Unit = datafeed.UnitBoolean
			analog.Samples = []float64{boolToFloat(isLogicHigh(frame))}
		}
	case modeHfe:
		analog.MQ, analog.Unit = datafeed.MQGain, datafeed.UnitUnitless
	case modeDuty, modeVoltDuty, modeAmpDuty:
		analog.MQ, analog.Unit = datafeed.MQDutyCycle, datafeed.UnitPercentage
	case modeWidth, modeVoltWidth, modeAmpWidth:
		// REDESIGN FLAG (spec.md §9 open question): the original C switch
		// has no break here and falls through into MODE_TEMP's re-decode.
		// This port treats MODE_WIDTH as pure pulse-width.
		analog.MQ, analog.Unit = datafeed.MQPulseWidth, datafeed.UnitSecond
	case modeTemp:
		analog.MQ = datafeed.MQTemperature
		tempVal := lcdToDouble(frame, true)
		analog.Samples = []float64{tempVal}
		if isCelsius(frame) {
			analog.Unit = datafeed.UnitCelsius
		} else {
			analog.Unit = datafeed.UnitFahrenheit
		}
	case modeDbm:
		analog.MQ, analog.Unit, analog.MQFlags = datafeed.MQPower, datafeed.UnitDecibelMW, datafeed.MQFlagAC
	default:
		return datafeed.Analog{}, fmt.Errorf("dmm: unknown rs9lcd mode %d", mode)
	}

	info := frame[7]
	if info&infoHold != 0 {
		analog.MQFlags |= datafeed.MQFlagHold
	}
	if frame[6]&digitMaxBit != 0 {
		analog.MQFlags |= datafeed.MQFlagMax
	}
	if frame[2]&ind2Min != 0 {
		analog.MQFlags |= datafeed.MQFlagMin
	}
	if info&infoAuto != 0 {
		analog.MQFlags |= datafeed.MQFlagAutorange
	}

	return analog, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
