package dmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbench/acquire-core/pkg/datafeed"
)

// validFrame builds a 1.590V DC frame with a correct checksum, used as the
// baseline every test mutates from.
func validFrame() []byte {
	frame := []byte{
		byte(modeDCV), // mode
		ind1Volt,      // indicatrix1
		0x00,          // indicatrix2
		0xd7,          // digit4 = 0
		0xf3,          // digit3 = 9
		0xe3 | dpMask, // digit2 = 5, decimal point set
		0x50,          // digit1 = 1
		0x00,          // info
		0x00,          // checksum placeholder
	}
	frame[8] = rs9lcdChecksumForTest(frame)
	return frame
}

func rs9lcdChecksumForTest(frame []byte) byte {
	var sum byte
	for i := 0; i < rs9lcdFrameSize-1; i++ {
		sum += frame[i]
	}
	return sum + 57
}

func TestChecksumValid(t *testing.T) {
	t.Parallel()

	frame := validFrame()
	assert.True(t, checksumValid(frame))

	corrupt := append([]byte(nil), frame...)
	corrupt[3] ^= 0xff
	assert.False(t, checksumValid(corrupt))
}

func TestDecodeDigitTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  byte
		want byte
	}{
		{0x00, 0}, {0xd7, 0}, {0x50, 1}, {0xb5, 2}, {0xf1, 3}, {0x72, 4},
		{0xe3, 5}, {0xe7, 6}, {0x51, 7}, {0xf7, 8}, {0xf3, 9},
	}
	for _, c := range cases {
		got, ok := decodeDigit(c.raw)
		require.True(t, ok, "raw 0x%02x should decode", c.raw)
		assert.Equal(t, c.want, got)
	}

	_, ok := decodeDigit(0xAA)
	assert.False(t, ok, "unmapped byte must not decode")
}

func TestDecodeDigitIgnoresDecimalPointBit(t *testing.T) {
	t.Parallel()

	withDP, ok := decodeDigit(0xe3 | dpMask)
	require.True(t, ok)
	withoutDP, ok := decodeDigit(0xe3)
	require.True(t, ok)
	assert.Equal(t, withoutDP, withDP)
}

func TestSelectionGoodRejectsMultipleMultipliers(t *testing.T) {
	t.Parallel()

	frame := validFrame()
	frame[1] |= ind1Kilo
	frame[1] |= ind1Milli
	assert.False(t, selectionGood(frame))
}

func TestSelectionGoodRejectsMultipleQuantities(t *testing.T) {
	t.Parallel()

	frame := validFrame()
	frame[1] |= ind1Ohm // already has ind1Volt
	assert.False(t, selectionGood(frame))
}

func TestParserValidateRejectsShortFrame(t *testing.T) {
	t.Parallel()

	p := Parser{}
	err := p.Validate([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestParserValidateRejectsModeOutOfRange(t *testing.T) {
	t.Parallel()

	frame := validFrame()
	frame[0] = byte(modeInvalid)
	frame[8] = rs9lcdChecksumForTest(frame)
	p := Parser{}
	assert.Error(t, p.Validate(frame))
}

func TestDecodeDCVoltage(t *testing.T) {
	t.Parallel()

	frame := validFrame()
	p := Parser{}
	require.NoError(t, p.Validate(frame))

	analog, err := p.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, datafeed.MQVoltage, analog.MQ)
	assert.Equal(t, datafeed.UnitVolt, analog.Unit)
	assert.True(t, analog.MQFlags.Has(datafeed.MQFlagDC))
	require.Len(t, analog.Samples, 1)
}

func TestDecodeNegativeReading(t *testing.T) {
	t.Parallel()

	frame := validFrame()
	frame[7] |= infoNeg
	frame[8] = rs9lcdChecksumForTest(frame)

	analog, err := (Parser{}).Decode(frame)
	require.NoError(t, err)
	assert.Less(t, analog.Samples[0], 0.0)
}

// TestModeWidthDoesNotFallThroughToTemp guards the REDESIGN FLAG: the
// original C switch has no break after MODE_WIDTH and falls into
// MODE_TEMP's re-decode. This port's switch must treat MODE_WIDTH as a
// pulse-width reading on its own, never reaching the temperature branch.
func TestModeWidthDoesNotFallThroughToTemp(t *testing.T) {
	t.Parallel()

	frame := validFrame()
	frame[0] = byte(modeWidth)
	frame[8] = rs9lcdChecksumForTest(frame)

	analog, err := (Parser{}).Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, datafeed.MQPulseWidth, analog.MQ)
	assert.Equal(t, datafeed.UnitSecond, analog.Unit)
	assert.NotEqual(t, datafeed.MQTemperature, analog.MQ)
}

func TestDecodeContinuity(t *testing.T) {
	t.Parallel()

	frame := validFrame()
	frame[0] = byte(modeCont)
	frame[5] = lcdLowerH
	frame[8] = rs9lcdChecksumForTest(frame)

	analog, err := (Parser{}).Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, datafeed.MQContinuity, analog.MQ)
	assert.Equal(t, 1.0, analog.Samples[0])
}

func TestDecodeTemperatureCelsius(t *testing.T) {
	t.Parallel()

	frame := validFrame()
	frame[0] = byte(modeTemp)
	frame[3] = lcdC
	frame[8] = rs9lcdChecksumForTest(frame)

	analog, err := (Parser{}).Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, datafeed.MQTemperature, analog.MQ)
	assert.Equal(t, datafeed.UnitCelsius, analog.Unit)
}

func TestDecodeUnknownModeErrors(t *testing.T) {
	t.Parallel()

	frame := validFrame()
	frame[0] = byte(modeUnused24)
	frame[8] = rs9lcdChecksumForTest(frame)

	_, err := (Parser{}).Decode(frame)
	assert.Error(t, err)
}

func TestAuxFlags(t *testing.T) {
	t.Parallel()

	frame := validFrame()
	frame[7] |= infoHold | infoAuto
	frame[6] |= digitMaxBit
	frame[2] |= ind2Min
	frame[8] = rs9lcdChecksumForTest(frame)

	analog, err := (Parser{}).Decode(frame)
	require.NoError(t, err)
	assert.True(t, analog.MQFlags.Has(datafeed.MQFlagHold))
	assert.True(t, analog.MQFlags.Has(datafeed.MQFlagMax))
	assert.True(t, analog.MQFlags.Has(datafeed.MQFlagMin))
	assert.True(t, analog.MQFlags.Has(datafeed.MQFlagAutorange))
}
