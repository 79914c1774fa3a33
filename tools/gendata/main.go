// Command gendata prints synthetic device byte streams for manual protocol
// inspection and for feeding into driver tests without real hardware
// attached. Adapted from the teacher's tools/generate_data.go: same
// flag-driven "build a packet, print it three ways, then parse it back"
// shape, retargeted at this repo's three acquisition protocols instead of
// the teacher's single fixed-width telemetry frame.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"math/rand"

	"github.com/openbench/acquire-core/internal/dmm"
)

func main() {
	protocol := flag.String("protocol", "rs9lcd", "protocol to generate: rs9lcd, ols, dslogic")
	count := flag.Int("count", 1, "number of packets to generate")
	random := flag.Bool("random", false, "randomize values instead of using -value/-mode")
	value := flag.Float64("value", 12.34, "measured value (rs9lcd)")
	modeName := flag.String("mode", "dcv", "rs9lcd mode: dcv, acv, ohm, hz, diode, cont")
	numProbes := flag.Int("probes", 8, "logic channel count (ols, dslogic)")
	numSamples := flag.Int("samples", 16, "sample count (ols, dslogic)")
	flag.Parse()

	for i := 0; i < *count; i++ {
		var packet []byte
		var label string

		switch *protocol {
		case "rs9lcd":
			label = "rs9lcd"
			if *random {
				packet = randomRS9LCDFrame()
			} else {
				packet = rs9lcdFrame(*modeName, *value)
			}
		case "ols":
			label = "ols"
			packet = randomLogicSamples(*numProbes, *numSamples)
		case "dslogic":
			label = "dslogic"
			packet = randomLogicSamples(*numProbes, *numSamples)
		default:
			fmt.Fprintf(flag.CommandLine.Output(), "unknown protocol %q\n", *protocol)
			return
		}

		fmt.Printf("packet %d (%s):\n", i+1, label)
		fmt.Printf("  hex:   %s\n", hex.EncodeToString(packet))
		fmt.Printf("  bytes: % x\n", packet)
		fmt.Printf("  go:    []byte{%s}\n", toGoArray(packet))
		if *protocol == "rs9lcd" {
			describeRS9LCD(packet)
		}
		fmt.Println()
	}
}

// rs9lcdFrame builds a valid, checksummed 9-byte rs9lcd frame for the named
// mode and value, mirroring rs9lcd.c's wire layout in reverse (the real
// driver only ever decodes; this tool is the only place in the repo that
// encodes one).
func rs9lcdFrame(mode string, value float64) []byte {
	frame := make([]byte, 9)

	neg := value < 0
	if neg {
		value = -value
	}

	switch mode {
	case "dcv":
		frame[0] = 0 // modeDCV
		frame[1] |= 0x02 // ind1Volt
	case "acv":
		frame[0] = 1 // modeACV
		frame[1] |= 0x02
	case "ohm":
		frame[0] = 8 // modeOhm
		frame[1] |= 0x40 // ind1Ohm
	case "hz":
		frame[0] = 10 // modeHz
		frame[1] |= 0x80 // ind1Hz
	case "diode":
		frame[0] = 19 // modeDiode
	case "cont":
		frame[0] = 20 // modeCont
		frame[5] = 0x66 // lcdLowerH, short-circuit reading
	default:
		frame[0] = 0
		frame[1] |= 0x02
	}

	if mode != "cont" {
		encodeDigits(frame, value)
	}
	if neg {
		frame[7] |= 0x08 // infoNeg
	}

	frame[8] = rs9lcdChecksum(frame)
	return frame
}

// digitEncode is the inverse of rs9lcd.go's sevenSegmentDigits table for
// digits 0-9, used only by this generator.
var digitEncode = map[byte]byte{
	0: 0xd7, 1: 0x50, 2: 0xb5, 3: 0xf1, 4: 0x72,
	5: 0xe3, 6: 0xe7, 7: 0x51, 8: 0xf7, 9: 0xf3,
}

// encodeDigits writes up to 4 significant digits of value into frame[3:7]
// with the most significant in digit1 (frame[6]), the order the decoder
// reads them, truncating rather than rounding.
func encodeDigits(frame []byte, value float64) {
	scaled := uint32(value * 100) // 2 implied decimal places
	digits := [4]byte{
		byte(scaled / 1000 % 10),
		byte(scaled / 100 % 10),
		byte(scaled / 10 % 10),
		byte(scaled % 10),
	}
	// digit1 at frame[6] .. digit4 at frame[3]
	frame[6] = digitEncode[digits[0]]
	frame[5] = digitEncode[digits[1]]
	frame[4] = digitEncode[digits[2]] | 0x08 // decimal point before digit3
	frame[3] = digitEncode[digits[3]]
}

func rs9lcdChecksum(frame []byte) byte {
	var sum byte
	for i := 0; i < 8; i++ {
		sum += frame[i]
	}
	return sum + 57
}

func randomRS9LCDFrame() []byte {
	modes := []string{"dcv", "acv", "ohm", "hz", "diode", "cont"}
	mode := modes[rand.Intn(len(modes))]
	value := rand.Float64() * 100
	if rand.Intn(2) == 0 {
		value = -value
	}
	return rs9lcdFrame(mode, value)
}

// describeRS9LCD round-trips the generated frame through the real decoder
// so this tool also doubles as a quick sanity check of the parser.
func describeRS9LCD(frame []byte) {
	p := dmm.Parser{}
	if err := p.Validate(frame); err != nil {
		fmt.Printf("  decode: invalid (%v)\n", err)
		return
	}
	analog, err := p.Decode(frame)
	if err != nil {
		fmt.Printf("  decode: error (%v)\n", err)
		return
	}
	fmt.Printf("  decode: %s = %v %s (flags=%d)\n", analog.MQ, analog.Samples, analog.Unit, analog.MQFlags)
}

// randomLogicSamples produces numSamples unit-width packed samples for
// numProbes channels, enough to exercise a Logic packet's Unitsize framing
// without needing a real logic analyzer attached.
func randomLogicSamples(numProbes, numSamples int) []byte {
	unitsize := unitsizeFor(numProbes)
	buf := make([]byte, numSamples*unitsize)
	rand.Read(buf)
	return buf
}

func unitsizeFor(numProbes int) int {
	switch {
	case numProbes <= 8:
		return 1
	case numProbes <= 16:
		return 2
	case numProbes <= 32:
		return 4
	default:
		return 8
	}
}

func toGoArray(data []byte) string {
	result := ""
	for i, b := range data {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf("0x%02x", b)
	}
	return result
}
