// Package ols implements the SUMP/Openbench Logic Sniffer serial protocol:
// discovery, metadata parsing, trigger/samplerate/flag programming, and RLE
// sample reception, wired onto the driver.Driver interface.
package ols

import (
	"fmt"

	"github.com/openbench/acquire-core/internal/transport"
)

// Wire command bytes (SUMP protocol, short commands are a single byte,
// long commands are the opcode followed by 4 big-endian-ish data bytes
// built by sendLongCommand).
const (
	cmdReset   byte = 0x00
	cmdRun     byte = 0x01
	cmdID      byte = 0x02
	cmdMeta    byte = 0x04
	cmdDivider byte = 0x80
	cmdCapture byte = 0x81
	cmdFlags   byte = 0x82

	cmdTriggerMask0 byte = 0xC0
	cmdTriggerVal0  byte = 0xC1
	cmdTriggerCfg0  byte = 0xC2

	// Each further stage's three commands are 4 bytes after the previous
	// stage's (mask, value, config, stride 4).
	triggerStageStride byte = 0x04
)

// Flag register bits (spec.md §4.2 ConfigRLE / samplerate §8 demux note).
const (
	flagDemux  uint32 = 0x00000001
	flagFilter uint32 = 0x00000002
	flagRLE    uint32 = 0x00000100
)

// channelGroupDisableBit returns the flag-register bit that disables channel
// group g (0-3); set means "disabled", per the SUMP flag register layout.
func channelGroupDisableBit(g int) uint32 {
	return 1 << uint(2+g)
}

const (
	numProbes         = 32
	numTriggerStages  = 4
	clockRateHz       = 100_000_000
	minNumSamples     = 4
	maxMetadataTokens = 64
)

func sendShortCommand(port transport.SerialPort, command byte) error {
	_, err := port.Write([]byte{command})
	if err != nil {
		return fmt.Errorf("ols: write short command 0x%02x: %w", command, err)
	}
	return nil
}

// sendLongCommand sends command followed by data as 4 big-endian bytes
// (ols.c's send_longcommand packs data MSB-first regardless of host
// endianness).
func sendLongCommand(port transport.SerialPort, command byte, data uint32) error {
	buf := [5]byte{
		command,
		byte(data >> 24),
		byte(data >> 16),
		byte(data >> 8),
		byte(data),
	}
	if _, err := port.Write(buf[:]); err != nil {
		return fmt.Errorf("ols: write long command 0x%02x: %w", command, err)
	}
	return nil
}

// reverse16 swaps the two bytes inside each 16-bit half of a 32-bit word,
// leaving the halves themselves in place. Used for the capture-size command,
// which the firmware expects byte-swapped per half-word rather than fully
// byte-reversed.
func reverse16(in uint32) uint32 {
	var out uint32
	out = (in & 0xff) << 8
	out |= (in & 0xff00) >> 8
	out |= (in & 0xff0000) << 8
	out |= (in & 0xff000000) >> 8
	return out
}

// reverse32 reverses the byte order of a 32-bit word (little-endian <->
// big-endian), used for the divider and trigger mask/value registers.
func reverse32(in uint32) uint32 {
	var out uint32
	out = (in & 0xff) << 24
	out |= (in & 0xff00) << 8
	out |= (in & 0xff0000) >> 8
	out |= (in & 0xff000000) >> 24
	return out
}

// stageCommands returns the (mask, value, config) command bytes for
// trigger stage idx (0-3).
func stageCommands(idx int) (mask, value, config byte) {
	off := byte(idx) * triggerStageStride
	return cmdTriggerMask0 + off, cmdTriggerVal0 + off, cmdTriggerCfg0 + off
}
