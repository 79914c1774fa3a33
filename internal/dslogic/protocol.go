// Package dslogic implements the DSLogic/DSCope family's USB protocol: FX2
// firmware bootstrap, FPGA bitstream upload, FPGA configuration frame
// encoding, and bulk-streamed sample reception, wired onto the
// driver.Driver interface.
package dslogic

import "encoding/binary"

// Vendor control request IDs (DS_CMD_*).
const (
	cmdWriteReg byte = 0xd0
	cmdConfig   byte = 0xdd
	cmdStart    byte = 0xb1
	cmdSetting  byte = 0xde
)

// dsAddrVTH is the register index dslogic_set_vth writes (DS_ADDR_VTH).
const dsAddrVTH byte = 0x78

// Start-flags bits for the DS_CMD_START control word (dslogic_mode.flags).
const (
	startFlagModeLA    uint8 = 0x01
	startFlagSampleWide uint8 = 0x02
	startFlagStop      uint8 = 0x00
)

// FPGA configuration mode-word bits (DS_MODE_*). modeIntTest and
// modeTriggerOn alias the same bit on purpose: dslogic.c reuses bit 0 for
// two different meanings depending on code path (the built-in self-test
// mode during bring-up, versus "a trigger is configured for this capture"
// once normal acquisition starts) -- the two names exist because we never
// construct both at once, not because of two independent bits.
const (
	modeIntTest   uint16 = 1 << 0
	modeExtTest   uint16 = 1 << 1
	modeLpbTest   uint16 = 1 << 2
	modeHalf      uint16 = 1 << 3
	modeQuarter   uint16 = 1 << 4
	modeStream    uint16 = 1 << 5
	modeClockType uint16 = 1 << 6
	modeClockEdge uint16 = 1 << 7
	modeRLE       uint16 = 1 << 8
	modeTriggerOn uint16 = 1 << 0
)

// Bulk OUT endpoint used for both the FPGA bitstream and the config frame.
const bulkOutEndpoint uint8 = 0x02

// Frame sync markers (DS_CFG_START / DS_CFG_END).
const (
	cfgStart uint32 = 0xa5a5a5a5
	cfgEnd   uint32 = 0x5a5a5a5a
)

// Per-field TLV headers (DS_CFG_MODE etc.) preceding each value in the
// configuration frame.
const (
	hdrMode    uint16 = 0x0001
	hdrDivider uint16 = 0x0002
	hdrCount   uint16 = 0x0003
	hdrTrigPos uint16 = 0x0004
	hdrTrigGlb uint16 = 0x0005
	hdrChEn    uint16 = 0x0006
	hdrTrig    uint16 = 0x0007
)

const maxLogicSamplerateHz = 100_000_000
const maxLogicDepth = 16 * 1024 * 1024
const numSimulTransfers = 32

// fpgaConfig is the configuration frame sent over the bulk OUT endpoint
// after the FPGA bitstream has been loaded. The real dslogic_fpga_config
// struct (dslogic.h) is not in the retrieval pack; this is a faithful but
// reduced frame carrying the fields dslogic_fpga_configure/dslogic_set_trigger
// actually populate: mode, divider, sample count, trigger position/stages.
type fpgaConfig struct {
	mode       uint16
	divider    uint32
	count      uint32
	trigPos    uint32
	trigGlb    uint8
	chEnable   uint32
	trigger    triggerConfig
}

// Encode packs cfg into the little-endian, header-tagged wire frame
// dslogic_fpga_configure builds field-by-field with WL16/WL32.
func (cfg fpgaConfig) Encode() []byte {
	buf := make([]byte, 0, 64+triggerConfigSize)
	buf = appendUint32(buf, cfgStart)
	buf = appendUint16(buf, hdrMode)
	buf = appendUint16(buf, cfg.mode)
	buf = appendUint16(buf, hdrDivider)
	buf = appendUint32(buf, cfg.divider)
	buf = appendUint16(buf, hdrCount)
	buf = appendUint32(buf, cfg.count)
	buf = appendUint16(buf, hdrTrigPos)
	buf = appendUint32(buf, cfg.trigPos)
	buf = appendUint16(buf, hdrTrigGlb)
	buf = append(buf, cfg.trigGlb)
	buf = appendUint16(buf, hdrChEn)
	buf = appendUint32(buf, cfg.chEnable)
	buf = appendUint16(buf, hdrTrig)
	buf = append(buf, cfg.trigger.encode()...)
	buf = appendUint32(buf, cfgEnd)
	return buf
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}
