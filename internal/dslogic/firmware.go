package dslogic

import (
	"fmt"
	"io"

	"github.com/openbench/acquire-core/internal/transport"
)

// fpgaUploadChunkSize is the bulk transfer block size dslogic_fpga_firmware_upload
// uses when streaming the bitstream (it reads in page-sized chunks to keep a
// single large allocation off the USB stack).
const fpgaUploadChunkSize = 4096

const bulkTransferTimeoutMs = 3000

// UploadBitstream sends the FPGA bitstream to dev: a zero-length DS_CMD_CONFIG
// control request arms the FPGA's programming mode, then the bitstream is
// streamed over the bulk OUT endpoint in fpgaUploadChunkSize blocks. Mirrors
// dslogic_fpga_firmware_upload's control-transfer-then-chunked-bulk-transfer
// sequence.
func UploadBitstream(dev transport.USBDevice, bitstream io.Reader) error {
	if _, err := dev.ControlTransfer(transport.RequestTypeVendor|transport.EndpointOut, cmdConfig, 0, 0, nil, bulkTransferTimeoutMs); err != nil {
		return fmt.Errorf("dslogic: arm fpga config mode: %w", err)
	}

	buf := make([]byte, fpgaUploadChunkSize)
	total := 0
	for {
		n, rerr := bitstream.Read(buf)
		if n > 0 {
			sent, werr := dev.BulkTransfer(bulkOutEndpoint, buf[:n], bulkTransferTimeoutMs)
			if werr != nil {
				return fmt.Errorf("dslogic: bitstream upload at byte %d: %w", total, werr)
			}
			if sent != n {
				return fmt.Errorf("dslogic: short bitstream write at byte %d: sent %d of %d", total, sent, n)
			}
			total += sent
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("dslogic: reading bitstream: %w", rerr)
		}
	}
	return nil
}

// WriteConfigFrame sends the FPGA configuration frame (mode/divider/count/
// trigger) built by fpgaConfig.Encode over the same bulk OUT endpoint used
// for the bitstream, once the FPGA is running.
func WriteConfigFrame(dev transport.USBDevice, cfg fpgaConfig) error {
	frame := cfg.Encode()
	sent, err := dev.BulkTransfer(bulkOutEndpoint, frame, bulkTransferTimeoutMs)
	if err != nil {
		return fmt.Errorf("dslogic: write config frame: %w", err)
	}
	if sent != len(frame) {
		return fmt.Errorf("dslogic: short config frame write: sent %d of %d", sent, len(frame))
	}
	return nil
}

// setVoltageThreshold issues the DS_ADDR_VTH register write dslogic_set_vth
// performs before a capture: vth is a fraction (0.0-1.0) of the full-scale
// reference, scaled the way the FX2 firmware expects (255 == VREF).
func setVoltageThreshold(dev transport.USBDevice, vth float64) error {
	if vth < 0 {
		vth = 0
	}
	if vth > 1 {
		vth = 1
	}
	regValue := uint16(vth * 255)
	_, err := dev.ControlTransfer(transport.RequestTypeVendor|transport.EndpointOut, cmdWriteReg, regValue, uint16(dsAddrVTH), nil, bulkTransferTimeoutMs)
	if err != nil {
		return fmt.Errorf("dslogic: set voltage threshold: %w", err)
	}
	return nil
}

// writeSetting issues a DS_CMD_SETTING control request carrying flags as its
// value. Nothing in this package calls it: starting and stopping a capture
// go through startAcquisition/stopAcquisition (DS_CMD_START).
func writeSetting(dev transport.USBDevice, flags uint8) error {
	_, err := dev.ControlTransfer(transport.RequestTypeVendor|transport.EndpointOut, cmdSetting, uint16(flags), 0, nil, bulkTransferTimeoutMs)
	if err != nil {
		return fmt.Errorf("dslogic: write setting: %w", err)
	}
	return nil
}

// startAcquisition issues the DS_CMD_START control request that begins
// sample capture once the FPGA has been configured.
func startAcquisition(dev transport.USBDevice, sampleWide bool) error {
	flags := startFlagModeLA
	if sampleWide {
		flags |= startFlagSampleWide
	}
	_, err := dev.ControlTransfer(transport.RequestTypeVendor|transport.EndpointOut, cmdStart, uint16(flags), 0, nil, bulkTransferTimeoutMs)
	if err != nil {
		return fmt.Errorf("dslogic: start acquisition: %w", err)
	}
	return nil
}

// stopAcquisition issues the DS_CMD_START control request with the stop
// flag word, per dslogic_stop_acquisition.
func stopAcquisition(dev transport.USBDevice) error {
	_, err := dev.ControlTransfer(transport.RequestTypeVendor|transport.EndpointOut, cmdStart, uint16(startFlagStop), 0, nil, bulkTransferTimeoutMs)
	if err != nil {
		return fmt.Errorf("dslogic: stop acquisition: %w", err)
	}
	return nil
}
