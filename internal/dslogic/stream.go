package dslogic

import (
	"github.com/openbench/acquire-core/internal/device"
	"github.com/openbench/acquire-core/internal/session"
	"github.com/openbench/acquire-core/pkg/datafeed"
)

// bulkInEndpoint is the FX2 bulk-IN endpoint the FPGA streams captured
// samples over once DS_CMD_START is issued.
const bulkInEndpoint uint8 = 0x86
const bulkInTimeoutMs = 1000

// bytesPerMs mirrors to_bytes_per_ms: the device emits one unit (1 byte, or
// 2 for 16-channel "sample wide" captures) per channel group per sample.
// Samplerates above maxLogicSamplerateHz are counted as that rate.
func bytesPerMs(samplerateHz uint64, sampleWide bool) uint64 {
	if samplerateHz > maxLogicSamplerateHz {
		samplerateHz = maxLogicSamplerateHz
	}
	unitSize := uint64(1)
	if sampleWide {
		unitSize = 2
	}
	bps := samplerateHz * unitSize / 1000
	if bps == 0 {
		bps = unitSize
	}
	return bps
}

// bufferSize sizes one bulk transfer to hold roughly 10ms of samples,
// rounded up to a multiple of 512 bytes (the FX2 bulk packet size), per
// get_buffer_size.
func bufferSize(samplerateHz uint64, sampleWide bool) int {
	size := bytesPerMs(samplerateHz, sampleWide) * 10
	if size < 512 {
		size = 512
	}
	return int((size + 511) &^ 511)
}

// numberOfTransfers sizes the in-flight transfer pool to hold roughly
// 100ms of samples, capped at numSimulTransfers, per
// dslogic_get_number_of_transfers.
func numberOfTransfers(samplerateHz uint64, sampleWide bool) int {
	total := bytesPerMs(samplerateHz, sampleWide) * 100
	bs := uint64(bufferSize(samplerateHz, sampleWide))
	n := int((total + bs - 1) / bs)
	if n > numSimulTransfers {
		n = numSimulTransfers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// streamState drives the bulk-IN sample reception loop for one in-progress
// acquisition. It is registered with the session loop the same way the OLS
// engine's receiveState is: poll performs the actual blocking transfer,
// onSource decides whether to process a chunk or wind the capture down.
type streamState struct {
	dc   *devContext
	inst *device.Instance
	loop *session.Loop

	buf      []byte
	lastN    int
	received uint64
	finished bool
}

func newStreamState(dc *devContext, inst *device.Instance, loop *session.Loop) *streamState {
	return &streamState{
		dc:   dc,
		inst: inst,
		loop: loop,
		buf:  make([]byte, bufferSize(dc.curSamplerate, dc.sampleWide)),
	}
}

func (s *streamState) poll() (bool, error) {
	if s.finished || s.dc.usb == nil {
		return false, nil
	}
	n, err := s.dc.usb.BulkTransfer(bulkInEndpoint, s.buf, bulkInTimeoutMs)
	if err != nil {
		return false, err
	}
	s.lastN = n
	return n > 0, nil
}

func (s *streamState) onSource(revents session.Events) bool {
	if s.finished {
		return false
	}
	if revents&session.EventReadable == 0 || s.lastN == 0 {
		s.finish()
		return false
	}
	return s.onChunk(s.buf[:s.lastN])
}

// onChunk forwards a received block as a Logic packet, trimming it to the
// remaining sample budget, and winds the capture down once limitSamples is
// reached.
func (s *streamState) onChunk(chunk []byte) bool {
	dc := s.dc
	remaining := dc.limitSamples - s.received
	if remaining == 0 {
		s.finish()
		return false
	}

	unitSize := uint64(1)
	if dc.sampleWide {
		unitSize = 2
	}
	n := uint64(len(chunk)) / unitSize
	if n > remaining {
		n = remaining
	}

	if n > 0 {
		s.loop.Send(s.inst, datafeed.Logic{
			Unitsize: int(unitSize),
			Samples:  append([]byte(nil), chunk[:n*unitSize]...),
		})
		s.received += n
	}

	if s.received >= dc.limitSamples {
		s.finish()
		return false
	}
	return true
}

func (s *streamState) finish() {
	if s.finished {
		return
	}
	s.finished = true

	s.loop.Send(s.inst, datafeed.End{})
	_ = s.loop.SourceRemove(s.inst.ID)

	if s.dc.usb != nil {
		_ = stopAcquisition(s.dc.usb)
		s.dc.usb.Close()
		s.dc.usb = nil
	}
	s.inst.SetStatus(device.StatusInactive)
}
