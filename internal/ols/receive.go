package ols

import (
	"time"

	"github.com/openbench/acquire-core/internal/device"
	"github.com/openbench/acquire-core/internal/session"
	"github.com/openbench/acquire-core/pkg/datafeed"
)

func header() datafeed.Packet {
	return datafeed.Header{FeedVersion: 1, StartTime: time.Now()}
}

func metaLogic(dc *devContext) datafeed.Packet {
	return datafeed.MetaLogic{NumProbes: numProbes, SamplerateHz: dc.curSamplerate}
}

// receiveState runs the byte-at-a-time sample assembly described by
// spec.md §4.3 and grounded on ols.c's receive_data: accumulate one raw
// sample per numChannels bytes, expand disabled channel groups back to a
// full 4-byte word, RLE-decode, and buffer samples from the end so the
// final ordering comes out oldest-first once flushed.
type receiveState struct {
	d    *Driver
	dc   *devContext
	inst *device.Instance
	loop *session.Loop

	lastByte byte
	finished bool
}

func (r *receiveState) poll() (bool, error) {
	if r.finished {
		return false, nil
	}
	buf := make([]byte, 1)
	n, err := r.dc.port.Read(buf)
	if err != nil {
		return false, err
	}
	if n == 1 {
		r.lastByte = buf[0]
		return true, nil
	}
	return false, nil
}

func (r *receiveState) onSource(revents session.Events) bool {
	if r.finished {
		return false
	}
	if revents&session.EventReadable != 0 {
		return r.onByte(r.lastByte)
	}
	r.finish()
	return false
}

func (r *receiveState) onByte(b byte) bool {
	dc := r.dc

	if dc.numTransfers == 0 {
		dc.numTransfers++
		// After the device starts talking, a gap longer than it takes to
		// send one byte means it's done; 30ms gives ample margin.
		r.loop.SourceAdd(r.inst.ID, session.EventReadable, 30, r.poll, r.onSource)
		dc.rawSampleBuf = make([]byte, dc.limitSamples*4)
	}

	if dc.numSamples >= dc.limitSamples {
		return true
	}

	dc.sample[dc.numBytesInSample] = b
	dc.numBytesInSample++
	if dc.numBytesInSample != dc.numChannels {
		return true
	}

	if dc.flagReg&flagRLE != 0 {
		last := dc.numBytesInSample - 1
		if dc.sample[last]&0x80 != 0 {
			dc.sample[last] &^= 0x80
			dc.rleCount = uint64(leUint32(dc.sample[:]))
			dc.numBytesInSample = 0
			return true
		}
	}

	dc.numSamples += dc.rleCount + 1
	if dc.numSamples > dc.limitSamples {
		dc.rleCount -= dc.numSamples - dc.limitSamples
		dc.numSamples = dc.limitSamples
	}

	if dc.numChannels < 4 {
		var expanded [4]byte
		j := 0
		for i := 0; i < 4; i++ {
			if (dc.flagReg>>2)&(1<<uint(i)) == 0 {
				expanded[i] = dc.sample[j]
				j++
			}
		}
		dc.sample = expanded
	}

	// The device sends its sample buffer youngest-first; store it in
	// reverse so the buffer reads oldest-first once the capture ends.
	offset := (dc.limitSamples - dc.numSamples) * 4
	for i := uint64(0); i <= dc.rleCount; i++ {
		copy(dc.rawSampleBuf[offset+i*4:offset+i*4+4], dc.sample[:])
	}
	dc.sample = [4]byte{}
	dc.numBytesInSample = 0
	dc.rleCount = 0

	return true
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// finish sends the final Logic/Trigger/End packets and releases the
// device's acquisition resources. It is the shared tail of both the
// natural (device-stopped-sending) path and an explicit AcquisitionStop.
func (r *receiveState) finish() {
	if r.finished {
		return
	}
	r.finished = true
	dc := r.dc

	if dc.triggerAt >= 0 {
		if dc.triggerAt > 0 {
			offset := (dc.limitSamples - dc.numSamples) * 4
			length := uint64(dc.triggerAt) * 4
			r.loop.Send(r.inst, datafeed.Logic{
				Unitsize: 4,
				Samples:  sliceOrEmpty(dc.rawSampleBuf, offset, length),
			})
		}
		r.loop.Send(r.inst, datafeed.Trigger{})

		preOffset := (dc.limitSamples - dc.numSamples) * 4
		offset := preOffset + uint64(dc.triggerAt)*4
		length := dc.numSamples*4 - uint64(dc.triggerAt)*4
		r.loop.Send(r.inst, datafeed.Logic{
			Unitsize: 4,
			Samples:  sliceOrEmpty(dc.rawSampleBuf, offset, length),
		})
	} else {
		offset := (dc.limitSamples - dc.numSamples) * 4
		length := dc.numSamples * 4
		r.loop.Send(r.inst, datafeed.Logic{
			Unitsize: 4,
			Samples:  sliceOrEmpty(dc.rawSampleBuf, offset, length),
		})
	}

	r.loop.Send(r.inst, datafeed.End{})

	r.loop.SourceRemove(r.inst.ID)
	if dc.port != nil {
		dc.port.Close()
		dc.port = nil
	}
	r.inst.SetStatus(device.StatusInactive)
}

func sliceOrEmpty(buf []byte, offset, length uint64) []byte {
	if buf == nil || offset > uint64(len(buf)) {
		return nil
	}
	end := offset + length
	if end > uint64(len(buf)) {
		end = uint64(len(buf))
	}
	out := make([]byte, end-offset)
	copy(out, buf[offset:end])
	return out
}
