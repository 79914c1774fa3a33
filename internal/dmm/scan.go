package dmm

import (
	"github.com/openbench/acquire-core/internal/device"
	"github.com/openbench/acquire-core/internal/session"
	"github.com/openbench/acquire-core/pkg/datafeed"
)

// scanState accumulates bytes from the serial port and scans for a valid
// frame at every position, matching the generic serial-dmm receive loop:
// a fixed-size window is validated in place; on success it is consumed and
// decoded, on failure the window slides forward one byte (resync).
type scanState struct {
	d    *Driver
	dc   *devContext
	inst *device.Instance
	loop *session.Loop

	buf      []byte
	lastByte byte
	sentMeta bool
	finished bool
}

func (s *scanState) poll() (bool, error) {
	if s.finished || s.dc.port == nil {
		return false, nil
	}
	tmp := make([]byte, 1)
	n, err := s.dc.port.Read(tmp)
	if err != nil {
		return false, err
	}
	if n == 1 {
		s.lastByte = tmp[0]
		return true, nil
	}
	return false, nil
}

func (s *scanState) onSource(revents session.Events) bool {
	if s.finished {
		return false
	}
	if revents&session.EventReadable == 0 {
		s.finish()
		return false
	}
	return s.onByte(s.lastByte)
}

func (s *scanState) onByte(b byte) bool {
	dc := s.dc
	s.buf = append(s.buf, b)
	if len(s.buf) > bufSize {
		s.buf = s.buf[len(s.buf)-bufSize:]
	}

	frameSize := dc.parser.FrameSize()
	for len(s.buf) >= frameSize {
		candidate := s.buf[:frameSize]
		if err := dc.parser.Validate(candidate); err != nil {
			s.d.log.WithError(err).Debug("dmm: discarding invalid frame candidate")
			s.buf = s.buf[1:]
			continue
		}

		analog, err := dc.parser.Decode(candidate)
		s.buf = s.buf[frameSize:]
		if err != nil {
			s.d.log.WithError(err).Debug("dmm: discarding undecodable frame")
			continue
		}

		if !s.sentMeta {
			s.loop.Send(s.inst, datafeed.MetaAnalog{NumProbes: 1})
			s.sentMeta = true
		}
		s.loop.Send(s.inst, analog)
		dc.numSamples++
	}

	if dc.limitSamples != 0 && dc.numSamples >= dc.limitSamples {
		s.finish()
		return false
	}
	return true
}

func (s *scanState) finish() {
	if s.finished {
		return
	}
	s.finished = true

	s.loop.Send(s.inst, datafeed.End{})
	_ = s.loop.SourceRemove(s.inst.ID)

	if s.dc.port != nil {
		s.dc.port.Close()
		s.dc.port = nil
	}
	s.inst.SetStatus(device.StatusInactive)
}
