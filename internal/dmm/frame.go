// Package dmm implements the packet-parser framework for serial
// multimeters: a fixed-size-frame scanner that feeds candidate byte windows
// to a pluggable FrameParser, plus the concrete RadioShack 22-812 (rs9lcd)
// parser. Grounded on sigrok's serial-dmm/protocol.h generic dev_context
// (buf/bufoffset/buflen byte-stream scanning) and common/dmm/rs9lcd.c.
package dmm

import "github.com/openbench/acquire-core/pkg/datafeed"

// FrameParser recognizes and decodes one fixed-size DMM wire format. A
// second protocol is added by implementing this interface, not by touching
// the scanning loop in scan.go.
type FrameParser interface {
	// FrameSize is the fixed number of bytes one frame occupies.
	FrameSize() int

	// Validate reports whether frame (exactly FrameSize bytes) is a
	// plausible, well-formed frame: checksum, mode range, and any
	// mutual-exclusion bits the format defines. Invalid frames are
	// discarded by the caller, which then resyncs a byte at a time.
	Validate(frame []byte) error

	// Decode converts an already-Validated frame into a measurement.
	Decode(frame []byte) (datafeed.Analog, error)
}

// bufSize mirrors DMM_BUFSIZE: the byte-stream scan window never needs to
// hold more than a couple of frames' worth of resync slack.
const bufSize = 256
