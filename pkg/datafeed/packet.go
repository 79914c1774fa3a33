// Package datafeed defines the typed packet stream that flows from a driver
// to the subscribers registered on a session loop.
package datafeed

import (
	"fmt"
	"time"
)

// Packet is the tagged-variant datafeed packet. Every concrete payload type
// below implements it; a type switch on the concrete type is the idiomatic
// way to handle the variant exhaustively.
type Packet interface {
	packetType() Type
}

// Type identifies which concrete payload a Packet carries.
type Type int

const (
	TypeHeader Type = iota
	TypeMetaLogic
	TypeMetaAnalog
	TypeLogic
	TypeAnalog
	TypeTrigger
	TypeFrameBegin
	TypeFrameEnd
	TypeEnd
)

func (t Type) String() string {
	switch t {
	case TypeHeader:
		return "Header"
	case TypeMetaLogic:
		return "MetaLogic"
	case TypeMetaAnalog:
		return "MetaAnalog"
	case TypeLogic:
		return "Logic"
	case TypeAnalog:
		return "Analog"
	case TypeTrigger:
		return "Trigger"
	case TypeFrameBegin:
		return "FrameBegin"
	case TypeFrameEnd:
		return "FrameEnd"
	case TypeEnd:
		return "End"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Header is the first packet of every session.
type Header struct {
	FeedVersion uint32
	StartTime   time.Time
}

func (Header) packetType() Type { return TypeHeader }

// MetaLogic precedes any Logic packet that uses the probe count/samplerate
// it describes.
type MetaLogic struct {
	NumProbes  int
	SamplerateHz uint64
}

func (MetaLogic) packetType() Type { return TypeMetaLogic }

// MetaAnalog precedes any Analog packet.
type MetaAnalog struct {
	NumProbes int
}

func (MetaAnalog) packetType() Type { return TypeMetaAnalog }

// AllowedUnitsizes are the valid unit sizes (in bytes) for Logic.Samples,
// per spec invariant: unitsize ∈ {1, 2, 4, 8}.
var AllowedUnitsizes = [...]int{1, 2, 4, 8}

// Logic carries packed parallel-bit samples. len(Samples) must be a
// multiple of Unitsize; bit i of a sample corresponds to probe index i.
type Logic struct {
	Unitsize int
	Samples  []byte
}

func (Logic) packetType() Type { return TypeLogic }

// NumSamples returns the number of samples carried, or -1 if Unitsize is
// zero or the payload isn't a clean multiple of it.
func (l Logic) NumSamples() int {
	if l.Unitsize <= 0 || len(l.Samples)%l.Unitsize != 0 {
		return -1
	}
	return len(l.Samples) / l.Unitsize
}

// ValidUnitsize reports whether u is one of the allowed Logic unit sizes.
func ValidUnitsize(u int) bool {
	for _, a := range AllowedUnitsizes {
		if a == u {
			return true
		}
	}
	return false
}

// Analog carries one measured-quantity stream of floating point samples.
type Analog struct {
	MQ      MQ
	Unit    Unit
	MQFlags MQFlags
	Samples []float64
}

func (Analog) packetType() Type { return TypeAnalog }

// Trigger marks the trigger sample boundary in the surrounding Logic
// stream. It carries no payload.
type Trigger struct{}

func (Trigger) packetType() Type { return TypeTrigger }

// FrameBegin/FrameEnd bracket one oscilloscope frame.
type FrameBegin struct{}

func (FrameBegin) packetType() Type { return TypeFrameBegin }

type FrameEnd struct{}

func (FrameEnd) packetType() Type { return TypeFrameEnd }

// End terminates a session. No packet follows it.
type End struct{}

func (End) packetType() Type { return TypeEnd }

// TypeOf returns the Type tag of any Packet, for exhaustive switches and
// logging without a full type assertion.
func TypeOf(p Packet) Type {
	return p.packetType()
}
