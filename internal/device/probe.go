package device

import "fmt"

// MaxProbes is the largest probe index supported anywhere in the core: the
// probe bitset is a uint64 (spec.md §6 "Limits").
const MaxProbes = 64

// MaxProbeNameLen bounds Probe.Name (spec.md §6 "Limits").
const MaxProbeNameLen = 32

// Kind distinguishes logic (digital) from analog probes.
type Kind int

const (
	KindLogic Kind = iota
	KindAnalog
)

func (k Kind) String() string {
	if k == KindAnalog {
		return "analog"
	}
	return "logic"
}

// Probe is a single logic or analog input on an instrument.
type Probe struct {
	Index      int
	Kind       Kind
	Enabled    bool
	Name       string
	TriggerExpr string
}

// triggerAlphabet is the set of characters a trigger expression may use:
// 0/1 level, r/f edge, c change.
const triggerAlphabet = "01rfc"

// ValidateTriggerExpr checks expr against the trigger-expression alphabet
// and returns the stage count (len(expr)), or an error if expr contains a
// character outside {0,1,r,f,c}.
func ValidateTriggerExpr(expr string) (stages int, err error) {
	for i, c := range expr {
		if !isTriggerChar(byte(c)) {
			return 0, fmt.Errorf("device: trigger expression %q: invalid character %q at position %d", expr, c, i)
		}
	}
	return len(expr), nil
}

func isTriggerChar(c byte) bool {
	for i := 0; i < len(triggerAlphabet); i++ {
		if triggerAlphabet[i] == c {
			return true
		}
	}
	return false
}

// NewProbe constructs an enabled probe with the given index, kind, and
// name, rejecting an out-of-range index or an over-long name.
func NewProbe(index int, kind Kind, name string) (Probe, error) {
	if index < 0 || index >= MaxProbes {
		return Probe{}, fmt.Errorf("device: probe index %d out of range [0,%d)", index, MaxProbes)
	}
	if len(name) > MaxProbeNameLen {
		return Probe{}, fmt.Errorf("device: probe name %q exceeds %d bytes", name, MaxProbeNameLen)
	}
	return Probe{Index: index, Kind: kind, Enabled: true, Name: name}, nil
}

// Bit returns the probe's position in a 64-bit probe-enable mask.
func (p Probe) Bit() uint64 {
	return 1 << uint(p.Index)
}
