package dslogic

import (
	"github.com/openbench/acquire-core/internal/device"
)

// dsNumTriggerStages matches DS_NUM_TRIGGER_STAGES: the FPGA trigger engine
// pipelines this many stages, though this driver only ever populates stage
// 0 (simple combinational match across channels) -- spec.md's trigger
// model has no concept of the deeper hardware pipeline, and nothing in
// SPEC_FULL.md needs more than a single stage.
const dsNumTriggerStages = 16

const stageEncodedSize = 16 // 6 uint16 + 2 uint8 + 1 uint16, see encode()
const triggerConfigSize = dsNumTriggerStages * stageEncodedSize

type triggerStage struct {
	mask0, mask1   uint16
	value0, value1 uint16
	edge0, edge1   uint16
	logic0, logic1 uint8
	count          uint16
}

type triggerConfig struct {
	stages [dsNumTriggerStages]triggerStage
	glb    uint8
}

// newTriggerConfig builds the trigger pipeline from each probe's trigger
// expression, using only its first character (DSLogic has one combinational
// match stage, unlike the OLS engine's sequential multi-stage pipeline).
// Supported characters: '0' (low), '1' (high), 'r' (rising), 'f' (falling),
// 'c' (either edge). Mirrors dslogic_set_trigger's per-match-type bit
// manipulation.
func newTriggerConfig(probes []device.Probe) triggerConfig {
	var tc triggerConfig
	for i := range tc.stages {
		tc.stages[i].mask0 = 0xff
		tc.stages[i].mask1 = 0xff
		tc.stages[i].logic0 = 2
		tc.stages[i].logic1 = 2
	}
	tc.stages[0].mask0 = 0xffff
	tc.stages[0].mask1 = 0xffff

	for _, p := range probes {
		if !p.Enabled || p.TriggerExpr == "" {
			continue
		}
		bit := uint16(1) << uint(p.Index)
		s := &tc.stages[0]
		switch p.TriggerExpr[0] {
		case '1':
			s.mask0 &^= bit
			s.mask1 &^= bit
			s.value0 |= bit
			s.value1 |= bit
		case '0':
			s.mask0 &^= bit
			s.mask1 &^= bit
		case 'f':
			s.mask0 &^= bit
			s.mask1 &^= bit
			s.edge0 |= bit
			s.edge1 |= bit
		case 'r':
			s.mask0 &^= bit
			s.mask1 &^= bit
			s.value0 |= bit
			s.value1 |= bit
			s.edge0 |= bit
			s.edge1 |= bit
		case 'c':
			s.edge0 |= bit
			s.edge1 |= bit
		}
	}
	return tc
}

func (tc triggerConfig) encode() []byte {
	buf := make([]byte, 0, triggerConfigSize)
	for _, s := range tc.stages {
		buf = appendUint16(buf, s.mask0)
		buf = appendUint16(buf, s.mask1)
		buf = appendUint16(buf, s.value0)
		buf = appendUint16(buf, s.value1)
		buf = appendUint16(buf, s.edge0)
		buf = appendUint16(buf, s.edge1)
		buf = append(buf, s.logic0, s.logic1)
		buf = appendUint16(buf, s.count)
	}
	return buf
}

// hasMatch reports whether any stage-0 bit was narrowed away from its
// default don't-care mask or marked as an edge, meaning at least one probe
// carries a trigger.
func (tc triggerConfig) hasMatch() bool {
	s := tc.stages[0]
	return s.mask0 != 0xffff || s.mask1 != 0xffff || s.edge0 != 0 || s.edge1 != 0
}
