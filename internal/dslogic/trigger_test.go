package dslogic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbench/acquire-core/internal/device"
)

func mustProbe(t *testing.T, index int, expr string) device.Probe {
	t.Helper()
	p, err := device.NewProbe(index, device.KindLogic, "")
	require.NoError(t, err)
	p.TriggerExpr = expr
	return p
}

func TestNewTriggerConfigNoTriggersIsDontCare(t *testing.T) {
	t.Parallel()

	probes := []device.Probe{mustProbe(t, 0, ""), mustProbe(t, 1, "")}
	tc := newTriggerConfig(probes)
	assert.False(t, tc.hasMatch())
	assert.Equal(t, uint16(0xffff), tc.stages[0].mask0)
}

func TestNewTriggerConfigHighLevel(t *testing.T) {
	t.Parallel()

	probes := []device.Probe{mustProbe(t, 2, "1")}
	tc := newTriggerConfig(probes)
	require.True(t, tc.hasMatch())

	bit := uint16(1) << 2
	assert.Zero(t, tc.stages[0].mask0&bit)
	assert.NotZero(t, tc.stages[0].value0&bit)
}

func TestNewTriggerConfigRisingEdgeSetsEdgeAndValue(t *testing.T) {
	t.Parallel()

	probes := []device.Probe{mustProbe(t, 0, "r")}
	tc := newTriggerConfig(probes)
	bit := uint16(1)
	assert.NotZero(t, tc.stages[0].edge0&bit)
	assert.NotZero(t, tc.stages[0].value0&bit)
}

func TestNewTriggerConfigDisabledProbeIgnored(t *testing.T) {
	t.Parallel()

	p := mustProbe(t, 0, "1")
	p.Enabled = false
	tc := newTriggerConfig([]device.Probe{p})
	assert.False(t, tc.hasMatch())
}

func TestTriggerConfigEncodeLength(t *testing.T) {
	t.Parallel()

	tc := newTriggerConfig(nil)
	buf := tc.encode()
	assert.Len(t, buf, triggerConfigSize)
}

func TestTriggerConfigOnlyStageZeroPopulated(t *testing.T) {
	t.Parallel()

	probes := []device.Probe{mustProbe(t, 0, "1")}
	tc := newTriggerConfig(probes)
	for i := 1; i < dsNumTriggerStages; i++ {
		assert.Equal(t, uint16(0xff), tc.stages[i].mask0, "stage %d should stay don't-care", i)
	}
}
