package ols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbench/acquire-core/internal/device"
)

func probe(t *testing.T, index int, expr string) device.Probe {
	t.Helper()
	p, err := device.NewProbe(index, device.KindLogic, "")
	require.NoError(t, err)
	p.TriggerExpr = expr
	return p
}

func TestConfigureProbesBuildsProbeMask(t *testing.T) {
	t.Parallel()

	inst := &device.Instance{Probes: []device.Probe{probe(t, 0, ""), probe(t, 3, "")}}
	dc := &devContext{}
	require.NoError(t, configureProbes(dc, inst))
	assert.Equal(t, uint32(1)|uint32(1)<<3, dc.probeMask)
}

func TestConfigureProbesSkipsDisabled(t *testing.T) {
	t.Parallel()

	p := probe(t, 1, "")
	p.Enabled = false
	inst := &device.Instance{Probes: []device.Probe{p}}
	dc := &devContext{}
	require.NoError(t, configureProbes(dc, inst))
	assert.Zero(t, dc.probeMask)
}

func TestConfigureProbesRejectsEdgeExpression(t *testing.T) {
	t.Parallel()

	inst := &device.Instance{Probes: []device.Probe{probe(t, 0, "r")}}
	dc := &devContext{}
	assert.Error(t, configureProbes(dc, inst))
}

func TestConfigureProbesRejectsExcessiveStages(t *testing.T) {
	t.Parallel()

	// numTriggerStages is 4; a 5-character expression must be rejected.
	inst := &device.Instance{Probes: []device.Probe{probe(t, 0, "01010")}}
	dc := &devContext{}
	assert.Error(t, configureProbes(dc, inst))
}

func TestConfigureProbesEmptyExpressionLeavesNoStages(t *testing.T) {
	t.Parallel()

	inst := &device.Instance{Probes: []device.Probe{probe(t, 0, "")}}
	dc := &devContext{}
	require.NoError(t, configureProbes(dc, inst))
	assert.Zero(t, dc.numStages)
}

func TestConfigureProbesTriggerValueBitsOnlyOnOnes(t *testing.T) {
	t.Parallel()

	inst := &device.Instance{Probes: []device.Probe{probe(t, 2, "10")}}
	dc := &devContext{}
	require.NoError(t, configureProbes(dc, inst))

	bit := uint32(1) << 2
	assert.NotZero(t, dc.triggerMask[0]&bit)
	assert.NotZero(t, dc.triggerValue[0]&bit)
	assert.NotZero(t, dc.triggerMask[1]&bit)
	assert.Zero(t, dc.triggerValue[1]&bit)
}
