package dslogic

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbench/acquire-core/internal/device"
	acqdriver "github.com/openbench/acquire-core/internal/driver"
)

func newTestDriverWithActiveInstance(t *testing.T) (*Driver, *device.Instance) {
	t.Helper()
	registry := device.NewRegistry()
	d := New(nil, registry)

	inst := &device.Instance{ID: uuid.New(), Driver: d.Name(), Status: device.StatusActive, Probes: makeProbes(16)}
	registry.Add(inst)
	d.mu.Lock()
	d.devctx[inst.ID] = &devContext{profile: modelProfiles[0]}
	d.mu.Unlock()
	return d, inst
}

func TestConfigSetRejectsSamplerateAboveModelMax(t *testing.T) {
	t.Parallel()

	d, inst := newTestDriverWithActiveInstance(t)
	err := d.ConfigSet(inst, acqdriver.ConfigSamplerate, modelProfiles[0].maxSamplerateHz+1)
	assert.Error(t, err)
}

func TestConfigSetAcceptsSamplerateAtModelMax(t *testing.T) {
	t.Parallel()

	d, inst := newTestDriverWithActiveInstance(t)
	err := d.ConfigSet(inst, acqdriver.ConfigSamplerate, modelProfiles[0].maxSamplerateHz)
	require.NoError(t, err)
}

func TestConfigSetRejectsLimitSamplesBelowMinimum(t *testing.T) {
	t.Parallel()

	d, inst := newTestDriverWithActiveInstance(t)
	err := d.ConfigSet(inst, acqdriver.ConfigLimitSamples, uint64(acqdriver.MinNumSamples-1))
	assert.Error(t, err)
}

func TestConfigSetRejectsLimitSamplesBeyondMaxDepth(t *testing.T) {
	t.Parallel()

	d, inst := newTestDriverWithActiveInstance(t)
	err := d.ConfigSet(inst, acqdriver.ConfigLimitSamples, uint64(maxLogicDepth+1))
	assert.Error(t, err)
}

func TestConfigSetVoltageThresholdRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	d, inst := newTestDriverWithActiveInstance(t)
	assert.Error(t, d.ConfigSet(inst, acqdriver.ConfigVoltageThreshold, 1.5))
	assert.Error(t, d.ConfigSet(inst, acqdriver.ConfigVoltageThreshold, -0.1))
}

func TestConfigSetVoltageThresholdWithoutOpenUSBJustStores(t *testing.T) {
	t.Parallel()

	d, inst := newTestDriverWithActiveInstance(t)
	require.NoError(t, d.ConfigSet(inst, acqdriver.ConfigVoltageThreshold, 0.7))

	dc, err := d.devCtx(inst)
	require.NoError(t, err)
	assert.Equal(t, 0.7, dc.vth)
}

func TestBuildConfigTriggerOnBitSetWhenProbeHasTrigger(t *testing.T) {
	t.Parallel()

	_, inst := newTestDriverWithActiveInstance(t)
	inst.Probes[0].TriggerExpr = "1"

	dc := &devContext{profile: modelProfiles[0], curSamplerate: 1_000_000, limitSamples: 1000, sampleWide: true}
	cfg := buildConfig(dc, inst)
	assert.NotZero(t, cfg.mode&modeTriggerOn)
}

func TestBuildConfigNoTriggerLeavesTriggerBitClear(t *testing.T) {
	t.Parallel()

	_, inst := newTestDriverWithActiveInstance(t)
	dc := &devContext{profile: modelProfiles[0], curSamplerate: 1_000_000, limitSamples: 1000}
	cfg := buildConfig(dc, inst)
	assert.Zero(t, cfg.mode&modeTriggerOn)
}
