package ols

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

	inst := &device.Instance{ID: uuid.New(), Driver: d.Name(), Status: device.StatusActive}
	registry.Add(inst)
	d.mu.Lock()
	d.devctx[inst.ID] = &devContext{maxSamplerateHz: clockRateHz}
	d.mu.Unlock()
	return d, inst
}

func TestConfigSetRejectsLimitSamplesBelowMinimum(t *testing.T) {
	t.Parallel()

	d, inst := newTestDriverWithActiveInstance(t)
	err := d.ConfigSet(inst, acqdriver.ConfigLimitSamples, uint64(acqdriver.MinNumSamples-1))
	assert.Error(t, err)
}

func TestConfigSetAcceptsLimitSamplesAtMinimum(t *testing.T) {
	t.Parallel()

	d, inst := newTestDriverWithActiveInstance(t)
	err := d.ConfigSet(inst, acqdriver.ConfigLimitSamples, uint64(acqdriver.MinNumSamples))
	assert.NoError(t, err)
}

func TestConfigSetRejectsCaptureRatioOutOfRange(t *testing.T) {
	t.Parallel()

	d, inst := newTestDriverWithActiveInstance(t)
	err := d.ConfigSet(inst, acqdriver.ConfigCaptureRatio, uint64(101))
	assert.Error(t, err)
}

func TestConfigSetRejectsWrongValueType(t *testing.T) {
	t.Parallel()

	d, inst := newTestDriverWithActiveInstance(t)
	err := d.ConfigSet(inst, acqdriver.ConfigSamplerate, "not-a-uint64")
	assert.Error(t, err)
}

func TestConfigSetRejectsInactiveInstance(t *testing.T) {
	t.Parallel()

	d, inst := newTestDriverWithActiveInstance(t)
	inst.SetStatus(device.StatusInactive)
	err := d.ConfigSet(inst, acqdriver.ConfigLimitSamples, uint64(100))
	require.Error(t, err)
}

func TestConfigSetRejectsUnknownInstance(t *testing.T) {
	t.Parallel()

	registry := device.NewRegistry()
	d := New(nil, registry)
	inst := &device.Instance{ID: uuid.New(), Driver: d.Name(), Status: device.StatusActive}

	err := d.ConfigSet(inst, acqdriver.ConfigLimitSamples, uint64(100))
	assert.Error(t, err)
}
