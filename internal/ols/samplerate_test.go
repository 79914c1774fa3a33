package ols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSamplerateBelowClockRate(t *testing.T) {
	t.Parallel()

	dc := &devContext{maxSamplerateHz: clockRateHz}
	require.NoError(t, dc.setSamplerate(1_000_000))
	assert.Equal(t, uint64(1_000_000), dc.curSamplerate)
	assert.Zero(t, dc.flagReg&flagDemux)
}

func TestSetSamplerateAboveClockRateEnablesDemux(t *testing.T) {
	t.Parallel()

	dc := &devContext{maxSamplerateHz: clockRateHz * 2}
	require.NoError(t, dc.setSamplerate(clockRateHz*2))
	assert.NotZero(t, dc.flagReg&flagDemux)
	// demux doubles the effective rate off the same divider math.
	assert.InDelta(t, float64(clockRateHz*2), float64(dc.curSamplerate), float64(clockRateHz)*0.01)
}

func TestSetSamplerateRejectsZero(t *testing.T) {
	t.Parallel()

	dc := &devContext{maxSamplerateHz: clockRateHz}
	assert.Error(t, dc.setSamplerate(0))
}

func TestSetSamplerateRejectsAboveMax(t *testing.T) {
	t.Parallel()

	dc := &devContext{maxSamplerateHz: 1_000_000}
	assert.Error(t, dc.setSamplerate(2_000_000))
}

func TestSetSamplerateDividerRoundTrip(t *testing.T) {
	t.Parallel()

	// a samplerate that evenly divides the clock rate should round-trip
	// exactly once run back through the divider formula.
	dc := &devContext{maxSamplerateHz: clockRateHz}
	want := uint64(clockRateHz / 4)
	require.NoError(t, dc.setSamplerate(want))
	assert.Equal(t, want, dc.curSamplerate)
}
