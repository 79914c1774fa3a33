package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTriggerExprAcceptsAlphabet(t *testing.T) {
	t.Parallel()

	stages, err := ValidateTriggerExpr("01rfc")
	require.NoError(t, err)
	assert.Equal(t, 5, stages)
}

func TestValidateTriggerExprEmptyIsZeroStages(t *testing.T) {
	t.Parallel()

	stages, err := ValidateTriggerExpr("")
	require.NoError(t, err)
	assert.Zero(t, stages)
}

func TestValidateTriggerExprRejectsInvalidChar(t *testing.T) {
	t.Parallel()

	_, err := ValidateTriggerExpr("01x")
	assert.Error(t, err)
}

func TestNewProbeRejectsOutOfRangeIndex(t *testing.T) {
	t.Parallel()

	_, err := NewProbe(-1, KindLogic, "p")
	assert.Error(t, err)

	_, err = NewProbe(MaxProbes, KindLogic, "p")
	assert.Error(t, err)
}

func TestNewProbeRejectsOverlongName(t *testing.T) {
	t.Parallel()

	name := make([]byte, MaxProbeNameLen+1)
	_, err := NewProbe(0, KindLogic, string(name))
	assert.Error(t, err)
}

func TestProbeBit(t *testing.T) {
	t.Parallel()

	p, err := NewProbe(5, KindLogic, "p5")
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<5, p.Bit())
}

func TestRegistryAddGetRemove(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	inst := &Instance{Driver: "ols"}
	id := r.Add(inst)

	got, err := r.Get(id)
	require.NoError(t, err)
	assert.Same(t, inst, got)

	assert.Len(t, r.List(), 1)

	r.Remove(id)
	_, err = r.Get(id)
	assert.Error(t, err)
}

func TestRegistryClear(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Add(&Instance{Driver: "a"})
	r.Add(&Instance{Driver: "b"})
	require.Len(t, r.List(), 2)

	r.Clear()
	assert.Empty(t, r.List())
}
