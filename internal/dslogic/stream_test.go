package dslogic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesPerMs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(100), bytesPerMs(100_000, false))
	assert.Equal(t, uint64(200), bytesPerMs(100_000, true))
	// below 1000Hz, to_bytes_per_ms still returns at least one unit.
	assert.Equal(t, uint64(1), bytesPerMs(500, false))
}

func TestBufferSizeRoundsUpToMultipleOf512(t *testing.T) {
	t.Parallel()

	size := bufferSize(1_000_000, false)
	assert.Zero(t, size%512)
	assert.GreaterOrEqual(t, size, 512)
}

func TestBufferSizeNeverBelowFloor(t *testing.T) {
	t.Parallel()

	size := bufferSize(1, false)
	assert.Equal(t, 512, size)
}

func TestNumberOfTransfersCappedAtSimulLimit(t *testing.T) {
	t.Parallel()

	n := numberOfTransfers(100_000_000, true)
	assert.LessOrEqual(t, n, numSimulTransfers)
	assert.GreaterOrEqual(t, n, 1)
}

func TestNumberOfTransfersScalesWithSamplerate(t *testing.T) {
	t.Parallel()

	low := numberOfTransfers(1_000_000, false)
	high := numberOfTransfers(50_000_000, false)
	assert.GreaterOrEqual(t, high, low)
}
