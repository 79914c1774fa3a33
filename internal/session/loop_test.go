package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbench/acquire-core/internal/device"
)

func TestSendDispatchesInSubscriptionOrder(t *testing.T) {
	t.Parallel()

	loop := New(nil)
	var order []int
	loop.DatafeedSubscribe(func(inst *device.Instance, packet any) { order = append(order, 1) })
	loop.DatafeedSubscribe(func(inst *device.Instance, packet any) { order = append(order, 2) })
	loop.DatafeedSubscribe(func(inst *device.Instance, packet any) { order = append(order, 3) })

	loop.Send(&device.Instance{}, "packet")
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDatafeedUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	loop := New(nil)
	calls := 0
	id := loop.DatafeedSubscribe(func(inst *device.Instance, packet any) { calls++ })
	loop.DatafeedUnsubscribe(id)

	loop.Send(&device.Instance{}, "packet")
	assert.Zero(t, calls)
}

func TestSourceAddDuplicateHandleReplaces(t *testing.T) {
	t.Parallel()

	loop := New(nil)
	firstCalled := false
	secondCalled := false

	loop.SourceAdd("h", EventReadable, 0, func() (bool, error) { return true, nil },
		func(revents Events) bool { firstCalled = true; return false })
	loop.SourceAdd("h", EventReadable, 0, func() (bool, error) { return true, nil },
		func(revents Events) bool { secondCalled = true; return false })

	assert.Equal(t, 1, loop.sourceCount())

	loop.Run()
	assert.False(t, firstCalled)
	assert.True(t, secondCalled)
}

func TestSourceRemoveUnknownHandleErrors(t *testing.T) {
	t.Parallel()

	loop := New(nil)
	err := loop.SourceRemove("missing")
	require.Error(t, err)
}

func TestRunExitsWhenSourceRemovesItself(t *testing.T) {
	t.Parallel()

	loop := New(nil)
	calls := 0
	loop.SourceAdd("h", EventReadable, 0, func() (bool, error) { return true, nil },
		func(revents Events) bool {
			calls++
			return calls < 3
		})

	loop.Run()
	assert.Equal(t, 3, calls)
}

func TestRunStopsOnRevents0WhenPollNotReady(t *testing.T) {
	t.Parallel()

	loop := New(nil)
	var seenRevents Events
	loop.SourceAdd("h", EventReadable, 0, func() (bool, error) { return false, nil },
		func(revents Events) bool {
			seenRevents = revents
			return false
		})

	loop.Run()
	assert.Zero(t, seenRevents)
}
