package adapter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniward/omniward/store"
)

func TestAdapter_AutomationSettings(t *testing.T) {
	t.Parallel()

	ta := newTestAdapter(t, false)

	// both setters fall through to the admin when unbound
	assert.Error(t, ta.adapter.SetUpdateInterval(aliceAddr, time.Minute))
	assert.Error(t, ta.adapter.SetDefaultExecutionLimit(aliceAddr, 5))

	assert.ErrorIs(t, ta.adapter.SetDefaultExecutionLimit(adminAddr, 0), ErrInvalidExecutionLimit)

	require.NoError(t, ta.adapter.SetUpdateInterval(adminAddr, time.Minute))
	require.NoError(t, ta.adapter.SetDefaultExecutionLimit(adminAddr, 5))

	auto, err := ta.adapter.GetAutomationState()
	require.NoError(t, err)
	assert.Equal(t, int64(60), auto.UpdateInterval)
	assert.Equal(t, uint64(5), auto.DefaultExecutionLimit)

	// every accepted change lands in the audit log with its old and new values
	events, err := ta.state.AuditEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "AutomationConfigSet", events[0].Name)
	assert.Equal(t, "AutomationConfigSet", events[1].Name)

	var change struct {
		Previous *store.AutomationState `json:"previous"`
		Current  *store.AutomationState `json:"current"`
	}

	require.NoError(t, json.Unmarshal(events[1].Data, &change))
	assert.Equal(t, uint64(0), change.Previous.DefaultExecutionLimit)
	assert.Equal(t, uint64(5), change.Current.DefaultExecutionLimit)
	assert.Equal(t, int64(60), change.Current.UpdateInterval)
}

func TestAdapter_CheckAutomation(t *testing.T) {
	t.Parallel()

	ta := newTestAdapter(t, false)

	// an empty queue never triggers a run
	due, err := ta.adapter.CheckAutomation()
	require.NoError(t, err)
	assert.False(t, due)

	ta.receiver.rejectAll = assert.AnError
	require.NoError(t, ta.adapter.DeliverMessage(newDelivery(1, "m1")))
	ta.receiver.rejectAll = nil

	due, err = ta.adapter.CheckAutomation()
	require.NoError(t, err)
	assert.True(t, due)

	// a fresh run inside the interval suppresses the next one
	require.NoError(t, ta.adapter.SetUpdateInterval(adminAddr, time.Hour))
	require.NoError(t, ta.adapter.SetDefaultExecutionLimit(adminAddr, 1))

	ta.receiver.rejectAll = assert.AnError
	require.NoError(t, ta.adapter.DeliverMessage(newDelivery(2, "m2")))
	require.NoError(t, ta.adapter.DeliverMessage(newDelivery(3, "m3")))
	ta.receiver.rejectAll = nil

	require.NoError(t, ta.adapter.RunAutomation())

	due, err = ta.adapter.CheckAutomation()
	require.NoError(t, err)
	assert.False(t, due)
}

func TestAdapter_RunAutomation(t *testing.T) {
	t.Parallel()

	ta := newTestAdapter(t, false)

	// an empty queue fails the run, but still stamps it
	assert.ErrorIs(t, ta.adapter.RunAutomation(), ErrNoMessagesAvailable)

	auto, err := ta.adapter.GetAutomationState()
	require.NoError(t, err)
	assert.NotZero(t, auto.LastRunTimestamp)

	ta.receiver.rejectAll = assert.AnError
	require.NoError(t, ta.adapter.DeliverMessage(newDelivery(1, "m1")))
	require.NoError(t, ta.adapter.DeliverMessage(newDelivery(2, "m2")))
	ta.receiver.rejectAll = nil

	// the run drains up to the configured limit and stamps itself
	require.NoError(t, ta.adapter.SetDefaultExecutionLimit(adminAddr, 1))
	require.NoError(t, ta.adapter.RunAutomation())

	count, err := ta.adapter.PendingMessageCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	auto, err = ta.adapter.GetAutomationState()
	require.NoError(t, err)
	assert.NotZero(t, auto.LastRunTimestamp)

	// the next run picks up the remainder
	require.NoError(t, ta.adapter.RunAutomation())

	count, err = ta.adapter.PendingMessageCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Equal(t, []string{"m1", "m2"}, ta.receiver.received)
}
