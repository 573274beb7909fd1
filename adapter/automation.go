package adapter

import (
	"errors"
	"time"

	"github.com/armon/go-metrics"
	bolt "go.etcd.io/bbolt"

	"github.com/omniward/omniward/accessmgmt"
	"github.com/omniward/omniward/store"
	"github.com/omniward/omniward/types"
)

const (
	// defaultExecutionLimit bounds an automation drain when no limit was configured
	defaultExecutionLimit = uint64(10)

	// automationPollInterval is how often the automation loop evaluates its
	// run condition
	automationPollInterval = time.Second
)

// CheckAutomation reports whether an automation run is due. A run is due when
// the configured interval elapsed since the last run and the pending queue is
// not empty. Read only, the decision is re-evaluated by RunAutomation.
func (a *Adapter) CheckAutomation() (bool, error) {
	auto, err := a.state.AdapterStore.GetAutomationState(nil)
	if err != nil {
		return false, err
	}

	count, err := a.state.AdapterStore.PendingMessageCount(nil)
	if err != nil {
		return false, err
	}

	if count == 0 {
		return false, nil
	}

	return time.Now().Unix()-auto.LastRunTimestamp >= auto.UpdateInterval, nil
}

// RunAutomation stamps the run and drains the pending queue up to the
// configured execution limit. The stamp commits on its own so a failing drain
// still counts as a run and does not retry hot. An empty queue fails with
// ErrNoMessagesAvailable after the stamp.
func (a *Adapter) RunAutomation() error {
	if a.receiver == nil {
		return ErrReceiverNotBound
	}

	var limit uint64

	err := a.state.Update(func(tx *bolt.Tx) error {
		auto, err := a.state.AdapterStore.GetAutomationState(tx)
		if err != nil {
			return err
		}

		auto.LastRunTimestamp = time.Now().Unix()
		limit = auto.DefaultExecutionLimit

		return a.state.AdapterStore.SetAutomationState(auto, tx)
	})
	if err != nil {
		return err
	}

	if limit == 0 {
		limit = defaultExecutionLimit
	}

	executed := 0

	drainErr := a.state.Update(func(tx *bolt.Tx) error {
		messages, err := a.state.AdapterStore.PeekPendingMessages(limit, tx)
		if err != nil {
			return err
		}

		// the queue may have drained between the due check and the run
		if len(messages) == 0 {
			return ErrNoMessagesAvailable
		}

		for _, msg := range messages {
			if err := a.receiver.ReceiveERC721(a.config.Address,
				msg.FromChain, msg.Sender, msg.Data, tx); err != nil {
				return err
			}

			if err := a.state.AdapterStore.RemovePendingMessage(msg.Sequence, tx); err != nil {
				return err
			}

			if err := a.state.AdapterStore.AppendExecutedMessage(msg, tx); err != nil {
				return err
			}
		}

		executed = len(messages)

		return nil
	})
	if drainErr != nil {
		return drainErr
	}

	metrics.IncrCounter([]string{"adapter", "automation", "executed"}, float32(executed))
	a.logger.Info("automation drained pending messages", "count", executed)

	return nil
}

// SetUpdateInterval changes the minimum spacing between automation runs.
// Restricted through the access manager.
func (a *Adapter) SetUpdateInterval(caller types.Address, interval time.Duration) error {
	if err := a.access.Check(caller, a.config.Address, accessmgmt.FuncSetUpdateInterval); err != nil {
		return err
	}

	return a.state.Update(func(tx *bolt.Tx) error {
		auto, err := a.state.AdapterStore.GetAutomationState(tx)
		if err != nil {
			return err
		}

		previous := *auto
		auto.UpdateInterval = int64(interval.Seconds())

		if err := a.state.AdapterStore.SetAutomationState(auto, tx); err != nil {
			return err
		}

		a.logger.Info("automation interval updated", "interval", interval)

		return a.state.AppendAuditEvent("AutomationConfigSet", automationConfigEvent(&previous, auto), tx)
	})
}

// SetDefaultExecutionLimit changes how many messages an automation run drains.
// Restricted through the access manager.
func (a *Adapter) SetDefaultExecutionLimit(caller types.Address, limit uint64) error {
	if err := a.access.Check(caller, a.config.Address, accessmgmt.FuncSetExecutionLimit); err != nil {
		return err
	}

	if limit == 0 {
		return ErrInvalidExecutionLimit
	}

	return a.state.Update(func(tx *bolt.Tx) error {
		auto, err := a.state.AdapterStore.GetAutomationState(tx)
		if err != nil {
			return err
		}

		previous := *auto
		auto.DefaultExecutionLimit = limit

		if err := a.state.AdapterStore.SetAutomationState(auto, tx); err != nil {
			return err
		}

		a.logger.Info("automation execution limit updated", "limit", limit)

		return a.state.AppendAuditEvent("AutomationConfigSet", automationConfigEvent(&previous, auto), tx)
	})
}

// automationConfigEvent is the audit payload of an automation setting change
func automationConfigEvent(previous, current *store.AutomationState) interface{} {
	return struct {
		Previous *store.AutomationState `json:"previous"`
		Current  *store.AutomationState `json:"current"`
	}{previous, current}
}

// GetAutomationState returns the persisted automation parameters
func (a *Adapter) GetAutomationState() (*store.AutomationState, error) {
	return a.state.AdapterStore.GetAutomationState(nil)
}

// StartAutomation runs the automation loop until Close. The loop polls the
// run condition and drains the queue when due, errors are logged and the loop
// keeps going.
func (a *Adapter) StartAutomation() {
	go func() {
		ticker := time.NewTicker(automationPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-a.closeCh:
				return
			case <-ticker.C:
			}

			due, err := a.CheckAutomation()
			if err != nil {
				a.logger.Error("automation check failed", "err", err)

				continue
			}

			if !due {
				continue
			}

			if err := a.RunAutomation(); err != nil && !errors.Is(err, ErrNoMessagesAvailable) {
				a.logger.Error("automation run failed", "err", err)
			}
		}
	}()
}
