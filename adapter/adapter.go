package adapter

import (
	"fmt"
	"math/big"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	bolt "go.etcd.io/bbolt"

	"github.com/omniward/omniward/accessmgmt"
	"github.com/omniward/omniward/router"
	"github.com/omniward/omniward/store"
	"github.com/omniward/omniward/types"
	"github.com/omniward/omniward/vault"
)

// deliveryCacheSize bounds the duplicate delivery suppression window
const deliveryCacheSize = 8192

// MessageReceiver is the inbound capability the adapter needs from the bridge
// core. Bound after construction, the bridge and the adapter reference each
// other only through their narrow interfaces.
type MessageReceiver interface {
	ReceiveERC721(caller types.Address, fromChain uint64,
		sender types.Address, data []byte, dbTx *bolt.Tx) error
}

// Config holds the static identity and fee mode of the adapter instance
type Config struct {
	// Address is the account the adapter acts as against the access manager,
	// the vault fee ledger and the bridge core
	Address types.Address

	// Router is the account the transport client acts as. Inbound deliveries
	// are authorized against it.
	Router types.Address

	// FeeTokenEnabled selects the fee token entry point. The native and the
	// fee token entry points are mutually exclusive per deployment.
	FeeTokenEnabled bool
}

// Adapter connects the bridge core to the router transport. Outbound it
// validates fees and dispatches, inbound it executes deliveries against the
// bridge or parks them in the pending queue for later execution.
type Adapter struct {
	logger hclog.Logger
	config *Config

	state     *store.State
	access    *accessmgmt.Manager
	vault     *vault.Vault
	transport router.Router
	receiver  MessageReceiver

	// suppresses transport level redelivery of acknowledged messages
	delivered *lru.Cache

	closeCh chan struct{}
}

func NewAdapter(logger hclog.Logger, state *store.State, access *accessmgmt.Manager,
	assetVault *vault.Vault, transport router.Router, config *Config) (*Adapter, error) {
	delivered, err := lru.New(deliveryCacheSize)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		logger:    logger.Named("adapter"),
		config:    config,
		state:     state,
		access:    access,
		vault:     assetVault,
		transport: transport,
		delivered: delivered,
		closeCh:   make(chan struct{}),
	}, nil
}

// SetReceiver binds the bridge core. Must be called before the first delivery.
func (a *Adapter) SetReceiver(receiver MessageReceiver) {
	a.receiver = receiver
}

// Address returns the account the adapter acts as
func (a *Adapter) Address() types.Address {
	return a.config.Address
}

// Close stops the automation loop. The transport is owned and closed by the
// caller that dialed it.
func (a *Adapter) Close() {
	close(a.closeCh)
}

// GetFee quotes the delivery fee for the message
func (a *Adapter) GetFee(msg *router.Message) (*big.Int, error) {
	return a.transport.GetFee(msg)
}

// SendMessage dispatches an outbound message, fee supplied in native value.
// Rejected when the adapter is deployed in fee token mode.
func (a *Adapter) SendMessage(caller types.Address, msg *router.Message,
	fee *big.Int, dbTx *bolt.Tx) error {
	if err := a.access.Check(caller, a.config.Address, accessmgmt.FuncSendMessage); err != nil {
		return err
	}

	if a.config.FeeTokenEnabled {
		return fmt.Errorf("%w: native fee send on fee token adapter", ErrOperationNotSupported)
	}

	quoted, err := a.transport.GetFee(msg)
	if err != nil {
		return err
	}

	if fee.Cmp(quoted) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFee, fee, quoted)
	}

	if err := a.transport.Route(msg, fee); err != nil {
		return err
	}

	metrics.IncrCounter([]string{"adapter", "sent"}, 1)
	a.logger.Debug("message dispatched", "to", msg.ToChain, "fee", fee)

	return a.state.AppendAuditEvent("MessageSent", msg, dbTx)
}

// SendMessageUsingFeeToken dispatches an outbound message after pulling the
// quoted amount from the payer's fee token balance. Rejected when the adapter
// is deployed in native fee mode.
func (a *Adapter) SendMessageUsingFeeToken(caller types.Address, payer types.Address,
	msg *router.Message, amount *big.Int, dbTx *bolt.Tx) error {
	if err := a.access.Check(caller, a.config.Address, accessmgmt.FuncSendMessage); err != nil {
		return err
	}

	if !a.config.FeeTokenEnabled {
		return fmt.Errorf("%w: fee token send on native fee adapter", ErrOperationNotSupported)
	}

	balance, err := a.vault.FeeBalanceOf(payer, dbTx)
	if err != nil {
		return err
	}

	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFeeTokenAmount, balance, amount)
	}

	if err := a.vault.TransferFee(a.config.Address, payer, a.config.Address, amount, dbTx); err != nil {
		return err
	}

	if err := a.transport.Route(msg, amount); err != nil {
		return err
	}

	metrics.IncrCounter([]string{"adapter", "sent"}, 1)
	a.logger.Debug("message dispatched", "to", msg.ToChain, "payer", payer, "fee", amount)

	return a.state.AppendAuditEvent("MessageSent", msg, dbTx)
}

// DeliverMessage applies an inbound transport delivery. The transport identity
// must hold the delivery role. Execution is attempted immediately, a failing
// message is parked in the pending queue instead of bouncing back to the
// transport. Redeliveries of acknowledged messages are dropped, the delivery
// id record is persisted so the drop holds across restarts.
func (a *Adapter) DeliverMessage(delivery *router.Delivery) error {
	if err := a.access.Check(a.config.Router, a.config.Address, accessmgmt.FuncDeliverMessage); err != nil {
		return err
	}

	if _, seen := a.delivered.Get(delivery.ID); seen {
		a.logger.Debug("dropping duplicate delivery", "id", delivery.ID)

		return nil
	}

	// the cache does not survive a restart, the store does
	seen, err := a.state.AdapterStore.IsDelivered(delivery.ID, nil)
	if err != nil {
		return err
	}

	if seen {
		a.delivered.Add(delivery.ID, struct{}{})
		a.logger.Debug("dropping duplicate delivery", "id", delivery.ID)

		return nil
	}

	if a.receiver == nil {
		return ErrReceiverNotBound
	}

	msg := &store.QueuedMessage{
		ID:        delivery.ID,
		FromChain: delivery.FromChain,
		Sender:    delivery.Sender,
		Data:      delivery.Data,
	}

	// attempted in its own transaction so a failing execution rolls back
	// completely before the message is queued
	execErr := a.state.Update(func(tx *bolt.Tx) error {
		if err := a.receiver.ReceiveERC721(a.config.Address,
			msg.FromChain, msg.Sender, msg.Data, tx); err != nil {
			return err
		}

		if err := a.state.AdapterStore.AppendExecutedMessage(msg, tx); err != nil {
			return err
		}

		return a.state.AdapterStore.MarkDelivered(delivery.ID, tx)
	})

	if execErr != nil {
		a.logger.Warn("immediate execution failed, message queued",
			"id", msg.ID, "from", msg.FromChain, "err", execErr)

		if err := a.state.Update(func(tx *bolt.Tx) error {
			if err := a.state.AdapterStore.PushPendingMessage(msg, tx); err != nil {
				return err
			}

			return a.state.AdapterStore.MarkDelivered(delivery.ID, tx)
		}); err != nil {
			return err
		}

		metrics.IncrCounter([]string{"adapter", "queued"}, 1)
	} else {
		metrics.IncrCounter([]string{"adapter", "executed"}, 1)
	}

	a.delivered.Add(delivery.ID, struct{}{})

	return nil
}

// ExecuteMessages drains up to limit messages from the head of the pending
// queue in arrival order. All executions commit together, a single failing
// message rolls the whole batch back.
func (a *Adapter) ExecuteMessages(caller types.Address, limit uint64) ([]*store.QueuedMessage, error) {
	if err := a.access.Check(caller, a.config.Address, accessmgmt.FuncExecuteMessages); err != nil {
		return nil, err
	}

	if limit == 0 {
		return nil, ErrInvalidExecutionLimit
	}

	if a.receiver == nil {
		return nil, ErrReceiverNotBound
	}

	var executed []*store.QueuedMessage

	err := a.state.Update(func(tx *bolt.Tx) error {
		messages, err := a.state.AdapterStore.PeekPendingMessages(limit, tx)
		if err != nil {
			return err
		}

		if len(messages) == 0 {
			return ErrNoMessagesAvailable
		}

		for _, msg := range messages {
			if err := a.receiver.ReceiveERC721(a.config.Address,
				msg.FromChain, msg.Sender, msg.Data, tx); err != nil {
				return fmt.Errorf("failed to execute message %s: %w", msg.ID, err)
			}

			if err := a.state.AdapterStore.RemovePendingMessage(msg.Sequence, tx); err != nil {
				return err
			}

			if err := a.state.AdapterStore.AppendExecutedMessage(msg, tx); err != nil {
				return err
			}
		}

		executed = messages

		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrCounter([]string{"adapter", "executed"}, float32(len(executed)))
	a.logger.Info("pending messages executed", "count", len(executed))

	return executed, nil
}

// PendingMessageCount returns the pending queue depth
func (a *Adapter) PendingMessageCount() (uint64, error) {
	return a.state.AdapterStore.PendingMessageCount(nil)
}

// GetPendingMessage returns the pending message at the given queue position
func (a *Adapter) GetPendingMessage(index uint64) (*store.QueuedMessage, error) {
	return a.state.AdapterStore.GetPendingMessage(index, nil)
}

// GetExecutedMessage returns the executed message at the given log position
func (a *Adapter) GetExecutedMessage(index uint64) (*store.QueuedMessage, error) {
	return a.state.AdapterStore.GetExecutedMessage(index, nil)
}
