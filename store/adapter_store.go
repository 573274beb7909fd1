package store

import (
	"errors"

	bolt "go.etcd.io/bbolt"

	"github.com/omniward/omniward/helper/common"
	"github.com/omniward/omniward/types"
)

var automationKey = []byte("automationState")

// ErrMessageNotFound is returned when no message exists at the requested position
var ErrMessageNotFound = errors.New("message not found")

// QueuedMessage is an inbound cross-chain message held for deferred execution
type QueuedMessage struct {
	Sequence  uint64        `json:"sequence"`
	ID        types.Hash    `json:"id"`
	FromChain uint64        `json:"fromChain"`
	Sender    types.Address `json:"sender"`
	Data      []byte        `json:"data"`
}

// AutomationState holds the timing parameters of the automated queue drain
type AutomationState struct {
	LastRunTimestamp      int64  `json:"lastRunTimestamp"`
	UpdateInterval        int64  `json:"updateInterval"`
	DefaultExecutionLimit uint64 `json:"defaultExecutionLimit"`
}

// AdapterStore persists the pending message queue, the executed message log
// and the automation state
type AdapterStore struct {
	db *bolt.DB
}

func (a *AdapterStore) inUpdate(dbTx *bolt.Tx, fn func(tx *bolt.Tx) error) error {
	if dbTx == nil {
		return a.db.Update(fn)
	}

	return fn(dbTx)
}

func (a *AdapterStore) inView(dbTx *bolt.Tx, fn func(tx *bolt.Tx) error) error {
	if dbTx == nil {
		return a.db.View(fn)
	}

	return fn(dbTx)
}

// PushPendingMessage appends a message to the tail of the pending queue
func (a *AdapterStore) PushPendingMessage(msg *QueuedMessage, dbTx *bolt.Tx) error {
	return a.inUpdate(dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(pendingMessagesBucket)

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		msg.Sequence = seq

		raw, err := json.Marshal(msg)
		if err != nil {
			return err
		}

		return bucket.Put(common.EncodeUint64ToBytes(seq), raw)
	})
}

// PeekPendingMessages returns up to limit messages from the head of the queue,
// strictly in insertion order, without removing them
func (a *AdapterStore) PeekPendingMessages(limit uint64, dbTx *bolt.Tx) ([]*QueuedMessage, error) {
	messages := []*QueuedMessage{}

	err := a.inView(dbTx, func(tx *bolt.Tx) error {
		cursor := tx.Bucket(pendingMessagesBucket).Cursor()

		for k, v := cursor.First(); k != nil && uint64(len(messages)) < limit; k, v = cursor.Next() {
			var msg *QueuedMessage
			if err := json.Unmarshal(v, &msg); err != nil {
				return err
			}

			messages = append(messages, msg)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// PendingMessageCount returns the current queue length
func (a *AdapterStore) PendingMessageCount(dbTx *bolt.Tx) (uint64, error) {
	var count uint64

	err := a.inView(dbTx, func(tx *bolt.Tx) error {
		count = uint64(tx.Bucket(pendingMessagesBucket).Stats().KeyN)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// GetPendingMessage returns the queued message at the given position from the queue head
func (a *AdapterStore) GetPendingMessage(index uint64, dbTx *bolt.Tx) (*QueuedMessage, error) {
	messages, err := a.PeekPendingMessages(index+1, dbTx)
	if err != nil {
		return nil, err
	}

	if uint64(len(messages)) <= index {
		return nil, ErrMessageNotFound
	}

	return messages[index], nil
}

// RemovePendingMessage deletes a drained message from the queue
func (a *AdapterStore) RemovePendingMessage(sequence uint64, dbTx *bolt.Tx) error {
	return a.inUpdate(dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(pendingMessagesBucket).Delete(common.EncodeUint64ToBytes(sequence))
	})
}

// AppendExecutedMessage records a successfully executed message in the executed log
func (a *AdapterStore) AppendExecutedMessage(msg *QueuedMessage, dbTx *bolt.Tx) error {
	return a.inUpdate(dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(executedMessagesBucket)

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		stored := *msg
		stored.Sequence = seq

		raw, err := json.Marshal(&stored)
		if err != nil {
			return err
		}

		return bucket.Put(common.EncodeUint64ToBytes(seq), raw)
	})
}

// GetExecutedMessage returns the executed message at the given position, oldest first
func (a *AdapterStore) GetExecutedMessage(index uint64, dbTx *bolt.Tx) (*QueuedMessage, error) {
	var (
		msg     *QueuedMessage
		current uint64
	)

	err := a.inView(dbTx, func(tx *bolt.Tx) error {
		cursor := tx.Bucket(executedMessagesBucket).Cursor()

		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if current == index {
				return json.Unmarshal(v, &msg)
			}

			current++
		}

		return ErrMessageNotFound
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// MarkDelivered records the delivery id so redeliveries are recognized across restarts
func (a *AdapterStore) MarkDelivered(id types.Hash, dbTx *bolt.Tx) error {
	return a.inUpdate(dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(deliveredIDsBucket).Put(id.Bytes(), []byte{})
	})
}

// IsDelivered reports whether the delivery id was already accepted
func (a *AdapterStore) IsDelivered(id types.Hash, dbTx *bolt.Tx) (bool, error) {
	var seen bool

	err := a.inView(dbTx, func(tx *bolt.Tx) error {
		seen = tx.Bucket(deliveredIDsBucket).Get(id.Bytes()) != nil

		return nil
	})
	if err != nil {
		return false, err
	}

	return seen, nil
}

// GetAutomationState returns the automation state, or defaults if it was never written
func (a *AdapterStore) GetAutomationState(dbTx *bolt.Tx) (*AutomationState, error) {
	state := &AutomationState{}

	err := a.inView(dbTx, func(tx *bolt.Tx) error {
		val := tx.Bucket(automationBucket).Get(automationKey)
		if val == nil {
			return nil
		}

		return json.Unmarshal(val, state)
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// SetAutomationState overwrites the automation state
func (a *AdapterStore) SetAutomationState(state *AutomationState, dbTx *bolt.Tx) error {
	return a.inUpdate(dbTx, func(tx *bolt.Tx) error {
		raw, err := json.Marshal(state)
		if err != nil {
			return err
		}

		return tx.Bucket(automationBucket).Put(automationKey, raw)
	})
}
