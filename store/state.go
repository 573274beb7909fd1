package store

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"

	"github.com/omniward/omniward/helper/common"
)

/*
Bolt DB schema:

chainSettings/
|--> (evmChainID, ramp) -> *ChainSetting (json marshalled)

routerChains/
|--> (routerChainID, ramp) -> evmChainID

wrappedAssets/
|--> (originChainID, originAddress) -> *WrappedAssetRecord (json marshalled)

wrappedOrigins/
|--> wrappedAddress -> *WrappedAssetRecord (json marshalled)

collections/
|--> collectionAddress -> *Collection (json marshalled)

tokens/
|--> (collectionAddress, tokenID) -> *Token (json marshalled)

feeBalances/
|--> accountAddress -> big.Int (text)

pendingMessages/
|--> sequence -> *QueuedMessage (json marshalled)

executedMessages/
|--> sequence -> *QueuedMessage (json marshalled)

deliveredIds/
|--> deliveryID -> empty marker

automation/
|--> automationKey -> *AutomationState (json marshalled)

access/
|--> accessKey -> raw access manager snapshot

apps/
|--> appID -> *App (json marshalled)

appAddresses/
|--> appAddress -> appID

auditEvents/
|--> sequence -> *AuditEvent (json marshalled)
*/

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	chainSettingsBucket    = []byte("chainSettings")
	routerChainsBucket     = []byte("routerChains")
	wrappedAssetsBucket    = []byte("wrappedAssets")
	wrappedOriginsBucket   = []byte("wrappedOrigins")
	collectionsBucket      = []byte("collections")
	tokensBucket           = []byte("tokens")
	feeBalancesBucket      = []byte("feeBalances")
	pendingMessagesBucket  = []byte("pendingMessages")
	executedMessagesBucket = []byte("executedMessages")
	deliveredIDsBucket     = []byte("deliveredIds")
	automationBucket       = []byte("automation")
	accessBucket           = []byte("access")
	appsBucket             = []byte("apps")
	appAddressesBucket     = []byte("appAddresses")
	auditEventsBucket      = []byte("auditEvents")
)

var parentBuckets = [][]byte{
	chainSettingsBucket,
	routerChainsBucket,
	wrappedAssetsBucket,
	wrappedOriginsBucket,
	collectionsBucket,
	tokensBucket,
	feeBalancesBucket,
	pendingMessagesBucket,
	executedMessagesBucket,
	deliveredIDsBucket,
	automationBucket,
	accessBucket,
	appsBucket,
	appAddressesBucket,
	auditEventsBucket,
}

// State represents the bolt db backed state of a single node instance.
// All component stores share one database so that cross component
// operations can commit or roll back as a unit.
type State struct {
	db     *bolt.DB
	logger hclog.Logger

	BridgeStore  *BridgeStore
	VaultStore   *VaultStore
	AdapterStore *AdapterStore
	AccessStore  *AccessStore
	HubStore     *HubStore
}

// NewState opens the bolt database on the given path and creates all predefined buckets
func NewState(path string, logger hclog.Logger) (*State, error) {
	db, err := bolt.Open(path, 0666, nil)
	if err != nil {
		return nil, err
	}

	if err := initBuckets(db); err != nil {
		return nil, err
	}

	state := &State{
		db:     db,
		logger: logger.Named("state"),
	}

	state.BridgeStore = &BridgeStore{db: db}
	state.VaultStore = &VaultStore{db: db}
	state.AdapterStore = &AdapterStore{db: db}
	state.AccessStore = &AccessStore{db: db}
	state.HubStore = &HubStore{db: db}

	return state, nil
}

// initBuckets creates predefined buckets in bolt database if they don't exist already
func initBuckets(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range parentBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket=%s: %w", string(bucket), err)
			}
		}

		return nil
	})
}

// Update runs the given function within a single read-write transaction
func (s *State) Update(fn func(tx *bolt.Tx) error) error {
	return s.db.Update(fn)
}

// View runs the given function within a read-only transaction
func (s *State) View(fn func(tx *bolt.Tx) error) error {
	return s.db.View(fn)
}

// Close closes the underlying database
func (s *State) Close() error {
	return s.db.Close()
}

// AuditEvent is a single entry of the append-only operator audit log
type AuditEvent struct {
	Sequence  uint64              `json:"sequence"`
	Timestamp int64               `json:"timestamp"`
	Name      string              `json:"name"`
	Data      jsoniter.RawMessage `json:"data"`
}

// AppendAuditEvent marshals the given event payload and appends it to the audit log
func (s *State) AppendAuditEvent(name string, data interface{}, dbTx *bolt.Tx) error {
	insertFn := func(tx *bolt.Tx) error {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}

		bucket := tx.Bucket(auditEventsBucket)

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		event := &AuditEvent{
			Sequence:  seq,
			Timestamp: time.Now().Unix(),
			Name:      name,
			Data:      raw,
		}

		rawEvent, err := json.Marshal(event)
		if err != nil {
			return err
		}

		return bucket.Put(common.EncodeUint64ToBytes(seq), rawEvent)
	}

	if dbTx == nil {
		return s.db.Update(insertFn)
	}

	return insertFn(dbTx)
}

// AuditEvents returns up to limit most recently appended audit events, oldest first
func (s *State) AuditEvents(limit int) ([]*AuditEvent, error) {
	events := []*AuditEvent{}

	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(auditEventsBucket).Cursor()

		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var event *AuditEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}

			events = append(events, event)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	return events, nil
}
