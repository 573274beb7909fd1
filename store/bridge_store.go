package store

import (
	"errors"

	bolt "go.etcd.io/bbolt"

	"github.com/omniward/omniward/helper/common"
	"github.com/omniward/omniward/types"
)

// RampType designates the traffic direction of a chain setting
type RampType uint8

const (
	// OnRamp marks the sending direction, local chain to remote chain
	OnRamp RampType = iota
	// OffRamp marks the receiving direction, remote chain to local chain
	OffRamp
)

func (r RampType) String() string {
	if r == OnRamp {
		return "OnRamp"
	}

	return "OffRamp"
}

var (
	// ErrSettingNotFound is returned when no chain setting exists for the requested key
	ErrSettingNotFound = errors.New("chain setting not found")
	// ErrWrappedAssetNotFound is returned when no wrapped asset record exists
	ErrWrappedAssetNotFound = errors.New("wrapped asset record not found")
)

// ChainSetting is the route table entry for a single (remote chain, direction) pair
type ChainSetting struct {
	EvmChainID    uint64        `json:"evmChainId"`
	RouterChainID uint64        `json:"routerChainId"`
	Adapter       types.Address `json:"adapter"`
	Ramp          RampType      `json:"ramp"`
	Enabled       bool          `json:"enabled"`
	GasLimit      uint64        `json:"gasLimit"`
}

// WrappedAssetRecord maps an origin asset to its locally deployed wrapped representation
type WrappedAssetRecord struct {
	OriginChainID  uint64        `json:"originChainId"`
	OriginAddress  types.Address `json:"originAddress"`
	WrappedAddress types.Address `json:"wrappedAddress"`
}

// BridgeStore persists chain settings and wrapped asset records
type BridgeStore struct {
	db *bolt.DB
}

func chainSettingKey(evmChainID uint64, ramp RampType) []byte {
	return append(common.EncodeUint64ToBytes(evmChainID), byte(ramp))
}

func wrappedAssetKey(originChainID uint64, originAddress types.Address) []byte {
	return append(common.EncodeUint64ToBytes(originChainID), originAddress.Bytes()...)
}

// InsertChainSetting writes the route entry for its (evm chain id, ramp) key,
// overwriting any previous entry, and maintains the router chain index
func (b *BridgeStore) InsertChainSetting(setting *ChainSetting, dbTx *bolt.Tx) error {
	insertFn := func(tx *bolt.Tx) error {
		raw, err := json.Marshal(setting)
		if err != nil {
			return err
		}

		key := chainSettingKey(setting.EvmChainID, setting.Ramp)
		if err := tx.Bucket(chainSettingsBucket).Put(key, raw); err != nil {
			return err
		}

		routerKey := append(common.EncodeUint64ToBytes(setting.RouterChainID), byte(setting.Ramp))

		return tx.Bucket(routerChainsBucket).Put(routerKey, common.EncodeUint64ToBytes(setting.EvmChainID))
	}

	if dbTx == nil {
		return b.db.Update(insertFn)
	}

	return insertFn(dbTx)
}

// GetChainSetting returns the route entry for the given key, or ErrSettingNotFound
func (b *BridgeStore) GetChainSetting(evmChainID uint64, ramp RampType, dbTx *bolt.Tx) (*ChainSetting, error) {
	var setting *ChainSetting

	getFn := func(tx *bolt.Tx) error {
		val := tx.Bucket(chainSettingsBucket).Get(chainSettingKey(evmChainID, ramp))
		if val == nil {
			return ErrSettingNotFound
		}

		return json.Unmarshal(val, &setting)
	}

	var err error
	if dbTx == nil {
		err = b.db.View(getFn)
	} else {
		err = getFn(dbTx)
	}

	if err != nil {
		return nil, err
	}

	return setting, nil
}

// GetChainSettingByRouterChain resolves a router assigned chain id to the route entry
// registered for it in the given direction
func (b *BridgeStore) GetChainSettingByRouterChain(
	routerChainID uint64, ramp RampType, dbTx *bolt.Tx) (*ChainSetting, error) {
	var setting *ChainSetting

	getFn := func(tx *bolt.Tx) error {
		routerKey := append(common.EncodeUint64ToBytes(routerChainID), byte(ramp))

		rawID := tx.Bucket(routerChainsBucket).Get(routerKey)
		if rawID == nil {
			return ErrSettingNotFound
		}

		val := tx.Bucket(chainSettingsBucket).Get(chainSettingKey(common.EncodeBytesToUint64(rawID), ramp))
		if val == nil {
			return ErrSettingNotFound
		}

		return json.Unmarshal(val, &setting)
	}

	var err error
	if dbTx == nil {
		err = b.db.View(getFn)
	} else {
		err = getFn(dbTx)
	}

	if err != nil {
		return nil, err
	}

	return setting, nil
}

// ChainSettings iterates all route entries, ordered by key
func (b *BridgeStore) ChainSettings() ([]*ChainSetting, error) {
	settings := []*ChainSetting{}

	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(chainSettingsBucket).ForEach(func(k, v []byte) error {
			var setting *ChainSetting
			if err := json.Unmarshal(v, &setting); err != nil {
				return err
			}

			settings = append(settings, setting)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return settings, nil
}

// InsertWrappedAsset writes the wrapped asset record if, and only if, no record
// exists yet for its origin key. Returns the stored record and whether it was created.
func (b *BridgeStore) InsertWrappedAsset(
	record *WrappedAssetRecord, dbTx *bolt.Tx) (*WrappedAssetRecord, bool, error) {
	var (
		stored  *WrappedAssetRecord
		created bool
	)

	insertFn := func(tx *bolt.Tx) error {
		key := wrappedAssetKey(record.OriginChainID, record.OriginAddress)

		if val := tx.Bucket(wrappedAssetsBucket).Get(key); val != nil {
			return json.Unmarshal(val, &stored)
		}

		raw, err := json.Marshal(record)
		if err != nil {
			return err
		}

		if err := tx.Bucket(wrappedAssetsBucket).Put(key, raw); err != nil {
			return err
		}

		if err := tx.Bucket(wrappedOriginsBucket).Put(record.WrappedAddress.Bytes(), raw); err != nil {
			return err
		}

		stored = record
		created = true

		return nil
	}

	var err error
	if dbTx == nil {
		err = b.db.Update(insertFn)
	} else {
		err = insertFn(dbTx)
	}

	if err != nil {
		return nil, false, err
	}

	return stored, created, nil
}

// GetWrappedAsset returns the record for the given origin key, or ErrWrappedAssetNotFound
func (b *BridgeStore) GetWrappedAsset(
	originChainID uint64, originAddress types.Address, dbTx *bolt.Tx) (*WrappedAssetRecord, error) {
	var record *WrappedAssetRecord

	getFn := func(tx *bolt.Tx) error {
		val := tx.Bucket(wrappedAssetsBucket).Get(wrappedAssetKey(originChainID, originAddress))
		if val == nil {
			return ErrWrappedAssetNotFound
		}

		return json.Unmarshal(val, &record)
	}

	var err error
	if dbTx == nil {
		err = b.db.View(getFn)
	} else {
		err = getFn(dbTx)
	}

	if err != nil {
		return nil, err
	}

	return record, nil
}

// GetWrappedOrigin performs the reverse lookup, wrapped address to origin record
func (b *BridgeStore) GetWrappedOrigin(
	wrappedAddress types.Address, dbTx *bolt.Tx) (*WrappedAssetRecord, error) {
	var record *WrappedAssetRecord

	getFn := func(tx *bolt.Tx) error {
		val := tx.Bucket(wrappedOriginsBucket).Get(wrappedAddress.Bytes())
		if val == nil {
			return ErrWrappedAssetNotFound
		}

		return json.Unmarshal(val, &record)
	}

	var err error
	if dbTx == nil {
		err = b.db.View(getFn)
	} else {
		err = getFn(dbTx)
	}

	if err != nil {
		return nil, err
	}

	return record, nil
}
