package store

import (
	"errors"
	"math/big"

	bolt "go.etcd.io/bbolt"

	"github.com/omniward/omniward/helper/common"
	"github.com/omniward/omniward/types"
)

var (
	// ErrCollectionNotFound is returned when the collection is not registered in the vault
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists is returned on an attempt to register the same collection twice
	ErrCollectionExists = errors.New("collection already exists")
	// ErrTokenNotFound is returned when the token has never been minted or was burned
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExists is returned on an attempt to mint an already existing token
	ErrTokenExists = errors.New("token already exists")
)

// Collection describes a single asset collection held by the vault
type Collection struct {
	Address types.Address `json:"address"`
	Name    string        `json:"name"`
	Symbol  string        `json:"symbol"`
	Minter  types.Address `json:"minter"`
}

// Token is a single non-fungible asset
type Token struct {
	Collection types.Address `json:"collection"`
	ID         uint64        `json:"id"`
	Owner      types.Address `json:"owner"`
	URI        string        `json:"uri"`
}

// VaultStore persists collections, tokens and the fee token ledger
type VaultStore struct {
	db *bolt.DB
}

func tokenKey(collection types.Address, tokenID uint64) []byte {
	return append(collection.Bytes(), common.EncodeUint64ToBytes(tokenID)...)
}

func (v *VaultStore) inUpdate(dbTx *bolt.Tx, fn func(tx *bolt.Tx) error) error {
	if dbTx == nil {
		return v.db.Update(fn)
	}

	return fn(dbTx)
}

func (v *VaultStore) inView(dbTx *bolt.Tx, fn func(tx *bolt.Tx) error) error {
	if dbTx == nil {
		return v.db.View(fn)
	}

	return fn(dbTx)
}

// InsertCollection registers a new collection, failing if the address is taken
func (v *VaultStore) InsertCollection(collection *Collection, dbTx *bolt.Tx) error {
	return v.inUpdate(dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(collectionsBucket)

		if bucket.Get(collection.Address.Bytes()) != nil {
			return ErrCollectionExists
		}

		raw, err := json.Marshal(collection)
		if err != nil {
			return err
		}

		return bucket.Put(collection.Address.Bytes(), raw)
	})
}

// GetCollection returns the collection registered on the given address
func (v *VaultStore) GetCollection(address types.Address, dbTx *bolt.Tx) (*Collection, error) {
	var collection *Collection

	err := v.inView(dbTx, func(tx *bolt.Tx) error {
		val := tx.Bucket(collectionsBucket).Get(address.Bytes())
		if val == nil {
			return ErrCollectionNotFound
		}

		return json.Unmarshal(val, &collection)
	})
	if err != nil {
		return nil, err
	}

	return collection, nil
}

// InsertToken writes a newly minted token, failing if it already exists
func (v *VaultStore) InsertToken(token *Token, dbTx *bolt.Tx) error {
	return v.inUpdate(dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(tokensBucket)
		key := tokenKey(token.Collection, token.ID)

		if bucket.Get(key) != nil {
			return ErrTokenExists
		}

		raw, err := json.Marshal(token)
		if err != nil {
			return err
		}

		return bucket.Put(key, raw)
	})
}

// UpdateTokenOwner rewrites the owner of an existing token
func (v *VaultStore) UpdateTokenOwner(
	collection types.Address, tokenID uint64, owner types.Address, dbTx *bolt.Tx) error {
	return v.inUpdate(dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(tokensBucket)
		key := tokenKey(collection, tokenID)

		val := bucket.Get(key)
		if val == nil {
			return ErrTokenNotFound
		}

		var token *Token
		if err := json.Unmarshal(val, &token); err != nil {
			return err
		}

		token.Owner = owner

		raw, err := json.Marshal(token)
		if err != nil {
			return err
		}

		return bucket.Put(key, raw)
	})
}

// DeleteToken removes a burned token
func (v *VaultStore) DeleteToken(collection types.Address, tokenID uint64, dbTx *bolt.Tx) error {
	return v.inUpdate(dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(tokensBucket)
		key := tokenKey(collection, tokenID)

		if bucket.Get(key) == nil {
			return ErrTokenNotFound
		}

		return bucket.Delete(key)
	})
}

// GetToken returns the token stored for (collection, id)
func (v *VaultStore) GetToken(collection types.Address, tokenID uint64, dbTx *bolt.Tx) (*Token, error) {
	var token *Token

	err := v.inView(dbTx, func(tx *bolt.Tx) error {
		val := tx.Bucket(tokensBucket).Get(tokenKey(collection, tokenID))
		if val == nil {
			return ErrTokenNotFound
		}

		return json.Unmarshal(val, &token)
	})
	if err != nil {
		return nil, err
	}

	return token, nil
}

// GetFeeBalance returns the fee token balance of the given account
func (v *VaultStore) GetFeeBalance(account types.Address, dbTx *bolt.Tx) (*big.Int, error) {
	balance := big.NewInt(0)

	err := v.inView(dbTx, func(tx *bolt.Tx) error {
		val := tx.Bucket(feeBalancesBucket).Get(account.Bytes())
		if val == nil {
			return nil
		}

		parsed, ok := new(big.Int).SetString(string(val), 10)
		if !ok {
			return errors.New("corrupted fee balance entry")
		}

		balance = parsed

		return nil
	})
	if err != nil {
		return nil, err
	}

	return balance, nil
}

// SetFeeBalance overwrites the fee token balance of the given account
func (v *VaultStore) SetFeeBalance(account types.Address, balance *big.Int, dbTx *bolt.Tx) error {
	return v.inUpdate(dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(feeBalancesBucket).Put(account.Bytes(), []byte(balance.String()))
	})
}
