package store

import (
	bolt "go.etcd.io/bbolt"
)

var accessSnapshotKey = []byte("accessSnapshot")

// AccessStore persists the access manager snapshot so that role grants and
// function bindings survive a node restart. The snapshot format is owned by
// the access manager, the store treats it as an opaque blob.
type AccessStore struct {
	db *bolt.DB
}

// SaveSnapshot overwrites the persisted access manager snapshot
func (a *AccessStore) SaveSnapshot(raw []byte, dbTx *bolt.Tx) error {
	saveFn := func(tx *bolt.Tx) error {
		return tx.Bucket(accessBucket).Put(accessSnapshotKey, raw)
	}

	if dbTx == nil {
		return a.db.Update(saveFn)
	}

	return saveFn(dbTx)
}

// LoadSnapshot returns the persisted snapshot, or nil if none was ever saved
func (a *AccessStore) LoadSnapshot() ([]byte, error) {
	var raw []byte

	err := a.db.View(func(tx *bolt.Tx) error {
		if val := tx.Bucket(accessBucket).Get(accessSnapshotKey); val != nil {
			raw = append([]byte{}, val...)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return raw, nil
}
