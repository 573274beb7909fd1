package store

import (
	"errors"

	bolt "go.etcd.io/bbolt"

	"github.com/omniward/omniward/types"
)

var (
	// ErrAppNotFound is returned when no app exists for the requested id
	ErrAppNotFound = errors.New("app not found")
	// ErrAppExists is returned when the app address was already registered
	ErrAppExists = errors.New("app already exists")
)

// App is a registered integration entry of the hub registry
type App struct {
	ID      string        `json:"id"`
	Address types.Address `json:"address"`
	Type    string        `json:"type"`
}

// HubStore persists the hub app registry
type HubStore struct {
	db *bolt.DB
}

// InsertApp registers a new app, enforcing address uniqueness
func (h *HubStore) InsertApp(app *App, dbTx *bolt.Tx) error {
	insertFn := func(tx *bolt.Tx) error {
		addresses := tx.Bucket(appAddressesBucket)

		if addresses.Get(app.Address.Bytes()) != nil {
			return ErrAppExists
		}

		raw, err := json.Marshal(app)
		if err != nil {
			return err
		}

		if err := tx.Bucket(appsBucket).Put([]byte(app.ID), raw); err != nil {
			return err
		}

		return addresses.Put(app.Address.Bytes(), []byte(app.ID))
	}

	if dbTx == nil {
		return h.db.Update(insertFn)
	}

	return insertFn(dbTx)
}

// GetApp returns the app registered under the given id
func (h *HubStore) GetApp(id string) (*App, error) {
	var app *App

	err := h.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(appsBucket).Get([]byte(id))
		if val == nil {
			return ErrAppNotFound
		}

		return json.Unmarshal(val, &app)
	})
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Apps iterates all registered apps
func (h *HubStore) Apps() ([]*App, error) {
	apps := []*App{}

	err := h.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(appsBucket).ForEach(func(k, v []byte) error {
			var app *App
			if err := json.Unmarshal(v, &app); err != nil {
				return err
			}

			apps = append(apps, app)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return apps, nil
}
