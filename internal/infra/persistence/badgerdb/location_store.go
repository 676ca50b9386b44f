// Package badgerdb implements the local key-value persistence of the
// proximity engine on badger: the last-known self location and the cached
// nearby snapshots used by the offline tier.
package badgerdb

import (
	"context"
	"encoding/json"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"mandi/config"
	"mandi/internal/domain/entity"
	"mandi/internal/domain/repository"
)

const (
	lastKnownKey   = "location:last"
	nearbyPrefix   = "nearby:"
	snapshotMaxAge = 24 * time.Hour
)

// Store is a badger-backed repository.LocationStore.
type Store struct {
	db *badger.DB
}

// New opens the store at the configured path, or fully in memory.
func New(cfg *config.StorageConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Badger's own logger bypasses slog; keep it quiet.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger store")
	}

	return &Store{db: db}, nil
}

func (s *Store) SaveLastKnown(_ context.Context, loc entity.Location) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return errors.Wrap(err, "marshal location")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(lastKnownKey), data)
	})

	return errors.Wrap(err, "save last-known location")
}

func (s *Store) LastKnown(_ context.Context) (*entity.Location, error) {
	var loc entity.Location
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastKnownKey))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &loc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read last-known location")
	}

	return &loc, nil
}

func (s *Store) SaveNearbySnapshot(_ context.Context, key string, records []entity.CounterpartyRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(nearbyPrefix+key), data).WithTTL(snapshotMaxAge)

		return txn.SetEntry(entry)
	})

	return errors.Wrapf(err, "save nearby snapshot %s", key)
}

func (s *Store) NearbySnapshot(_ context.Context, key string) ([]entity.CounterpartyRecord, error) {
	var records []entity.CounterpartyRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(nearbyPrefix + key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &records)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read nearby snapshot %s", key)
	}

	return records, nil
}

func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "close badger store")
}
