package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"poseidon/internal/dto"

	"github.com/dgraph-io/badger/v3"
)

const trackerKeyPrefix = "tp:"

// TrackerStateRepository persists tracker snapshots as a key-value store, one key per symbol.
type TrackerStateRepository interface {
	Save(state *dto.PositionTrackState) error
	Load(symbol string) (*dto.PositionTrackState, error)
	LoadAll() ([]*dto.PositionTrackState, error)
	Delete(symbol string) error
	Close() error
}

type badgerTrackerStateRepository struct {
	db *badger.DB
}

// NewTrackerStateRepository opens badger at path. An empty path runs in memory.
func NewTrackerStateRepository(path string) (TrackerStateRepository, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracker state store: %w", err)
	}
	return &badgerTrackerStateRepository{db: db}, nil
}

func trackerKey(symbol string) []byte {
	return []byte(trackerKeyPrefix + symbol)
}

func (r *badgerTrackerStateRepository) Save(state *dto.PositionTrackState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(trackerKey(state.Symbol), data)
	})
}

// Load returns (nil, nil) when the symbol has no snapshot.
func (r *badgerTrackerStateRepository) Load(symbol string) (*dto.PositionTrackState, error) {
	var state dto.PositionTrackState
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(trackerKey(symbol))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *badgerTrackerStateRepository) LoadAll() ([]*dto.PositionTrackState, error) {
	var states []*dto.PositionTrackState
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(trackerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var state dto.PositionTrackState
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &state)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			states = append(states, &state)
		}
		return nil
	})
	return states, err
}

func (r *badgerTrackerStateRepository) Delete(symbol string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(trackerKey(symbol))
	})
}

func (r *badgerTrackerStateRepository) Close() error {
	return r.db.Close()
}
