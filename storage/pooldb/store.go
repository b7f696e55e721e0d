package pooldb

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"tranchepool/native/epoch"
	"tranchepool/native/firstloss"
)

var (
	bucketPool   = []byte("pool")
	bucketCovers = []byte("covers")

	keyPoolState = []byte("state")
)

// Store persists the pool settlement state and the first-loss cover states in
// a BoltDB file. It satisfies both the epoch manager's and the first-loss
// engines' state interfaces, making it a drop-in durable replacement for the
// in-memory backend.
type Store struct {
	db *bolt.DB
}

// NewStore opens (and migrates) the BoltDB-backed store at path.
func NewStore(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPool, bucketCovers} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetPoolState loads the persisted pool state. A missing record yields a nil
// state, which callers treat as an empty pool.
func (s *Store) GetPoolState() (*epoch.PoolState, error) {
	var state *epoch.PoolState
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketPool).Get(keyPoolState)
		if raw == nil {
			return nil
		}
		decoded := new(epoch.PoolState)
		if err := json.Unmarshal(raw, decoded); err != nil {
			return fmt.Errorf("pooldb: decoding pool state: %w", err)
		}
		state = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// PutPoolState stores the pool state atomically.
func (s *Store) PutPoolState(state *epoch.PoolState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("pooldb: encoding pool state: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPool).Put(keyPoolState, raw)
	})
}

// GetCoverState loads the state of the named first-loss cover. A missing
// record yields a nil state.
func (s *Store) GetCoverState(name string) (*firstloss.State, error) {
	var state *firstloss.State
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketCovers).Get([]byte(name))
		if raw == nil {
			return nil
		}
		decoded := new(firstloss.State)
		if err := json.Unmarshal(raw, decoded); err != nil {
			return fmt.Errorf("pooldb: decoding cover state %q: %w", name, err)
		}
		state = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// PutCoverState stores the named cover state atomically.
func (s *Store) PutCoverState(name string, state *firstloss.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("pooldb: encoding cover state %q: %w", name, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCovers).Put([]byte(name), raw)
	})
}
