package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

const checkpointBucket = "checkpoints"

// boltStore implements a Checkpoint backed by BoltDB.
type boltStore struct {
	db  *bolt.DB
	key []byte
}

// openBolt initializes a BoltDB-backed Checkpoint.
func openBolt(path string, opts Options) (Checkpoint, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(checkpointBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db, key: []byte(opts.Key)}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Read returns the stored checkpoint value.
func (b *boltStore) Read(context.Context) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(checkpointBucket))
		if bucket == nil {
			return fmt.Errorf("checkpoint bucket missing")
		}
		raw := bucket.Get(b.key)
		if len(raw) == 0 {
			return nil
		}
		value, ok = string(raw), true
		return nil
	})
	return value, ok, err
}

// Write stores the checkpoint value, replacing the previous one.
func (b *boltStore) Write(_ context.Context, value string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(checkpointBucket))
		if bucket == nil {
			return fmt.Errorf("checkpoint bucket missing")
		}
		return bucket.Put(b.key, []byte(value))
	})
}
