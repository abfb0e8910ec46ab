package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/receipt-pipeline/internal/receipt"
)

const recordsBucket = "records"

// Store defines the durable offline persistence surface for scan results.
type Store interface {
	// Put saves a record under the given cache identity key.
	Put(key string, record *receipt.Record) error

	// List returns all stored records, sorted by receipt date descending.
	List() ([]*receipt.Record, error)

	// ClearPrefix removes every record whose key starts with prefix. An
	// empty prefix clears the whole store.
	ClearPrefix(prefix string) error

	// Close closes the store.
	Close() error
}

// BoltStore implements the Store interface using BoltDB.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a new BoltStore instance.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Put saves a record under the given key.
func (b *BoltStore) Put(key string, record *receipt.Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return bucket.Put([]byte(key), data)
	})
}

// List returns all records, newest receipt date first.
func (b *BoltStore) List() ([]*receipt.Record, error) {
	records := make([]*receipt.Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var record receipt.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// ISO dates sort lexically.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date > records[j].Date
	})
	return records, nil
}

// ClearPrefix removes every record whose key starts with prefix.
func (b *BoltStore) ClearPrefix(prefix string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		c := bucket.Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
