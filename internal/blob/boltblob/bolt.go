// Package boltblob stores record bodies in a local bbolt file.
package boltblob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"pastebox/internal/blob"
)

const scheme = "bolt"

var bodyBucket = []byte("records")

type entry struct {
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store implements blob.Store backed by BoltDB.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

var _ blob.Store = (*Store)(nil)

// Open initializes a BoltDB-backed store located at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bodyBucket); err != nil {
			return fmt.Errorf("create records bucket: %w", err)
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Upload(ctx context.Context, key, text string) (string, error) {
	if err := s.put(ctx, key, text); err != nil {
		return "", err
	}
	return blob.Locator(scheme, string(bodyBucket), key), nil
}

func (s *Store) Update(ctx context.Context, key, text string) error {
	return s.put(ctx, key, text)
}

func (s *Store) put(ctx context.Context, key, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("boltblob: empty key")
	}
	data, err := json.Marshal(entry{Text: text, UpdatedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bodyBucket)
		if bucket == nil {
			return errors.New("records bucket missing")
		}
		if err := bucket.Put([]byte(key), data); err != nil {
			return fmt.Errorf("save body %s: %w", key, err)
		}
		return nil
	})
}

// Get retrieves a body by locator.
func (s *Store) Get(ctx context.Context, locator string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sch, container, key, err := blob.ParseLocator(locator)
	if err != nil {
		return "", err
	}
	if sch != scheme || container != string(bodyBucket) {
		return "", fmt.Errorf("boltblob: unsupported locator %q", locator)
	}

	var out string
	err = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bodyBucket)
		if bucket == nil {
			return errors.New("records bucket missing")
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return blob.ErrNotFound
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("unmarshal body: %w", err)
		}
		out = e.Text
		return nil
	})
	return out, err
}

// Delete removes a body. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bodyBucket)
		if bucket == nil {
			return errors.New("records bucket missing")
		}
		if err := bucket.Delete([]byte(key)); err != nil {
			return fmt.Errorf("delete body %s: %w", key, err)
		}
		return nil
	})
}

func (s *Store) List(ctx context.Context) ([]blob.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []blob.Object
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bodyBucket)
		if bucket == nil {
			return errors.New("records bucket missing")
		}
		return bucket.ForEach(func(k, v []byte) error {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshal body %s: %w", k, err)
			}
			out = append(out, blob.Object{Key: string(k), ModifiedAt: e.UpdatedAt})
			return nil
		})
	})
	return out, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
