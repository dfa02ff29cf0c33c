package catalog

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var (
	bucketAssets     = []byte("assets")
	bucketNamespaces = []byte("namespaces")
)

// BoltStore persists catalog records in a bbolt database. Keys are asset
// ids and owner ids; bbolt's single-writer transactions make the
// duplicate checks in PutAsset and PutNamespace atomic.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("catalog: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAssets, bucketNamespaces} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// PutAsset stores a Ready asset keyed by id.
func (s *BoltStore) PutAsset(ctx context.Context, a *Asset) error {
	if err := checkPut(a); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAssets)
		if b.Get([]byte(a.ID)) != nil {
			return ErrDuplicateAsset
		}
		data, err := encodeGob(a)
		if err != nil {
			return fmt.Errorf("encode asset: %w", err)
		}
		if err := b.Put([]byte(a.ID), data); err != nil {
			return fmt.Errorf("boltstore: put asset: %w", err)
		}
		return nil
	})
}

// GetAsset retrieves an asset by id.
func (s *BoltStore) GetAsset(_ context.Context, id string) (*Asset, error) {
	var a Asset
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAssets).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrAssetNotFound, id)
		}
		if err := decodeGob(data, &a); err != nil {
			return fmt.Errorf("boltstore: decode asset: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAssets scans every asset and returns those matching f.
func (s *BoltStore) ListAssets(_ context.Context, f Filter) ([]*Asset, error) {
	var out []*Asset
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAssets).ForEach(func(_, v []byte) error {
			var a Asset
			if err := decodeGob(v, &a); err != nil {
				return fmt.Errorf("boltstore: decode asset: %w", err)
			}
			if f.match(&a) {
				out = append(out, &a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortAssets(out)
	return out, nil
}

// PutNamespace stores rec keyed by owner id. The first writer wins.
func (s *BoltStore) PutNamespace(_ context.Context, rec *NamespaceRecord) error {
	if err := checkNamespace(rec); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNamespaces)
		if b.Get([]byte(rec.OwnerID)) != nil {
			return ErrDuplicateNamespace
		}
		data, err := encodeGob(rec)
		if err != nil {
			return fmt.Errorf("encode namespace: %w", err)
		}
		if err := b.Put([]byte(rec.OwnerID), data); err != nil {
			return fmt.Errorf("boltstore: put namespace: %w", err)
		}
		return nil
	})
}

// GetNamespace retrieves the namespace record of an owner.
func (s *BoltStore) GetNamespace(_ context.Context, ownerID string) (*NamespaceRecord, error) {
	var rec NamespaceRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketNamespaces).Get([]byte(ownerID))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNamespaceNotFound, ownerID)
		}
		if err := decodeGob(data, &rec); err != nil {
			return fmt.Errorf("boltstore: decode namespace: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
