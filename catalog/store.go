package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store persists asset and namespace metadata.
type Store interface {
	// PutAsset stores a Ready asset. Returns ErrDuplicateAsset if the id exists.
	PutAsset(ctx context.Context, a *Asset) error

	// GetAsset retrieves an asset by id.
	GetAsset(ctx context.Context, id string) (*Asset, error)

	// ListAssets returns matching assets ordered by creation time.
	ListAssets(ctx context.Context, f Filter) ([]*Asset, error)

	// PutNamespace stores a namespace record. Returns ErrDuplicateNamespace
	// if the owner already has one.
	PutNamespace(ctx context.Context, rec *NamespaceRecord) error

	// GetNamespace retrieves the namespace record of an owner.
	GetNamespace(ctx context.Context, ownerID string) (*NamespaceRecord, error)

	// Close releases the underlying resources.
	Close() error
}

// checkPut validates an asset before it is persisted.
func checkPut(a *Asset) error {
	if a == nil {
		return fmt.Errorf("%w: asset", ErrNilParam)
	}
	if a.Status != StatusReady {
		return fmt.Errorf("%w: status %s", ErrNotReady, a.Status)
	}
	return a.Validate()
}

func checkNamespace(rec *NamespaceRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: namespace record", ErrNilParam)
	}
	if rec.OwnerID == "" || rec.NamespaceID == "" {
		return fmt.Errorf("%w: namespace record needs owner and namespace id", ErrNilParam)
	}
	return nil
}

func sortAssets(out []*Asset) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
}

func cloneAsset(a *Asset) *Asset {
	c := *a
	c.OwnerRefs = append([]OwnerRef(nil), a.OwnerRefs...)
	if a.Secure != nil {
		s := *a.Secure
		c.Secure = &s
	}
	if a.Public != nil {
		p := *a.Public
		c.Public = &p
	}
	return &c
}

// MemStore is an in-memory implementation of Store for testing.
type MemStore struct {
	mu         sync.RWMutex
	assets     map[string]*Asset
	namespaces map[string]*NamespaceRecord
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		assets:     make(map[string]*Asset),
		namespaces: make(map[string]*NamespaceRecord),
	}
}

// PutAsset implements Store.
func (s *MemStore) PutAsset(_ context.Context, a *Asset) error {
	if err := checkPut(a); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[a.ID]; ok {
		return ErrDuplicateAsset
	}
	s.assets[a.ID] = cloneAsset(a)
	return nil
}

// GetAsset implements Store.
func (s *MemStore) GetAsset(_ context.Context, id string) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}
	return cloneAsset(a), nil
}

// ListAssets implements Store.
func (s *MemStore) ListAssets(_ context.Context, f Filter) ([]*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Asset
	for _, a := range s.assets {
		if f.match(a) {
			out = append(out, cloneAsset(a))
		}
	}
	sortAssets(out)
	return out, nil
}

// PutNamespace implements Store.
func (s *MemStore) PutNamespace(_ context.Context, rec *NamespaceRecord) error {
	if err := checkNamespace(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.namespaces[rec.OwnerID]; ok {
		return ErrDuplicateNamespace
	}
	c := *rec
	s.namespaces[rec.OwnerID] = &c
	return nil
}

// GetNamespace implements Store.
func (s *MemStore) GetNamespace(_ context.Context, ownerID string) (*NamespaceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.namespaces[ownerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNamespaceNotFound, ownerID)
	}
	c := *rec
	return &c, nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
