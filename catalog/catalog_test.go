package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/assetvault/storage"
)

func tempBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "nested", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("bolt", func(t *testing.T) { fn(t, tempBoltStore(t)) })
	t.Run("mem", func(t *testing.T) { fn(t, NewMemStore()) })
}

var testChecksum = strings.Repeat("ab", 32)

func readySecure(id string, created time.Time) *Asset {
	a := NewSecureAsset(id, SecureParams{Algorithm: "aes-256-gcm", Nonce: "00112233445566778899aabb", AuthTag: strings.Repeat("cd", 16)})
	a.StorageKey = "1700000000000-0123456789ab.bin"
	a.Backend = storage.KindLocal
	a.Locator = storage.Locator{Path: "/data/secure/" + a.StorageKey}
	a.OriginalName = "plan.pdf"
	a.MimeType = "application/pdf"
	a.SizeBytes = 11
	a.Checksum = testChecksum
	a.CreatedAt = created
	a.Status = StatusReady
	return a
}

func readyPublic(id, url string, created time.Time) *Asset {
	a := NewPublicAsset(id, url)
	a.StorageKey = "1700000000000-ba9876543210.png"
	a.Backend = storage.KindRemote
	a.Locator = storage.Locator{ObjectID: "obj-" + id, NamespaceID: "ns-1"}
	a.Checksum = testChecksum
	a.CreatedAt = created
	a.Status = StatusReady
	return a
}

// ---------------------------------------------------------------------------
// Asset tests
// ---------------------------------------------------------------------------

func TestAsset_Variants(t *testing.T) {
	s := NewSecureAsset("a", SecureParams{Nonce: "n", AuthTag: "t"})
	assert.True(t, s.IsSecure())
	assert.Empty(t, s.PublicURL())
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, DefaultKind, s.Kind)

	p := NewPublicAsset("b", "https://example.com/b")
	assert.False(t, p.IsSecure())
	assert.Equal(t, "https://example.com/b", p.PublicURL())
}

func TestAsset_Transition(t *testing.T) {
	a := NewPublicAsset("a", "")
	require.NoError(t, a.Transition(StatusReady))
	assert.Equal(t, StatusReady, a.Status)
	assert.ErrorIs(t, a.Transition(StatusFailed), ErrInvalidTransition, "only one transition is allowed")

	b := NewPublicAsset("b", "")
	assert.ErrorIs(t, b.Transition(StatusPending), ErrInvalidTransition)
	require.NoError(t, b.Transition(StatusFailed))
}

func TestAsset_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		mutate func(a *Asset)
	}{
		{"no id", func(a *Asset) { a.ID = "" }},
		{"no storage key", func(a *Asset) { a.StorageKey = "" }},
		{"both variants", func(a *Asset) { a.Public = &PublicParams{} }},
		{"no variant", func(a *Asset) { a.Secure = nil }},
		{"missing nonce", func(a *Asset) { a.Secure.Nonce = "" }},
		{"short checksum", func(a *Asset) { a.Checksum = "abc" }},
	}
	require.NoError(t, readySecure("ok", now).Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := readySecure("x", now)
			tt.mutate(a)
			assert.ErrorIs(t, a.Validate(), ErrInvalidAsset)
		})
	}
}

func TestParseOwnerRef(t *testing.T) {
	ref, err := ParseOwnerRef("listing:42")
	require.NoError(t, err)
	assert.Equal(t, OwnerRef{Type: "listing", ID: "42"}, ref)
	assert.Equal(t, "listing:42", ref.String())

	ref, err = ParseOwnerRef(" order:a:b ")
	require.NoError(t, err)
	assert.Equal(t, OwnerRef{Type: "order", ID: "a:b"}, ref)

	for _, bad := range []string{"", "listing", ":42", "listing:"} {
		_, err := ParseOwnerRef(bad)
		assert.ErrorIs(t, err, ErrInvalidOwnerRef, bad)
	}
}

// ---------------------------------------------------------------------------
// Store tests
// ---------------------------------------------------------------------------

func TestStore_PutGetAsset(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		a := readySecure("asset-1", created)
		a.OwnerRefs = []OwnerRef{{Type: "listing", ID: "7"}}
		require.NoError(t, s.PutAsset(ctx, a))

		got, err := s.GetAsset(ctx, "asset-1")
		require.NoError(t, err)
		assert.True(t, got.IsSecure())
		assert.Nil(t, got.Public)
		assert.Equal(t, a.Secure, got.Secure)
		assert.Equal(t, a.Locator, got.Locator)
		assert.Equal(t, a.OwnerRefs, got.OwnerRefs)
		assert.True(t, created.Equal(got.CreatedAt))
		assert.Equal(t, StatusReady, got.Status)

		p := readyPublic("asset-2", "https://example.com/x", created)
		require.NoError(t, s.PutAsset(ctx, p))
		got, err = s.GetAsset(ctx, "asset-2")
		require.NoError(t, err)
		assert.False(t, got.IsSecure())
		assert.Equal(t, "https://example.com/x", got.PublicURL())
	})
}

func TestStore_PutAssetRejects(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := readySecure("dup", time.Now())
		require.NoError(t, s.PutAsset(ctx, a))
		assert.ErrorIs(t, s.PutAsset(ctx, a), ErrDuplicateAsset)

		pending := readySecure("pending", time.Now())
		pending.Status = StatusPending
		assert.ErrorIs(t, s.PutAsset(ctx, pending), ErrNotReady)

		invalid := readySecure("invalid", time.Now())
		invalid.Public = &PublicParams{}
		assert.ErrorIs(t, s.PutAsset(ctx, invalid), ErrInvalidAsset)

		assert.ErrorIs(t, s.PutAsset(ctx, nil), ErrNilParam)

		_, err := s.GetAsset(ctx, "pending")
		assert.ErrorIs(t, err, ErrAssetNotFound)
	})
}

func TestStore_ListAssets(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		listing := OwnerRef{Type: "listing", ID: "1"}

		a := readySecure("a", base.Add(2*time.Hour))
		a.OwnerRefs = []OwnerRef{listing}
		b := readyPublic("b", "", base)
		b.Kind = "plan-render"
		b.OwnerRefs = []OwnerRef{listing, {Type: "order", ID: "9"}}
		c := readySecure("c", base.Add(time.Hour))
		for _, x := range []*Asset{a, b, c} {
			require.NoError(t, s.PutAsset(ctx, x))
		}

		all, err := s.ListAssets(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"b", "c", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

		byKind, err := s.ListAssets(ctx, Filter{Kind: DefaultKind})
		require.NoError(t, err)
		assert.Len(t, byKind, 2)

		byOwner, err := s.ListAssets(ctx, Filter{OwnerRef: &listing})
		require.NoError(t, err)
		require.Len(t, byOwner, 2)
		assert.Equal(t, "b", byOwner[0].ID)

		both, err := s.ListAssets(ctx, Filter{Kind: "plan-render", OwnerRef: &listing})
		require.NoError(t, err)
		require.Len(t, both, 1)
		assert.Equal(t, "b", both[0].ID)
	})
}

func TestStore_Namespaces(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.GetNamespace(ctx, "owner-1")
		assert.ErrorIs(t, err, ErrNamespaceNotFound)

		rec := &NamespaceRecord{OwnerID: "owner-1", NamespaceID: "folder-1", ParentNamespaceID: "root", DisplayName: "alice", CreatedAt: time.Now().UTC()}
		require.NoError(t, s.PutNamespace(ctx, rec))

		err = s.PutNamespace(ctx, &NamespaceRecord{OwnerID: "owner-1", NamespaceID: "folder-2"})
		assert.ErrorIs(t, err, ErrDuplicateNamespace)

		got, err := s.GetNamespace(ctx, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, "folder-1", got.NamespaceID, "first writer wins")
		assert.Equal(t, "root", got.ParentNamespaceID)

		assert.ErrorIs(t, s.PutNamespace(ctx, &NamespaceRecord{OwnerID: "x"}), ErrNilParam)
	})
}

func TestStore_ConcurrentNamespaceInsert(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const k = 16
		results := make([]error, k)
		var g errgroup.Group
		for i := 0; i < k; i++ {
			i := i
			g.Go(func() error {
				results[i] = s.PutNamespace(ctx, &NamespaceRecord{OwnerID: "shared", NamespaceID: fmt.Sprintf("folder-%d", i)})
				return nil
			})
		}
		require.NoError(t, g.Wait())

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, ErrDuplicateNamespace)
		}
		assert.Equal(t, 1, wins)
	})
}

func TestMemStore_ReturnsCopies(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	a := readySecure("a", time.Now())
	require.NoError(t, s.PutAsset(ctx, a))

	a.Secure.Nonce = "changed"
	got, err := s.GetAsset(ctx, "a")
	require.NoError(t, err)
	assert.NotEqual(t, "changed", got.Secure.Nonce)
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PutAsset(ctx, readySecure("persisted", time.Now())))
	require.NoError(t, s.PutNamespace(ctx, &NamespaceRecord{OwnerID: "o", NamespaceID: "n"}))
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.GetAsset(ctx, "persisted")
	require.NoError(t, err)
	rec, err := s.GetNamespace(ctx, "o")
	require.NoError(t, err)
	assert.Equal(t, "n", rec.NamespaceID)
}
