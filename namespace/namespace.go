// Package namespace maps owners to per-owner folders on the remote backend.
//
// The catalog's uniqueness constraint on owner id is the source of truth:
// concurrent first uploads from one owner may both create or find a folder,
// but only one NamespaceRecord is ever written and every caller returns the
// winner's namespace id. A singleflight group collapses in-process
// duplicates so the common case issues a single provider round trip.
package namespace

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bitfsorg/assetvault/catalog"
	"github.com/bitfsorg/assetvault/errkind"
)

// DefaultMemoSize is the number of owner to namespace mappings kept in memory.
const DefaultMemoSize = 4096

// maxFolderName bounds the length of derived folder names.
const maxFolderName = 120

var unsafeFolderChars = regexp.MustCompile(`[^a-zA-Z0-9@._-]`)

// Owner identifies the uploader a namespace is provisioned for.
type Owner struct {
	ID       string
	Email    string
	Username string
}

// Ensurer resolves the namespace an owner's blobs are placed in.
type Ensurer interface {
	Ensure(ctx context.Context, owner Owner) (string, error)
}

// FolderCreator finds or creates a named folder under a parent.
// storage.RemoteBackend implements it.
type FolderCreator interface {
	FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error)
}

// Provisioner implements Ensurer against a remote backend and a catalog.
type Provisioner struct {
	folders FolderCreator
	store   catalog.Store
	rootID  string
	memo    *lru.Cache[string, string]
	group   singleflight.Group
	log     *zap.Logger
	now     func() time.Time
}

// Compile-time interface check.
var _ Ensurer = (*Provisioner)(nil)

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithClock overrides the clock used for folder-name fallbacks and record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Provisioner) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Provisioner) {
		if log != nil {
			p.log = log
		}
	}
}

// NewProvisioner creates a provisioner that places owner folders under rootID.
func NewProvisioner(folders FolderCreator, store catalog.Store, rootID string, memoSize int, opts ...Option) (*Provisioner, error) {
	if folders == nil || store == nil {
		return nil, errkind.Configuration.New("namespace: folder creator and store are required")
	}
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	memo, err := lru.New[string, string](memoSize)
	if err != nil {
		return nil, fmt.Errorf("namespace: create memo: %w", err)
	}
	p := &Provisioner{
		folders: folders,
		store:   store,
		rootID:  rootID,
		memo:    memo,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.Named("namespace")
	return p, nil
}

// Ensure returns the namespace id for owner, creating the folder and its
// record on first use. An owner without an id gets the root.
func (p *Provisioner) Ensure(ctx context.Context, owner Owner) (string, error) {
	if owner.ID == "" {
		return p.rootID, nil
	}
	if id, ok := p.memo.Get(owner.ID); ok {
		return id, nil
	}

	// The shared provisioning outlives any one caller's cancellation but
	// keeps the deadline of the caller that started it. Each caller still
	// stops waiting when its own context ends.
	ch := p.group.DoChan(owner.ID, func() (interface{}, error) {
		sctx, cancel := detach(ctx)
		defer cancel()
		return p.ensure(sctx, owner)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	sctx := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(sctx, deadline)
	}
	return sctx, func() {}
}

func (p *Provisioner) ensure(ctx context.Context, owner Owner) (string, error) {
	rec, err := p.store.GetNamespace(ctx, owner.ID)
	if err == nil {
		p.memo.Add(owner.ID, rec.NamespaceID)
		return rec.NamespaceID, nil
	}
	if !errors.Is(err, catalog.ErrNamespaceNotFound) {
		return "", errkind.Backend.Wrap(fmt.Errorf("namespace: lookup %s: %w", owner.ID, err))
	}

	name := FolderName(owner, p.now())
	folderID, err := p.folders.FindOrCreateFolder(ctx, name, p.rootID)
	if err != nil {
		return "", fmt.Errorf("namespace: provision %s: %w", owner.ID, err)
	}

	rec = &catalog.NamespaceRecord{
		OwnerID:           owner.ID,
		NamespaceID:       folderID,
		ParentNamespaceID: p.rootID,
		DisplayName:       name,
		CreatedAt:         p.now().UTC(),
	}
	err = p.store.PutNamespace(ctx, rec)
	switch {
	case err == nil:
		p.log.Info("provisioned namespace",
			zap.String("owner_id", owner.ID),
			zap.String("namespace_id", folderID),
			zap.String("folder", name))
	case errors.Is(err, catalog.ErrDuplicateNamespace):
		// Another process won the insert; its record is authoritative.
		winner, rerr := p.store.GetNamespace(ctx, owner.ID)
		if rerr != nil {
			return "", errkind.Backend.Wrap(fmt.Errorf("namespace: re-read %s: %w", owner.ID, rerr))
		}
		rec = winner
	default:
		return "", errkind.Backend.Wrap(fmt.Errorf("namespace: persist %s: %w", owner.ID, err))
	}

	p.memo.Add(owner.ID, rec.NamespaceID)
	return rec.NamespaceID, nil
}

// FolderName derives the folder name for owner: the sanitized email, else
// the sanitized username, else user-<id>, else user-<unix millis>.
func FolderName(owner Owner, now time.Time) string {
	if name := sanitize(owner.Email); name != "" {
		return name
	}
	if name := sanitize(owner.Username); name != "" {
		return name
	}
	if owner.ID != "" {
		return "user-" + owner.ID
	}
	return "user-" + strconv.FormatInt(now.UnixMilli(), 10)
}

func sanitize(s string) string {
	s = unsafeFolderChars.ReplaceAllString(s, "-")
	if len(s) > maxFolderName {
		s = s[:maxFolderName]
	}
	return s
}

// NoopProvisioner is used with the local backend, which has no namespaces.
type NoopProvisioner struct {
	RootID string
}

// Ensure implements Ensurer.
func (n NoopProvisioner) Ensure(context.Context, Owner) (string, error) {
	return n.RootID, nil
}
