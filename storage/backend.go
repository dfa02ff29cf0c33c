package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitfsorg/assetvault/errkind"
)

// Kind names a storage substrate.
type Kind string

const (
	// KindLocal stores blobs under a directory on local disk.
	KindLocal Kind = "local"

	// KindRemote stores blobs with a remote object-store provider.
	KindRemote Kind = "remote"
)

// ParseKind converts a configuration value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindLocal:
		return KindLocal, nil
	case KindRemote:
		return KindRemote, nil
	default:
		return "", errkind.Configuration.Wrap(fmt.Errorf("%w: %q", ErrUnknownBackend, s))
	}
}

// Locator is the backend-specific address of a stored blob.
// Local blobs set Path; remote blobs set ObjectID and, when placed in a
// folder, NamespaceID.
type Locator struct {
	Path        string
	ObjectID    string
	NamespaceID string
}

// Hint describes the blob being written.
type Hint struct {
	// StorageKey is the generated, unique name of the blob.
	StorageKey string

	// OriginalName and MimeType describe the uploaded file.
	OriginalName string
	MimeType     string

	// Secure is true when blob is ciphertext. Secure blobs are never made public.
	Secure bool

	// NamespaceID is the remote folder to place the blob in. Ignored by the
	// local backend; empty means the configured root.
	NamespaceID string
}

// WriteResult is returned by a successful Write.
type WriteResult struct {
	Locator   Locator
	SizeBytes int64

	// PublicURL is set only for non-secure blobs the backend can serve directly.
	PublicURL string
}

// Backend stores and fetches opaque blobs. Both implementations honor the
// same contract so the vault never branches on which one is active.
type Backend interface {
	// Kind reports which substrate the backend writes to.
	Kind() Kind

	// Write persists blob and returns its address. A failed Write leaves
	// nothing addressable.
	Write(ctx context.Context, blob []byte, hint Hint) (*WriteResult, error)

	// Read returns the bytes previously written at loc.
	Read(ctx context.Context, loc Locator) ([]byte, error)

	// Delete removes the blob at loc. Used to clean up blobs whose metadata
	// could not be persisted.
	Delete(ctx context.Context, loc Locator) error
}

// Options selects and configures a backend.
type Options struct {
	Kind Kind

	// LocalRoot is the storage root for KindLocal.
	LocalRoot string

	// RemoteRootID is the folder new blobs and namespaces are created under.
	RemoteRootID string

	// PublicURLTemplate builds public URLs for remote blobs; "{{fileId}}" is
	// replaced with the object id.
	PublicURLTemplate string
}
