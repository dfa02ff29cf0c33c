package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitfsorg/assetvault/errkind"
)

const (
	// SecureDir holds ciphertext blobs under the local root.
	SecureDir = "secure"

	// PublicDir holds plaintext blobs under the local root.
	PublicDir = "public"
)

// LocalBackend implements Backend using the local filesystem.
// Blobs are stored at {root}/secure/{storageKey} or {root}/public/{storageKey}.
type LocalBackend struct {
	root string
}

// Compile-time interface check.
var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend creates a local backend rooted at root. The root and its
// secure/public subdirectories are created if they do not exist.
func NewLocalBackend(root string) (*LocalBackend, error) {
	if root == "" {
		return nil, errkind.Configuration.Wrap(ErrInvalidBaseDir)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("%w: %w", ErrInvalidBaseDir, err))
	}

	for _, dir := range []string{SecureDir, PublicDir} {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0700); err != nil {
			return nil, errkind.Backend.Wrap(fmt.Errorf("%w: %w", ErrIOFailure, err))
		}
	}

	return &LocalBackend{root: abs}, nil
}

// Root returns the absolute storage root.
func (b *LocalBackend) Root() string { return b.root }

// Kind implements Backend.
func (b *LocalBackend) Kind() Kind { return KindLocal }

// validateStorageKey rejects keys that could address anything other than a
// single file directly inside the target directory.
func validateStorageKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return errkind.Validation.Wrap(fmt.Errorf("%w: %q", ErrInvalidStorageKey, key))
	}
	return nil
}

// Write stores blob under its storage key. The bytes go to a temporary file
// in the destination directory first and are renamed into place only after
// a successful sync, so a failed write never leaves a partial blob.
func (b *LocalBackend) Write(ctx context.Context, blob []byte, hint Hint) (*WriteResult, error) {
	if err := validateStorageKey(hint.StorageKey); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errkind.Backend.Wrap(err)
	}

	dir := filepath.Join(b.root, PublicDir)
	if hint.Secure {
		dir = filepath.Join(b.root, SecureDir)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errkind.Backend.Wrap(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}

	path := filepath.Join(dir, hint.StorageKey)
	if _, err := os.Stat(path); err == nil {
		return nil, errkind.Backend.Wrap(fmt.Errorf("%w: %s", ErrAlreadyExists, hint.StorageKey))
	}

	if err := writeFileAtomic(ctx, dir, path, blob); err != nil {
		return nil, err
	}

	res := &WriteResult{
		Locator:   Locator{Path: path},
		SizeBytes: int64(len(blob)),
	}
	if !hint.Secure {
		res.PublicURL = path
	}
	return res, nil
}

// writeFileAtomic writes data to a temp file in dir and renames it to path.
func writeFileAtomic(ctx context.Context, dir, path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errkind.Backend.Wrap(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return errkind.Backend.Wrap(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	if err = tmp.Sync(); err != nil {
		return errkind.Backend.Wrap(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	if err = tmp.Chmod(0600); err != nil {
		return errkind.Backend.Wrap(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	if err = tmp.Close(); err != nil {
		return errkind.Backend.Wrap(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	// Disk writes are not interruptible; honor a deadline that passed meanwhile.
	if err = ctx.Err(); err != nil {
		return errkind.Backend.Wrap(err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return errkind.Backend.Wrap(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	return nil
}

// resolve checks that loc addresses a file inside the storage root.
func (b *LocalBackend) resolve(loc Locator) (string, error) {
	if loc.Path == "" {
		return "", errkind.Validation.Wrap(fmt.Errorf("%w: empty path", ErrInvalidLocator))
	}
	path := filepath.Clean(loc.Path)
	rel, err := filepath.Rel(b.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", errkind.Validation.Wrap(fmt.Errorf("%w: %s", ErrOutsideRoot, loc.Path))
	}
	return path, nil
}

// Read retrieves the blob at loc.
func (b *LocalBackend) Read(ctx context.Context, loc Locator) ([]byte, error) {
	path, err := b.resolve(loc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errkind.Backend.Wrap(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errkind.Backend.Wrap(fmt.Errorf("%w: %s", ErrNotFound, loc.Path))
		}
		return nil, errkind.Backend.Wrap(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	return data, nil
}

// Delete removes the blob at loc.
func (b *LocalBackend) Delete(ctx context.Context, loc Locator) error {
	path, err := b.resolve(loc)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errkind.Backend.Wrap(fmt.Errorf("%w: %s", ErrNotFound, loc.Path))
		}
		return errkind.Backend.Wrap(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	return nil
}
