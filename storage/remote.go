package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/bitfsorg/assetvault/errkind"
)

const (
	// DefaultPublicURLTemplate is the Drive direct-download URL for a file id.
	DefaultPublicURLTemplate = "https://drive.google.com/uc?id={{fileId}}"

	// FolderMimeType is the Drive MIME type for folders.
	FolderMimeType = "application/vnd.google-apps.folder"

	// ciphertextMimeType is the MIME type recorded for secure blobs; the
	// provider never sees the original type of encrypted content.
	ciphertextMimeType = "application/octet-stream"

	fileIDPlaceholder = "{{fileId}}"
)

// DriveFile is the subset of remote file metadata the backend uses.
type DriveFile struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
}

// DriveAPI is the remote object-store provider surface used by RemoteBackend.
// DriveService implements it over Google Drive v3; MemDrive is an in-memory
// implementation.
type DriveAPI interface {
	// CreateFile uploads content as a new file inside parentID ("" = provider root).
	CreateFile(ctx context.Context, name, mimeType, parentID string, content io.Reader) (*DriveFile, error)

	// DownloadFile returns the content of a file.
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)

	// DeleteFile permanently removes a file.
	DeleteFile(ctx context.Context, fileID string) error

	// GrantPublicRead gives anyone with the link read access to a file.
	GrantPublicRead(ctx context.Context, fileID string) error

	// FindFolder returns the first non-trashed folder called name inside
	// parentID, or ErrNotFound.
	FindFolder(ctx context.Context, name, parentID string) (*DriveFile, error)

	// CreateFolder creates a folder called name inside parentID.
	CreateFolder(ctx context.Context, name, parentID string) (*DriveFile, error)
}

// RemoteBackend implements Backend on top of a DriveAPI provider.
type RemoteBackend struct {
	api         DriveAPI
	rootID      string
	urlTemplate string
	log         *zap.Logger
}

// Compile-time interface check.
var _ Backend = (*RemoteBackend)(nil)

// NewRemoteBackend creates a remote backend. rootID is the folder blobs are
// placed in when no namespace is given; it may be empty.
func NewRemoteBackend(api DriveAPI, rootID, urlTemplate string, log *zap.Logger) (*RemoteBackend, error) {
	if api == nil {
		return nil, errkind.Configuration.Wrap(ErrMissingCredentials)
	}
	if urlTemplate == "" {
		urlTemplate = DefaultPublicURLTemplate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RemoteBackend{
		api:         api,
		rootID:      rootID,
		urlTemplate: urlTemplate,
		log:         log.Named("remote"),
	}, nil
}

// Kind implements Backend.
func (b *RemoteBackend) Kind() Kind { return KindRemote }

// RootID returns the configured root folder id.
func (b *RemoteBackend) RootID() string { return b.rootID }

// PublicURL builds the public URL for a remote object id.
func (b *RemoteBackend) PublicURL(fileID string) string {
	return strings.ReplaceAll(b.urlTemplate, fileIDPlaceholder, fileID)
}

// Write uploads blob into the hinted namespace (or the root). Non-secure
// blobs are then shared publicly; if the grant fails the upload still
// succeeds, the failure is logged, and no public URL is returned.
func (b *RemoteBackend) Write(ctx context.Context, blob []byte, hint Hint) (*WriteResult, error) {
	if err := validateStorageKey(hint.StorageKey); err != nil {
		return nil, err
	}

	parent := hint.NamespaceID
	if parent == "" {
		parent = b.rootID
	}
	mimeType := ciphertextMimeType
	if !hint.Secure && hint.MimeType != "" {
		mimeType = hint.MimeType
	}

	file, err := b.api.CreateFile(ctx, hint.StorageKey, mimeType, parent, bytes.NewReader(blob))
	if err != nil {
		return nil, classifyRemote("create file", err)
	}

	size := file.Size
	if size == 0 {
		size = int64(len(blob))
	}
	res := &WriteResult{
		Locator:   Locator{ObjectID: file.ID, NamespaceID: parent},
		SizeBytes: size,
	}

	if !hint.Secure {
		if err := b.api.GrantPublicRead(ctx, file.ID); err != nil {
			fields := []zap.Field{zap.String("file_id", file.ID), zap.String("storage_key", hint.StorageKey), zap.Error(err)}
			if errors.Is(err, ErrPermissionDenied) {
				b.log.Warn("unable to mark file as public; ensure link sharing is allowed, file is not yet public", fields...)
			} else {
				b.log.Error("failed to apply public permission, file is not yet public", fields...)
			}
			return res, nil
		}
		res.PublicURL = b.PublicURL(file.ID)
	}
	return res, nil
}

// Read downloads the object at loc.
func (b *RemoteBackend) Read(ctx context.Context, loc Locator) ([]byte, error) {
	if loc.ObjectID == "" {
		return nil, errkind.Validation.Wrap(fmt.Errorf("%w: empty object id", ErrInvalidLocator))
	}
	data, err := b.api.DownloadFile(ctx, loc.ObjectID)
	if err != nil {
		return nil, classifyRemote("download file", err)
	}
	return data, nil
}

// Delete removes the object at loc.
func (b *RemoteBackend) Delete(ctx context.Context, loc Locator) error {
	if loc.ObjectID == "" {
		return errkind.Validation.Wrap(fmt.Errorf("%w: empty object id", ErrInvalidLocator))
	}
	if err := b.api.DeleteFile(ctx, loc.ObjectID); err != nil {
		return classifyRemote("delete file", err)
	}
	return nil
}

// FindOrCreateFolder returns the id of the folder called name under parentID
// (the root when empty), creating it if it does not exist.
func (b *RemoteBackend) FindOrCreateFolder(ctx context.Context, name, parentID string) (string, error) {
	if parentID == "" {
		parentID = b.rootID
	}
	existing, err := b.api.FindFolder(ctx, name, parentID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", classifyRemote("find folder", err)
	}

	created, err := b.api.CreateFolder(ctx, name, parentID)
	if err != nil {
		return "", classifyRemote("create folder", err)
	}
	b.log.Info("created remote folder", zap.String("folder_id", created.ID), zap.String("name", name))
	return created.ID, nil
}

// classifyRemote tags provider errors as backend failures unless they
// already carry a kind.
func classifyRemote(op string, err error) error {
	if errkind.Of(err) != errkind.KindUnknown {
		return fmt.Errorf("remote: %s: %w", op, err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrRemoteFailure) || errors.Is(err, ErrPermissionDenied) {
		return errkind.Backend.Wrap(fmt.Errorf("remote: %s: %w", op, err))
	}
	return errkind.Backend.Wrap(fmt.Errorf("%w: %s: %w", ErrRemoteFailure, op, err))
}

// EscapeQueryValue escapes a value for use inside a single-quoted Drive query string.
func EscapeQueryValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
