package vault

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bitfsorg/assetvault/catalog"
	"github.com/bitfsorg/assetvault/checksum"
	"github.com/bitfsorg/assetvault/encryption"
	"github.com/bitfsorg/assetvault/errkind"
	"github.com/bitfsorg/assetvault/namespace"
	"github.com/bitfsorg/assetvault/storage"
)

// Upload defaults.
const (
	DefaultMimeType = "application/octet-stream"
	DefaultFilename = "upload.bin"
)

// Upload is one payload submitted for storage.
type Upload struct {
	Data      []byte
	Filename  string
	MimeType  string
	Secure    bool
	OwnerRefs []catalog.OwnerRef
	Kind      string          // defaults to catalog.DefaultKind
	Owner     namespace.Owner // uploader; selects the remote namespace
}

// UploadResult is what the upload boundary hands back: the stored asset
// and, when it has no durable public URL, a download token.
type UploadResult struct {
	Asset          *catalog.Asset
	Token          string
	TokenExpiresAt time.Time
	DownloadURL    string
}

// StoreSecure encrypts up.Data and stores the ciphertext.
func (v *Vault) StoreSecure(ctx context.Context, up Upload) (*catalog.Asset, error) {
	up.Secure = true
	return v.Store(ctx, up)
}

// StorePublic stores up.Data as-is.
func (v *Vault) StorePublic(ctx context.Context, up Upload) (*catalog.Asset, error) {
	up.Secure = false
	return v.Store(ctx, up)
}

// Store writes up to the backend and persists a Ready asset record. Either
// a complete asset is returned or nothing is persisted. A blob written
// before a failed persist is deleted on a best-effort basis.
func (v *Vault) Store(ctx context.Context, up Upload) (*catalog.Asset, error) {
	start := v.now()
	a, err := v.store(ctx, up)
	v.observer.RecordUpload(v.now().Sub(start), int64(len(up.Data)), up.Secure, err)
	if err != nil {
		v.log.Warn("upload failed",
			zap.String("filename", up.Filename),
			zap.Bool("secure", up.Secure),
			zap.Stringer("kind", errkind.Of(err)),
			zap.Error(err))
		return nil, err
	}
	return a, nil
}

func (v *Vault) store(ctx context.Context, up Upload) (*catalog.Asset, error) {
	if len(up.Data) == 0 {
		return nil, errkind.Validation.Wrap(ErrEmptyPayload)
	}
	if up.Secure && v.pipeline == nil {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("%w: %w", encryption.ErrNoPipeline, encryption.ErrMissingKey))
	}
	if up.Filename == "" {
		up.Filename = DefaultFilename
	}
	if up.MimeType == "" {
		up.MimeType = DefaultMimeType
	}
	if up.Kind == "" {
		up.Kind = catalog.DefaultKind
	}

	sum := checksum.Digest(up.Data)
	now := v.now()

	var nsID string
	if v.backend.Kind() == storage.KindRemote {
		nctx, cancel := v.withTimeout(ctx)
		id, err := v.namespaces.Ensure(nctx, up.Owner)
		cancel()
		if err != nil {
			return nil, backendErr("ensure namespace", err)
		}
		nsID = id
	}

	key, err := storage.NewStorageKey(up.Filename, up.Secure, now)
	if err != nil {
		return nil, fmt.Errorf("vault: storage key: %w", err)
	}

	blob := up.Data
	var sealed *encryption.Sealed
	if up.Secure {
		if sealed, err = v.pipeline.Encrypt(up.Data); err != nil {
			return nil, fmt.Errorf("vault: encrypt: %w", err)
		}
		blob = sealed.Ciphertext
	}

	wctx, cancel := v.withTimeout(ctx)
	res, err := v.backend.Write(wctx, blob, storage.Hint{
		StorageKey:   key,
		OriginalName: up.Filename,
		MimeType:     up.MimeType,
		Secure:       up.Secure,
		NamespaceID:  nsID,
	})
	cancel()
	if err != nil {
		return nil, backendErr("write blob", err)
	}

	var a *catalog.Asset
	if up.Secure {
		a = catalog.NewSecureAsset(v.newID(), catalog.SecureParams{
			Algorithm: encryption.Algorithm,
			Nonce:     sealed.NonceHex(),
			AuthTag:   sealed.AuthTagHex(),
		})
	} else {
		a = catalog.NewPublicAsset(v.newID(), res.PublicURL)
	}
	a.StorageKey = key
	a.Backend = v.backend.Kind()
	a.Locator = res.Locator
	a.OriginalName = up.Filename
	a.MimeType = up.MimeType
	a.SizeBytes = int64(len(up.Data))
	a.Checksum = sum
	a.OwnerRefs = append([]catalog.OwnerRef(nil), up.OwnerRefs...)
	a.Kind = up.Kind
	a.UploaderID = up.Owner.ID
	a.CreatedAt = now.UTC()

	if err := a.Transition(catalog.StatusReady); err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	if err := v.catalog.PutAsset(ctx, a); err != nil {
		_ = a.Transition(catalog.StatusFailed)
		v.discard(ctx, a)
		return nil, errkind.Backend.Wrap(fmt.Errorf("vault: persist asset: %w", err))
	}

	v.log.Info("stored asset",
		zap.String("asset_id", a.ID),
		zap.String("storage_key", a.StorageKey),
		zap.String("backend", string(a.Backend)),
		zap.Bool("secure", a.IsSecure()),
		zap.Int64("size_bytes", a.SizeBytes),
		zap.Bool("public_url", a.PublicURL() != ""))
	return a, nil
}

// discard deletes the blob of an asset that could not be persisted. The
// blob is an orphan either way; failure to delete it is only logged.
func (v *Vault) discard(ctx context.Context, a *catalog.Asset) {
	dctx, cancel := v.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := v.backend.Delete(dctx, a.Locator); err != nil {
		v.log.Warn("failed to delete orphaned blob",
			zap.String("storage_key", a.StorageKey),
			zap.String("status", string(a.Status)),
			zap.Error(err))
	}
}

// Upload stores up and, when the stored asset has no durable public URL,
// issues a download token with the default TTL.
func (v *Vault) Upload(ctx context.Context, up Upload) (*UploadResult, error) {
	a, err := v.Store(ctx, up)
	if err != nil {
		return nil, err
	}
	out := &UploadResult{Asset: a}
	if a.PublicURL() != "" {
		return out, nil
	}
	if v.tokens == nil {
		v.log.Warn("asset stored without download token: no token secret configured", zap.String("asset_id", a.ID))
		return out, nil
	}

	tok, exp, err := v.tokens.Issue(a.ID, 0)
	v.observer.RecordTokenIssue(err)
	if err != nil {
		// The asset is stored; the caller can mint a token later.
		v.log.Error("failed to issue download token", zap.String("asset_id", a.ID), zap.Error(err))
		return out, nil
	}
	out.Token = tok
	out.TokenExpiresAt = exp
	out.DownloadURL = DownloadPath(a.ID, tok)
	return out, nil
}
