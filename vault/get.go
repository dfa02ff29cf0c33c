package vault

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bitfsorg/assetvault/catalog"
	"github.com/bitfsorg/assetvault/checksum"
	"github.com/bitfsorg/assetvault/errkind"
	"github.com/bitfsorg/assetvault/token"
)

// Download is the outcome of a successful retrieval: either the plaintext
// with its metadata, or a redirect to the asset's durable public URL.
type Download struct {
	Asset       *catalog.Asset
	Data        []byte
	MimeType    string
	Filename    string
	RedirectURL string
}

// TokenGrant is a minted download token.
type TokenGrant struct {
	AssetID     string    `json:"assetId"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	DownloadURL string    `json:"downloadUrl"`
}

// DownloadPath is the download route for an asset, carrying tok as a
// query parameter.
func DownloadPath(assetID, tok string) string {
	p := "/assets/" + url.PathEscape(assetID) + "/download"
	if tok == "" {
		return p
	}
	return p + "?token=" + url.QueryEscape(tok)
}

// IssueToken mints a download token for an existing asset. ttl <= 0
// selects the configured default.
func (v *Vault) IssueToken(ctx context.Context, assetID string, ttl time.Duration) (*TokenGrant, error) {
	grant, err := v.issueToken(ctx, assetID, ttl)
	v.observer.RecordTokenIssue(err)
	return grant, err
}

func (v *Vault) issueToken(ctx context.Context, assetID string, ttl time.Duration) (*TokenGrant, error) {
	if v.tokens == nil {
		return nil, errkind.Configuration.Wrap(token.ErrMissingSecret)
	}
	if _, err := v.loadAsset(ctx, assetID); err != nil {
		return nil, err
	}
	tok, exp, err := v.tokens.Issue(assetID, ttl)
	if err != nil {
		return nil, err
	}
	return &TokenGrant{
		AssetID:     assetID,
		Token:       tok,
		ExpiresAt:   exp,
		DownloadURL: DownloadPath(assetID, tok),
	}, nil
}

// Retrieve returns an asset's content to the holder of tok.
//
// A presented token is verified and checked against assetID before the
// asset is loaded. Public assets with an http(s) URL need no token and
// yield a redirect; public assets on local disk need no token either and
// are read directly. Everything else requires a token. Secure content is
// decrypted, authenticated, and checked against the recorded checksum
// before any byte is returned.
func (v *Vault) Retrieve(ctx context.Context, assetID, tok string) (*Download, error) {
	start := v.now()
	d, err := v.retrieve(ctx, assetID, tok)
	var size int64
	if d != nil {
		size = int64(len(d.Data))
	}
	v.observer.RecordDownload(v.now().Sub(start), size, err)

	switch kind := errkind.Of(err); {
	case err == nil:
	case kind == errkind.KindIntegrity:
		v.log.Error("integrity failure on retrieval, no content returned",
			zap.String("asset_id", assetID), zap.Error(err))
	default:
		v.log.Info("retrieval rejected",
			zap.String("asset_id", assetID), zap.Stringer("kind", kind), zap.Error(err))
	}
	return d, err
}

func (v *Vault) retrieve(ctx context.Context, assetID, tok string) (*Download, error) {
	if tok == "" {
		a, err := v.loadAsset(ctx, assetID)
		if errors.Is(err, catalog.ErrAssetNotFound) {
			// Without a token, do not confirm whether an id exists.
			return nil, errkind.Token.Wrap(token.ErrMissingToken)
		}
		if err != nil {
			return nil, err
		}
		if a.IsSecure() || a.PublicURL() == "" {
			return nil, errkind.Token.Wrap(token.ErrMissingToken)
		}
		return v.servePublic(ctx, a)
	}

	if v.tokens == nil {
		return nil, errkind.Configuration.Wrap(token.ErrMissingSecret)
	}
	if _, err := v.tokens.VerifyFor(tok, assetID); err != nil {
		return nil, err
	}
	a, err := v.loadAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if !a.IsSecure() && a.PublicURL() != "" {
		return v.servePublic(ctx, a)
	}
	return v.fetch(ctx, a)
}

// servePublic redirects to a web URL, or reads the blob when the public
// URL is a local path.
func (v *Vault) servePublic(ctx context.Context, a *catalog.Asset) (*Download, error) {
	if isWebURL(a.PublicURL()) {
		return &Download{
			Asset:       a,
			MimeType:    a.MimeType,
			Filename:    a.OriginalName,
			RedirectURL: a.PublicURL(),
		}, nil
	}
	return v.fetch(ctx, a)
}

// fetch reads the blob and, for secure assets, decrypts it. The plaintext
// is checked against the recorded checksum in both cases.
func (v *Vault) fetch(ctx context.Context, a *catalog.Asset) (*Download, error) {
	rctx, cancel := v.withTimeout(ctx)
	blob, err := v.backend.Read(rctx, a.Locator)
	cancel()
	if err != nil {
		return nil, backendErr("read blob", err)
	}

	plaintext := blob
	if a.IsSecure() {
		if v.pipeline == nil {
			return nil, errkind.Configuration.Wrap(fmt.Errorf("vault: decrypt %s: no master key configured", a.ID))
		}
		plaintext, err = v.pipeline.DecryptHex(blob, a.Secure.Nonce, a.Secure.AuthTag)
		if err != nil {
			return nil, fmt.Errorf("vault: decrypt %s: %w", a.ID, err)
		}
	}

	if err := checksum.Verify(plaintext, a.Checksum); err != nil {
		return nil, errkind.Integrity.Wrap(fmt.Errorf("%w: %s: %w", ErrChecksumMismatch, a.ID, err))
	}

	return &Download{
		Asset:    a,
		Data:     plaintext,
		MimeType: a.MimeType,
		Filename: a.OriginalName,
	}, nil
}

func (v *Vault) loadAsset(ctx context.Context, assetID string) (*catalog.Asset, error) {
	if assetID == "" {
		return nil, errkind.NotFound.Wrap(fmt.Errorf("%w: empty id", catalog.ErrAssetNotFound))
	}
	a, err := v.catalog.GetAsset(ctx, assetID)
	if errors.Is(err, catalog.ErrAssetNotFound) {
		return nil, errkind.NotFound.Wrap(err)
	}
	if err != nil {
		return nil, errkind.Backend.Wrap(fmt.Errorf("vault: load asset: %w", err))
	}
	return a, nil
}

func isWebURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
