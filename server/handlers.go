package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bitfsorg/assetvault/catalog"
	"github.com/bitfsorg/assetvault/errkind"
	"github.com/bitfsorg/assetvault/namespace"
	"github.com/bitfsorg/assetvault/vault"
)

// Caller identity headers set by the surrounding system.
const (
	HeaderCallerID       = "X-Caller-ID"
	HeaderCallerEmail    = "X-Caller-Email"
	HeaderCallerUsername = "X-Caller-Username"
)

var errMissingFile = errors.New("server: multipart field \"file\" is required")

type encryptionView struct {
	Algorithm string `json:"algorithm"`
	Nonce     string `json:"nonce"`
	AuthTag   string `json:"authTag"`
}

type ownerRefView struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type assetView struct {
	ID           string          `json:"id"`
	StorageKey   string          `json:"storageKey"`
	Backend      string          `json:"backend"`
	OriginalName string          `json:"originalName"`
	MimeType     string          `json:"mimeType"`
	SizeBytes    int64           `json:"sizeBytes"`
	Checksum     string          `json:"checksum"`
	Secure       bool            `json:"secure"`
	Encryption   *encryptionView `json:"encryption,omitempty"`
	PublicURL    string          `json:"publicUrl,omitempty"`
	OwnerRefs    []ownerRefView  `json:"ownerRefs"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
	UploaderID   string          `json:"uploaderId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func toAssetView(a *catalog.Asset) assetView {
	v := assetView{
		ID:           a.ID,
		StorageKey:   a.StorageKey,
		Backend:      string(a.Backend),
		OriginalName: a.OriginalName,
		MimeType:     a.MimeType,
		SizeBytes:    a.SizeBytes,
		Checksum:     a.Checksum,
		Secure:       a.IsSecure(),
		PublicURL:    a.PublicURL(),
		OwnerRefs:    make([]ownerRefView, 0, len(a.OwnerRefs)),
		Kind:         a.Kind,
		Status:       string(a.Status),
		UploaderID:   a.UploaderID,
		CreatedAt:    a.CreatedAt,
	}
	if a.Secure != nil {
		v.Encryption = &encryptionView{Algorithm: a.Secure.Algorithm, Nonce: a.Secure.Nonce, AuthTag: a.Secure.AuthTag}
	}
	for _, r := range a.OwnerRefs {
		v.OwnerRefs = append(v.OwnerRefs, ownerRefView{Type: r.Type, ID: r.ID})
	}
	return v
}

type uploadResponse struct {
	Asset          assetView  `json:"asset"`
	Token          string     `json:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty"`
	DownloadURL    string     `json:"downloadUrl,omitempty"`
}

type tokenResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	DownloadURL string    `json:"downloadUrl"`
}

// handleUpload accepts multipart form data: file (required), secure
// (default true), kind, mimeType, and repeated ownerRefs of the form type:id.
func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, errkind.Validation.Wrap(fmt.Errorf("%w: %w", errMissingFile, err)))
		return
	}
	if fh.Size > s.maxUpload {
		abortWithError(c, errkind.Validation.New("server: file exceeds %d bytes", s.maxUpload))
		return
	}
	f, err := fh.Open()
	if err != nil {
		abortWithError(c, errkind.Validation.Wrap(err))
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload))
	_ = f.Close()
	if err != nil {
		abortWithError(c, errkind.Validation.Wrap(err))
		return
	}

	secure := true
	if raw := c.PostForm("secure"); raw != "" {
		if secure, err = strconv.ParseBool(raw); err != nil {
			abortWithError(c, errkind.Validation.New("server: secure must be a boolean, got %q", raw))
			return
		}
	}

	var refs []catalog.OwnerRef
	for _, raw := range c.PostFormArray("ownerRefs") {
		ref, err := catalog.ParseOwnerRef(raw)
		if err != nil {
			abortWithError(c, errkind.Validation.Wrap(err))
			return
		}
		refs = append(refs, ref)
	}

	mimeType := c.PostForm("mimeType")
	if mimeType == "" {
		mimeType = fh.Header.Get("Content-Type")
	}

	res, err := s.vault.Upload(c.Request.Context(), vault.Upload{
		Data:      data,
		Filename:  fh.Filename,
		MimeType:  mimeType,
		Secure:    secure,
		OwnerRefs: refs,
		Kind:      c.PostForm("kind"),
		Owner: namespace.Owner{
			ID:       c.GetHeader(HeaderCallerID),
			Email:    c.GetHeader(HeaderCallerEmail),
			Username: c.GetHeader(HeaderCallerUsername),
		},
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := uploadResponse{Asset: toAssetView(res.Asset), Token: res.Token, DownloadURL: res.DownloadURL}
	if res.Token != "" {
		exp := res.TokenExpiresAt
		out.TokenExpiresAt = &exp
	}
	c.JSON(http.StatusCreated, out)
}

// handleDownload serves plaintext, or redirects to a public URL.
func (s *Server) handleDownload(c *gin.Context) {
	d, err := s.vault.Retrieve(c.Request.Context(), c.Param("id"), c.Query("token"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if d.RedirectURL != "" {
		c.Redirect(http.StatusFound, d.RedirectURL)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}))
	c.Header("X-Content-Type-Options", "nosniff")
	if d.Asset != nil && d.Asset.IsSecure() {
		c.Header("Cache-Control", "no-store")
	}
	c.Data(http.StatusOK, d.MimeType, d.Data)
}

// handleIssueToken mints a token; ?ttl= takes a Go duration such as 15m.
func (s *Server) handleIssueToken(c *gin.Context) {
	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		var err error
		if ttl, err = time.ParseDuration(raw); err != nil || ttl <= 0 {
			abortWithError(c, errkind.Validation.New("server: ttl must be a positive duration, got %q", raw))
			return
		}
	}

	grant, err := s.vault.IssueToken(c.Request.Context(), c.Param("id"), ttl)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: grant.Token, ExpiresAt: grant.ExpiresAt, DownloadURL: grant.DownloadURL})
}

// handleList filters assets by ?kind= and ?ownerRef=type:id.
func (s *Server) handleList(c *gin.Context) {
	f := catalog.Filter{Kind: c.Query("kind")}
	if raw := c.Query("ownerRef"); raw != "" {
		ref, err := catalog.ParseOwnerRef(raw)
		if err != nil {
			abortWithError(c, errkind.Validation.Wrap(err))
			return
		}
		f.OwnerRef = &ref
	}

	assets, err := s.vault.List(c.Request.Context(), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]assetView, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetView(a))
	}
	c.JSON(http.StatusOK, gin.H{"assets": out})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.vault.Health(c.Request.Context()); err != nil {
		s.log.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": string(s.vault.Backend().Kind())})
}
