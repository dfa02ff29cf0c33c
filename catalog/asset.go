package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/bitfsorg/assetvault/storage"
)

// DefaultKind is the asset kind used when the uploader does not name one.
const DefaultKind = "deliverable"

// Status is the lifecycle state of an asset.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// OwnerRef associates an asset with an entity in the surrounding system,
// such as a listing or an order. It carries no cascading behavior.
type OwnerRef struct {
	Type string
	ID   string
}

// String formats the reference as type:id.
func (r OwnerRef) String() string { return r.Type + ":" + r.ID }

// ParseOwnerRef parses a type:id reference.
func ParseOwnerRef(s string) (OwnerRef, error) {
	typ, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || typ == "" || id == "" {
		return OwnerRef{}, fmt.Errorf("%w: %q", ErrInvalidOwnerRef, s)
	}
	return OwnerRef{Type: typ, ID: id}, nil
}

// SecureParams holds what is needed to decrypt a secure asset. The master
// key is never part of it.
type SecureParams struct {
	Algorithm string
	Nonce     string // hex
	AuthTag   string // hex
}

// PublicParams holds the durable URL of a public asset, if the backend
// assigned one.
type PublicParams struct {
	PublicURL string
}

// Asset is the durable record for one stored blob. Exactly one of Secure
// and Public is set; use NewSecureAsset or NewPublicAsset to build one.
type Asset struct {
	ID           string
	StorageKey   string
	Backend      storage.Kind
	Locator      storage.Locator
	OriginalName string
	MimeType     string
	SizeBytes    int64
	Checksum     string
	OwnerRefs    []OwnerRef
	Kind         string
	Status       Status
	UploaderID   string
	CreatedAt    time.Time

	Secure *SecureParams
	Public *PublicParams
}

// NewSecureAsset returns a Pending asset carrying encryption parameters.
func NewSecureAsset(id string, params SecureParams) *Asset {
	return &Asset{ID: id, Kind: DefaultKind, Status: StatusPending, Secure: &params}
}

// NewPublicAsset returns a Pending asset whose stored bytes are plaintext.
func NewPublicAsset(id, publicURL string) *Asset {
	return &Asset{ID: id, Kind: DefaultKind, Status: StatusPending, Public: &PublicParams{PublicURL: publicURL}}
}

// IsSecure reports whether the stored bytes are ciphertext.
func (a *Asset) IsSecure() bool { return a.Secure != nil }

// PublicURL returns the durable public URL, or "" for secure assets and
// public assets the backend could not publish.
func (a *Asset) PublicURL() string {
	if a.Public == nil {
		return ""
	}
	return a.Public.PublicURL
}

// Transition moves a Pending asset to Ready or Failed. It succeeds once.
func (a *Asset) Transition(to Status) error {
	if a.Status != StatusPending || (to != StatusReady && to != StatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	a.Status = to
	return nil
}

// Validate checks the structural invariants of the record.
func (a *Asset) Validate() error {
	switch {
	case a.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidAsset)
	case a.StorageKey == "":
		return fmt.Errorf("%w: empty storage key", ErrInvalidAsset)
	case a.Secure != nil && a.Public != nil:
		return fmt.Errorf("%w: both secure and public parameters set", ErrInvalidAsset)
	case a.Secure == nil && a.Public == nil:
		return fmt.Errorf("%w: neither secure nor public parameters set", ErrInvalidAsset)
	case a.Secure != nil && (a.Secure.Nonce == "" || a.Secure.AuthTag == ""):
		return fmt.Errorf("%w: secure asset without nonce or auth tag", ErrInvalidAsset)
	case len(a.Checksum) != 64:
		return fmt.Errorf("%w: checksum must be 64 hex chars", ErrInvalidAsset)
	}
	return nil
}

// HasOwnerRef reports whether ref is among the asset's owner references.
func (a *Asset) HasOwnerRef(ref OwnerRef) bool {
	for _, r := range a.OwnerRefs {
		if r == ref {
			return true
		}
	}
	return false
}

// NamespaceRecord maps one owner to one remote folder.
type NamespaceRecord struct {
	OwnerID           string
	NamespaceID       string
	ParentNamespaceID string
	DisplayName       string
	CreatedAt         time.Time
}

// Filter narrows ListAssets. Zero fields match everything.
type Filter struct {
	Kind     string
	OwnerRef *OwnerRef
}

func (f Filter) match(a *Asset) bool {
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	if f.OwnerRef != nil && !a.HasOwnerRef(*f.OwnerRef) {
		return false
	}
	return true
}
