// Package encryption implements the authenticated encryption pipeline for
// secure assets.
//
// Every secure asset is sealed with AES-256-GCM under a single process-wide
// master key. Each call to Encrypt draws a fresh random 96-bit nonce; the
// nonce and 128-bit authentication tag are returned separately so they can be
// stored in the asset record next to the ciphertext's locator.
//
// The master key is resolved once at startup:
//
//	key   = hex_decode(secret)                                if secret is 64 hex chars
//	key   = HKDF-SHA256(secret, nil, "assetvault-master-key")  otherwise
package encryption

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/bitfsorg/assetvault/errkind"
)

const (
	// KeyLen is the length of the AES-256 master key in bytes.
	KeyLen = 32

	// HKDFInfo is the info string used when deriving a key from a passphrase.
	HKDFInfo = "assetvault-master-key"
)

// MasterKey holds the 256-bit key used for every secure asset.
// Its String and GoString methods are redacted so the key cannot leak
// through formatting or logging.
type MasterKey struct {
	b   [KeyLen]byte
	set bool
}

// NewMasterKey wraps raw key material. raw must be exactly 32 bytes.
func NewMasterKey(raw []byte) (MasterKey, error) {
	if len(raw) != KeyLen {
		return MasterKey{}, errkind.Configuration.Wrap(fmt.Errorf("%w: got %d bytes", ErrMalformedKey, len(raw)))
	}
	var k MasterKey
	copy(k.b[:], raw)
	k.set = true
	return k, nil
}

// ResolveMasterKey turns the configured secret into a master key.
// A 64-character hex string is used verbatim; any other non-empty value is
// treated as a passphrase and stretched with HKDF-SHA256.
func ResolveMasterKey(secret string) (MasterKey, error) {
	if secret == "" {
		return MasterKey{}, errkind.Configuration.Wrap(ErrMissingKey)
	}
	if len(secret) == 2*KeyLen {
		if raw, err := hex.DecodeString(secret); err == nil {
			return NewMasterKey(raw)
		}
	}
	return deriveKey(secret)
}

// deriveKey stretches a passphrase into a 32-byte key.
func deriveKey(secret string) (MasterKey, error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(HKDFInfo))
	raw := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return MasterKey{}, errkind.Configuration.Wrap(fmt.Errorf("%w: %w", ErrHKDFFailure, err))
	}
	return NewMasterKey(raw)
}

// IsSet reports whether the key holds resolved key material.
func (k MasterKey) IsSet() bool { return k.set }

// String implements fmt.Stringer without revealing key material.
func (k MasterKey) String() string {
	if !k.set {
		return "MasterKey(unset)"
	}
	return "MasterKey(redacted)"
}

// GoString implements fmt.GoStringer without revealing key material.
func (k MasterKey) GoString() string { return k.String() }
