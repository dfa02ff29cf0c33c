// Package checksum digests asset payloads.
//
// The digest is always taken over the original plaintext, so it stays the
// same whichever backend stores the asset and whether or not it is encrypted.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// Size is the length of a digest in bytes before hex encoding.
const Size = sha256.Size

var (
	// ErrChecksumMismatch indicates a payload does not match its recorded digest.
	ErrChecksumMismatch = errors.New("checksum: digest mismatch")

	// ErrMalformedDigest indicates a recorded digest is not 64 hex characters.
	ErrMalformedDigest = errors.New("checksum: malformed digest")
)

// Digest returns the lowercase hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify checks data against a hex digest previously produced by Digest.
func Verify(data []byte, want string) error {
	wantBytes, err := hex.DecodeString(want)
	if err != nil || len(wantBytes) != Size {
		return fmt.Errorf("%w: %q", ErrMalformedDigest, want)
	}
	got := sha256.Sum256(data)
	if subtle.ConstantTimeCompare(got[:], wantBytes) != 1 {
		return ErrChecksumMismatch
	}
	return nil
}
