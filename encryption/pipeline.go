package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/bitfsorg/assetvault/errkind"
)

const (
	// Algorithm is the tag recorded on every secure asset.
	Algorithm = "aes-256-gcm"

	// NonceLen is the length of the AES-GCM nonce in bytes.
	NonceLen = 12

	// TagLen is the length of the GCM authentication tag in bytes.
	TagLen = 16
)

// Sealed is the output of one encryption.
type Sealed struct {
	// Ciphertext has the same length as the plaintext; the tag is detached.
	Ciphertext []byte

	// Nonce is the random 12-byte nonce drawn for this call.
	Nonce []byte

	// AuthTag is the 16-byte GCM authentication tag.
	AuthTag []byte
}

// NonceHex returns the nonce as lowercase hex.
func (s *Sealed) NonceHex() string { return hex.EncodeToString(s.Nonce) }

// AuthTagHex returns the authentication tag as lowercase hex.
func (s *Sealed) AuthTagHex() string { return hex.EncodeToString(s.AuthTag) }

// Pipeline seals and opens payloads under one master key.
// It is safe for concurrent use.
type Pipeline struct {
	aead cipher.AEAD
}

// NewPipeline builds the AES-256-GCM pipeline for key.
func NewPipeline(key MasterKey) (*Pipeline, error) {
	if !key.IsSet() {
		return nil, errkind.Configuration.Wrap(ErrMissingKey)
	}
	block, err := aes.NewCipher(key.b[:])
	if err != nil {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("%w: AES cipher creation failed: %w", ErrMalformedKey, err))
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("encryption: GCM creation failed: %w", err))
	}
	return &Pipeline{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (p *Pipeline) Encrypt(plaintext []byte) (*Sealed, error) {
	if p == nil || p.aead == nil {
		return nil, errkind.Configuration.Wrap(ErrNoPipeline)
	}

	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("encryption: random nonce generation failed: %w", err)
	}

	// Seal appends the tag to the ciphertext; split it off.
	out := p.aead.Seal(nil, nonce, plaintext, nil)
	split := len(out) - TagLen
	return &Sealed{
		Ciphertext: out[:split:split],
		Nonce:      nonce,
		AuthTag:    out[split:],
	}, nil
}

// Decrypt opens ciphertext with its nonce and tag. Any authentication
// failure yields ErrDecryptionFailed and no plaintext.
func (p *Pipeline) Decrypt(ciphertext, nonce, authTag []byte) ([]byte, error) {
	if p == nil || p.aead == nil {
		return nil, errkind.Configuration.Wrap(ErrNoPipeline)
	}
	if len(nonce) != NonceLen {
		return nil, errkind.Integrity.Wrap(fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrInvalidCiphertext, NonceLen, len(nonce)))
	}
	if len(authTag) != TagLen {
		return nil, errkind.Integrity.Wrap(fmt.Errorf("%w: tag must be %d bytes, got %d", ErrInvalidCiphertext, TagLen, len(authTag)))
	}

	sealed := make([]byte, 0, len(ciphertext)+TagLen)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, authTag...)

	plaintext, err := p.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errkind.Integrity.Wrap(ErrDecryptionFailed)
	}

	// Normalize nil to empty slice for consistency.
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// DecryptHex is Decrypt for parameters stored as hex strings.
func (p *Pipeline) DecryptHex(ciphertext []byte, nonceHex, authTagHex string) ([]byte, error) {
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return nil, errkind.Integrity.Wrap(fmt.Errorf("%w: nonce: %w", ErrInvalidCiphertext, err))
	}
	tag, err := hex.DecodeString(authTagHex)
	if err != nil {
		return nil, errkind.Integrity.Wrap(fmt.Errorf("%w: tag: %w", ErrInvalidCiphertext, err))
	}
	return p.Decrypt(ciphertext, nonce, tag)
}
