package encryption

import "errors"

var (
	// ErrMissingKey indicates no master key secret was configured.
	ErrMissingKey = errors.New("encryption: master key is not configured")

	// ErrMalformedKey indicates raw key material is not exactly 32 bytes.
	ErrMalformedKey = errors.New("encryption: master key must be 32 bytes")

	// ErrNoPipeline indicates encryption was attempted without a pipeline,
	// which happens when the process started without a master key.
	ErrNoPipeline = errors.New("encryption: pipeline is not initialized")

	// ErrInvalidCiphertext indicates the nonce or authentication tag has the
	// wrong length or is not valid hex.
	ErrInvalidCiphertext = errors.New("encryption: invalid ciphertext parameters")

	// ErrDecryptionFailed indicates AES-GCM authentication failed during decryption.
	ErrDecryptionFailed = errors.New("encryption: decryption failed")

	// ErrHKDFFailure indicates HKDF key derivation failed.
	ErrHKDFFailure = errors.New("encryption: HKDF key derivation failed")
)
