package vault

import "errors"

var (
	// ErrEmptyPayload indicates an upload without any bytes.
	ErrEmptyPayload = errors.New("vault: payload is empty")

	// ErrMissingDependency indicates New was called without a required collaborator.
	ErrMissingDependency = errors.New("vault: missing dependency")

	// ErrBackendTimeout indicates a backend call exceeded the configured timeout.
	ErrBackendTimeout = errors.New("vault: backend call timed out")

	// ErrChecksumMismatch indicates retrieved plaintext does not match the
	// checksum recorded at upload.
	ErrChecksumMismatch = errors.New("vault: retrieved content does not match recorded checksum")
)
