package storage

import "errors"

var (
	// ErrNotFound indicates no blob exists at the given locator.
	ErrNotFound = errors.New("storage: blob not found")

	// ErrIOFailure indicates a local file read/write error.
	ErrIOFailure = errors.New("storage: I/O failure")

	// ErrInvalidBaseDir indicates the local storage root is empty.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrInvalidStorageKey indicates a storage key is empty or contains path elements.
	ErrInvalidStorageKey = errors.New("storage: invalid storage key")

	// ErrAlreadyExists indicates a blob already exists under the storage key.
	ErrAlreadyExists = errors.New("storage: blob already exists")

	// ErrOutsideRoot indicates a locator path escapes the storage root.
	ErrOutsideRoot = errors.New("storage: path outside storage root")

	// ErrInvalidLocator indicates a locator lacks the address its backend needs.
	ErrInvalidLocator = errors.New("storage: invalid locator")

	// ErrUnknownBackend indicates an unrecognized backend name.
	ErrUnknownBackend = errors.New("storage: unknown backend (must be \"local\" or \"remote\")")

	// ErrMissingCredentials indicates the remote provider has no credentials configured.
	ErrMissingCredentials = errors.New("storage: remote provider credentials missing")

	// ErrRemoteFailure indicates the remote provider rejected or failed a request.
	ErrRemoteFailure = errors.New("storage: remote provider failure")

	// ErrPermissionDenied indicates the remote provider refused a permission change.
	ErrPermissionDenied = errors.New("storage: remote permission denied")
)
