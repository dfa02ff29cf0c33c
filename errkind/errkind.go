// Package errkind classifies assetvault errors into the kinds callers must
// be able to tell apart. Five cover failures of an operation; NotFound marks
// a well-formed request for an asset that does not exist.
//
// Packages keep their own sentinel errors and wrap them with one of these
// classes at the point where the kind is known:
//
//	return errkind.Backend.Wrap(fmt.Errorf("%w: %w", ErrIOFailure, err))
//
// The sentinel survives errors.Is and the kind survives errkind.Of.
package errkind

import "github.com/zeebo/errs"

var (
	// Validation marks bad input that the caller can fix by changing the request.
	Validation = errs.Class("validation")

	// Configuration marks a missing or malformed encryption key, signing
	// secret, or backend credential.
	Configuration = errs.Class("configuration")

	// Backend marks disk or network failures from a storage backend.
	Backend = errs.Class("backend")

	// Integrity marks authentication-tag or checksum failures on stored data.
	Integrity = errs.Class("integrity")

	// Token marks malformed, expired, or mismatched download tokens.
	Token = errs.Class("token")

	// NotFound marks a lookup of an asset id the catalog does not hold.
	NotFound = errs.Class("not_found")
)

// Kind is the machine-checkable error kind.
type Kind int

const (
	// KindUnknown is returned for nil errors and errors carrying no class.
	KindUnknown Kind = iota
	KindValidation
	KindConfiguration
	KindBackend
	KindIntegrity
	KindToken
	KindNotFound
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindBackend:
		return "backend"
	case KindIntegrity:
		return "integrity"
	case KindToken:
		return "token"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Of returns the kind carried by err. When several classes are present in
// the chain, the most specific one wins: integrity and token failures are
// reported even if a backend wrapper sits above them.
func Of(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	switch {
	case Integrity.Has(err):
		return KindIntegrity
	case Token.Has(err):
		return KindToken
	case NotFound.Has(err):
		return KindNotFound
	case Configuration.Has(err):
		return KindConfiguration
	case Validation.Has(err):
		return KindValidation
	case Backend.Has(err):
		return KindBackend
	default:
		return KindUnknown
	}
}
