package catalog

import "errors"

var (
	// ErrAssetNotFound indicates no asset exists with the requested id.
	ErrAssetNotFound = errors.New("catalog: asset not found")

	// ErrDuplicateAsset indicates an asset with this id already exists.
	ErrDuplicateAsset = errors.New("catalog: duplicate asset")

	// ErrNamespaceNotFound indicates no namespace record exists for the owner.
	ErrNamespaceNotFound = errors.New("catalog: namespace not found")

	// ErrDuplicateNamespace indicates the owner already has a namespace record.
	ErrDuplicateNamespace = errors.New("catalog: duplicate namespace")

	// ErrInvalidAsset indicates an asset record fails validation.
	ErrInvalidAsset = errors.New("catalog: invalid asset")

	// ErrInvalidTransition indicates a status change other than Pending to Ready or Failed.
	ErrInvalidTransition = errors.New("catalog: invalid status transition")

	// ErrNotReady indicates an attempt to persist an asset that is not Ready.
	ErrNotReady = errors.New("catalog: asset is not ready")

	// ErrInvalidOwnerRef indicates an owner reference is not of the form type:id.
	ErrInvalidOwnerRef = errors.New("catalog: invalid owner reference")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("catalog: required parameter is nil")
)
