package credentials

import "errors"

var (
	// ErrStoreRequired indicates no storage backend was provided.
	ErrStoreRequired = errors.New("credentials: store is required")

	// ErrRenewerRequired indicates no renewer was provided.
	ErrRenewerRequired = errors.New("credentials: renewer is required")

	// ErrNoRefreshSecret indicates no refresh secret is stored, so no
	// session token can be minted.
	ErrNoRefreshSecret = errors.New("credentials: no refresh secret stored")

	// ErrRenewalRejected indicates the renewal endpoint definitively refused
	// the refresh secret. The secret is removed when this occurs.
	ErrRenewalRejected = errors.New("credentials: renewal rejected")

	// ErrRenewalFailed indicates a transient or protocol failure during renewal.
	ErrRenewalFailed = errors.New("credentials: renewal failed")
)
