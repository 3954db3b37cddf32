package store

import "errors"

// Sentinel errors, mirroring the donor control-plane store's
// domain-error-per-entity pattern.
var (
	ErrNotFound      = errors.New("remoteconfig/store: entity not found")
	ErrAlreadyExists = errors.New("remoteconfig/store: entity already configured")
)
