package authz

import "errors"

var (
	ErrUnknownLevel  = errors.New("authz: unknown permission level")
	ErrSelfShare     = errors.New("authz: cannot share a resource with yourself")
	ErrShareConflict = errors.New("authz: share already exists for this resource and user")
	ErrLastAdmin     = errors.New("authz: at least one admin account must remain")
)
