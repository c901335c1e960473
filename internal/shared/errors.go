package shared

import "errors"

var (
	// ErrUserMissing indicates a request reached the API without a tenant identity.
	ErrUserMissing = errors.New("user identity missing")
)
