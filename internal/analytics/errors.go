package analytics

import "errors"

var (
	// ErrUserRequired is returned when an operation is called without a tenant.
	ErrUserRequired = errors.New("analytics: user id required")
	// ErrInvalidPeriod marks a period outside the supported set.
	ErrInvalidPeriod = errors.New("analytics: invalid period")
)

// ErrNotFound is returned when a tenant has no stored snapshot for a period.
var ErrNotFound = errors.New("analytics: snapshot not found")
