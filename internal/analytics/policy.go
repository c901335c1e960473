package analytics

import (
	"fmt"
	"strings"
	"time"
)

// ReadMode selects how GetAnalytics treats a stored snapshot.
type ReadMode string

const (
	// ReadAlways recomputes on every read.
	ReadAlways ReadMode = "always"
	// ReadTTL serves the stored snapshot while it is younger than the TTL.
	ReadTTL ReadMode = "ttl"
)

// ReadPolicy configures the read path.
type ReadPolicy struct {
	Mode ReadMode
	TTL  time.Duration
}

// ParseReadPolicy builds a policy from configuration values.
func ParseReadPolicy(mode string, ttl time.Duration) (ReadPolicy, error) {
	switch ReadMode(strings.ToLower(strings.TrimSpace(mode))) {
	case "", ReadAlways:
		return ReadPolicy{Mode: ReadAlways}, nil
	case ReadTTL:
		if ttl <= 0 {
			return ReadPolicy{}, fmt.Errorf("analytics: read policy ttl must be positive, got %s", ttl)
		}
		return ReadPolicy{Mode: ReadTTL, TTL: ttl}, nil
	}
	return ReadPolicy{}, fmt.Errorf("analytics: unknown read policy %q", mode)
}

// Fresh reports whether a snapshot updated at lastUpdated may be served at now.
func (p ReadPolicy) Fresh(lastUpdated, now time.Time) bool {
	if p.Mode != ReadTTL || lastUpdated.IsZero() {
		return false
	}
	return now.Sub(lastUpdated) < p.TTL
}
