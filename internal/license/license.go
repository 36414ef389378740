// Package license holds the license domain model and the lifecycle
// decision engine. The engine is pure: it inspects records and decides
// outcomes, leaving persistence to the store layer so every surface
// (chat commands and HTTP) enforces identical rules.
package license

import (
	"fmt"
	"time"
)

// Status is the closed set of stored license states. Expiry is never
// stored as a status; it is evaluated against the clock at read time.
type Status string

const (
	StatusUnused   Status = "unused"
	StatusRedeemed Status = "redeemed"
	StatusRevoked  Status = "revoked"
)

// ParseStatus decodes a persisted status value, rejecting anything
// outside the closed set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusUnused, StatusRedeemed, StatusRevoked:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown license status %q", s)
}

// License is a single license key record.
type License struct {
	Key          string
	Status       Status
	OwnerID      string // platform identity, set at redemption, never cleared
	CreatedAt    time.Time
	RedeemedAt   *time.Time
	ExpiresAt    *time.Time // nil means lifetime
	CreatedBy    string
	RevokedBy    string
	RevokeReason string
}

// IsLifetime reports whether the license never expires.
func (l *License) IsLifetime() bool {
	return l.ExpiresAt == nil
}

// IsExpired reports whether the license's expiry is strictly in the
// past. A license expiring at exactly now is not yet expired; this
// preserves the original strict-less-than comparison.
func (l *License) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// TimeRemaining returns the remaining validity window at now, or zero
// duration and false for lifetime licenses.
func (l *License) TimeRemaining(now time.Time) (time.Duration, bool) {
	if l.ExpiresAt == nil {
		return 0, false
	}
	return l.ExpiresAt.Sub(now), true
}
