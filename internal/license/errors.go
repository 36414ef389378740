package license

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates no license exists under the queried key.
var ErrNotFound = errors.New("license not found")

// AlreadyRedeemedError indicates a redemption attempt against a license
// that is already bound. ByCaller distinguishes "you already redeemed
// this" from "another user holds it"; owner identity is never exposed.
type AlreadyRedeemedError struct {
	ByCaller   bool
	RedeemedAt time.Time
}

func (e *AlreadyRedeemedError) Error() string {
	if e.ByCaller {
		return "license already redeemed by you"
	}
	return "license already redeemed by another user"
}

// RevokedError indicates an operation against a revoked license.
type RevokedError struct {
	RevokedBy string
	Reason    string
}

func (e *RevokedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("license revoked: %s", e.Reason)
	}
	return "license revoked"
}

// AlreadyRevokedError indicates a revocation attempt against a license
// that is already revoked; it surfaces the prior revocation metadata.
type AlreadyRevokedError struct {
	RevokedBy string
	Reason    string
}

func (e *AlreadyRevokedError) Error() string {
	return "license already revoked"
}

// ExpiredError indicates an operation against an expired license.
type ExpiredError struct {
	ExpiresAt time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("license expired at %s", e.ExpiresAt.Format(time.RFC3339))
}

// ErrTooManyKeys rejects batch validations above the batch cap.
var ErrTooManyKeys = errors.New("too many keys in batch request")
