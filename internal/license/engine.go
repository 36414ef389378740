package license

import "time"

// Outcome is the canonical validation verdict for a license key.
type Outcome string

const (
	OutcomeNonexistent  Outcome = "nonexistent"
	OutcomeNotActivated Outcome = "not_activated"
	OutcomeRevoked      Outcome = "revoked"
	OutcomeExpired      Outcome = "expired"
	OutcomeValid        Outcome = "valid"
)

// MaxBatchKeys caps a single batch validation request.
const MaxBatchKeys = 100

// ValidationResult is the outcome of validating one key.
type ValidationResult struct {
	Key     string
	Outcome Outcome
	Reason  string

	// Populated for revoked licenses.
	RevokedBy    string
	RevokeReason string

	// Populated for expired licenses.
	ExpiredAt *time.Time

	// Populated only when the outcome is valid.
	License *License
}

// Valid reports whether the verdict is the valid outcome.
func (r ValidationResult) Valid() bool {
	return r.Outcome == OutcomeValid
}

// Validate is the canonical decision function; both surfaces must use
// it so verdicts never diverge. The precedence is fixed: existence,
// then revoked, then not-redeemed, then expired, then valid. A license
// that is both revoked and past expiry therefore reports revoked.
func Validate(l *License, key string, now time.Time) ValidationResult {
	if l == nil {
		return ValidationResult{
			Key:     key,
			Outcome: OutcomeNonexistent,
			Reason:  "License key does not exist",
		}
	}

	if l.Status == StatusRevoked {
		return ValidationResult{
			Key:          l.Key,
			Outcome:      OutcomeRevoked,
			Reason:       "License has been revoked",
			RevokedBy:    l.RevokedBy,
			RevokeReason: l.RevokeReason,
		}
	}

	if l.Status != StatusRedeemed {
		return ValidationResult{
			Key:     l.Key,
			Outcome: OutcomeNotActivated,
			Reason:  "License has not been activated yet",
		}
	}

	if l.IsExpired(now) {
		return ValidationResult{
			Key:       l.Key,
			Outcome:   OutcomeExpired,
			Reason:    "License has expired",
			ExpiredAt: l.ExpiresAt,
		}
	}

	return ValidationResult{
		Key:     l.Key,
		Outcome: OutcomeValid,
		License: l,
	}
}

// CheckRedeemable decides whether accountID may redeem the license at
// now. A nil license yields ErrNotFound. The taxonomy mirrors Validate
// except that an unused license is exactly what redemption expects.
func CheckRedeemable(l *License, accountID string, now time.Time) error {
	if l == nil {
		return ErrNotFound
	}

	switch l.Status {
	case StatusRedeemed:
		var at time.Time
		if l.RedeemedAt != nil {
			at = *l.RedeemedAt
		}
		return &AlreadyRedeemedError{ByCaller: l.OwnerID == accountID, RedeemedAt: at}
	case StatusRevoked:
		return &RevokedError{RevokedBy: l.RevokedBy, Reason: l.RevokeReason}
	}

	if l.IsExpired(now) {
		return &ExpiredError{ExpiresAt: *l.ExpiresAt}
	}

	return nil
}

// CheckRevocable decides whether the license may be revoked. Revocation
// is reachable from any state except revoked itself, which is absorbing.
func CheckRevocable(l *License) error {
	if l == nil {
		return ErrNotFound
	}
	if l.Status == StatusRevoked {
		return &AlreadyRevokedError{RevokedBy: l.RevokedBy, Reason: l.RevokeReason}
	}
	return nil
}

// Redeem applies the redemption mutation to an in-memory record after
// CheckRedeemable has passed. The store persists the result under its
// status precondition.
func Redeem(l *License, accountID string, now time.Time) {
	l.Status = StatusRedeemed
	l.OwnerID = accountID
	at := now
	l.RedeemedAt = &at
}

// Revoke applies the revocation mutation to an in-memory record after
// CheckRevocable has passed. Owner and redemption timestamp are kept
// for the audit trail.
func Revoke(l *License, revokedBy, reason string) {
	l.Status = StatusRevoked
	l.RevokedBy = revokedBy
	l.RevokeReason = reason
}
