package services

import (
	"errors"
	"fmt"
)

// Account-domain failures surfaced by registration and download
// gating. These are state preconditions, not bugs; callers render
// them as user-correctable messages.
var (
	ErrAlreadyRegistered = errors.New("account already registered")
	ErrNameTaken         = errors.New("username already taken")
	ErrNotRegistered     = errors.New("no account registered")
	ErrKeyMismatch       = errors.New("license key does not match the registered account")
	ErrLicenseNotActive  = errors.New("license has not been activated")
)

// CooldownActiveError rejects a download attempt inside the cooldown
// window, reporting the remaining wait rounded up to whole minutes.
type CooldownActiveError struct {
	RemainingMinutes int
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("download cooldown active, %d minute(s) remaining", e.RemainingMinutes)
}
