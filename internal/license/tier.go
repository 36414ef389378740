package license

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a named duration policy determining a license's expiry at
// creation time. Hours of zero means lifetime.
type Tier struct {
	Code  string
	Name  string
	Hours int
}

// The tier catalogue, ordered for display.
var tiers = []Tier{
	{Code: "12H", Name: "12 Hours", Hours: 12},
	{Code: "24H", Name: "24 Hours", Hours: 24},
	{Code: "7D", Name: "7 Days", Hours: 168},
	{Code: "1M", Name: "1 Month", Hours: 720},
	{Code: "QUARTERLY", Name: "Quarterly (3 Months)", Hours: 2160},
	{Code: "LIFETIME", Name: "Lifetime", Hours: 0},
}

// Tiers returns the tier catalogue in display order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// TierByCode looks up a tier by its code, case-insensitively.
func TierByCode(code string) (Tier, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, t := range tiers {
		if t.Code == code {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("unknown license tier %q", code)
}

// IsLifetime reports whether the tier carries no expiry.
func (t Tier) IsLifetime() bool {
	return t.Hours == 0
}

// ExpiryFrom computes the absolute expiry for a license created at the
// given instant, or nil for lifetime tiers.
func (t Tier) ExpiryFrom(createdAt time.Time) *time.Time {
	if t.IsLifetime() {
		return nil
	}
	exp := createdAt.Add(time.Duration(t.Hours) * time.Hour)
	return &exp
}

// ExpiryFromDays computes an absolute expiry a whole number of days out,
// used by ad-hoc license creation. Zero or negative days means lifetime.
func ExpiryFromDays(createdAt time.Time, days int) *time.Time {
	if days <= 0 {
		return nil
	}
	exp := createdAt.Add(time.Duration(days) * 24 * time.Hour)
	return &exp
}
