package http

import (
	"time"

	"keywarden/internal/license"
)

// licenseView is the license object served by POST /api/validate.
type licenseView struct {
	Key            string  `json:"key"`
	Status         string  `json:"status"`
	DiscordID      string  `json:"discord_id"`
	RedemptionDate *int64  `json:"redemption_date"`
	ExpiryDate     *int64  `json:"expiry_date"`
	ExpiresAt      *string `json:"expires_at"`
	IsLifetime     bool    `json:"is_lifetime"`
}

// licenseDetailView extends licenseView for GET /api/license/{key}.
type licenseDetailView struct {
	Key            string         `json:"key"`
	Status         string         `json:"status"`
	DiscordID      string         `json:"discord_id"`
	CreationDate   int64          `json:"creation_date"`
	RedemptionDate *int64         `json:"redemption_date"`
	ExpiryDate     *int64         `json:"expiry_date"`
	CreatedAt      string         `json:"created_at"`
	RedeemedAt     *string        `json:"redeemed_at"`
	ExpiresAt      *string        `json:"expires_at"`
	IsLifetime     bool           `json:"is_lifetime"`
	TimeRemaining  *timeRemaining `json:"time_remaining"`
	IsValid        bool           `json:"is_valid"`
}

// timeRemaining reports how long until expiry in integrator-friendly
// units. Negative once the license is past its expiry.
type timeRemaining struct {
	Milliseconds int64 `json:"milliseconds"`
	Hours        int64 `json:"hours"`
	Days         int64 `json:"days"`
}

func millis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func iso(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func newLicenseView(l *license.License) licenseView {
	return licenseView{
		Key:            l.Key,
		Status:         string(l.Status),
		DiscordID:      l.OwnerID,
		RedemptionDate: millis(l.RedeemedAt),
		ExpiryDate:     millis(l.ExpiresAt),
		ExpiresAt:      iso(l.ExpiresAt),
		IsLifetime:     l.IsLifetime(),
	}
}

func newLicenseDetailView(l *license.License, now time.Time) licenseDetailView {
	var remaining *timeRemaining
	if l.ExpiresAt != nil {
		ms := l.ExpiresAt.Sub(now).Milliseconds()
		remaining = &timeRemaining{
			Milliseconds: ms,
			Hours:        ms / int64(time.Hour/time.Millisecond),
			Days:         ms / int64(24*time.Hour/time.Millisecond),
		}
	}
	return licenseDetailView{
		Key:            l.Key,
		Status:         string(l.Status),
		DiscordID:      l.OwnerID,
		CreationDate:   l.CreatedAt.UnixMilli(),
		RedemptionDate: millis(l.RedeemedAt),
		ExpiryDate:     millis(l.ExpiresAt),
		CreatedAt:      l.CreatedAt.UTC().Format(time.RFC3339Nano),
		RedeemedAt:     iso(l.RedeemedAt),
		ExpiresAt:      iso(l.ExpiresAt),
		IsLifetime:     l.IsLifetime(),
		TimeRemaining:  remaining,
		IsValid:        l.Status == license.StatusRedeemed && !l.IsExpired(now),
	}
}

// batchReason maps a verdict to the short reason string the batch
// endpoint serves.
func batchReason(outcome license.Outcome) string {
	switch outcome {
	case license.OutcomeNonexistent:
		return "Does not exist"
	case license.OutcomeRevoked:
		return "Revoked"
	case license.OutcomeNotActivated:
		return "Not activated"
	case license.OutcomeExpired:
		return "Expired"
	}
	return ""
}
