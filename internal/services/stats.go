package services

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	apperrors "keywarden/internal/errors"
	"keywarden/internal/store"
)

// StatsService assembles operator statistics across both stores and
// refreshes the cached counters in the admin store.
type StatsService struct {
	primary *store.Primary
	admin   *store.Admin
	logger  *slog.Logger
	now     func() time.Time
}

// NewStatsService creates a statistics service over the two stores.
func NewStatsService(primary *store.Primary, admin *store.Admin, logger *slog.Logger) *StatsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsService{
		primary: primary,
		admin:   admin,
		logger:  logger.With(slog.String("service", "stats")),
		now:     time.Now,
	}
}

// Overview is a point-in-time summary across both stores.
type Overview struct {
	Counts        store.Counts
	ActiveAPIKeys int
	GeneratedAt   time.Time
}

// Overview tallies both stores and refreshes the cached counters.
func (s *StatsService) Overview(ctx context.Context) (*Overview, error) {
	counts, err := s.primary.CountAll(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to count primary store", err)
	}

	keys, err := s.admin.ListAPIKeys(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list credentials", err)
	}
	active := 0
	for _, k := range keys {
		if k.Active {
			active++
		}
	}

	o := &Overview{Counts: counts, ActiveAPIKeys: active, GeneratedAt: s.now()}
	s.cache(ctx, o)
	return o, nil
}

func (s *StatsService) cache(ctx context.Context, o *Overview) {
	at := o.GeneratedAt
	pairs := map[string]int{
		"total_users":     o.Counts.Users,
		"total_licenses":  o.Counts.TotalLicenses,
		"unused_licenses": o.Counts.UnusedLicenses,
		"redeemed":        o.Counts.Redeemed,
		"revoked":         o.Counts.Revoked,
		"total_downloads": o.Counts.Downloads,
		"total_commands":  o.Counts.Commands,
		"active_api_keys": o.ActiveAPIKeys,
	}
	for name, value := range pairs {
		if err := s.admin.SetStat(ctx, name, strconv.Itoa(value), at); err != nil {
			s.logger.ErrorContext(ctx, "failed to cache statistic",
				slog.String("stat", name),
				slog.String("error", err.Error()))
			return
		}
	}
}

// GenerationStats describes how keys have been generated: per-tier
// totals plus the most recent batches.
type GenerationStats struct {
	ByTier []store.TierGeneration
	Recent []store.GenerationRecord
}

// Generations rolls up the generation history from the admin store.
func (s *StatsService) Generations(ctx context.Context) (*GenerationStats, error) {
	byTier, err := s.admin.GenerationStats(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read generation stats", err)
	}
	recent, err := s.admin.RecentGenerations(ctx, 10)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read generation history", err)
	}
	return &GenerationStats{ByTier: byTier, Recent: recent}, nil
}

// UserActivity summarizes registration trends and download activity.
type UserActivity struct {
	Total           int
	RegisteredDay   int
	RegisteredWeek  int
	RegisteredMonth int
	ActiveWeek      int
}

// Inactive is the count of users with no download in the last week.
func (a UserActivity) Inactive() int {
	return a.Total - a.ActiveWeek
}

// ActivityRate is the percentage of users active in the last week.
func (a UserActivity) ActivityRate() int {
	if a.Total == 0 {
		return 0
	}
	return int(float64(a.ActiveWeek) / float64(a.Total) * 100)
}

// Activity computes user registration and download trends.
func (s *StatsService) Activity(ctx context.Context) (UserActivity, error) {
	users, err := s.primary.ListUsers(ctx)
	if err != nil {
		return UserActivity{}, apperrors.NewStorageError("failed to list users", err)
	}

	now := s.now()
	const day = 24 * time.Hour
	a := UserActivity{Total: len(users)}
	for _, u := range users {
		if u.RegisteredAt.After(now.Add(-day)) {
			a.RegisteredDay++
		}
		if u.RegisteredAt.After(now.Add(-7 * day)) {
			a.RegisteredWeek++
		}
		if u.RegisteredAt.After(now.Add(-30 * day)) {
			a.RegisteredMonth++
		}
		if !u.LastDownloadAt.IsZero() && u.LastDownloadAt.After(now.Add(-7*day)) {
			a.ActiveWeek++
		}
	}
	return a, nil
}

// RecentActions returns the latest audit entries, newest first.
func (s *StatsService) RecentActions(ctx context.Context, limit int) ([]store.AdminAction, error) {
	if limit <= 0 {
		limit = 10
	}
	actions, err := s.admin.RecentAdminActions(ctx, limit)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read audit trail", err)
	}
	return actions, nil
}
