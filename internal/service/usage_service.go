package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/config"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/repository"
)

const recentActivityLimit = 10

type UsageService struct {
	userRepo  repository.UserRepository
	usageRepo repository.UsageRepository
	cfg       *config.Config
	loc       *time.Location
	logger    zerolog.Logger
	now       func() time.Time
}

func NewUsageService(repos *repository.Repositories, cfg *config.Config, logger zerolog.Logger) *UsageService {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	return &UsageService{
		userRepo:  repos.User,
		usageRepo: repos.Usage,
		cfg:       cfg,
		loc:       loc,
		logger:    logger.With().Str("service", "UsageService").Logger(),
		now:       time.Now,
	}
}

type UsageReport struct {
	TotalGenerations int64             `json:"total_generations"`
	TotalTokens      int64             `json:"total_tokens"`
	TotalCostUSD     string            `json:"total_cost_usd"`
	RecentActivity   []*domain.AIUsage `json:"recent_activity"`
	TodayCount       int               `json:"today_count"`
	DailyLimit       int               `json:"daily_limit"`
	RemainingQuota   int               `json:"remaining_quota"`
}

func (s *UsageService) ForUser(ctx context.Context, p domain.Principal, r domain.TimeRange) (*UsageReport, error) {
	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	totals, err := s.usageRepo.Totals(ctx, user.ID, r)
	if err != nil {
		return nil, err
	}
	recent, err := s.usageRepo.Recent(ctx, user.ID, r, recentActivityLimit)
	if err != nil {
		return nil, err
	}
	today, err := s.usageRepo.CountForDay(ctx, user.ID, StartOfDay(s.now(), s.loc))
	if err != nil {
		return nil, err
	}

	limit := user.DailyLimit(s.cfg.DefaultDailyLimit)
	remaining := limit - today
	if remaining < 0 {
		remaining = 0
	}
	if recent == nil {
		recent = []*domain.AIUsage{}
	}

	return &UsageReport{
		TotalGenerations: totals.Generations,
		TotalTokens:      totals.Tokens,
		TotalCostUSD:     fmt.Sprintf("%.6f", totals.CostUSD),
		RecentActivity:   recent,
		TodayCount:       today,
		DailyLimit:       limit,
		RemainingQuota:   remaining,
	}, nil
}

// All aggregates usage by (user, model) across every account. Admin only.
func (s *UsageService) All(ctx context.Context, p domain.Principal, r domain.TimeRange) ([]*domain.UsageGroup, error) {
	if !p.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	groups, err := s.usageRepo.GroupByUserModel(ctx, r)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []*domain.UsageGroup{}
	}
	return groups, nil
}

// ParseDateRange reads optional from/to bounds in RFC 3339 or YYYY-MM-DD form.
// Missing or malformed bounds fall back to the epoch and now. A date-only "to"
// covers that whole day.
func (s *UsageService) ParseDateRange(from, to string) domain.TimeRange {
	r := domain.TimeRange{From: time.Unix(0, 0).UTC(), To: s.now()}

	if t, _, ok := parseBound(from, s.loc); ok {
		r.From = t
	}
	if t, dateOnly, ok := parseBound(to, s.loc); ok {
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		r.To = t
	}
	if r.To.Before(r.From) {
		s.logger.Debug().Time("from", r.From).Time("to", r.To).Msg("inverted date range, using open range")
		return domain.TimeRange{From: time.Unix(0, 0).UTC(), To: s.now()}
	}
	return r
}

func parseBound(v string, loc *time.Location) (time.Time, bool, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, true
	}
	if t, err := time.ParseInLocation("2006-01-02", v, loc); err == nil {
		return t, true, true
	}
	return time.Time{}, false, false
}
