package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

const dayLayout = "2006-01-02"

const reserveSQL = `
INSERT INTO daily_usage (user_id, day, count) VALUES (?, ?, 1)
ON CONFLICT (user_id, day) DO UPDATE SET count = daily_usage.count + 1
WHERE daily_usage.count < ?
RETURNING count`

type usageRepository struct {
	db      *gorm.DB
	backoff func() retry.Backoff
}

func NewUsageRepository(db *gorm.DB) *usageRepository {
	return &usageRepository{
		db: db,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(10*time.Millisecond))
		},
	}
}

func (r *usageRepository) Reserve(ctx context.Context, userID uuid.UUID, day time.Time, limit int) (int, bool, error) {
	if limit <= 0 {
		return 0, false, nil
	}

	var (
		count    int
		reserved bool
	)
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		var counts []int
		err := r.db.WithContext(ctx).Raw(reserveSQL, userID, day.Format(dayLayout), limit).Scan(&counts).Error
		if err != nil {
			if isRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		if len(counts) == 1 {
			count, reserved = counts[0], true
			return nil
		}
		// The conditional update matched nothing: the counter is already full.
		current, err := r.CountForDay(ctx, userID, day)
		if err != nil {
			return err
		}
		count, reserved = current, false
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return count, reserved, nil
}

func (r *usageRepository) Release(ctx context.Context, userID uuid.UUID, day time.Time) error {
	return r.db.WithContext(ctx).Exec(
		"UPDATE daily_usage SET count = count - 1 WHERE user_id = ? AND day = ? AND count > 0",
		userID, day.Format(dayLayout),
	).Error
}

func (r *usageRepository) CountForDay(ctx context.Context, userID uuid.UUID, day time.Time) (int, error) {
	var counts []int
	err := r.db.WithContext(ctx).Model(&domain.DailyUsage{}).
		Where("user_id = ? AND day = ?", userID, day.Format(dayLayout)).
		Pluck("count", &counts).Error
	if err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, nil
	}
	return counts[0], nil
}

func (r *usageRepository) Append(ctx context.Context, usage *domain.AIUsage) error {
	return translateError(r.db.WithContext(ctx).Create(usage).Error)
}

func (r *usageRepository) Totals(ctx context.Context, userID uuid.UUID, tr domain.TimeRange) (*domain.UsageTotals, error) {
	var totals domain.UsageTotals
	err := r.db.WithContext(ctx).Model(&domain.AIUsage{}).
		Select("COUNT(*) AS generations, COALESCE(SUM(tokens_used), 0) AS tokens, COALESCE(SUM(cost_usd), 0) AS cost_usd").
		Where("user_id = ? AND created_at BETWEEN ? AND ?", userID, tr.From, tr.To).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *usageRepository) Recent(ctx context.Context, userID uuid.UUID, tr domain.TimeRange, limit int) ([]*domain.AIUsage, error) {
	var usage []*domain.AIUsage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at BETWEEN ? AND ?", userID, tr.From, tr.To).
		Order("created_at DESC").
		Limit(limit).
		Find(&usage).Error
	return usage, err
}

func (r *usageRepository) GroupByUserModel(ctx context.Context, tr domain.TimeRange) ([]*domain.UsageGroup, error) {
	var groups []*domain.UsageGroup
	err := r.db.WithContext(ctx).Table("ai_usage AS a").
		Select(`a.user_id, u.username, a.model,
			COUNT(*) AS generations,
			COALESCE(SUM(a.tokens_used), 0) AS tokens,
			COALESCE(SUM(a.cost_usd), 0) AS cost_usd`).
		Joins("JOIN users u ON u.id = a.user_id").
		Where("a.created_at BETWEEN ? AND ?", tr.From, tr.To).
		Group("a.user_id, u.username, a.model").
		Order("cost_usd DESC, u.username ASC").
		Scan(&groups).Error
	return groups, err
}
