package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/scripta/scripta-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type pendingLoginRepository struct {
	db *gorm.DB
}

func NewPendingLoginRepository(db *gorm.DB) *pendingLoginRepository {
	return &pendingLoginRepository{db: db}
}

func (r *pendingLoginRepository) Replace(ctx context.Context, pending *domain.PendingLogin) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.PendingLogin{}, "user_id = ?", pending.UserID).Error; err != nil {
			return err
		}
		return translateError(tx.Create(pending).Error)
	})
}

func (r *pendingLoginRepository) Consume(ctx context.Context, userID uuid.UUID, code string, now time.Time) (*domain.PendingLogin, error) {
	var consumed []domain.PendingLogin
	result := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("user_id = ? AND code = ? AND expires_at > ?", userID, code, now).
		Delete(&consumed)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 || len(consumed) == 0 {
		return nil, domain.ErrNotFound
	}
	return &consumed[0], nil
}

func (r *pendingLoginRepository) CountLive(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.PendingLogin{}).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Count(&count).Error
	return count, err
}

func (r *pendingLoginRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&domain.PendingLogin{}, "expires_at <= ?", now)
	return result.RowsAffected, result.Error
}
