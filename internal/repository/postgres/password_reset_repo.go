package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/scripta/scripta-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type passwordResetRepository struct {
	db *gorm.DB
}

func NewPasswordResetRepository(db *gorm.DB) *passwordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Replace(ctx context.Context, req *domain.PasswordResetRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.PasswordResetRequest{}, "user_id = ?", req.UserID).Error; err != nil {
			return err
		}
		return translateError(tx.Create(req).Error)
	})
}

func (r *passwordResetRepository) Latest(ctx context.Context, userID uuid.UUID) (*domain.PasswordResetRequest, error) {
	var req domain.PasswordResetRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &req, nil
}

func (r *passwordResetRepository) Find(ctx context.Context, userID uuid.UUID, code string, now time.Time) (*domain.PasswordResetRequest, error) {
	var req domain.PasswordResetRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND code = ? AND expires_at > ?", userID, code, now).
		First(&req).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &req, nil
}

func (r *passwordResetRepository) Consume(ctx context.Context, userID uuid.UUID, code string, now time.Time) (*domain.PasswordResetRequest, error) {
	var consumed []domain.PasswordResetRequest
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

func (r *passwordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&domain.PasswordResetRequest{}, "expires_at <= ?", now)
	return result.RowsAffected, result.Error
}
