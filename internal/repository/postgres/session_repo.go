package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/scripta/scripta-api/internal/domain"
	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.TrustedSession) error {
	return translateError(r.db.WithContext(ctx).Create(session).Error)
}

func (r *sessionRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.TrustedSession, error) {
	var session domain.TrustedSession
	err := r.db.WithContext(ctx).First(&session, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &session, nil
}

func (r *sessionRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.TrustedSession, error) {
	var sessions []*domain.TrustedSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) FindTrusted(ctx context.Context, userID uuid.UUID, ip, userAgent string) (*domain.TrustedSession, error) {
	var session domain.TrustedSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ip_address = ? AND user_agent = ?", userID, ip, userAgent).
		First(&session).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &session, nil
}

func (r *sessionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.TrustedSession{}, "id = ? AND user_id = ?", id, userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.TrustedSession{}, "user_id = ?", userID).Error
}
