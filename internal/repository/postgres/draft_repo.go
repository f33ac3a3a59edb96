package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/scripta/scripta-api/internal/domain"
	"gorm.io/gorm"
)

type draftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) *draftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) Create(ctx context.Context, draft *domain.Draft) error {
	return translateError(r.db.WithContext(ctx).Create(draft).Error)
}

func (r *draftRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Draft, error) {
	var draft domain.Draft
	err := r.db.WithContext(ctx).First(&draft, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &draft, nil
}

func (r *draftRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Draft, error) {
	var drafts []*domain.Draft
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&drafts).Error
	return drafts, err
}

func (r *draftRepository) Update(ctx context.Context, draft *domain.Draft) error {
	result := r.db.WithContext(ctx).Model(draft).
		Where("user_id = ?", draft.UserID).
		Updates(map[string]interface{}{
			"title":      draft.Title,
			"content":    draft.Content,
			"updated_at": draft.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *draftRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.Draft{}, "id = ? AND user_id = ?", id, userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
