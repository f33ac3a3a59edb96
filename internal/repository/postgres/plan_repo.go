package postgres

import (
	"context"

	"github.com/scripta/scripta-api/internal/domain"
	"gorm.io/gorm"
)

type planRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *planRepository {
	return &planRepository{db: db}
}

func (r *planRepository) GetByName(ctx context.Context, name string) (*domain.SubscriptionPlan, error) {
	var plan domain.SubscriptionPlan
	if err := r.db.WithContext(ctx).First(&plan, "name = ?", name).Error; err != nil {
		return nil, translateError(err)
	}
	return &plan, nil
}

func (r *planRepository) List(ctx context.Context) ([]*domain.SubscriptionPlan, error) {
	var plans []*domain.SubscriptionPlan
	err := r.db.WithContext(ctx).Order("daily_limit ASC").Find(&plans).Error
	return plans, err
}
