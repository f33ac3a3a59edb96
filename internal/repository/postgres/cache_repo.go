package postgres

import (
	"context"

	"github.com/scripta/scripta-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type generationCacheRepository struct {
	db *gorm.DB
}

func NewGenerationCacheRepository(db *gorm.DB) *generationCacheRepository {
	return &generationCacheRepository{db: db}
}

func (r *generationCacheRepository) Get(ctx context.Context, key domain.CacheKey) (*domain.GenerationCacheEntry, error) {
	var entry domain.GenerationCacheEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND topic = ? AND tone = ? AND platform = ?", key.UserID, key.Topic, key.Tone, key.Platform).
		First(&entry).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &entry, nil
}

// Upsert stores entry under its key, overwriting content and model of an
// existing row.
func (r *generationCacheRepository) Upsert(ctx context.Context, entry *domain.GenerationCacheEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "topic"},
				{Name: "tone"},
				{Name: "platform"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"content", "model", "updated_at"}),
		}).
		Create(entry).Error
}
