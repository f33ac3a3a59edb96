package domain

import (
	"time"

	"github.com/google/uuid"
)

type CacheKey struct {
	UserID   uuid.UUID
	Topic    string
	Tone     string
	Platform string
}

type GenerationCacheEntry struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_generation_cache_key"`
	Topic     string    `json:"topic" gorm:"not null;uniqueIndex:idx_generation_cache_key"`
	Tone      string    `json:"tone" gorm:"not null;uniqueIndex:idx_generation_cache_key"`
	Platform  string    `json:"platform" gorm:"not null;uniqueIndex:idx_generation_cache_key"`
	Content   string    `json:"content" gorm:"not null"`
	Model     string    `json:"model" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (GenerationCacheEntry) TableName() string {
	return "generation_cache"
}

func (e *GenerationCacheEntry) Key() CacheKey {
	return CacheKey{UserID: e.UserID, Topic: e.Topic, Tone: e.Tone, Platform: e.Platform}
}
