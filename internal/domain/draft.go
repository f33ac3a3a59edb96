package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultDraftTitle    = "Untitled Draft"
	DefaultDraftPlatform = "general"
)

type Draft struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;index;not null"`
	Title     string    `json:"title" gorm:"not null"`
	Content   string    `json:"content" gorm:"not null;default:''"`
	Platform  string    `json:"platform" gorm:"not null"`
	Tone      string    `json:"tone"`
	Generated bool      `json:"generated" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
