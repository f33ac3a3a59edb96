package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrustedSession marks an (ip, user agent) pair that may log in without a code.
type TrustedSession struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;index;not null"`
	IPAddress string    `json:"ipAddress" gorm:"not null"`
	UserAgent string    `json:"userAgent" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

type PendingLogin struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;index;not null"`
	Code      string    `json:"-" gorm:"not null"`
	IPAddress string    `json:"ipAddress" gorm:"not null"`
	UserAgent string    `json:"userAgent" gorm:"not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

type PasswordResetRequest struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;index;not null"`
	Code      string    `json:"-" gorm:"not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}
