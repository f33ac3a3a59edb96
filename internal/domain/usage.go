package domain

import (
	"time"

	"github.com/google/uuid"
)

// AIUsage is one model call. Rows are never updated.
type AIUsage struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID     uuid.UUID `json:"userId" gorm:"type:uuid;index;not null"`
	Model      string    `json:"model" gorm:"not null"`
	TokensUsed int       `json:"tokensUsed" gorm:"not null"`
	CostUSD    float64   `json:"costUsd" gorm:"type:numeric(12,6);not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"index"`
}

func (AIUsage) TableName() string {
	return "ai_usage"
}

// DailyUsage is the per-day generation counter that quota reservations increment.
type DailyUsage struct {
	UserID uuid.UUID `json:"userId" gorm:"type:uuid;primaryKey"`
	Day    time.Time `json:"day" gorm:"type:date;primaryKey"`
	Count  int       `json:"count" gorm:"not null;default:0"`
}

func (DailyUsage) TableName() string {
	return "daily_usage"
}

type UsageTotals struct {
	Generations int64
	Tokens      int64
	CostUSD     float64
}

// UsageGroup is one (user, model) row of the admin report.
type UsageGroup struct {
	UserID      uuid.UUID `json:"userId"`
	Username    string    `json:"username"`
	Model       string    `json:"model"`
	Generations int64     `json:"totalGenerations"`
	Tokens      int64     `json:"totalTokens"`
	CostUSD     float64   `json:"totalCostUsd"`
}

type TimeRange struct {
	From time.Time
	To   time.Time
}
