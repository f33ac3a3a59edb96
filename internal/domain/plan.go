package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	PlanFreemium = "Freemium"
	PlanPro      = "Pro"
)

type SubscriptionPlan struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name            string         `json:"name" gorm:"uniqueIndex;not null"`
	Description     string         `json:"description"`
	DailyLimit      int            `json:"dailyLimit" gorm:"not null"`
	MonthlyPriceUSD float64        `json:"monthlyPriceUsd" gorm:"type:numeric(10,2);not null;default:0"`
	Features        datatypes.JSON `json:"features" gorm:"type:jsonb;default:'[]'"`
	CreatedAt       time.Time      `json:"createdAt"`
}
