package postgres

import (
	"context"
	"time"

	"github.com/scripta/scripta-api/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewConnection(ctx context.Context, databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}

	return db, nil
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:            NewUserRepository(db),
		Plan:            NewPlanRepository(db),
		Session:         NewSessionRepository(db),
		PendingLogin:    NewPendingLoginRepository(db),
		PasswordReset:   NewPasswordResetRepository(db),
		Usage:           NewUsageRepository(db),
		GenerationCache: NewGenerationCacheRepository(db),
		Draft:           NewDraftRepository(db),
	}
}
