package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/scripta/scripta-api/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByIdentifier matches either the username or the email.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	UpdateRole(ctx context.Context, email string, role domain.Role) error
}

type PlanRepository interface {
	GetByName(ctx context.Context, name string) (*domain.SubscriptionPlan, error)
	List(ctx context.Context) ([]*domain.SubscriptionPlan, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.TrustedSession) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.TrustedSession, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.TrustedSession, error)
	// FindTrusted returns the session matching all of user, ip and user agent.
	FindTrusted(ctx context.Context, userID uuid.UUID, ip, userAgent string) (*domain.TrustedSession, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type PendingLoginRepository interface {
	// Replace removes the user's earlier pending logins and stores this one.
	Replace(ctx context.Context, pending *domain.PendingLogin) error
	// Consume deletes and returns the pending login matching code if it has not
	// expired at now. Only one caller can consume a given row.
	Consume(ctx context.Context, userID uuid.UUID, code string, now time.Time) (*domain.PendingLogin, error)
	CountLive(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type PasswordResetRepository interface {
	Replace(ctx context.Context, req *domain.PasswordResetRequest) error
	Latest(ctx context.Context, userID uuid.UUID) (*domain.PasswordResetRequest, error)
	// Find returns the live request matching code without consuming it.
	Find(ctx context.Context, userID uuid.UUID, code string, now time.Time) (*domain.PasswordResetRequest, error)
	Consume(ctx context.Context, userID uuid.UUID, code string, now time.Time) (*domain.PasswordResetRequest, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type UsageRepository interface {
	// Reserve increments the user's counter for day unless it already reached
	// limit. It returns the count after the increment and whether it happened.
	Reserve(ctx context.Context, userID uuid.UUID, day time.Time, limit int) (int, bool, error)
	Release(ctx context.Context, userID uuid.UUID, day time.Time) error
	CountForDay(ctx context.Context, userID uuid.UUID, day time.Time) (int, error)
	Append(ctx context.Context, usage *domain.AIUsage) error
	Totals(ctx context.Context, userID uuid.UUID, r domain.TimeRange) (*domain.UsageTotals, error)
	Recent(ctx context.Context, userID uuid.UUID, r domain.TimeRange, limit int) ([]*domain.AIUsage, error)
	GroupByUserModel(ctx context.Context, r domain.TimeRange) ([]*domain.UsageGroup, error)
}

type GenerationCacheRepository interface {
	Get(ctx context.Context, key domain.CacheKey) (*domain.GenerationCacheEntry, error)
	Upsert(ctx context.Context, entry *domain.GenerationCacheEntry) error
}

type DraftRepository interface {
	Create(ctx context.Context, draft *domain.Draft) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Draft, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Draft, error)
	Update(ctx context.Context, draft *domain.Draft) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type Repositories struct {
	User            UserRepository
	Plan            PlanRepository
	Session         SessionRepository
	PendingLogin    PendingLoginRepository
	PasswordReset   PasswordResetRepository
	Usage           UsageRepository
	GenerationCache GenerationCacheRepository
	Draft           DraftRepository
}
