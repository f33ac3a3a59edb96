package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/repository"
)

type SessionService struct {
	sessionRepo repository.SessionRepository
	logger      zerolog.Logger
}

func NewSessionService(sessionRepo repository.SessionRepository, logger zerolog.Logger) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		logger:      logger.With().Str("service", "SessionService").Logger(),
	}
}

func (s *SessionService) List(ctx context.Context, p domain.Principal) ([]*domain.TrustedSession, error) {
	return s.sessionRepo.ListByUserID(ctx, p.UserID)
}

func (s *SessionService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.TrustedSession, error) {
	return s.sessionRepo.GetByID(ctx, p.UserID, id)
}

// Revoke removes one trusted device. The next login from it needs a code.
func (s *SessionService) Revoke(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	if err := s.sessionRepo.Delete(ctx, p.UserID, id); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", p.UserID.String()).Str("session_id", id.String()).Msg("session revoked")
	return nil
}
