package service

import (
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/config"
	"github.com/scripta/scripta-api/internal/llm"
	"github.com/scripta/scripta-api/internal/repository"
)

type Services struct {
	Auth       *AuthService
	Session    *SessionService
	Draft      *DraftService
	Generation *GenerationService
	Usage      *UsageService
	Job        *JobService
}

func NewServices(repos *repository.Repositories, notifier Notifier, generator llm.Generator, q JobQueue, cfg *config.Config, logger zerolog.Logger) *Services {
	generation := NewGenerationService(repos, generator, cfg, logger)
	return &Services{
		Auth:       NewAuthService(repos, notifier, cfg, logger),
		Session:    NewSessionService(repos.Session, logger),
		Draft:      NewDraftService(repos.Draft),
		Generation: generation,
		Usage:      NewUsageService(repos, cfg, logger),
		Job:        NewJobService(q, generation, logger),
	}
}
