package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/config"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/llm"
	"github.com/scripta/scripta-api/internal/repository"
)

// GenerationService turns a topic into a generated draft. Cache hits are
// free; every model call consumes one unit of the user's daily quota.
type GenerationService struct {
	userRepo  repository.UserRepository
	usageRepo repository.UsageRepository
	cacheRepo repository.GenerationCacheRepository
	draftRepo repository.DraftRepository
	generator llm.Generator
	cfg       *config.Config
	loc       *time.Location
	logger    zerolog.Logger
	now       func() time.Time
}

func NewGenerationService(repos *repository.Repositories, generator llm.Generator, cfg *config.Config, logger zerolog.Logger) *GenerationService {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	return &GenerationService{
		userRepo:  repos.User,
		usageRepo: repos.Usage,
		cacheRepo: repos.GenerationCache,
		draftRepo: repos.Draft,
		generator: generator,
		cfg:       cfg,
		loc:       loc,
		logger:    logger.With().Str("service", "GenerationService").Logger(),
		now:       time.Now,
	}
}

func (s *GenerationService) Generate(ctx context.Context, p domain.Principal, req domain.GenerationRequest) (*domain.Draft, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, domain.ErrMissingTopic
	}
	key := domain.CacheKey{UserID: p.UserID, Topic: topic, Tone: req.Tone, Platform: req.Platform}
	log := s.logger.With().Str("user_id", p.UserID.String()).Logger()

	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	if !req.Regenerate {
		cached, err := s.cacheRepo.Get(ctx, key)
		switch {
		case err == nil:
			log.Info().Msg("using cached generation")
			return s.createDraft(ctx, key, cached.Content)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	limit := user.DailyLimit(s.cfg.DefaultDailyLimit)
	day := StartOfDay(s.now(), s.loc)
	count, reserved, err := s.usageRepo.Reserve(ctx, user.ID, day, limit)
	if err != nil {
		return nil, fmt.Errorf("reserve quota: %w", err)
	}
	if !reserved {
		log.Warn().Int("limit", limit).Int("count", count).Msg("daily quota exceeded")
		return nil, &domain.QuotaError{Limit: limit}
	}

	prompt := BuildPrompt(topic, req.Tone, req.Platform)

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	start := s.now()
	text, err := s.generator.GenerateText(genCtx, prompt)
	elapsed := s.now().Sub(start)
	if err != nil {
		// The model never produced anything, so the quota unit goes back.
		if relErr := s.usageRepo.Release(context.WithoutCancel(ctx), user.ID, day); relErr != nil {
			log.Error().Err(relErr).Msg("failed to release quota reservation")
		}
		return nil, fmt.Errorf("generate text: %w", err)
	}

	tokens := EstimateTokens(prompt, text)
	usage := &domain.AIUsage{
		ID:         uuid.New(),
		UserID:     user.ID,
		Model:      s.generator.Model(),
		TokensUsed: tokens,
		CostUSD:    EstimateCost(tokens, s.cfg.GenerationCostPer1K),
		CreatedAt:  s.now(),
	}
	if err := s.usageRepo.Append(ctx, usage); err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}

	entry := &domain.GenerationCacheEntry{
		ID:        uuid.New(),
		UserID:    key.UserID,
		Topic:     key.Topic,
		Tone:      key.Tone,
		Platform:  key.Platform,
		Content:   text,
		Model:     s.generator.Model(),
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.cacheRepo.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("update generation cache: %w", err)
	}

	log.Info().
		Int64("elapsed_ms", elapsed.Milliseconds()).
		Int("tokens", tokens).
		Int("quota_used", count).
		Int("quota_limit", limit).
		Msg("generation complete")

	return s.createDraft(ctx, key, text)
}

func (s *GenerationService) createDraft(ctx context.Context, key domain.CacheKey, content string) (*domain.Draft, error) {
	platform := key.Platform
	if platform == "" {
		platform = domain.DefaultDraftPlatform
	}
	now := s.now()
	draft := &domain.Draft{
		ID:        uuid.New(),
		UserID:    key.UserID,
		Title:     key.Topic,
		Content:   content,
		Platform:  platform,
		Tone:      key.Tone,
		Generated: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.draftRepo.Create(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
