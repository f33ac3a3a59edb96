package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/repository"
)

type DraftService struct {
	draftRepo repository.DraftRepository
	now       func() time.Time
}

func NewDraftService(draftRepo repository.DraftRepository) *DraftService {
	return &DraftService{
		draftRepo: draftRepo,
		now:       time.Now,
	}
}

type CreateDraftInput struct {
	Title    string
	Content  string
	Platform string
	Tone     string
}

// UpdateDraftInput changes only the fields that are set.
type UpdateDraftInput struct {
	Title   *string
	Content *string
}

func (s *DraftService) Create(ctx context.Context, p domain.Principal, input CreateDraftInput) (*domain.Draft, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = domain.DefaultDraftTitle
	}
	platform := strings.TrimSpace(input.Platform)
	if platform == "" {
		platform = domain.DefaultDraftPlatform
	}

	now := s.now()
	draft := &domain.Draft{
		ID:        uuid.New(),
		UserID:    p.UserID,
		Title:     title,
		Content:   input.Content,
		Platform:  platform,
		Tone:      input.Tone,
		Generated: false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.draftRepo.Create(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *DraftService) List(ctx context.Context, p domain.Principal) ([]*domain.Draft, error) {
	return s.draftRepo.ListByUserID(ctx, p.UserID)
}

func (s *DraftService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Draft, error) {
	return s.draftRepo.GetByID(ctx, p.UserID, id)
}

func (s *DraftService) Update(ctx context.Context, p domain.Principal, id uuid.UUID, input UpdateDraftInput) (*domain.Draft, error) {
	draft, err := s.draftRepo.GetByID(ctx, p.UserID, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		draft.Title = *input.Title
	}
	if input.Content != nil {
		draft.Content = *input.Content
	}
	draft.UpdatedAt = s.now()

	if err := s.draftRepo.Update(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *DraftService) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	return s.draftRepo.Delete(ctx, p.UserID, id)
}
