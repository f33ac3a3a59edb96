package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/repository/postgres"
	"github.com/scripta/scripta-api/internal/service"
	"github.com/scripta/scripta-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftService(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	svc := service.NewDraftService(repos.Draft)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	stranger, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	t.Run("create applies defaults", func(t *testing.T) {
		draft, err := svc.Create(ctx, owner.Principal(), service.CreateDraftInput{Content: "body"})
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultDraftTitle, draft.Title)
		assert.Equal(t, domain.DefaultDraftPlatform, draft.Platform)
		assert.False(t, draft.Generated)
		assert.Equal(t, owner.ID, draft.UserID)
	})

	t.Run("partial update keeps other fields", func(t *testing.T) {
		draft, err := svc.Create(ctx, owner.Principal(), service.CreateDraftInput{Title: "Title", Content: "old", Platform: "x"})
		require.NoError(t, err)

		content := "new"
		updated, err := svc.Update(ctx, owner.Principal(), draft.ID, service.UpdateDraftInput{Content: &content})
		require.NoError(t, err)
		assert.Equal(t, "Title", updated.Title)
		assert.Equal(t, "new", updated.Content)
		assert.Equal(t, "x", updated.Platform)
		assert.False(t, updated.UpdatedAt.Before(draft.UpdatedAt))

		fetched, err := svc.Get(ctx, owner.Principal(), draft.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", fetched.Content)
	})

	t.Run("drafts are scoped to their owner", func(t *testing.T) {
		draft, err := svc.Create(ctx, owner.Principal(), service.CreateDraftInput{Title: "private"})
		require.NoError(t, err)

		_, err = svc.Get(ctx, stranger.Principal(), draft.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		title := "hijacked"
		_, err = svc.Update(ctx, stranger.Principal(), draft.ID, service.UpdateDraftInput{Title: &title})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		assert.ErrorIs(t, svc.Delete(ctx, stranger.Principal(), draft.ID), domain.ErrNotFound)

		list, err := svc.List(ctx, stranger.Principal())
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("delete", func(t *testing.T) {
		draft, err := svc.Create(ctx, owner.Principal(), service.CreateDraftInput{Title: "gone"})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, owner.Principal(), draft.ID))
		_, err = svc.Get(ctx, owner.Principal(), draft.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, svc.Delete(ctx, owner.Principal(), uuid.New()), domain.ErrNotFound)
	})
}
