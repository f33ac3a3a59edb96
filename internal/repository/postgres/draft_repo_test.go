package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/repository/postgres"
	"github.com/scripta/scripta-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftRepository_ListOrder(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewDraftRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	now := time.Now()

	older := testutil.NewDraftBuilder().WithOwner(user).WithTitle("older").WithUpdatedAt(now.Add(-time.Hour)).Build(t, testDB.DB)
	newer := testutil.NewDraftBuilder().WithOwner(user).WithTitle("newer").WithUpdatedAt(now).Build(t, testDB.DB)
	testutil.NewDraftBuilder().WithTitle("someone else").Build(t, testDB.DB)

	drafts, err := repo.ListByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, newer.ID, drafts[0].ID)
	assert.Equal(t, older.ID, drafts[1].ID)
}

func TestDraftRepository_OwnerScoped(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewDraftRepository(testDB.DB)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	other, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	draft := testutil.NewDraftBuilder().WithOwner(owner).Build(t, testDB.DB)

	_, err := repo.GetByID(ctx, other.ID, draft.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, other.ID, draft.ID), domain.ErrNotFound)

	draft.Title = "renamed"
	draft.UpdatedAt = time.Now()
	require.NoError(t, repo.Update(ctx, draft))

	found, err := repo.GetByID(ctx, owner.ID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", found.Title)

	require.NoError(t, repo.Delete(ctx, owner.ID, draft.ID))
	_, err = repo.GetByID(ctx, owner.ID, draft.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, owner.ID, uuid.New()), domain.ErrNotFound)
}

func TestGenerationCacheRepository_Upsert(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewGenerationCacheRepository(testDB.DB)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	key := domain.CacheKey{UserID: user.ID, Topic: "launch", Tone: "friendly", Platform: "x"}

	_, err := repo.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	entry := func(content string) *domain.GenerationCacheEntry {
		return &domain.GenerationCacheEntry{
			ID:        uuid.New(),
			UserID:    key.UserID,
			Topic:     key.Topic,
			Tone:      key.Tone,
			Platform:  key.Platform,
			Content:   content,
			Model:     "fake-model",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
	}

	require.NoError(t, repo.Upsert(ctx, entry("first")))
	require.NoError(t, repo.Upsert(ctx, entry("second")))

	found, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "second", found.Content)

	var count int64
	require.NoError(t, testDB.DB.Model(&domain.GenerationCacheEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// A different tone is a different key.
	_, err = repo.Get(ctx, domain.CacheKey{UserID: user.ID, Topic: "launch", Tone: "formal", Platform: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
