package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/repository"
	"github.com/scripta/scripta-api/internal/repository/postgres"
	"github.com/scripta/scripta-api/internal/service"
	"github.com/scripta/scripta-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generationFixture struct {
	db    *testutil.TestDB
	repos *repository.Repositories
	gen   *testutil.FakeGenerator
	svc   *service.GenerationService
}

func newGenerationFixture(t *testing.T) *generationFixture {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	gen := testutil.NewFakeGenerator()
	return &generationFixture{
		db:    testDB,
		repos: repos,
		gen:   gen,
		svc:   service.NewGenerationService(repos, gen, testutil.TestConfig(), zerolog.Nop()),
	}
}

func (f *generationFixture) usageCount(t *testing.T, user *domain.User) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.DB.Model(&domain.AIUsage{}).Where("user_id = ?", user.ID).Count(&count).Error)
	return count
}

func TestGenerationService_MissingTopic(t *testing.T) {
	f := newGenerationFixture(t)
	user, _ := testutil.NewUserBuilder().Build(t, f.db.DB)

	_, err := f.svc.Generate(context.Background(), user.Principal(), domain.GenerationRequest{Topic: "   "})
	assert.ErrorIs(t, err, domain.ErrMissingTopic)
	assert.Zero(t, f.gen.Calls())
}

func TestGenerationService_CacheHit(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, f.db.DB)
	req := domain.GenerationRequest{Topic: "Launching our beta", Tone: "friendly", Platform: "linkedin"}

	first, err := f.svc.Generate(ctx, user.Principal(), req)
	require.NoError(t, err)
	assert.True(t, first.Generated)
	assert.Equal(t, "Launching our beta", first.Title)
	assert.Equal(t, "linkedin", first.Platform)

	second, err := f.svc.Generate(ctx, user.Principal(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Content, second.Content)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.Generated)
	assert.Equal(t, 1, f.gen.Calls())
	assert.Equal(t, int64(1), f.usageCount(t, user))

	today, err := f.repos.Usage.CountForDay(ctx, user.ID, service.StartOfDay(first.CreatedAt, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, today, "cache hits must not consume quota")
}

func TestGenerationService_Regenerate(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, f.db.DB)
	req := domain.GenerationRequest{Topic: "Launching our beta", Tone: "friendly", Platform: "x"}

	first, err := f.svc.Generate(ctx, user.Principal(), req)
	require.NoError(t, err)

	req.Regenerate = true
	second, err := f.svc.Generate(ctx, user.Principal(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.Content, second.Content)
	assert.Equal(t, 2, f.gen.Calls())
	assert.Equal(t, int64(2), f.usageCount(t, user))

	// The cache now holds the regenerated text.
	req.Regenerate = false
	third, err := f.svc.Generate(ctx, user.Principal(), req)
	require.NoError(t, err)
	assert.Equal(t, second.Content, third.Content)
	assert.Equal(t, 2, f.gen.Calls())
}

func TestGenerationService_CacheKeyIncludesToneAndPlatform(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, f.db.DB)

	_, err := f.svc.Generate(ctx, user.Principal(), domain.GenerationRequest{Topic: "t", Tone: "friendly", Platform: "x"})
	require.NoError(t, err)
	_, err = f.svc.Generate(ctx, user.Principal(), domain.GenerationRequest{Topic: "t", Tone: "formal", Platform: "x"})
	require.NoError(t, err)
	_, err = f.svc.Generate(ctx, user.Principal(), domain.GenerationRequest{Topic: "t", Tone: "friendly", Platform: "linkedin"})
	require.NoError(t, err)

	assert.Equal(t, 3, f.gen.Calls())

	other, _ := testutil.NewUserBuilder().Build(t, f.db.DB)
	_, err = f.svc.Generate(ctx, other.Principal(), domain.GenerationRequest{Topic: "t", Tone: "friendly", Platform: "x"})
	require.NoError(t, err)
	assert.Equal(t, 4, f.gen.Calls(), "cache entries are per user")
}

func TestGenerationService_Quota(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().WithPlan(domain.PlanFreemium).Build(t, f.db.DB)

	for i := 0; i < 10; i++ {
		_, err := f.svc.Generate(ctx, user.Principal(), domain.GenerationRequest{Topic: "topic", Regenerate: true})
		require.NoError(t, err)
	}

	_, err := f.svc.Generate(ctx, user.Principal(), domain.GenerationRequest{Topic: "topic", Regenerate: true})
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)
	var quotaErr *domain.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 10, quotaErr.Limit)
	assert.Equal(t, 10, f.gen.Calls())

	// Cached content is still served after the limit.
	draft, err := f.svc.Generate(ctx, user.Principal(), domain.GenerationRequest{Topic: "topic"})
	require.NoError(t, err)
	assert.NotEmpty(t, draft.Content)
}

func TestGenerationService_ZeroLimitPlanBlocksGeneration(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()

	paused := &domain.SubscriptionPlan{ID: uuid.New(), Name: "Paused", DailyLimit: 0}
	require.NoError(t, f.db.DB.Create(paused).Error)
	user, _ := testutil.NewUserBuilder().WithPlan("Paused").Build(t, f.db.DB)

	_, err := f.svc.Generate(ctx, user.Principal(), domain.GenerationRequest{Topic: "topic"})
	var quotaErr *domain.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 0, quotaErr.Limit)
	assert.Equal(t, 0, f.gen.Calls())
}

func TestGenerationService_QuotaUnderConcurrency(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().WithPlan(domain.PlanFreemium).Build(t, f.db.DB)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Generate(ctx, user.Principal(), domain.GenerationRequest{Topic: "race", Regenerate: true})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrQuotaExceeded):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 5, rejected)
	assert.Equal(t, int64(10), f.usageCount(t, user))
}

func TestGenerationService_ModelFailureReleasesQuota(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, f.db.DB)

	f.gen.FailWith(errors.New("model unavailable"))
	_, err := f.svc.Generate(ctx, user.Principal(), domain.GenerationRequest{Topic: "topic"})
	require.Error(t, err)

	count, err := f.repos.Usage.CountForDay(ctx, user.ID, service.StartOfDay(time.Now(), time.UTC))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, f.usageCount(t, user))

	drafts, err := f.repos.Draft.ListByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestGenerationService_RecordsUsage(t *testing.T) {
	f := newGenerationFixture(t)
	ctx := context.Background()
	user, _ := testutil.NewUserBuilder().Build(t, f.db.DB)

	f.gen.RespondWith("one two three four")
	_, err := f.svc.Generate(ctx, user.Principal(), domain.GenerationRequest{Topic: "topic", Tone: "witty", Platform: "x"})
	require.NoError(t, err)

	var usage domain.AIUsage
	require.NoError(t, f.db.DB.Where("user_id = ?", user.ID).First(&usage).Error)
	assert.Equal(t, "fake-model", usage.Model)
	assert.Equal(t, service.EstimateTokens(f.gen.LastPrompt(), "one two three four"), usage.TokensUsed)
	assert.InDelta(t, service.EstimateCost(usage.TokensUsed, 0.0005), usage.CostUSD, 1e-6)
	assert.Contains(t, f.gen.LastPrompt(), "witty")
}
