package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/repository/postgres"
	"github.com/scripta/scripta-api/internal/service"
	"github.com/scripta/scripta-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageService_ForUser(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	svc := service.NewUsageService(repos, testutil.TestConfig(), zerolog.Nop())
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	other, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	now := time.Now().UTC()
	testutil.SeedUsage(t, testDB.DB, user, "gemini-test", 12, now.Add(-time.Hour))
	testutil.SeedUsage(t, testDB.DB, user, "gemini-test", 2, now.AddDate(0, 0, -30))
	testutil.SeedUsage(t, testDB.DB, other, "gemini-test", 5, now.Add(-time.Hour))

	for i := 0; i < 3; i++ {
		_, ok, err := repos.Usage.Reserve(ctx, user.ID, service.StartOfDay(now, time.UTC), 10)
		require.NoError(t, err)
		require.True(t, ok)
	}

	t.Run("open range", func(t *testing.T) {
		report, err := svc.ForUser(ctx, user.Principal(), svc.ParseDateRange("", ""))
		require.NoError(t, err)

		assert.Equal(t, int64(14), report.TotalGenerations)
		assert.Equal(t, int64(1400), report.TotalTokens)
		assert.Equal(t, "0.000700", report.TotalCostUSD)
		assert.Len(t, report.RecentActivity, 10)
		assert.Equal(t, 3, report.TodayCount)
		assert.Equal(t, 10, report.DailyLimit)
		assert.Equal(t, 7, report.RemainingQuota)
	})

	t.Run("bounded range", func(t *testing.T) {
		from := now.AddDate(0, 0, -2).Format(time.RFC3339)
		report, err := svc.ForUser(ctx, user.Principal(), svc.ParseDateRange(from, ""))
		require.NoError(t, err)
		assert.Equal(t, int64(12), report.TotalGenerations)
	})

	t.Run("no usage", func(t *testing.T) {
		fresh, _ := testutil.NewUserBuilder().WithPlan(domain.PlanPro).Build(t, testDB.DB)
		report, err := svc.ForUser(ctx, fresh.Principal(), svc.ParseDateRange("", ""))
		require.NoError(t, err)
		assert.Zero(t, report.TotalGenerations)
		assert.NotNil(t, report.RecentActivity)
		assert.Empty(t, report.RecentActivity)
		assert.Equal(t, report.DailyLimit, report.RemainingQuota)
		assert.Greater(t, report.DailyLimit, 10)
	})
}

func TestUsageService_All(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	svc := service.NewUsageService(repos, testutil.TestConfig(), zerolog.Nop())
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	admin, _ := testutil.NewUserBuilder().WithRole(domain.RoleAdmin).Build(t, testDB.DB)
	testutil.SeedUsage(t, testDB.DB, user, "model-a", 2, time.Now())
	testutil.SeedUsage(t, testDB.DB, user, "model-b", 1, time.Now())

	t.Run("forbidden for regular users", func(t *testing.T) {
		_, err := svc.All(ctx, user.Principal(), svc.ParseDateRange("", ""))
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("groups by user and model", func(t *testing.T) {
		groups, err := svc.All(ctx, admin.Principal(), svc.ParseDateRange("", ""))
		require.NoError(t, err)
		require.Len(t, groups, 2)

		byModel := map[string]*domain.UsageGroup{}
		for _, g := range groups {
			assert.Equal(t, user.ID, g.UserID)
			assert.Equal(t, user.Username, g.Username)
			byModel[g.Model] = g
		}
		assert.Equal(t, int64(2), byModel["model-a"].Generations)
		assert.Equal(t, int64(200), byModel["model-a"].Tokens)
		assert.Equal(t, int64(1), byModel["model-b"].Generations)
	})
}
