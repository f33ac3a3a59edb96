package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/scripta/scripta-api/internal/api"
	"github.com/scripta/scripta-api/internal/config"
	"github.com/scripta/scripta-api/internal/queue"
	"github.com/scripta/scripta-api/internal/repository"
	repoPostgres "github.com/scripta/scripta-api/internal/repository/postgres"
	"github.com/scripta/scripta-api/internal/service"
	"github.com/scripta/scripta-api/internal/websocket"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a migrated connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_scripta"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(ctx, db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		ctx := context.Background()
		tdb.Container.Terminate(ctx)
	}
}

// Truncate clears all user data for test isolation. Seeded plans are kept.
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{
		"drafts",
		"generation_cache",
		"daily_usage",
		"ai_usage",
		"password_reset_requests",
		"pending_logins",
		"trusted_sessions",
		"users",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// NewTestRedis starts an in-process Redis and returns a client for it.
func NewTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
	})
	return mr, rdb
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:                  "0", // Random port
		Environment:           "test",
		LogLevel:              "disabled",
		CORSAllowedOrigins:    "*",
		Timezone:              "UTC",
		JWTSecret:             "test-jwt-secret-key-for-testing-only",
		JWTExpiration:         time.Hour,
		MinPasswordLength:     8,
		LoginCodeTTL:          10 * time.Minute,
		ResetCodeTTL:          10 * time.Minute,
		ResetCooldown:         60 * time.Second,
		DefaultDailyLimit:     10,
		GeminiModel:           "gemini-test",
		GenerationTimeout:     5 * time.Second,
		GenerationCostPer1K:   0.0005,
		EmailFrom:             "no-reply@scripta.test",
		NotifyTimeout:         time.Second,
		QueueName:             "test-generation-queue",
		QueueAttempts:         3,
		QueueBackoff:          10 * time.Millisecond,
		QueueRemoveOnComplete: 100,
		QueueRemoveOnFail:     50,
		QueueLockDuration:     5 * time.Second,
		WorkerConcurrency:     1,
		WorkerPollInterval:    10 * time.Millisecond,
		WorkerStalledInterval: time.Second,
	}
}

// NewTestQueue builds a queue on rdb with the test configuration.
func NewTestQueue(rdb redis.UniversalClient, cfg *config.Config) *queue.Queue {
	return queue.New(rdb, cfg.QueueName, queue.Options{
		Attempts:         cfg.QueueAttempts,
		Backoff:          cfg.QueueBackoff,
		RemoveOnComplete: cfg.QueueRemoveOnComplete,
		RemoveOnFail:     cfg.QueueRemoveOnFail,
		LockDuration:     cfg.QueueLockDuration,
	})
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server    *httptest.Server
	DB        *TestDB
	Redis     *miniredis.Miniredis
	Queue     *queue.Queue
	Repos     *repository.Repositories
	Services  *service.Services
	Hub       *websocket.Hub
	Config    *config.Config
	Generator *FakeGenerator
	Mailbox   *CaptureSender
}

// NewTestServer creates a complete test server with all dependencies
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	mr, rdb := NewTestRedis(t)
	cfg := TestConfig()
	log := zerolog.Nop()

	repos := repoPostgres.NewRepositories(testDB.DB)
	q := NewTestQueue(rdb, cfg)
	gen := NewFakeGenerator()
	mailbox := NewCaptureSender()

	hub := websocket.NewHub(log)
	go hub.Run()

	services := service.NewServices(repos, mailbox, gen, q, cfg, log)
	router := api.NewRouter(services, hub, cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := q.Subscribe(ctx)
	if err != nil {
		cancel()
		t.Fatalf("failed to subscribe to queue events: %v", err)
	}
	go hub.PumpEvents(ctx, events)

	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:    server,
		DB:        testDB,
		Redis:     mr,
		Queue:     q,
		Repos:     repos,
		Services:  services,
		Hub:       hub,
		Config:    cfg,
		Generator: gen,
		Mailbox:   mailbox,
	}

	t.Cleanup(func() {
		server.Close()
		cancel()
		hub.Stop()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}

// WebSocketURL returns the WebSocket URL with token
func (ts *TestServer) WebSocketURL(token string) string {
	wsURL := "ws" + ts.Server.URL[4:] // Replace "http" with "ws"
	return fmt.Sprintf("%s/api/v1/ws?token=%s", wsURL, token)
}
