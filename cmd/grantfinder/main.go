// Command grantfinder runs the grant-discovery and ranking service:
// the scheduler (C9), the HTTP API (C10), and the health monitor (C11)
// share one process, one database pool, and one breaker set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/grantfinder/pkg/adapters"
	"github.com/codeready-toolchain/grantfinder/pkg/breaker"
	"github.com/codeready-toolchain/grantfinder/pkg/compliance"
	"github.com/codeready-toolchain/grantfinder/pkg/config"
	"github.com/codeready-toolchain/grantfinder/pkg/database"
	"github.com/codeready-toolchain/grantfinder/pkg/dedup"
	"github.com/codeready-toolchain/grantfinder/pkg/health"
	"github.com/codeready-toolchain/grantfinder/pkg/httpapi"
	"github.com/codeready-toolchain/grantfinder/pkg/notify"
	"github.com/codeready-toolchain/grantfinder/pkg/rag"
	"github.com/codeready-toolchain/grantfinder/pkg/research"
	"github.com/codeready-toolchain/grantfinder/pkg/scheduler"
	"github.com/codeready-toolchain/grantfinder/pkg/slack"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
	"github.com/codeready-toolchain/grantfinder/pkg/vectorindex"
)

// §6 CLI exit codes.
const (
	exitOK                 = 0
	exitConfigError        = 1
	exitDBUnavailable      = 2
	exitMigrationPending   = 3
	exitExternalProbeError = 4
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	checkOnly := flag.Bool("check", false, "Validate configuration and external dependencies, then exit without serving traffic")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("no .env file at %s, continuing with process environment", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Printf("configuration error: %v", err)
		os.Exit(exitConfigError)
	}
	configMgr := config.NewManager(*configDir, cfg)
	go configMgr.WatchReload(ctx)

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Printf("configuration error: %v", err)
		os.Exit(exitConfigError)
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Printf("database unavailable: %v", err)
		os.Exit(exitDBUnavailable)
	}
	defer dbClient.Close()

	if pending, err := migrationsPending(ctx, dbClient); err != nil {
		log.Printf("could not determine migration status: %v", err)
		os.Exit(exitMigrationPending)
	} else if pending {
		log.Printf("pending migrations detected")
		os.Exit(exitMigrationPending)
	}

	grantsStore := store.NewGrantStore(dbClient.Pool)
	appsStore := store.NewApplicationStore(dbClient.Pool)
	profilesStore := store.NewProfileStore(dbClient.Pool)
	runsStore := store.NewSearchRunStore(dbClient.Pool)
	usersStore := store.NewUserStore(dbClient.Pool)

	registry, err := adapters.NewRegistry(ctx, cfg.Infra)
	if err != nil {
		log.Printf("external service probe failed: %v", err)
		os.Exit(exitExternalProbeError)
	}

	dbBreaker := breaker.New(breaker.DatabaseDefaults(), nil)
	llmBreaker := breaker.New(breaker.LLMDefaults(), nil)
	vectorBreaker := breaker.New(breaker.VectorStoreDefaults(), vectorindex.UniformFallback(nil))
	emailBreaker := breaker.New(breaker.EmailDefaults(), nil)
	breakers := map[string]*breaker.Breaker{
		"database":     dbBreaker,
		"llm":          llmBreaker,
		"vector-store": vectorBreaker,
		"email":        emailBreaker,
	}

	vectorIndex, err := vectorindex.Open(cfg.Infra.VectorStorePath, cfg.Defaults.EmbeddingDimension)
	if err != nil {
		log.Printf("external service probe failed: %v", err)
		os.Exit(exitExternalProbeError)
	}
	defer vectorIndex.Close()

	embedder, err := adapters.NewTitanEmbedder(ctx, getEnv("EMBEDDING_REGION", "us-east-1"), cfg.Infra.EmbeddingModelName, cfg.Defaults.EmbeddingDimension)
	if err != nil {
		log.Printf("external service probe failed: %v", err)
		os.Exit(exitExternalProbeError)
	}

	emailSender := adapters.NewSMTPEmailSender(
		getEnv("SMTP_ADDR", "localhost:25"),
		getEnv("SMTP_USERNAME", ""),
		getEnv("SMTP_PASSWORD", ""),
		getEnv("SMTP_FROM", "grantfinder@example.com"),
	)

	opsSlack := slack.NewService(slack.ServiceConfig{
		Token:        os.Getenv(cfg.Infra.OpsSlackTokenEnv),
		Channel:      cfg.Infra.OpsSlackChannel,
		DashboardURL: getEnv("DASHBOARD_URL", ""),
	})

	researchAgent := research.New(registry.Primary(), llmBreaker, cfg).WithRefine(true)
	complianceAgent, err := compliance.New(ctx, cfg)
	if err != nil {
		log.Printf("configuration error: %v", err)
		os.Exit(exitConfigError)
	}
	dedupService := dedup.New(grantsStore)

	retriever := rag.New(embedder, vectorBreaker, vectorIndex)
	generator := rag.NewGenerator(registry.Primary(), llmBreaker, cfg.Infra.LLMProviders[cfg.Infra.PrimaryLLM].Model)

	pipeline := &scheduler.Pipeline{
		Research:   researchAgent,
		Compliance: complianceAgent,
		Dedup:      dedupService,
		Users:      usersStore,
		Profiles:   profilesStore,
		Runs:       runsStore,
		Notify:     notifyDispatcher(emailSender, emailBreaker, opsSlack),
	}

	queue := scheduler.NewQueue(cfg.Scheduler.QueueCapacity)
	pool := scheduler.NewPool(queue, pipeline, cfg.Scheduler)
	cronDriver := scheduler.NewCronDriver(queue, usersStore, cfg.Scheduler.Cadence)
	cleanupDriver := scheduler.NewCleanupDriver(grantsStore, usersStore, vectorIndex, cfg.Retention, cfg.Scheduler.WeeklyCleanupCadence)

	pool.Start(ctx)
	go cronDriver.Start(ctx)
	go cleanupDriver.Start(ctx)

	monitor := health.New(dbClient.Pool, breakers, registry, cfg.Infra.FallbackLLM, queue, 0)
	go monitor.Start(ctx)

	if *checkOnly {
		log.Println("configuration, database, and external dependencies check passed")
		os.Exit(exitOK)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Infra.RedisAddr})
	defer redisClient.Close()

	server := httpapi.NewServer(httpapi.Deps{
		Infra:     cfg.Infra,
		Defaults:  cfg.Defaults,
		Grants:    grantsStore,
		Apps:      appsStore,
		Profiles:  profilesStore,
		Runs:      runsStore,
		Users:     usersStore,
		Queue:     queue,
		Retriever: retriever,
		Generator: generator,
		Redis:     redisClient,
	})
	monitor.RegisterRoutes(server.Engine())

	httpPort := getEnv("HTTP_PORT", cfg.Infra.HTTPPort)
	slog.Info("starting grantfinder", "http_port", httpPort, "config_dir", *configDir)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx, ":"+httpPort)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("error during graceful shutdown: %v", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("http server failed: %v", err)
		}
	}
}

// migrationsPending is a placeholder hook for a future explicit
// migration-status check; database.NewClient already applies pending
// migrations at startup, so today this always reports none pending.
func migrationsPending(ctx context.Context, dbClient *database.Client) (bool, error) {
	return false, nil
}

func notifyDispatcher(email adapters.EmailSender, cb *breaker.Breaker, ops *slack.Service) *notify.Dispatcher {
	return notify.New(email, cb, ops, func(ctx context.Context, userID uuid.UUID) (string, error) {
		return "", fmt.Errorf("recipient lookup not wired to an identity provider")
	})
}
