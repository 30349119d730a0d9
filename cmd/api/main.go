package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bank-backoffice/config"
	"bank-backoffice/internal/adapter/extract"
	httpHandler "bank-backoffice/internal/adapter/http/handler"
	"bank-backoffice/internal/adapter/oracle"
	"bank-backoffice/internal/adapter/storage/files"
	memStorage "bank-backoffice/internal/adapter/storage/memory"
	pgStorage "bank-backoffice/internal/adapter/storage/postgres"
	redisStorage "bank-backoffice/internal/adapter/storage/redis"
	"bank-backoffice/internal/core/ports"
	"bank-backoffice/internal/service"
	"bank-backoffice/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// repositories groups the storage ports for the selected driver.
type repositories struct {
	accounts    ports.AccountRepository
	operations  ports.OperationRepository
	documents   ports.DocumentRepository
	audit       ports.AuditRepository
	idempotency ports.IdempotencyRepository
	transactor  ports.DBTransactor
	health      ports.HealthChecker
	close       func()
}

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("BOB_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Msg("Starting bank back-office")

	ctx := context.Background()

	repos, err := openRepositories(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer repos.close()

	// Redis is the fast idempotency layer and backs rate limiting
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	docStorage, err := files.NewStorage(afero.NewOsFs(), cfg.Documents.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Documents.StoragePath).Msg("Failed to prepare document storage")
	}

	var advisor ports.AdvisoryOracle
	if cfg.Oracle.Enabled {
		advisor = oracle.NewClient(cfg.Oracle, logger.Component(log, "oracle"))
		log.Info().Str("url", cfg.Oracle.URL).Str("model", cfg.Oracle.Model).Msg("Advisory oracle enabled")
	}

	threshold, _ := cfg.Operations.Threshold() // checked by Validate

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	accountSvc := service.NewAccountService(repos.accounts, logger.Component(log, "accounts"))
	operationSvc := service.NewOperationService(
		repos.accounts,
		repos.operations,
		repos.transactor,
		service.NewTransactionValidator(threshold),
		idempotencyCache,
		repos.idempotency,
		cfg.Operations.IdempotencyTTL,
		logger.Component(log, "operations"),
	)
	documentSvc := service.NewDocumentService(
		repos.operations,
		repos.accounts,
		repos.documents,
		docStorage,
		extract.NewExtractor(),
		advisor,
		service.DocumentPolicy{
			MaxSizeBytes:  cfg.Documents.MaxSizeBytes,
			AllowedTypes:  cfg.Documents.AllowedTypes,
			AssessTimeout: cfg.Oracle.Timeout + 5*time.Second,
		},
		logger.Component(log, "documents"),
	)
	auditSvc := service.NewAuditService(repos.audit, logger.Component(log, "audit"))

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AccountSvc:       accountSvc,
		OperationSvc:     operationSvc,
		DocumentSvc:      documentSvc,
		TokenSvc:         tokenSvc,
		AuditSvc:         auditSvc,
		RateLimitStore:   rateLimitStore,
		HealthCheckers:   []ports.HealthChecker{repos.health, redisStorage.NewHealthCheck(rdb)},
		MaxDocumentBytes: cfg.Documents.MaxSizeBytes,
		CORSOrigins:      cfg.Server.CORSOrigins,
		Logger:           log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let background assessments and audit writes land before storage closes.
	documentSvc.Wait()
	auditSvc.Wait()

	log.Info().Msg("Server exited")
}

func openRepositories(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*repositories, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		store := memStorage.NewStore()
		return &repositories{
			accounts:    memStorage.NewAccountRepo(store),
			operations:  memStorage.NewOperationRepo(store),
			documents:   memStorage.NewDocumentRepo(store),
			audit:       memStorage.NewAuditRepo(store),
			idempotency: memStorage.NewIdempotencyRepo(store),
			transactor:  store,
			health:      memStorage.HealthCheck{},
			close:       func() {},
		}, nil
	case "postgres":
		if err := pgStorage.RunMigrations(cfg, log); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := pgStorage.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info().Msg("PostgreSQL connected")
		return &repositories{
			accounts:    pgStorage.NewAccountRepo(pool),
			operations:  pgStorage.NewOperationRepo(pool),
			documents:   pgStorage.NewDocumentRepo(pool),
			audit:       pgStorage.NewAuditRepo(pool),
			idempotency: pgStorage.NewIdempotencyRepo(pool),
			transactor:  pgStorage.NewTransactor(pool),
			health:      pgStorage.NewHealthCheck(pool),
			close:       pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
