package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"secure-escrow/api"
	"secure-escrow/config"
	"secure-escrow/internal/adapter/chain"
	httpHandler "secure-escrow/internal/adapter/http/handler"
	memStorage "secure-escrow/internal/adapter/storage/memory"
	pgStorage "secure-escrow/internal/adapter/storage/postgres"
	redisStorage "secure-escrow/internal/adapter/storage/redis"
	"secure-escrow/internal/core/ports"
	"secure-escrow/internal/service"
	"secure-escrow/pkg/logger"

	"github.com/rs/zerolog"
)

// repositories groups the storage adapters selected by storage.driver.
type repositories struct {
	accounts   ports.AccountRepository
	escrows    ports.EscrowRepository
	messages   ports.MessageRepository
	audits     ports.AuditRepository
	transactor ports.DBTransactor
	health     []ports.HealthChecker
	close      func()
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Secure Escrow")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required (ESC_JWT_SECRET)")
	}

	ctx := context.Background()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer repos.close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	passcodeStore := redisStorage.NewPasscodeStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	eventBus := redisStorage.NewEventBus(rdb, log)

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	notifier := service.NewNotificationService(
		cfg.Notify.RelayURL,
		cfg.Notify.RelaySecret,
		sigSvc,
		&http.Client{Timeout: cfg.Notify.Timeout},
		log.With().Str("component", "notifier").Logger(),
	)

	var settlement ports.SettlementTrigger
	if cfg.Settle.RelayURL != "" {
		settlement = service.NewSettlementRelay(
			cfg.Settle.RelayURL,
			cfg.Settle.RelaySecret,
			sigSvc,
			&http.Client{Timeout: cfg.Settle.Timeout},
			log.With().Str("component", "settlement").Logger(),
		)
		log.Info().Str("url", cfg.Settle.RelayURL).Msg("Settlement relay enabled")
	}

	var gate ports.BalanceGate
	if cfg.Chain.RPCURL != "" {
		g, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.Timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to chain RPC")
		}
		defer g.Close()
		gate = g
		log.Info().Msg("Balance gate connected")
	} else {
		log.Warn().Msg("chain.rpc_url not set, balance checks will answer 503")
	}

	// Initialize business services
	escrowSvc := service.NewEscrowService(
		repos.escrows,
		repos.accounts,
		repos.transactor,
		idempotencyCache,
		eventBus,
		notifier,
		settlement,
		log.With().Str("component", "escrow").Logger(),
	)
	identitySvc := service.NewIdentityService(repos.accounts, log)
	authSvc := service.NewAuthService(
		identitySvc,
		escrowSvc,
		passcodeStore,
		hashSvc,
		tokenSvc,
		notifier,
		service.PasscodeSettings{
			TTL:         cfg.Passcode.TTL,
			MaxAttempts: cfg.Passcode.MaxAttempts,
			Length:      cfg.Passcode.Length,
		},
		log.With().Str("component", "auth").Logger(),
	)
	accountSvc := service.NewAccountService(repos.accounts)
	summarySvc := service.NewSummaryService(repos.escrows)
	conversationSvc := service.NewConversationService(repos.escrows, repos.messages, eventBus, log)
	balanceSvc := service.NewBalanceService(gate, log)
	auditSvc := service.NewAuditService(repos.audits, log)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:         authSvc,
		AccountSvc:      accountSvc,
		SummarySvc:      summarySvc,
		EscrowSvc:       escrowSvc,
		ConversationSvc: conversationSvc,
		BalanceSvc:      balanceSvc,
		TokenSvc:        tokenSvc,
		Events:          eventBus,
		RateLimitStore:  rateLimitStore,
		AuditSvc:        auditSvc,
		HealthCheckers:  append(repos.health, redisStorage.NewHealthCheck(rdb)),
		OpenAPISpec:     api.OpenAPI,
		Logger:          log,
		Mode:            cfg.Server.Mode,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStorage builds the repositories for cfg.Storage.Driver.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		store := memStorage.NewStore()
		return &repositories{
			accounts:   memStorage.NewAccountRepo(store),
			escrows:    memStorage.NewEscrowRepo(store),
			messages:   memStorage.NewMessageRepo(store),
			audits:     memStorage.NewAuditRepo(store),
			transactor: memStorage.NewTransactor(store),
			close:      func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	log.Info().Msg("PostgreSQL connected")

	return &repositories{
		accounts:   pgStorage.NewAccountRepo(pool),
		escrows:    pgStorage.NewEscrowRepo(pool),
		messages:   pgStorage.NewMessageRepo(pool),
		audits:     pgStorage.NewAuditRepo(pool),
		transactor: pgStorage.NewTransactor(pool),
		health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
		close:      pool.Close,
	}, nil
}
