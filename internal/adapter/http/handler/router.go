package handler

import (
	"secure-escrow/internal/adapter/http/middleware"
	redisStore "secure-escrow/internal/adapter/storage/redis"
	"secure-escrow/internal/core/ports"
	"secure-escrow/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc         ports.AuthService
	AccountSvc      ports.AccountService
	SummarySvc      ports.SummaryService
	EscrowSvc       ports.EscrowService
	ConversationSvc ports.ConversationService
	BalanceSvc      ports.BalanceService
	TokenSvc        ports.TokenService
	Events          ports.EventSubscriber      // nil = event stream disabled
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	AuditSvc        ports.AuditService         // nil = audit logging disabled
	HealthCheckers  []ports.HealthChecker
	OpenAPISpec     []byte
	Logger          zerolog.Logger
	Mode            string // gin mode; empty means release
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode == "" {
		deps.Mode = gin.ReleaseMode
	}
	gin.SetMode(deps.Mode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(metrics.Middleware())
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", metrics.Handler())

	docs := NewDocsHandler(deps.OpenAPISpec)
	swagger := r.Group("/swagger")
	{
		swagger.GET("", docs.UI)
		swagger.GET("/spec", docs.Spec)
	}

	rules := middleware.DefaultRateLimitRules()

	// rl returns the limiter for group, or a no-op when no store is wired.
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/passcode", rl("auth_passcode"), authHandler.RequestPasscode)
		auth.POST("/verify", rl("auth_verify"), authHandler.VerifyPasscode)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	accountHandler := NewAccountHandler(deps.AccountSvc, deps.SummarySvc)
	accounts := v1.Group("/accounts/me", jwtAuth)
	{
		accounts.GET("", rl("read"), accountHandler.GetProfile)
		accounts.PUT("", rl("escrow_write"), accountHandler.UpdateProfile)
		accounts.PUT("/settlement-address", rl("escrow_write"), accountHandler.SetSettlementAddress)
		accounts.GET("/summary", rl("read"), accountHandler.Summary)
	}

	escrowHandler := NewEscrowHandler(deps.EscrowSvc)
	messageHandler := NewMessageHandler(deps.ConversationSvc)
	eventsHandler := NewEventsHandler(deps.EscrowSvc, deps.Events, deps.Logger)
	escrows := v1.Group("/escrows", jwtAuth)
	{
		escrows.POST("", rl("escrow_write"), escrowHandler.Create)
		escrows.GET("", rl("read"), escrowHandler.List)
		escrows.GET("/:id", rl("read"), escrowHandler.Get)
		escrows.POST("/:id/link", rl("escrow_write"), escrowHandler.Link)
		escrows.PUT("/:id/settlement-address", rl("escrow_write"), escrowHandler.SetSettlementAddress)
		escrows.POST("/:id/confirm", rl("escrow_write"), escrowHandler.Confirm)
		escrows.POST("/:id/dispute", rl("escrow_write"), escrowHandler.Dispute)
		escrows.GET("/:id/messages", rl("read"), messageHandler.List)
		escrows.POST("/:id/messages", rl("messages"), messageHandler.Post)
		escrows.GET("/:id/events", rl("read"), eventsHandler.Watch)
	}

	balanceHandler := NewBalanceHandler(deps.BalanceSvc)
	v1.POST("/balance/check", jwtAuth, rl("balance"), balanceHandler.Check)

	return r
}
