package handler

import (
	"net/http"
	"time"

	"bank-backoffice/internal/adapter/http/middleware"
	redisStore "bank-backoffice/internal/adapter/storage/redis"
	"bank-backoffice/internal/core/domain"
	"bank-backoffice/internal/core/ports"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// multipartOverhead is headroom above the document limit for form framing.
const multipartOverhead = 64 << 10

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AccountSvc       ports.AccountService
	OperationSvc     ports.OperationService
	DocumentSvc      ports.DocumentService
	TokenSvc         ports.TokenService
	AuditSvc         ports.AuditService         // nil = audit logging disabled
	RateLimitStore   *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers   []ports.HealthChecker
	MaxDocumentBytes int64
	CORSOrigins      []string // empty = CORS disabled
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.RequestID())
	if len(deps.CORSOrigins) > 0 {
		r.Use(corsPolicy(deps.CORSOrigins))
	}
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(deps.MaxDocumentBytes + multipartOverhead))
	r.MaxMultipartMemory = deps.MaxDocumentBytes + multipartOverhead

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// rl returns the group's rate limiter, or a no-op when limiting is disabled.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1", jwtAuth)

	clientHandler := NewClientHandler(deps.AccountSvc, deps.OperationSvc, deps.DocumentSvc)
	client := v1.Group("/client", middleware.RequireRole(domain.RoleClient))
	{
		client.GET("/account", rl(middleware.GroupClientRead), clientHandler.GetAccount)
		client.GET("/operations", rl(middleware.GroupClientRead), clientHandler.ListOperations)
		client.POST("/operations", rl(middleware.GroupOperationsCreate), clientHandler.CreateOperation)
		client.POST("/operations/:id/document", rl(middleware.GroupDocumentsUpload), clientHandler.UploadDocument)
	}

	agentHandler := NewAgentHandler(deps.OperationSvc, deps.DocumentSvc, deps.Logger)
	agent := v1.Group("/agent", middleware.RequireRole(domain.RoleAgent), rl(middleware.GroupAgent))
	{
		agent.GET("/operations/pending", agentHandler.ListPending)
		agent.PUT("/operations/:id/approve", agentHandler.Approve)
		agent.PUT("/operations/:id/reject", agentHandler.Reject)
		agent.GET("/operations/:id/document/info", agentHandler.GetDocumentInfo)
		agent.GET("/operations/:id/document", agentHandler.DownloadDocument)
	}

	adminHandler := NewAdminHandler(deps.AccountSvc)
	admin := v1.Group("/admin", middleware.RequireRole(domain.RoleAdmin), rl(middleware.GroupAdmin))
	{
		admin.POST("/accounts", adminHandler.OpenAccount)
	}

	return r
}

func corsPolicy(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowWildcard: true,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{
			"Authorization", "Content-Type", HeaderIdempotencyKey, middleware.HeaderRequestID,
		},
		ExposeHeaders: []string{
			middleware.HeaderRequestID, "Retry-After",
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
		},
		AllowCredentials: true,
		MaxAge:           time.Hour,
	})
}
