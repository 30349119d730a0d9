package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisStore "bank-backoffice/internal/adapter/storage/redis"
	"bank-backoffice/pkg/apperror"
	"bank-backoffice/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// Endpoint groups with their own counters.
const (
	GroupOperationsCreate = "operations_create"
	GroupDocumentsUpload  = "documents_upload"
	GroupClientRead       = "client_read"
	GroupAgent            = "agent"
	GroupAdmin            = "admin"
)

// DefaultRateLimitRules returns the per-group request limits.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		GroupOperationsCreate: {Limit: 30, Window: time.Minute},
		GroupDocumentsUpload:  {Limit: 10, Window: time.Minute},
		GroupClientRead:       {Limit: 60, Window: time.Minute},
		GroupAgent:            {Limit: 120, Window: time.Minute},
		GroupAdmin:            {Limit: 30, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// When Redis is unavailable requests pass through.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys authenticated callers by identity and others by IP.
func extractIdentifier(c *gin.Context) string {
	if identity, ok := IdentityFrom(c); ok {
		return identity.ID.String()
	}
	return c.ClientIP()
}
