package server

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/model-router/router/internal/auth"
	"github.com/model-router/router/internal/ratelimit"
	"github.com/model-router/router/pkg/errors"
	"github.com/model-router/router/pkg/utils"
)

const (
	contextKeyCallerID  = "caller_id"
	contextKeyRequestID = "request_id"
	contextKeyClaims    = "admin_claims"
)

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware assigns every request an ID for log correlation
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}
		c.Set(contextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// requestLoggingMiddleware logs each request with latency and status
func requestLoggingMiddleware(logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.WithFields(logrus.Fields{
			"request_id": c.GetString(contextKeyRequestID),
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}).Info("Request completed")
	}
}

// apiKeyMiddleware resolves the caller identity for rate limiting and
// request logs. A presented key is always validated; keyless callers
// fall back to the client IP unless require_api_key is set.
func apiKeyMiddleware(keys *auth.APIKeyService, require bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := extractAPIKey(c)

		if apiKey == "" {
			if require {
				writeError(c, errors.ErrAuthenticationRequired)
				c.Abort()
				return
			}
			c.Set(contextKeyCallerID, c.ClientIP())
			c.Next()
			return
		}

		record, err := keys.Validate(c.Request.Context(), apiKey)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}

		c.Set(contextKeyCallerID, record.Name)
		c.Next()
	}
}

// rateLimitMiddleware admits or rejects requests per caller identity
func rateLimitMiddleware(limiter ratelimit.Limiter, logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		callerID := c.GetString(contextKeyCallerID)
		if callerID == "" {
			callerID = c.ClientIP()
		}

		allowed, err := limiter.Admit(c.Request.Context(), callerID)
		if err != nil {
			logger.WithError(err).Error("Rate limiter failure, admitting request")
			c.Next()
			return
		}

		if !allowed {
			logger.LogRateLimitExceeded(callerID, c.Request.URL.Path)
			writeError(c, errors.ErrTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}

// adminAuthMiddleware validates admin JWT tokens
func adminAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(c, errors.ErrAuthenticationRequired)
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}

		if claims.Role != "admin" {
			writeError(c, errors.New(errors.ErrUnauthorized, "Admin access required"))
			c.Abort()
			return
		}

		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

// extractAPIKey reads the API key from the X-API-Key header or a
// Bearer token carrying the key prefix.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer rk_") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// writeError renders any error as a JSON error envelope
func writeError(c *gin.Context, err error) {
	var exhaustion *errors.ExhaustionError
	if stderrors.As(err, &exhaustion) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{
				"code":     string(errors.ErrAllProvidersExhausted),
				"message":  "All providers exhausted",
				"attempts": exhaustion.Attempts,
			},
		})
		return
	}

	var routerErr *errors.RouterError
	if stderrors.As(err, &routerErr) {
		c.JSON(routerErr.HTTPStatusCode, gin.H{
			"error": gin.H{
				"code":    string(routerErr.Code),
				"message": routerErr.Message,
				"details": routerErr.Details,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    string(errors.ErrInternalServer),
			"message": "Internal server error",
		},
	})
}
