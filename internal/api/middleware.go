package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parley/chat-app/internal/chat"
	"github.com/parley/chat-app/internal/metrics"
	"github.com/parley/chat-app/internal/ratelimit"
)

// ctxUserID is the gin context key under which requireAuth stores the
// authenticated user id.
const ctxUserID = "userID"

// requireAuth extracts and verifies the Bearer token, storing the user id
// in the request context. Requests without a valid token are rejected.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			failUnauthorized(c)
			return
		}

		claims, err := h.tokens.Verify(token)
		if err != nil {
			failUnauthorized(c)
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Next()
	}
}

// currentUserID returns the authenticated user id set by requireAuth.
func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// rateLimit throttles the request by the identity keyFn extracts. It is a
// no-op when no limiter is configured, and fails open on limiter errors.
func (h *Handler) rateLimit(rule ratelimit.Rule, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}

		key := keyFn(c)
		if key == "" {
			c.Next()
			return
		}

		allowed, _ := h.limiter.Allow(c.Request.Context(), key, rule)
		if !allowed {
			fail(c, http.StatusTooManyRequests, chat.CodeRateLimited, "too many requests")
			return
		}
		c.Next()
	}
}

func clientIPKey(c *gin.Context) string { return c.ClientIP() }

func userIDKey(c *gin.Context) string { return currentUserID(c) }

// requestMetrics records a counter and latency histogram per request,
// labeled by the route pattern rather than the raw path.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, route, strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, route,
		).Observe(time.Since(start).Seconds())
	}
}
