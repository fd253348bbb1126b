package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
)

// recordingLimiter captures the identities the middleware budgets against.
type recordingLimiter struct {
	ids   []string
	allow bool
}

func (l *recordingLimiter) AllowRequest(_ context.Context, principalID string) bool {
	l.ids = append(l.ids, principalID)
	return l.allow
}

func newLimitedRouter(limiter RequestLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(principalKey, &models.Principal{UserID: "user-1", Email: "u@x", EmailVerified: true})
	})
	r.Use(RateLimitMiddleware(limiter))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestRateLimitKeysOnPrincipal(t *testing.T) {
	limiter := &recordingLimiter{allow: true}
	r := newLimitedRouter(limiter)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "198.51.100.7:4242"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, limiter.ids, 1)
	// The window follows the authenticated identity, not the client
	// address: two devices of one user share a budget, two users behind
	// one NAT do not.
	assert.Equal(t, "user-1", limiter.ids[0])
	assert.NotContains(t, limiter.ids[0], "198.51.100.7")
}

func TestRateLimitExceeded(t *testing.T) {
	r := newLimitedRouter(&recordingLimiter{allow: false})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestRateLimitDisabledWithoutLimiter(t *testing.T) {
	r := newLimitedRouter(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
