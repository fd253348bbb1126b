package middleware

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/service"
)

const principalKey = "principal"

// abortWithServiceError renders the standard error envelope from middleware,
// mirroring the handler-level rendering.
func abortWithServiceError(c *gin.Context, err error) {
	svcErr := service.ErrTokenInvalid
	var se *service.Error
	if errors.As(err, &se) {
		svcErr = se
	}
	c.AbortWithStatusJSON(svcErr.Status, gin.H{
		"success": false,
		"error": gin.H{
			"id":        uuid.New().String(),
			"code":      svcErr.Code,
			"message":   svcErr.Message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// AuthMiddleware resolves the bearer token into a principal and sets it in
// the request context. Failures count toward the per-IP lockout.
func AuthMiddleware(authService service.AuthService, users service.UserService, limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && limiter.LockedOut(c.Request.Context(), c.ClientIP()) {
			log.Printf("❌ [Auth] Locked out client - IP: %s, Path: %s", c.ClientIP(), c.Request.URL.Path)
			abortWithServiceError(c, service.ErrRateLimited)
			return
		}

		principal, err := authService.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			log.Printf("❌ [Auth] Authentication failed - Path: %s, Error: %v", c.Request.URL.Path, err)
			if limiter != nil {
				limiter.RecordAuthFailure(c.Request.Context(), c.ClientIP())
			}
			abortWithServiceError(c, err)
			return
		}

		c.Set(principalKey, principal)

		// Keep the directory warm even for clients that never call the
		// sync endpoint explicitly. Best-effort.
		go func(p models.Principal) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := users.Sync(ctx, &p, ""); err != nil {
				log.Printf("[Auth] background directory sync failed for %s: %v", p.UserID, err)
			}
		}(*principal)

		c.Next()
	}
}

// GetPrincipal returns the authenticated principal, or nil when the request
// did not pass AuthMiddleware.
func GetPrincipal(c *gin.Context) *models.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Principal)
	return p
}

// RequirePrincipal fetches the principal or aborts with 401. Handlers behind
// AuthMiddleware can rely on a non-nil result.
func RequirePrincipal(c *gin.Context) (*models.Principal, bool) {
	p := GetPrincipal(c)
	if p == nil {
		abortWithServiceError(c, service.ErrTokenMissing)
		return nil, false
	}
	return p, true
}
