package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/api/middleware"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/service"
)

// ============================================
// User Handler
// ============================================

type UserHandler struct {
	userService service.UserService
}

type syncUserRequest struct {
	DisplayName string `json:"display_name"`
}

// Sync upserts the caller's directory record from their verified identity.
func (h *UserHandler) Sync(c *gin.Context) {
	principal, ok := middleware.RequirePrincipal(c)
	if !ok {
		return
	}

	var req syncUserRequest
	// Body is optional; an empty body syncs identity fields only.
	_ = c.ShouldBindJSON(&req)

	user, err := h.userService.Sync(c.Request.Context(), principal, req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

// Lookup resolves an email to a directory entry, for share targeting.
func (h *UserHandler) Lookup(c *gin.Context) {
	if _, ok := middleware.RequirePrincipal(c); !ok {
		return
	}

	email := c.Query("email")
	user, err := h.userService.LookupByEmail(c.Request.Context(), email)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}
