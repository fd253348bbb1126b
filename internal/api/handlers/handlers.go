package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/config"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/service"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	User     *UserHandler
	Family   *FamilyHandler
	Document *DocumentHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services, cfg *config.Config) *Handlers {
	return &Handlers{
		User:     &UserHandler{userService: services.Users},
		Family:   &FamilyHandler{familyService: services.Families},
		Document: &DocumentHandler{documentService: services.Documents, maxUploadSize: cfg.MaxUploadSize},
	}
}

// ============================================
// Response Envelope
// ============================================

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError renders service errors with their code and status; anything
// else is logged with a correlation id and rendered generically so backend
// details never leak to the client.
func respondError(c *gin.Context, err error) {
	correlationID := uuid.New().String()

	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		log.Printf("❌ [API] Internal error [%s] %s %s: %v", correlationID, c.Request.Method, c.Request.URL.Path, err)
		svcErr = service.ErrDBOperation
	}

	c.JSON(svcErr.Status, gin.H{
		"success": false,
		"error": gin.H{
			"id":        correlationID,
			"code":      svcErr.Code,
			"message":   svcErr.Message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func respondBadRequest(c *gin.Context, message string) {
	respondError(c, &service.Error{Code: "VALIDATION_INVALID_FORMAT", Status: http.StatusBadRequest, Message: message})
}
