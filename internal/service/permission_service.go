package service

import (
	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
)

// DocumentAction is an access-check verb against a document.
type DocumentAction string

const (
	ActionRead  DocumentAction = "read"
	ActionWrite DocumentAction = "write"
	ActionAdmin DocumentAction = "admin"
)

// PermissionService answers "can this user do this to this document". It is
// a pure set-membership check over the materialized projection; every access
// gate in DocumentService goes through Can.
type PermissionService interface {
	Can(userID string, doc *models.Document, action DocumentAction) bool
}

type permissionService struct{}

func NewPermissionService() PermissionService {
	return &permissionService{}
}

func (p *permissionService) Can(userID string, doc *models.Document, action DocumentAction) bool {
	if doc == nil {
		return false
	}
	switch action {
	case ActionRead:
		return canRead(doc, userID)
	case ActionWrite:
		return canWrite(doc, userID)
	case ActionAdmin:
		return canAdmin(doc, userID)
	default:
		return false
	}
}
