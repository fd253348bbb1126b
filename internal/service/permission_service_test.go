package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
)

func TestPermissionServiceCan(t *testing.T) {
	svc := NewPermissionService()

	doc := &models.Document{UploadedBy: "alice"}
	doc.Permissions.GrantAdmin("alice")
	doc.Permissions.Grant("bob", models.SharePermissionWrite)
	doc.Permissions.Grant("carol", models.SharePermissionRead)

	tests := []struct {
		user   string
		action DocumentAction
		want   bool
	}{
		{"alice", ActionRead, true},
		{"alice", ActionWrite, true},
		{"alice", ActionAdmin, true},
		{"bob", ActionRead, true},
		{"bob", ActionWrite, true},
		{"bob", ActionAdmin, false},
		{"carol", ActionRead, true},
		{"carol", ActionWrite, false},
		{"carol", ActionAdmin, false},
		{"dave", ActionRead, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, svc.Can(tt.user, doc, tt.action), "%s/%s", tt.user, tt.action)
	}

	// Owners pass every check even with an empty projection.
	bare := &models.Document{UploadedBy: "alice"}
	assert.True(t, svc.Can("alice", bare, ActionAdmin))

	assert.False(t, svc.Can("alice", nil, ActionRead))
	assert.False(t, svc.Can("alice", doc, DocumentAction("publish")))
}
