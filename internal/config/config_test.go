package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 7, cfg.InvitationTTLDays)
	assert.Equal(t, 50, cfg.MaxGroupMembersCap)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadSize)
	assert.Equal(t, "./data/blobs", cfg.BlobDir)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.IdentityVerifierConfig)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORAGE_URI", "postgresql://example/db")
	t.Setenv("INVITATION_TTL_DAYS", "3")
	t.Setenv("MAX_GROUP_MEMBERS_CAP", "20")
	t.Setenv("MAX_UPLOAD_SIZE_MB", "5")
	t.Setenv("SMTP_USE_TLS", "true")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgresql://example/db", cfg.StorageURI)
	assert.Equal(t, 3, cfg.InvitationTTLDays)
	assert.Equal(t, 20, cfg.MaxGroupMembersCap)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxUploadSize)
	assert.True(t, cfg.SMTPUseTLS)
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("INVITATION_TTL_DAYS", "not-a-number")
	cfg := Load()
	assert.Equal(t, 7, cfg.InvitationTTLDays)
}
