package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/repository"
)

// fakeDirectoryCache mirrors the Redis-backed cache with a plain map.
type fakeDirectoryCache struct {
	entries map[string][]byte
}

func newFakeDirectoryCache() *fakeDirectoryCache {
	return &fakeDirectoryCache{entries: make(map[string][]byte)}
}

func (c *fakeDirectoryCache) SetCache(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *fakeDirectoryCache) GetCache(_ context.Context, key string, dest interface{}) error {
	data, ok := c.entries[key]
	if !ok {
		return repository.ErrNotFound
	}
	return json.Unmarshal(data, dest)
}

func (c *fakeDirectoryCache) InvalidateCache(_ context.Context, pattern string) error {
	delete(c.entries, pattern)
	return nil
}

// countingUserRepo tallies repository hits so cache behaviour is observable.
type countingUserRepo struct {
	*fakeUserRepo
	emailLookups int
}

func (r *countingUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.emailLookups++
	return r.fakeUserRepo.FindByEmail(ctx, email)
}

func TestLookupByEmailCachesResult(t *testing.T) {
	repo := &countingUserRepo{fakeUserRepo: newFakeUserRepo()}
	repo.add("bob", "bob@x", "Bob")
	cache := newFakeDirectoryCache()
	svc := NewUserService(repo, cache)
	ctx := context.Background()

	first, err := svc.LookupByEmail(ctx, " Bob@X ")
	require.NoError(t, err)
	assert.Equal(t, "bob", first.ID)

	second, err := svc.LookupByEmail(ctx, "bob@x")
	require.NoError(t, err)
	assert.Equal(t, "bob", second.ID)

	// The second lookup is served from the cache.
	assert.Equal(t, 1, repo.emailLookups)
	assert.Len(t, cache.entries, 1)
}

func TestSyncInvalidatesLookupCache(t *testing.T) {
	repo := &countingUserRepo{fakeUserRepo: newFakeUserRepo()}
	repo.add("bob", "bob@x", "Bob")
	cache := newFakeDirectoryCache()
	svc := NewUserService(repo, cache)
	ctx := context.Background()

	_, err := svc.LookupByEmail(ctx, "bob@x")
	require.NoError(t, err)
	require.Len(t, cache.entries, 1)

	_, err = svc.Sync(ctx, principal("bob", "bob@x"), "Robert")
	require.NoError(t, err)
	assert.Empty(t, cache.entries)

	got, err := svc.LookupByEmail(ctx, "bob@x")
	require.NoError(t, err)
	assert.Equal(t, "Robert", got.DisplayName)
	assert.Equal(t, 2, repo.emailLookups)
}

func TestLookupByEmailWithoutCache(t *testing.T) {
	repo := newFakeUserRepo()
	repo.add("bob", "bob@x", "Bob")
	svc := NewUserService(repo, nil)
	ctx := context.Background()

	got, err := svc.LookupByEmail(ctx, "bob@x")
	require.NoError(t, err)
	assert.Equal(t, "bob", got.ID)

	_, err = svc.LookupByEmail(ctx, "nobody@x")
	assert.ErrorIs(t, err, ErrUserNotFound)

	var se *Error
	_, err = svc.LookupByEmail(ctx, "  ")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrRequiredField.Code, se.Code)
}
