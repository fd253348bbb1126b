package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
)

// flakyStore wraps a MemFamilyStore and fails every call while down is set,
// standing in for an unreachable Postgres.
type flakyStore struct {
	*MemFamilyStore
	down bool
}

var errStoreDown = errors.New("connection refused")

func (s *flakyStore) Create(ctx context.Context, g *models.FamilyGroup) error {
	if s.down {
		return errStoreDown
	}
	return s.MemFamilyStore.Create(ctx, g)
}

func (s *flakyStore) FindByID(ctx context.Context, id string) (*models.FamilyGroup, error) {
	if s.down {
		return nil, errStoreDown
	}
	return s.MemFamilyStore.FindByID(ctx, id)
}

func (s *flakyStore) FindByUser(ctx context.Context, userID string) ([]*models.FamilyGroup, error) {
	if s.down {
		return nil, errStoreDown
	}
	return s.MemFamilyStore.FindByUser(ctx, userID)
}

func (s *flakyStore) FindByInvitationToken(ctx context.Context, token string) (*models.FamilyGroup, error) {
	if s.down {
		return nil, errStoreDown
	}
	return s.MemFamilyStore.FindByInvitationToken(ctx, token)
}

func (s *flakyStore) Update(ctx context.Context, g *models.FamilyGroup, expected time.Time) error {
	if s.down {
		return errStoreDown
	}
	return s.MemFamilyStore.Update(ctx, g, expected)
}

func (s *flakyStore) Save(ctx context.Context, g *models.FamilyGroup) error {
	if s.down {
		return errStoreDown
	}
	return s.MemFamilyStore.Save(ctx, g)
}

func TestFallbackAbsorbsFailedCreates(t *testing.T) {
	ctx := context.Background()
	primary := &flakyStore{MemFamilyStore: NewMemFamilyStore(), down: true}
	store := NewFallbackFamilyStore(primary)

	group := testGroup("g1", time.Now().UTC())
	require.NoError(t, store.Create(ctx, group))
	assert.True(t, store.Degraded())

	// Readable while the primary is still down.
	got, err := store.FindByID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Home", got.Name)

	// And still mutable: the group stays memory-resident.
	got.Name = "Renamed"
	modified := got.LastModified
	got.LastModified = modified.Add(time.Second)
	require.NoError(t, store.Update(ctx, got, modified))
}

func TestFallbackReconcile(t *testing.T) {
	ctx := context.Background()
	primary := &flakyStore{MemFamilyStore: NewMemFamilyStore(), down: true}
	store := NewFallbackFamilyStore(primary)

	require.NoError(t, store.Create(ctx, testGroup("g1", time.Now().UTC())))
	require.True(t, store.Degraded())

	// Primary still down: reconcile keeps the group resident.
	store.Reconcile(ctx)
	assert.True(t, store.Degraded())

	primary.down = false
	store.Reconcile(ctx)
	assert.False(t, store.Degraded())

	// Now served from the primary.
	got, err := primary.MemFamilyStore.FindByID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.ID)
}

func TestFallbackReadsUnionBothStores(t *testing.T) {
	ctx := context.Background()
	primary := &flakyStore{MemFamilyStore: NewMemFamilyStore()}
	store := NewFallbackFamilyStore(primary)

	// One group lands durably, then the primary goes down and a second
	// lands in memory.
	require.NoError(t, store.Create(ctx, testGroup("durable", time.Now().UTC())))
	primary.down = true
	require.NoError(t, store.Create(ctx, testGroup("resident", time.Now().UTC())))
	primary.down = false

	groups, err := store.FindByUser(ctx, "alice")
	require.NoError(t, err)
	ids := []string{groups[0].ID, groups[1].ID}
	assert.ElementsMatch(t, []string{"durable", "resident"}, ids)
}

func TestFallbackConflictPassesThrough(t *testing.T) {
	ctx := context.Background()
	primary := &flakyStore{MemFamilyStore: NewMemFamilyStore()}
	store := NewFallbackFamilyStore(primary)

	t0 := time.Now().UTC()
	require.NoError(t, store.Create(ctx, testGroup("g1", t0)))

	stale := testGroup("g1", t0)
	stale.LastModified = t0.Add(time.Second)
	require.NoError(t, store.Update(ctx, stale, t0))

	// A lost race is a real outcome, never absorbed into memory.
	raced := testGroup("g1", t0)
	raced.LastModified = t0.Add(2 * time.Second)
	err := store.Update(ctx, raced, t0)
	assert.ErrorIs(t, err, ErrConflict)
	assert.False(t, store.Degraded())
}
