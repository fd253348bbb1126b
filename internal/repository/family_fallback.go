package repository

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
)

// FallbackFamilyStore layers an in-memory store under the durable one so
// invitation flows keep working while the primary is unreachable. Writes
// that fail on the primary land in memory; reads union both stores with the
// primary winning on the same group id. Reconcile flushes resident groups
// back, best-effort.
type FallbackFamilyStore struct {
	primary  FamilyStore
	fallback *MemFamilyStore
	degraded atomic.Bool
}

func NewFallbackFamilyStore(primary FamilyStore) *FallbackFamilyStore {
	return &FallbackFamilyStore{
		primary:  primary,
		fallback: NewMemFamilyStore(),
	}
}

// Degraded reports whether any group is currently held only in memory.
func (s *FallbackFamilyStore) Degraded() bool {
	return s.degraded.Load()
}

// infrastructureError distinguishes backend unavailability from the
// conditional-write outcomes callers must see unchanged.
func infrastructureError(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict)
}

func (s *FallbackFamilyStore) Create(ctx context.Context, group *models.FamilyGroup) error {
	if err := s.primary.Create(ctx, group); err != nil {
		log.Printf("[FamilyStore] primary create failed, absorbing in memory: %v", err)
		s.degraded.Store(true)
		return s.fallback.Create(ctx, group)
	}
	return nil
}

func (s *FallbackFamilyStore) FindByID(ctx context.Context, id string) (*models.FamilyGroup, error) {
	g, err := s.primary.FindByID(ctx, id)
	if err == nil {
		return g, nil
	}
	if infrastructureError(err) {
		log.Printf("[FamilyStore] primary read failed, serving from memory: %v", err)
	}
	return s.fallback.FindByID(ctx, id)
}

func (s *FallbackFamilyStore) FindByUser(ctx context.Context, userID string) ([]*models.FamilyGroup, error) {
	primary, err := s.primary.FindByUser(ctx, userID)
	if infrastructureError(err) {
		log.Printf("[FamilyStore] primary read failed, serving from memory: %v", err)
		primary = nil
	}
	resident, _ := s.fallback.FindByUser(ctx, userID)
	return mergeGroups(primary, resident), nil
}

func (s *FallbackFamilyStore) FindByInvitationToken(ctx context.Context, token string) (*models.FamilyGroup, error) {
	g, err := s.primary.FindByInvitationToken(ctx, token)
	if err == nil {
		return g, nil
	}
	if infrastructureError(err) {
		log.Printf("[FamilyStore] primary read failed, serving from memory: %v", err)
	}
	return s.fallback.FindByInvitationToken(ctx, token)
}

func (s *FallbackFamilyStore) FindWithPendingInvitationsFor(ctx context.Context, email string) ([]*models.FamilyGroup, error) {
	primary, err := s.primary.FindWithPendingInvitationsFor(ctx, email)
	if infrastructureError(err) {
		log.Printf("[FamilyStore] primary read failed, serving from memory: %v", err)
		primary = nil
	}
	resident, _ := s.fallback.FindWithPendingInvitationsFor(ctx, email)
	return mergeGroups(primary, resident), nil
}

func (s *FallbackFamilyStore) FindWithOverduePendingInvitations(ctx context.Context, now time.Time) ([]*models.FamilyGroup, error) {
	primary, err := s.primary.FindWithOverduePendingInvitations(ctx, now)
	if infrastructureError(err) {
		primary = nil
	}
	resident, _ := s.fallback.FindWithOverduePendingInvitations(ctx, now)
	return mergeGroups(primary, resident), nil
}

func (s *FallbackFamilyStore) Update(ctx context.Context, group *models.FamilyGroup, expectedLastModified time.Time) error {
	// A group already resident in memory stays there until reconciled,
	// otherwise the conditional-update chain would fork.
	if _, err := s.fallback.FindByID(ctx, group.ID); err == nil {
		return s.fallback.Update(ctx, group, expectedLastModified)
	}
	err := s.primary.Update(ctx, group, expectedLastModified)
	if infrastructureError(err) {
		log.Printf("[FamilyStore] primary update failed, absorbing in memory: %v", err)
		s.degraded.Store(true)
		return s.fallback.Save(ctx, group)
	}
	return err
}

func (s *FallbackFamilyStore) Save(ctx context.Context, group *models.FamilyGroup) error {
	if err := s.primary.Save(ctx, group); err != nil {
		s.degraded.Store(true)
		return s.fallback.Save(ctx, group)
	}
	return nil
}

// Reconcile flushes memory-resident groups into the primary. No strong
// convergence is promised; a group written durably since it went resident
// keeps the primary version.
func (s *FallbackFamilyStore) Reconcile(ctx context.Context) {
	resident := s.fallback.All()
	if len(resident) == 0 {
		s.degraded.Store(false)
		return
	}
	flushed := 0
	for _, g := range resident {
		if err := s.primary.Save(ctx, g); err != nil {
			log.Printf("[FamilyStore] reconcile failed for group %s: %v", g.ID, err)
			continue
		}
		s.fallback.Delete(g.ID)
		flushed++
	}
	if s.fallback.Len() == 0 {
		s.degraded.Store(false)
	}
	if flushed > 0 {
		log.Printf("[FamilyStore] reconciled %d group(s) into the durable store", flushed)
	}
}

// mergeGroups unions two result sets; the first argument wins on id.
func mergeGroups(primary, secondary []*models.FamilyGroup) []*models.FamilyGroup {
	seen := make(map[string]bool, len(primary))
	out := make([]*models.FamilyGroup, 0, len(primary)+len(secondary))
	for _, g := range primary {
		seen[g.ID] = true
		out = append(out, g)
	}
	for _, g := range secondary {
		if !seen[g.ID] {
			out = append(out, g)
		}
	}
	sortGroupsByLastModified(out)
	return out
}
