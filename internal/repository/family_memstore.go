package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
)

// MemFamilyStore is a process-local FamilyStore guarded by a single coarse
// mutex. It absorbs writes while the durable store is unreachable and backs
// the service tests.
type MemFamilyStore struct {
	mu     sync.RWMutex
	groups map[string]*models.FamilyGroup
}

func NewMemFamilyStore() *MemFamilyStore {
	return &MemFamilyStore{groups: make(map[string]*models.FamilyGroup)}
}

// cloneGroup deep-copies through JSON so callers never alias stored state.
func cloneGroup(g *models.FamilyGroup) *models.FamilyGroup {
	data, _ := json.Marshal(g)
	out := &models.FamilyGroup{}
	_ = json.Unmarshal(data, out)
	return out
}

func (s *MemFamilyStore) Create(ctx context.Context, group *models.FamilyGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.ID] = cloneGroup(group)
	return nil
}

func (s *MemFamilyStore) FindByID(ctx context.Context, id string) (*models.FamilyGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGroup(g), nil
}

func (s *MemFamilyStore) FindByUser(ctx context.Context, userID string) ([]*models.FamilyGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var groups []*models.FamilyGroup
	for _, g := range s.groups {
		if g.CreatedBy == userID || g.ActiveMember(userID) != nil {
			groups = append(groups, cloneGroup(g))
		}
	}
	sortGroupsByLastModified(groups)
	return groups, nil
}

func (s *MemFamilyStore) FindByInvitationToken(ctx context.Context, token string) (*models.FamilyGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.InvitationByToken(token) != nil {
			return cloneGroup(g), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemFamilyStore) FindWithPendingInvitationsFor(ctx context.Context, email string) ([]*models.FamilyGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var groups []*models.FamilyGroup
	for _, g := range s.groups {
		if g.Status == models.GroupStatusActive && g.PendingInvitationForEmail(email) != nil {
			groups = append(groups, cloneGroup(g))
		}
	}
	sortGroupsByLastModified(groups)
	return groups, nil
}

func (s *MemFamilyStore) FindWithOverduePendingInvitations(ctx context.Context, now time.Time) ([]*models.FamilyGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var groups []*models.FamilyGroup
	for _, g := range s.groups {
		for i := range g.Invitations {
			if g.Invitations[i].Status == models.InvitationStatusPending && g.Invitations[i].ExpiresAt.Before(now) {
				groups = append(groups, cloneGroup(g))
				break
			}
		}
	}
	return groups, nil
}

func (s *MemFamilyStore) Update(ctx context.Context, group *models.FamilyGroup, expectedLastModified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.groups[group.ID]
	if !ok {
		return ErrNotFound
	}
	if !current.LastModified.Equal(expectedLastModified) {
		return ErrConflict
	}
	s.groups[group.ID] = cloneGroup(group)
	return nil
}

func (s *MemFamilyStore) Save(ctx context.Context, group *models.FamilyGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.ID] = cloneGroup(group)
	return nil
}

// Delete removes a group outright. Only reconciliation uses this, after a
// successful flush to the durable store.
func (s *MemFamilyStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, id)
}

// All returns a snapshot of every resident group.
func (s *MemFamilyStore) All() []*models.FamilyGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]*models.FamilyGroup, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, cloneGroup(g))
	}
	return groups
}

// Len reports how many groups are resident.
func (s *MemFamilyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}

func sortGroupsByLastModified(groups []*models.FamilyGroup) {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].LastModified.After(groups[j].LastModified)
	})
}
