package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/email"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/repository"
)

const (
	maxGroupNameLen        = 100
	maxGroupDescriptionLen = 500

	// casRetries bounds the reload-and-retry loop when a conditional
	// write loses the race on (group_id, last_modified).
	casRetries = 3
)

// UpdateGroupInput patches a group's mutable fields. Nil means unchanged.
type UpdateGroupInput struct {
	Name               *string
	Description        *string
	MaxMembers         *int
	AllowMemberInvites *bool
}

// PendingInvitation is an inbox entry: an invitation plus the group context
// the invitee needs to decide on it.
type PendingInvitation struct {
	GroupID    string            `json:"group_id"`
	GroupName  string            `json:"group_name"`
	Invitation models.Invitation `json:"invitation"`
}

// FamilyService owns the family group and invitation state machine.
type FamilyService interface {
	CreateGroup(ctx context.Context, caller *models.Principal, name, description string, settings *models.GroupSettings) (*models.FamilyGroup, error)
	ListMyGroups(ctx context.Context, caller *models.Principal) ([]*models.FamilyGroup, error)
	GetGroup(ctx context.Context, caller *models.Principal, groupID string) (*models.FamilyGroup, error)
	UpdateSettings(ctx context.Context, caller *models.Principal, groupID string, patch UpdateGroupInput) (*models.FamilyGroup, error)
	Invite(ctx context.Context, caller *models.Principal, groupID, inviteeEmail string, role models.GroupRole) (*models.Invitation, error)
	Accept(ctx context.Context, caller *models.Principal, token string) (*models.FamilyGroup, error)
	Reject(ctx context.Context, caller *models.Principal, token string) error
	CancelInvitation(ctx context.Context, caller *models.Principal, groupID, invitationKey string) error
	ResendInvitation(ctx context.Context, caller *models.Principal, groupID, invitationID string) (*models.Invitation, error)
	PendingInvitations(ctx context.Context, caller *models.Principal) ([]PendingInvitation, error)
	RemoveMember(ctx context.Context, caller *models.Principal, groupID, memberUserID string) error
	UpdateRole(ctx context.Context, caller *models.Principal, groupID, memberUserID string, role models.GroupRole) error
	Archive(ctx context.Context, caller *models.Principal, groupID string) error

	// ExpireOverdueInvitations is the lazy-expiry backstop run by cron.
	ExpireOverdueInvitations(ctx context.Context) (int, error)
	// Degraded reports whether writes are being absorbed in memory.
	Degraded() bool
}

type familyService struct {
	store         repository.FamilyStore
	fallback      *repository.FallbackFamilyStore
	userRepo      repository.UserRepository
	emailSvc      *email.Service
	invitationTTL time.Duration
	maxMembersCap int
}

func NewFamilyService(
	store repository.FamilyStore,
	fallback *repository.FallbackFamilyStore,
	userRepo repository.UserRepository,
	emailSvc *email.Service,
	invitationTTLDays int,
	maxMembersCap int,
) FamilyService {
	if invitationTTLDays <= 0 {
		invitationTTLDays = 7
	}
	if maxMembersCap <= 0 || maxMembersCap > 50 {
		maxMembersCap = 50
	}
	return &familyService{
		store:         store,
		fallback:      fallback,
		userRepo:      userRepo,
		emailSvc:      emailSvc,
		invitationTTL: time.Duration(invitationTTLDays) * 24 * time.Hour,
		maxMembersCap: maxMembersCap,
	}
}

func newInvitationToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process is in no state to mint
		// credentials at all.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func (s *familyService) Degraded() bool {
	return s.fallback != nil && s.fallback.Degraded()
}

// mutate reloads the group, applies fn to the fresh copy and writes it back
// conditionally, retrying lost races. fn returns whether the copy should be
// written; it may request a write and still return an error (lazy expiry
// persists the transition while the caller sees INVITATION_EXPIRED).
func (s *familyService) mutate(ctx context.Context, groupID string, fn func(*models.FamilyGroup) (bool, error)) (*models.FamilyGroup, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		group, err := s.store.FindByID(ctx, groupID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		if err != nil {
			return nil, err
		}

		expected := group.LastModified
		write, opErr := fn(group)
		if !write {
			return group, opErr
		}

		group.LastModified = time.Now().UTC()
		err = s.store.Update(ctx, group, expected)
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		if err != nil {
			return nil, err
		}
		return group, opErr
	}
	return nil, ErrDBOperation
}

func (s *familyService) CreateGroup(ctx context.Context, caller *models.Principal, name, description string, settings *models.GroupSettings) (*models.FamilyGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError(ErrRequiredField, "group name is required")
	}
	if len(name) > maxGroupNameLen {
		return nil, validationError(ErrInvalidFormat, "group name must be at most 100 characters")
	}
	if len(description) > maxGroupDescriptionLen {
		return nil, validationError(ErrInvalidFormat, "group description must be at most 500 characters")
	}

	resolved := models.GroupSettings{
		MaxMembers:         models.DefaultGroupMembers,
		AllowMemberInvites: false,
	}
	if settings != nil {
		if settings.MaxMembers != 0 {
			if settings.MaxMembers < models.MinGroupMembers {
				return nil, validationError(ErrInvalidFormat, "max_members must be at least 2")
			}
			if settings.MaxMembers > s.maxMembersCap {
				return nil, ErrLimitExceeded
			}
			resolved.MaxMembers = settings.MaxMembers
		}
		resolved.AllowMemberInvites = settings.AllowMemberInvites
	}

	now := time.Now().UTC()
	group := &models.FamilyGroup{
		ID:           uuid.New().String(),
		Name:         name,
		Description:  strings.TrimSpace(description),
		CreatedBy:    caller.UserID,
		CreatedAt:    now,
		LastModified: now,
		Settings:     resolved,
		Status:       models.GroupStatusActive,
		Members: []models.Member{{
			UserID:   caller.UserID,
			Email:    caller.Email,
			Role:     models.GroupRoleAdmin,
			JoinedAt: now,
			Status:   models.MemberStatusActive,
		}},
		Invitations: []models.Invitation{},
	}

	if err := s.store.Create(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

func (s *familyService) ListMyGroups(ctx context.Context, caller *models.Principal) ([]*models.FamilyGroup, error) {
	return s.store.FindByUser(ctx, caller.UserID)
}

func (s *familyService) GetGroup(ctx context.Context, caller *models.Principal, groupID string) (*models.FamilyGroup, error) {
	group, err := s.store.FindByID(ctx, groupID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	if group.ActiveMember(caller.UserID) == nil {
		return nil, ErrForbidden
	}
	return group, nil
}

func (s *familyService) UpdateSettings(ctx context.Context, caller *models.Principal, groupID string, patch UpdateGroupInput) (*models.FamilyGroup, error) {
	return s.mutate(ctx, groupID, func(g *models.FamilyGroup) (bool, error) {
		if g.Status != models.GroupStatusActive {
			return false, ErrForbidden
		}
		if !g.IsAdmin(caller.UserID) {
			return false, ErrForbidden
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return false, validationError(ErrRequiredField, "group name is required")
			}
			if len(name) > maxGroupNameLen {
				return false, validationError(ErrInvalidFormat, "group name must be at most 100 characters")
			}
			g.Name = name
		}
		if patch.Description != nil {
			if len(*patch.Description) > maxGroupDescriptionLen {
				return false, validationError(ErrInvalidFormat, "group description must be at most 500 characters")
			}
			g.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.MaxMembers != nil {
			max := *patch.MaxMembers
			if max < models.MinGroupMembers {
				return false, validationError(ErrInvalidFormat, "max_members must be at least 2")
			}
			if max > s.maxMembersCap {
				return false, ErrLimitExceeded
			}
			if max < g.ActiveMemberCount() {
				return false, ErrLimitExceeded
			}
			g.Settings.MaxMembers = max
		}
		if patch.AllowMemberInvites != nil {
			g.Settings.AllowMemberInvites = *patch.AllowMemberInvites
		}
		return true, nil
	})
}

func (s *familyService) Invite(ctx context.Context, caller *models.Principal, groupID, inviteeEmail string, role models.GroupRole) (*models.Invitation, error) {
	inviteeEmail = normalizeEmail(inviteeEmail)
	if inviteeEmail == "" {
		return nil, validationError(ErrRequiredField, "email is required")
	}
	if !strings.Contains(inviteeEmail, "@") {
		return nil, validationError(ErrInvalidFormat, "email is not a valid address")
	}
	if role == "" {
		role = models.GroupRoleMember
	}
	if !role.Valid() {
		return nil, validationError(ErrInvalidFormat, "role must be admin, member or viewer")
	}

	var invitation models.Invitation
	var groupName string
	_, err := s.mutate(ctx, groupID, func(g *models.FamilyGroup) (bool, error) {
		if g.Status != models.GroupStatusActive {
			return false, ErrForbidden
		}
		member := g.ActiveMember(caller.UserID)
		if member == nil {
			return false, ErrForbidden
		}
		if member.Role != models.GroupRoleAdmin && !(member.Role == models.GroupRoleMember && g.Settings.AllowMemberInvites) {
			return false, ErrForbidden
		}
		if g.ActiveMemberByEmail(inviteeEmail) != nil {
			return false, ErrDuplicateMember
		}
		if pending := g.PendingInvitationForEmail(inviteeEmail); pending != nil {
			if !pending.IsExpired() {
				return false, ErrDuplicateInvitation
			}
			// Lazy expiry: the stale invitation stops blocking a new one.
			pending.Status = models.InvitationStatusExpired
		}
		if g.ActiveMemberCount() >= g.Settings.MaxMembers {
			return false, ErrLimitExceeded
		}

		now := time.Now().UTC()
		invitation = models.Invitation{
			ID:            uuid.New().String(),
			Token:         newInvitationToken(),
			Email:         inviteeEmail,
			InvitedBy:     caller.UserID,
			InvitedByName: s.displayName(ctx, caller.UserID),
			Role:          role,
			Status:        models.InvitationStatusPending,
			CreatedAt:     now,
			ExpiresAt:     now.Add(s.invitationTTL),
		}
		g.Invitations = append(g.Invitations, invitation)
		groupName = g.Name
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyInvitation(groupName, &invitation)
	return &invitation, nil
}

// displayName resolves a user id to a directory display name, falling back
// to empty when the directory has nothing.
func (s *familyService) displayName(ctx context.Context, userID string) string {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil || user == nil {
		return ""
	}
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.Email
}

// notifyInvitation emits the invitation email fire-and-forget; delivery
// failure never fails the invite.
func (s *familyService) notifyInvitation(groupName string, inv *models.Invitation) {
	if s.emailSvc == nil {
		return
	}
	go func(groupName string, inv models.Invitation) {
		if err := s.emailSvc.SendInvitation(groupName, inv.Email, inv.InvitedByName, string(inv.Role), inv.Token); err != nil {
			log.Printf("[Family] invitation email to %s failed: %v", inv.Email, err)
		}
	}(groupName, *inv)
}

func (s *familyService) Accept(ctx context.Context, caller *models.Principal, token string) (*models.FamilyGroup, error) {
	group, err := s.store.FindByInvitationToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, group.ID, func(g *models.FamilyGroup) (bool, error) {
		inv := g.InvitationByToken(token)
		if inv == nil || inv.Status != models.InvitationStatusPending {
			// A raced accept lands here: the token has been consumed.
			return false, ErrInvitationNotFound
		}
		if inv.IsExpired() {
			inv.Status = models.InvitationStatusExpired
			return true, ErrInvitationExpired
		}
		if inv.Email != caller.Email {
			return false, ErrEmailMismatch
		}
		if g.Status != models.GroupStatusActive {
			return false, ErrForbidden
		}
		if g.ActiveMember(caller.UserID) != nil {
			return false, ErrDuplicateMember
		}
		if g.ActiveMemberCount() >= g.Settings.MaxMembers {
			return false, ErrLimitExceeded
		}

		now := time.Now().UTC()
		inv.Status = models.InvitationStatusAccepted
		inv.AcceptedAt = &now

		// A previously removed member rejoins through their old record.
		for i := range g.Members {
			if g.Members[i].UserID == caller.UserID {
				g.Members[i].Status = models.MemberStatusActive
				g.Members[i].Role = inv.Role
				g.Members[i].JoinedAt = now
				g.Members[i].InvitedBy = inv.InvitedBy
				return true, nil
			}
		}
		g.Members = append(g.Members, models.Member{
			UserID:      caller.UserID,
			Email:       caller.Email,
			DisplayName: s.displayName(ctx, caller.UserID),
			Role:        inv.Role,
			JoinedAt:    now,
			InvitedBy:   inv.InvitedBy,
			Status:      models.MemberStatusActive,
		})
		return true, nil
	})
}

func (s *familyService) Reject(ctx context.Context, caller *models.Principal, token string) error {
	group, err := s.store.FindByInvitationToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvitationNotFound
	}
	if err != nil {
		return err
	}

	_, err = s.mutate(ctx, group.ID, func(g *models.FamilyGroup) (bool, error) {
		inv := g.InvitationByToken(token)
		if inv == nil || inv.Status != models.InvitationStatusPending {
			return false, ErrInvitationNotFound
		}
		if inv.Email != caller.Email {
			return false, ErrEmailMismatch
		}
		now := time.Now().UTC()
		inv.Status = models.InvitationStatusRejected
		inv.RejectedAt = &now
		return true, nil
	})
	return err
}

func (s *familyService) CancelInvitation(ctx context.Context, caller *models.Principal, groupID, invitationKey string) error {
	_, err := s.mutate(ctx, groupID, func(g *models.FamilyGroup) (bool, error) {
		// Duplicate rows have historically been created by retried
		// invites; cancellation clears every record matching the key.
		kept := g.Invitations[:0]
		removed := 0
		authorized := g.IsAdmin(caller.UserID)
		for _, inv := range g.Invitations {
			if inv.Matches(invitationKey) {
				if inv.InvitedBy == caller.UserID {
					authorized = true
				}
				removed++
				continue
			}
			kept = append(kept, inv)
		}
		if removed == 0 {
			return false, ErrInvitationNotFound
		}
		if !authorized {
			return false, ErrForbidden
		}
		g.Invitations = kept
		return true, nil
	})
	return err
}

func (s *familyService) ResendInvitation(ctx context.Context, caller *models.Principal, groupID, invitationID string) (*models.Invitation, error) {
	var resent models.Invitation
	var groupName string
	_, err := s.mutate(ctx, groupID, func(g *models.FamilyGroup) (bool, error) {
		if !g.IsAdmin(caller.UserID) {
			return false, ErrForbidden
		}
		for i := range g.Invitations {
			if !g.Invitations[i].Matches(invitationID) {
				continue
			}
			if g.Invitations[i].Status != models.InvitationStatusPending {
				return false, ErrInvitationNotFound
			}
			now := time.Now().UTC()
			g.Invitations[i].Token = newInvitationToken()
			g.Invitations[i].ExpiresAt = now.Add(s.invitationTTL)
			resent = g.Invitations[i]
			groupName = g.Name
			return true, nil
		}
		return false, ErrInvitationNotFound
	})
	if err != nil {
		return nil, err
	}

	s.notifyInvitation(groupName, &resent)
	return &resent, nil
}

func (s *familyService) PendingInvitations(ctx context.Context, caller *models.Principal) ([]PendingInvitation, error) {
	groups, err := s.store.FindWithPendingInvitationsFor(ctx, caller.Email)
	if err != nil {
		return nil, err
	}
	inbox := make([]PendingInvitation, 0)
	for _, g := range groups {
		for i := range g.Invitations {
			inv := g.Invitations[i]
			if inv.Email != caller.Email || inv.Status != models.InvitationStatusPending || inv.IsExpired() {
				continue
			}
			inbox = append(inbox, PendingInvitation{
				GroupID:    g.ID,
				GroupName:  g.Name,
				Invitation: inv,
			})
		}
	}
	sort.Slice(inbox, func(i, j int) bool {
		return inbox[i].Invitation.CreatedAt.After(inbox[j].Invitation.CreatedAt)
	})
	return inbox, nil
}

func (s *familyService) RemoveMember(ctx context.Context, caller *models.Principal, groupID, memberUserID string) error {
	_, err := s.mutate(ctx, groupID, func(g *models.FamilyGroup) (bool, error) {
		if g.Status != models.GroupStatusActive {
			return false, ErrForbidden
		}
		if memberUserID == g.CreatedBy {
			return false, ErrCannotRemoveCreator
		}
		if !g.IsAdmin(caller.UserID) && caller.UserID != memberUserID {
			return false, ErrForbidden
		}
		// Concurrent retries have historically produced duplicate member
		// rows; deactivate every record carrying this user id.
		removed := false
		for i := range g.Members {
			if g.Members[i].UserID == memberUserID && g.Members[i].Status == models.MemberStatusActive {
				g.Members[i].Status = models.MemberStatusInactive
				removed = true
			}
		}
		if !removed {
			return false, ErrNotFound
		}
		return true, nil
	})
	return err
}

func (s *familyService) UpdateRole(ctx context.Context, caller *models.Principal, groupID, memberUserID string, role models.GroupRole) error {
	if !role.Valid() {
		return validationError(ErrInvalidFormat, "role must be admin, member or viewer")
	}
	_, err := s.mutate(ctx, groupID, func(g *models.FamilyGroup) (bool, error) {
		if g.Status != models.GroupStatusActive {
			return false, ErrForbidden
		}
		if !g.IsAdmin(caller.UserID) {
			return false, ErrForbidden
		}
		if memberUserID == g.CreatedBy {
			return false, ErrCannotChangeCreator
		}
		member := g.ActiveMember(memberUserID)
		if member == nil {
			return false, ErrNotFound
		}
		member.Role = role
		return true, nil
	})
	return err
}

func (s *familyService) Archive(ctx context.Context, caller *models.Principal, groupID string) error {
	_, err := s.mutate(ctx, groupID, func(g *models.FamilyGroup) (bool, error) {
		if caller.UserID != g.CreatedBy {
			return false, ErrForbidden
		}
		if g.Status == models.GroupStatusArchived {
			return false, nil
		}
		g.Status = models.GroupStatusArchived
		return true, nil
	})
	return err
}

func (s *familyService) ExpireOverdueInvitations(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	groups, err := s.store.FindWithOverduePendingInvitations(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, group := range groups {
		_, err := s.mutate(ctx, group.ID, func(g *models.FamilyGroup) (bool, error) {
			changed := false
			for i := range g.Invitations {
				if g.Invitations[i].Status == models.InvitationStatusPending && g.Invitations[i].ExpiresAt.Before(now) {
					g.Invitations[i].Status = models.InvitationStatusExpired
					expired++
					changed = true
				}
			}
			return changed, nil
		})
		if err != nil {
			log.Printf("[Family] expiry sweep failed for group %s: %v", group.ID, err)
		}
	}
	return expired, nil
}
