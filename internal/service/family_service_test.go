package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/repository"
)

// fakeUserRepo is an in-memory UserRepository for service tests.
type fakeUserRepo struct {
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) Upsert(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) add(id, email, name string) {
	f.users[id] = &models.User{ID: id, Email: email, DisplayName: name}
}

func principal(id, email string) *models.Principal {
	return &models.Principal{UserID: id, Email: email, EmailVerified: true}
}

func newTestFamilyService(t *testing.T) (FamilyService, *repository.MemFamilyStore, *fakeUserRepo) {
	t.Helper()
	store := repository.NewMemFamilyStore()
	users := newFakeUserRepo()
	users.add("alice", "alice@x", "Alice")
	users.add("bob", "bob@x", "Bob")
	users.add("carol", "carol@x", "Carol")
	svc := NewFamilyService(store, nil, users, nil, 7, 50)
	return svc, store, users
}

func mustCreateGroup(t *testing.T, svc FamilyService, p *models.Principal, name string) *models.FamilyGroup {
	t.Helper()
	group, err := svc.CreateGroup(context.Background(), p, name, "", nil)
	require.NoError(t, err)
	return group
}

func mustInvite(t *testing.T, svc FamilyService, p *models.Principal, groupID, email string, role models.GroupRole) *models.Invitation {
	t.Helper()
	inv, err := svc.Invite(context.Background(), p, groupID, email, role)
	require.NoError(t, err)
	return inv
}

func TestCreateGroup(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	alice := principal("alice", "alice@x")

	group, err := svc.CreateGroup(context.Background(), alice, "Home", "family docs", nil)
	require.NoError(t, err)

	assert.Equal(t, "Home", group.Name)
	assert.Equal(t, "alice", group.CreatedBy)
	assert.Equal(t, models.GroupStatusActive, group.Status)
	assert.Equal(t, models.DefaultGroupMembers, group.Settings.MaxMembers)
	require.Len(t, group.Members, 1)
	assert.Equal(t, models.GroupRoleAdmin, group.Members[0].Role)
	assert.Equal(t, models.MemberStatusActive, group.Members[0].Status)
}

func TestCreateGroupValidation(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	alice := principal("alice", "alice@x")

	_, err := svc.CreateGroup(context.Background(), alice, "  ", "", nil)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "VALIDATION_REQUIRED_FIELD", svcErr.Code)

	_, err = svc.CreateGroup(context.Background(), alice, "Home", "", &models.GroupSettings{MaxMembers: 1})
	require.Error(t, err)

	_, err = svc.CreateGroup(context.Background(), alice, "Home", "", &models.GroupSettings{MaxMembers: 500})
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestInviteAndAcceptHappyPath(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)

	assert.Equal(t, models.InvitationStatusPending, inv.Status)
	assert.GreaterOrEqual(t, len(inv.Token), 32)

	updated, err := svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)

	member := updated.ActiveMember("bob")
	require.NotNil(t, member)
	assert.Equal(t, models.GroupRoleMember, member.Role)
	assert.Equal(t, "alice", member.InvitedBy)

	stored := updated.InvitationByToken(inv.Token)
	require.NotNil(t, stored)
	assert.Equal(t, models.InvitationStatusAccepted, stored.Status)
	require.NotNil(t, stored.AcceptedAt)

	groups, err := svc.ListMyGroups(ctx, bob)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Home", groups[0].Name)
}

func TestAcceptEmailMismatch(t *testing.T) {
	svc, store, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	carol := principal("carol", "carol@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)

	_, err := svc.Accept(ctx, carol, inv.Token)
	assert.ErrorIs(t, err, ErrEmailMismatch)

	stored, err := store.FindByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationStatusPending, stored.InvitationByToken(inv.Token).Status)
}

func TestAcceptExpiredInvitation(t *testing.T) {
	svc, store, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)

	// Age the invitation past its deadline directly in the store.
	stored, err := store.FindByID(ctx, group.ID)
	require.NoError(t, err)
	stored.InvitationByToken(inv.Token).ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(ctx, stored))

	_, err = svc.Accept(ctx, bob, inv.Token)
	assert.ErrorIs(t, err, ErrInvitationExpired)

	// The expired transition persisted, so a retry sees a consumed token.
	stored, err = store.FindByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationStatusExpired, stored.InvitationByToken(inv.Token).Status)

	_, err = svc.Accept(ctx, bob, inv.Token)
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestAcceptIsSingleUse(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)

	_, err := svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)

	_, err = svc.Accept(ctx, bob, inv.Token)
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestAcceptRace(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)

	const racers = 8
	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Accept(ctx, bob, inv.Token)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrInvitationNotFound)
		}
	}
	assert.Equal(t, 1, wins, "exactly one accept may consume the token")

	updated, err := svc.GetGroup(ctx, alice, group.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.ActiveMemberCount())
	assert.Len(t, updated.Members, 2)
}

func TestInviteDuplicatePending(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)

	_, err := svc.Invite(ctx, alice, group.ID, "bob@x", models.GroupRoleMember)
	assert.ErrorIs(t, err, ErrDuplicateInvitation)

	// Different casing resolves to the same address.
	_, err = svc.Invite(ctx, alice, group.ID, "BOB@X", models.GroupRoleMember)
	assert.ErrorIs(t, err, ErrDuplicateInvitation)
}

func TestInviteExistingMember(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)
	_, err := svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)

	_, err = svc.Invite(ctx, alice, group.ID, "bob@x", models.GroupRoleMember)
	assert.ErrorIs(t, err, ErrDuplicateMember)
}

func TestInviteMemberLimit(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group, err := svc.CreateGroup(ctx, alice, "Home", "", &models.GroupSettings{MaxMembers: 2})
	require.NoError(t, err)

	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)
	_, err = svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)

	_, err = svc.Invite(ctx, alice, group.ID, "carol@x", models.GroupRoleMember)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestInvitePermissions(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)
	_, err := svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)

	// Plain members cannot invite by default.
	_, err = svc.Invite(ctx, bob, group.ID, "carol@x", models.GroupRoleMember)
	assert.ErrorIs(t, err, ErrForbidden)

	allow := true
	_, err = svc.UpdateSettings(ctx, alice, group.ID, UpdateGroupInput{AllowMemberInvites: &allow})
	require.NoError(t, err)

	_, err = svc.Invite(ctx, bob, group.ID, "carol@x", models.GroupRoleMember)
	assert.NoError(t, err)
}

func TestRejectInvitation(t *testing.T) {
	svc, store, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)

	require.NoError(t, svc.Reject(ctx, bob, inv.Token))

	stored, err := store.FindByID(ctx, group.ID)
	require.NoError(t, err)
	rec := stored.InvitationByToken(inv.Token)
	assert.Equal(t, models.InvitationStatusRejected, rec.Status)
	require.NotNil(t, rec.RejectedAt)
	assert.Nil(t, stored.ActiveMember("bob"))

	// Terminal states do not transition back.
	_, err = svc.Accept(ctx, bob, inv.Token)
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestCancelInvitation(t *testing.T) {
	svc, store, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)

	require.NoError(t, svc.CancelInvitation(ctx, alice, group.ID, inv.ID))

	stored, err := store.FindByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Invitations)

	_, err = svc.Accept(ctx, bob, inv.Token)
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestCancelInvitationClearsDuplicates(t *testing.T) {
	svc, store, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)

	// Simulate the duplicate rows a retried invite can leave behind.
	stored, err := store.FindByID(ctx, group.ID)
	require.NoError(t, err)
	dup := *stored.InvitationByToken(inv.Token)
	stored.Invitations = append(stored.Invitations, dup)
	require.NoError(t, store.Save(ctx, stored))

	require.NoError(t, svc.CancelInvitation(ctx, alice, group.ID, inv.ID))

	stored, err = store.FindByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Invitations)
}

func TestResendInvitation(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)

	resent, err := svc.ResendInvitation(ctx, alice, group.ID, inv.ID)
	require.NoError(t, err)
	assert.NotEqual(t, inv.Token, resent.Token)
	assert.True(t, resent.ExpiresAt.After(inv.ExpiresAt.Add(-time.Second)))

	// The old token died with the resend.
	_, err = svc.Accept(ctx, bob, inv.Token)
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	_, err = svc.Accept(ctx, bob, resent.Token)
	assert.NoError(t, err)
}

func TestPendingInvitationsInbox(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	home := mustCreateGroup(t, svc, alice, "Home")
	office := mustCreateGroup(t, svc, alice, "Office")
	mustInvite(t, svc, alice, home.ID, "bob@x", models.GroupRoleMember)
	mustInvite(t, svc, alice, office.ID, "bob@x", models.GroupRoleViewer)

	inbox, err := svc.PendingInvitations(ctx, bob)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	names := []string{inbox[0].GroupName, inbox[1].GroupName}
	assert.ElementsMatch(t, []string{"Home", "Office"}, names)

	inbox, err = svc.PendingInvitations(ctx, principal("carol", "carol@x"))
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestRemoveMember(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)
	_, err := svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveMember(ctx, alice, group.ID, "bob"))

	updated, err := svc.GetGroup(ctx, alice, group.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.ActiveMember("bob"))
	assert.Equal(t, 1, updated.ActiveMemberCount())

	// The creator is not removable, even by themselves.
	err = svc.RemoveMember(ctx, alice, group.ID, "alice")
	assert.ErrorIs(t, err, ErrCannotRemoveCreator)
}

func TestRemoveMemberClearsDuplicateRecords(t *testing.T) {
	svc, store, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)
	_, err := svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)

	// Concurrent retries used to write the same member twice; seed that
	// shape directly and make sure removal clears every record.
	seeded, err := store.FindByID(ctx, group.ID)
	require.NoError(t, err)
	seeded.Members = append(seeded.Members, models.Member{
		UserID:   "bob",
		Email:    "bob@x",
		Role:     models.GroupRoleMember,
		JoinedAt: time.Now().UTC(),
		Status:   models.MemberStatusActive,
	})
	require.NoError(t, store.Save(ctx, seeded))

	require.NoError(t, svc.RemoveMember(ctx, alice, group.ID, "bob"))

	updated, err := store.FindByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.ActiveMember("bob"))
	for _, m := range updated.Members {
		if m.UserID == "bob" {
			assert.Equal(t, models.MemberStatusInactive, m.Status)
		}
	}
}

func TestSelfRemoval(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)
	_, err := svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveMember(ctx, bob, group.ID, "bob"))

	_, err = svc.GetGroup(ctx, bob, group.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRejoinAfterRemoval(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)
	_, err := svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveMember(ctx, alice, group.ID, "bob"))

	inv = mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleViewer)
	updated, err := svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)

	member := updated.ActiveMember("bob")
	require.NotNil(t, member)
	assert.Equal(t, models.GroupRoleViewer, member.Role)
	// The old membership record was reactivated, not duplicated.
	assert.Len(t, updated.Members, 2)
}

func TestUpdateRole(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)
	_, err := svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateRole(ctx, alice, group.ID, "bob", models.GroupRoleAdmin))
	updated, err := svc.GetGroup(ctx, alice, group.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin("bob"))

	err = svc.UpdateRole(ctx, alice, group.ID, "alice", models.GroupRoleViewer)
	assert.ErrorIs(t, err, ErrCannotChangeCreator)

	err = svc.UpdateRole(ctx, alice, group.ID, "bob", models.GroupRole("owner"))
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "VALIDATION_INVALID_FORMAT", svcErr.Code)
}

func TestArchive(t *testing.T) {
	svc, _, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")
	bob := principal("bob", "bob@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleAdmin)
	_, err := svc.Accept(ctx, bob, inv.Token)
	require.NoError(t, err)

	// Admins who are not the creator cannot archive.
	err = svc.Archive(ctx, bob, group.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Archive(ctx, alice, group.ID))

	// Archived groups are read-only.
	_, err = svc.Invite(ctx, alice, group.ID, "carol@x", models.GroupRoleMember)
	assert.ErrorIs(t, err, ErrForbidden)
	err = svc.RemoveMember(ctx, alice, group.ID, "bob")
	assert.ErrorIs(t, err, ErrForbidden)

	// Still readable by members.
	got, err := svc.GetGroup(ctx, alice, group.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupStatusArchived, got.Status)
}

func TestExpireOverdueInvitations(t *testing.T) {
	svc, store, _ := newTestFamilyService(t)
	ctx := context.Background()
	alice := principal("alice", "alice@x")

	group := mustCreateGroup(t, svc, alice, "Home")
	inv := mustInvite(t, svc, alice, group.ID, "bob@x", models.GroupRoleMember)
	fresh := mustInvite(t, svc, alice, group.ID, "carol@x", models.GroupRoleMember)

	stored, err := store.FindByID(ctx, group.ID)
	require.NoError(t, err)
	stored.InvitationByToken(inv.Token).ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(ctx, stored))

	n, err := svc.ExpireOverdueInvitations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err = store.FindByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationStatusExpired, stored.InvitationByToken(inv.Token).Status)
	assert.Equal(t, models.InvitationStatusPending, stored.InvitationByToken(fresh.Token).Status)
}

func TestInvitationTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := newInvitationToken()
		assert.False(t, seen[token])
		seen[token] = true
	}
}
