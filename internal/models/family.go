package models

import "time"

// GroupRole represents a member's role inside a family group.
// Roles are data, not types; permission checks are functions on (role, op).
type GroupRole string

const (
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
	GroupRoleViewer GroupRole = "viewer"
)

func (r GroupRole) Valid() bool {
	switch r {
	case GroupRoleAdmin, GroupRoleMember, GroupRoleViewer:
		return true
	}
	return false
}

// GroupStatus represents lifecycle state of a family group
type GroupStatus string

const (
	GroupStatusActive   GroupStatus = "active"
	GroupStatusArchived GroupStatus = "archived"
)

// MemberStatus represents lifecycle state of a membership
type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInactive MemberStatus = "inactive"
)

const (
	MinGroupMembers     = 2
	DefaultGroupMembers = 10
)

// GroupSettings holds per-group configuration.
type GroupSettings struct {
	MaxMembers         int  `json:"max_members"`
	AllowMemberInvites bool `json:"allowMemberInvites"`
}

// Member is a user's membership in a family group, embedded by value.
type Member struct {
	UserID      string       `json:"user_id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name,omitempty"`
	Role        GroupRole    `json:"role"`
	JoinedAt    time.Time    `json:"joined_at"`
	InvitedBy   string       `json:"invited_by,omitempty"`
	Status      MemberStatus `json:"status"`
}

// FamilyGroup is a named set of users who share documents with each other
// under role-based rules. The group owns its members and invitations by
// value; the whole aggregate is written atomically.
type FamilyGroup struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	CreatedBy    string        `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at"`
	LastModified time.Time     `json:"last_modified"`
	Settings     GroupSettings `json:"settings"`
	Status       GroupStatus   `json:"status"`
	Members      []Member      `json:"members"`
	Invitations  []Invitation  `json:"invitations"`
}

// ActiveMemberCount counts members with status=active.
func (g *FamilyGroup) ActiveMemberCount() int {
	n := 0
	for i := range g.Members {
		if g.Members[i].Status == MemberStatusActive {
			n++
		}
	}
	return n
}

// ActiveMemberIDs returns the user ids of all active members.
func (g *FamilyGroup) ActiveMemberIDs() []string {
	ids := make([]string, 0, len(g.Members))
	for i := range g.Members {
		if g.Members[i].Status == MemberStatusActive {
			ids = append(ids, g.Members[i].UserID)
		}
	}
	return ids
}

// ActiveMember returns the active member record for userID, or nil.
func (g *FamilyGroup) ActiveMember(userID string) *Member {
	for i := range g.Members {
		if g.Members[i].UserID == userID && g.Members[i].Status == MemberStatusActive {
			return &g.Members[i]
		}
	}
	return nil
}

// ActiveMemberByEmail returns the active member with the given
// (already lowercased) email, or nil.
func (g *FamilyGroup) ActiveMemberByEmail(email string) *Member {
	for i := range g.Members {
		if g.Members[i].Email == email && g.Members[i].Status == MemberStatusActive {
			return &g.Members[i]
		}
	}
	return nil
}

// IsAdmin reports whether userID is an active admin of the group.
func (g *FamilyGroup) IsAdmin(userID string) bool {
	m := g.ActiveMember(userID)
	return m != nil && m.Role == GroupRoleAdmin
}

// PendingInvitationForEmail returns the pending invitation addressed to
// email, or nil. At most one may exist per (group, email).
func (g *FamilyGroup) PendingInvitationForEmail(email string) *Invitation {
	for i := range g.Invitations {
		if g.Invitations[i].Email == email && g.Invitations[i].Status == InvitationStatusPending {
			return &g.Invitations[i]
		}
	}
	return nil
}

// InvitationByToken returns the invitation carrying token, or nil.
func (g *FamilyGroup) InvitationByToken(token string) *Invitation {
	for i := range g.Invitations {
		if g.Invitations[i].Token == token {
			return &g.Invitations[i]
		}
	}
	return nil
}
