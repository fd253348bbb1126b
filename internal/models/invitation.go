package models

import "time"

// InvitationStatus represents current state of an invitation
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusRejected InvitationStatus = "rejected"
	InvitationStatusExpired  InvitationStatus = "expired"
)

// Invitation is a single-use, time-limited credential bound to an email,
// entitling its holder to join a specific group in a specific role.
// Invitations live embedded in their FamilyGroup.
type Invitation struct {
	ID            string           `json:"id"`
	Token         string           `json:"invitation_token"`
	Email         string           `json:"email"`
	InvitedBy     string           `json:"invited_by"`
	InvitedByName string           `json:"invited_by_name,omitempty"`
	Role          GroupRole        `json:"role"`
	Status        InvitationStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	ExpiresAt     time.Time        `json:"expires_at"`
	AcceptedAt    *time.Time       `json:"acceptedAt,omitempty"`
	RejectedAt    *time.Time       `json:"rejectedAt,omitempty"`
}

func (i *Invitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

func (i *Invitation) CanAccept() bool {
	return i.Status == InvitationStatusPending && !i.IsExpired()
}

func (i *Invitation) CanResend() bool {
	return i.Status == InvitationStatusPending
}

func (i *Invitation) CanCancel() bool {
	return i.Status == InvitationStatusPending
}

// Matches reports whether key identifies this invitation, by durable id
// or by token. Cancellation has to tolerate duplicate rows created by
// retried invites, so lookups go through this.
func (i *Invitation) Matches(key string) bool {
	return i.ID == key || i.Token == key
}
