package invite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, inv Invitation) error
	ListPendingFor(ctx context.Context, userID uuid.UUID, email string) ([]Invitation, error)
	Accept(ctx context.Context, invitationID, userID uuid.UUID, userEmail string) error
	Decline(ctx context.Context, invitationID, userID uuid.UUID, userEmail string) error
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Invitations without an explicit expiry stay open; the default gives
// the invitee a week.
const defaultTTL = 7 * 24 * time.Hour

var (
	ErrNoInvitee = errors.New("invitation needs a registered user or an email")
	ErrNotFound  = errors.New("invitation not found")
	ErrExpired   = errors.New("invitation expired")
)

// Invitation asks someone to join a trip. The invitee is either a
// registered user or, for people without an account yet, a bare email
// that is matched against their address once they sign up.
type Invitation struct {
	ID            uuid.UUID  `json:"id"`
	TripID        uuid.UUID  `json:"trip_id"`
	InvitedBy     uuid.UUID  `json:"invited_by"`
	InvitedUserID *uuid.UUID `json:"invited_user_id,omitempty"`
	InvitedEmail  string     `json:"invited_email,omitempty"`
	Message       string     `json:"message,omitempty"`
	Status        Status     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func New(tripID, invitedBy uuid.UUID, invitedUserID *uuid.UUID, invitedEmail, message string) (Invitation, error) {
	invitedEmail = strings.ToLower(strings.TrimSpace(invitedEmail))
	if invitedUserID == nil && invitedEmail == "" {
		return Invitation{}, ErrNoInvitee
	}

	now := time.Now().UTC()
	expires := now.Add(defaultTTL)

	return Invitation{
		ID:            uuid.New(),
		TripID:        tripID,
		InvitedBy:     invitedBy,
		InvitedUserID: invitedUserID,
		InvitedEmail:  invitedEmail,
		Message:       strings.TrimSpace(message),
		Status:        StatusPending,
		ExpiresAt:     &expires,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Expired reports whether the invitation can no longer be accepted.
// A nil ExpiresAt never expires.
func (inv *Invitation) Expired(now time.Time) bool {
	return inv.ExpiresAt != nil && now.After(*inv.ExpiresAt)
}
