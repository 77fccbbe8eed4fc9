package friend

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	SendRequest(ctx context.Context, userID, friendUserID uuid.UUID) (*Friend, error)
	ListFriends(ctx context.Context, userID uuid.UUID) ([]Friend, error)
	ListPending(ctx context.Context, userID uuid.UUID) ([]Friend, error)
	Respond(ctx context.Context, requestID, userID uuid.UUID, status Status) error
	Remove(ctx context.Context, friendshipID, userID uuid.UUID) error
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

var (
	ErrSelfRequest    = errors.New("can't send a friend request to yourself")
	ErrAlreadyFriends = errors.New("already friends")
	ErrRequestPending = errors.New("friend request already pending")
	ErrNotFound       = errors.New("friend request not found")
)

// Friend is one friendship edge. UserID sent the request,
// FriendUserID received it; once accepted the direction stops
// mattering.
type Friend struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	FriendUserID uuid.UUID `json:"friend_user_id"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Counterpart returns the other user on the edge, from the
// perspective of the given user.
func (f *Friend) Counterpart(userID uuid.UUID) uuid.UUID {
	if f.UserID == userID {
		return f.FriendUserID
	}
	return f.UserID
}
