package friend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

// SendRequest creates a pending friendship edge, refusing duplicates in
// either direction.
func (r *repository) SendRequest(ctx context.Context, userID, friendUserID uuid.UUID) (*Friend, error) {
	if userID == friendUserID {
		return nil, ErrSelfRequest
	}

	existing, err := r.between(ctx, userID, friendUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case StatusAccepted:
			return nil, ErrAlreadyFriends
		default:
			return nil, ErrRequestPending
		}
	}

	now := time.Now().UTC()
	f := &Friend{
		ID:           uuid.New(),
		UserID:       userID,
		FriendUserID: friendUserID,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `INSERT INTO user_friends (id, user_id, friend_user_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.db.ExecContext(ctx, query, f.ID, f.UserID, f.FriendUserID, f.Status, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting friend request: %w", err)
	}

	return f, nil
}

// between finds an edge connecting the two users in either direction.
func (r *repository) between(ctx context.Context, a, b uuid.UUID) (*Friend, error) {
	query := `SELECT id, user_id, friend_user_id, status, created_at, updated_at
              FROM user_friends
              WHERE (user_id = $1 AND friend_user_id = $2) OR (user_id = $2 AND friend_user_id = $1)`

	var f Friend
	err := r.db.QueryRowContext(ctx, query, a, b).Scan(
		&f.ID, &f.UserID, &f.FriendUserID, &f.Status, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &f, nil
}

// ListFriends returns accepted friendships touching the user, whichever
// side of the edge they are on.
func (r *repository) ListFriends(ctx context.Context, userID uuid.UUID) ([]Friend, error) {
	query := `SELECT id, user_id, friend_user_id, status, created_at, updated_at
              FROM user_friends
              WHERE (user_id = $1 OR friend_user_id = $1) AND status = 'accepted'
              ORDER BY created_at DESC`

	return r.list(ctx, query, userID)
}

// ListPending returns requests addressed to the user, newest first.
func (r *repository) ListPending(ctx context.Context, userID uuid.UUID) ([]Friend, error) {
	query := `SELECT id, user_id, friend_user_id, status, created_at, updated_at
              FROM user_friends
              WHERE friend_user_id = $1 AND status = 'pending'
              ORDER BY created_at DESC`

	return r.list(ctx, query, userID)
}

func (r *repository) list(ctx context.Context, query string, userID uuid.UUID) ([]Friend, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []Friend
	for rows.Next() {
		var f Friend
		err := rows.Scan(&f.ID, &f.UserID, &f.FriendUserID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
		if err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}

	return friends, rows.Err()
}

// Respond accepts or declines a pending request. Only the addressee may
// respond.
func (r *repository) Respond(ctx context.Context, requestID, userID uuid.UUID, status Status) error {
	query := `UPDATE user_friends
              SET status = $1, updated_at = NOW()
              WHERE id = $2 AND friend_user_id = $3 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, status, requestID, userID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Remove deletes a friendship edge the user is part of.
func (r *repository) Remove(ctx context.Context, friendshipID, userID uuid.UUID) error {
	query := `DELETE FROM user_friends WHERE id = $1 AND (user_id = $2 OR friend_user_id = $2)`

	result, err := r.db.ExecContext(ctx, query, friendshipID, userID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
