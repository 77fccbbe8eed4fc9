package invite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, inv Invitation) error {
	query := `INSERT INTO trip_invitations (id, trip_id, invited_by, invited_user_id, invited_email, message, status, expires_at, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var invitedUserID any
	if inv.InvitedUserID != nil {
		invitedUserID = *inv.InvitedUserID
	}
	var invitedEmail any
	if inv.InvitedEmail != "" {
		invitedEmail = inv.InvitedEmail
	}

	_, err := r.db.ExecContext(ctx, query,
		inv.ID,
		inv.TripID,
		inv.InvitedBy,
		invitedUserID,
		invitedEmail,
		inv.Message,
		inv.Status,
		inv.ExpiresAt,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting invitation: %w", err)
	}

	return nil
}

// ListPendingFor returns open invitations addressed to the user, by
// account ID or by email, unexpired ones first by recency.
func (r *repository) ListPendingFor(ctx context.Context, userID uuid.UUID, email string) ([]Invitation, error) {
	query := `SELECT id, trip_id, invited_by, invited_user_id, COALESCE(invited_email, ''), COALESCE(message, ''), status, expires_at, created_at, updated_at
              FROM trip_invitations
              WHERE (invited_user_id = $1 OR invited_email = $2)
                AND status = 'pending'
                AND (expires_at IS NULL OR expires_at > NOW())
              ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

func scanInvitation(rows *sql.Rows) (Invitation, error) {
	var inv Invitation
	var invitedUserID uuid.NullUUID
	var expiresAt sql.NullTime

	err := rows.Scan(
		&inv.ID,
		&inv.TripID,
		&inv.InvitedBy,
		&invitedUserID,
		&inv.InvitedEmail,
		&inv.Message,
		&inv.Status,
		&expiresAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return inv, err
	}

	if invitedUserID.Valid {
		id := invitedUserID.UUID
		inv.InvitedUserID = &id
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		inv.ExpiresAt = &t
	}

	return inv, nil
}

// Accept flips a pending invitation to accepted and adds the invitee to
// the trip roster, atomically. The roster identifier is the invitee's
// email, which is how registered members appear in the ledger.
func (r *repository) Accept(ctx context.Context, invitationID, userID uuid.UUID, userEmail string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `SELECT trip_id, status, expires_at
              FROM trip_invitations
              WHERE id = $1 AND (invited_user_id = $2 OR invited_email = $3)
              FOR UPDATE`

	var tripID uuid.UUID
	var status Status
	var expiresAt sql.NullTime
	err = tx.QueryRowContext(ctx, query, invitationID, userID, strings.ToLower(userEmail)).Scan(&tripID, &status, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}

	if status != StatusPending {
		return ErrNotFound
	}
	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		return ErrExpired
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE trip_invitations SET status = 'accepted', updated_at = NOW() WHERE id = $1`, invitationID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO trip_members (trip_id, member) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		tripID, strings.ToLower(userEmail))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Decline marks the invitation declined. Only the invitee may decline.
func (r *repository) Decline(ctx context.Context, invitationID, userID uuid.UUID, userEmail string) error {
	query := `UPDATE trip_invitations
              SET status = 'declined', updated_at = NOW()
              WHERE id = $1 AND (invited_user_id = $2 OR invited_email = $3) AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, invitationID, userID, strings.ToLower(userEmail))
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
