package trip

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asmitpant/tripsplit/ledger"
	"github.com/google/uuid"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) CreateNew(ctx context.Context, t Trip) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	var lastId string
	if err != nil {
		return lastId, err
	}
	defer tx.Rollback()

	insertTrip := `INSERT INTO trips (id, name, description, created_by, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err = tx.QueryRowContext(
		ctx,
		insertTrip,
		t.ID,
		t.Name,
		t.Description,
		t.CreatedBy,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&lastId)
	if err != nil {
		return lastId, err
	}

	insertMember := `INSERT INTO trip_members (trip_id, member) VALUES ($1, $2)`
	for _, member := range t.Members {
		_, err = tx.ExecContext(ctx, insertMember, t.ID, member)
		if err != nil {
			return lastId, err
		}
	}

	return lastId, tx.Commit()
}

func (r *repository) GetByID(ctx context.Context, tripID uuid.UUID) (*Trip, error) {
	query := `SELECT id, name, COALESCE(description, ''), created_by, created_at, updated_at FROM trips WHERE id = $1`

	var t Trip
	err := r.db.QueryRowContext(ctx, query, tripID).Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if t.Members, err = r.members(ctx, tripID); err != nil {
		return nil, err
	}
	if t.Guests, err = r.guests(ctx, tripID); err != nil {
		return nil, err
	}
	if t.Expenses, err = r.expenses(ctx, tripID); err != nil {
		return nil, err
	}

	return &t, nil
}

func (r *repository) members(ctx context.Context, tripID uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT member FROM trip_members WHERE trip_id = $1 ORDER BY joined_at`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

func (r *repository) guests(ctx context.Context, tripID uuid.UUID) ([]GuestMember, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM trip_guests WHERE trip_id = $1 ORDER BY created_at`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guests []GuestMember
	for rows.Next() {
		var g GuestMember
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, err
		}
		guests = append(guests, g)
	}

	return guests, rows.Err()
}

func (r *repository) expenses(ctx context.Context, tripID uuid.UUID) ([]ledger.Expense, error) {
	query := `SELECT id, trip_id, description, amount, date, COALESCE(category, ''), split_type, created_at
              FROM expenses
              WHERE trip_id = $1
              ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []ledger.Expense
	for rows.Next() {
		var e ledger.Expense
		err := rows.Scan(
			&e.ID,
			&e.TripID,
			&e.Description,
			&e.Amount,
			&e.Date,
			&e.Category,
			&e.SplitType,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range expenses {
		if expenses[i].PaidBy, err = r.payers(ctx, expenses[i].ID); err != nil {
			return nil, err
		}
		if expenses[i].Participants, err = r.participants(ctx, expenses[i].ID); err != nil {
			return nil, err
		}
	}

	return expenses, nil
}

func (r *repository) payers(ctx context.Context, expenseID uuid.UUID) ([]ledger.PaymentShare, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT member, amount FROM expense_payers WHERE expense_id = $1 ORDER BY position`, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payers []ledger.PaymentShare
	for rows.Next() {
		var p ledger.PaymentShare
		if err := rows.Scan(&p.Member, &p.Amount); err != nil {
			return nil, err
		}
		payers = append(payers, p)
	}

	return payers, rows.Err()
}

func (r *repository) participants(ctx context.Context, expenseID uuid.UUID) ([]ledger.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT member, amount FROM expense_participants WHERE expense_id = $1 ORDER BY position`, expenseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []ledger.Participant
	for rows.Next() {
		var member string
		var amount sql.NullFloat64
		if err := rows.Scan(&member, &amount); err != nil {
			return nil, err
		}
		p := ledger.Participant{Member: member}
		// NULL amount is the legacy bare-identifier shape.
		if amount.Valid {
			v := amount.Float64
			p.Amount = &v
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

func (r *repository) ListForMember(ctx context.Context, member string) ([]Trip, error) {
	query := `SELECT t.id, t.name, COALESCE(t.description, ''), t.created_by, t.created_at, t.updated_at
              FROM trips t
              INNER JOIN trip_members tm ON t.id = tm.trip_id
              WHERE tm.member = $1
              ORDER BY t.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, member)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		var t Trip
		err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}

	return trips, rows.Err()
}

func (r *repository) AddMember(ctx context.Context, tripID uuid.UUID, member string) error {
	query := `INSERT INTO trip_members (trip_id, member) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, tripID, member)
	if err != nil {
		return fmt.Errorf("adding trip member: %w", err)
	}
	return r.touch(ctx, tripID)
}

// RemoveMember drops an identifier from the roster. Expenses the member
// appears in stay untouched; the aggregator still produces a balance
// entry for them from the log alone.
func (r *repository) RemoveMember(ctx context.Context, tripID uuid.UUID, member string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trip_members WHERE trip_id = $1 AND member = $2`, tripID, member)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotMember
	}
	return r.touch(ctx, tripID)
}

func (r *repository) AddGuest(ctx context.Context, tripID uuid.UUID, guest GuestMember) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM trip_guests WHERE trip_id = $1 AND LOWER(name) = LOWER($2))`,
		tripID, guest.Name).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateGuest
	}

	query := `INSERT INTO trip_guests (id, trip_id, name, created_at) VALUES ($1, $2, $3, $4)`
	_, err = r.db.ExecContext(ctx, query, guest.ID, tripID, guest.Name, guest.CreatedAt)
	if err != nil {
		return fmt.Errorf("adding guest: %w", err)
	}
	return r.touch(ctx, tripID)
}

func (r *repository) RemoveGuest(ctx context.Context, tripID uuid.UUID, guestID string) error {
	var inUse bool
	err := r.db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM expense_payers ep
            INNER JOIN expenses e ON ep.expense_id = e.id
            WHERE e.trip_id = $1 AND ep.member = $2
        ) OR EXISTS (
            SELECT 1 FROM expense_participants epa
            INNER JOIN expenses e ON epa.expense_id = e.id
            WHERE e.trip_id = $1 AND epa.member = $2
        )`, tripID, guestID).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse {
		return ErrGuestInUse
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM trip_guests WHERE trip_id = $1 AND id = $2`, tripID, guestID)
	if err != nil {
		return err
	}
	return r.touch(ctx, tripID)
}

func (r *repository) AddExpense(ctx context.Context, expense ledger.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO expenses (id, trip_id, description, amount, date, category, split_type, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.ExecContext(
		ctx,
		query,
		expense.ID,
		expense.TripID,
		expense.Description,
		expense.Amount,
		expense.Date,
		expense.Category,
		expense.SplitType,
		expense.CreatedAt,
	)
	if err != nil {
		return err
	}

	for i, payer := range expense.PaidBy {
		query = `INSERT INTO expense_payers (expense_id, member, amount, position) VALUES ($1, $2, $3, $4)`
		_, err = tx.ExecContext(ctx, query, expense.ID, payer.Member, payer.Amount, i)
		if err != nil {
			return err
		}
	}

	for i, participant := range expense.Participants {
		var amount sql.NullFloat64
		if participant.Amount != nil {
			amount = sql.NullFloat64{Float64: *participant.Amount, Valid: true}
		}
		query = `INSERT INTO expense_participants (expense_id, member, amount, position) VALUES ($1, $2, $3, $4)`
		_, err = tx.ExecContext(ctx, query, expense.ID, participant.Member, amount, i)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE trips SET updated_at = NOW() WHERE id = $1`, expense.TripID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteExpense removes an expense and its payer and participant rows.
// The expense must belong to the given trip; the ownership check keeps
// a caller who knows another trip's expense id from stripping its
// child rows.
func (r *repository) DeleteExpense(ctx context.Context, tripID, expenseID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var owned bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM expenses WHERE id = $1 AND trip_id = $2)`,
		expenseID, tripID).Scan(&owned)
	if err != nil {
		return err
	}
	if !owned {
		return ErrExpenseNotFound
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM expense_payers WHERE expense_id = $1`, expenseID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM expense_participants WHERE expense_id = $1`, expenseID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, expenseID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE trips SET updated_at = NOW() WHERE id = $1`, tripID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) Delete(ctx context.Context, tripID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM expense_payers WHERE expense_id IN (SELECT id FROM expenses WHERE trip_id = $1)`,
		`DELETE FROM expense_participants WHERE expense_id IN (SELECT id FROM expenses WHERE trip_id = $1)`,
		`DELETE FROM expenses WHERE trip_id = $1`,
		`DELETE FROM trip_guests WHERE trip_id = $1`,
		`DELETE FROM trip_members WHERE trip_id = $1`,
		`DELETE FROM trip_invitations WHERE trip_id = $1`,
		`DELETE FROM trips WHERE id = $1`,
	}
	for _, statement := range statements {
		if _, err = tx.ExecContext(ctx, statement, tripID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *repository) touch(ctx context.Context, tripID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE trips SET updated_at = NOW() WHERE id = $1`, tripID)
	return err
}
