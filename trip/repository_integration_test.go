//go:build integration

package trip

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/asmitpant/tripsplit/ledger"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a disposable PostgreSQL container, runs the
// migrations against it and returns an open handle. The container is
// torn down via t.Cleanup.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tripsplit_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, "../migrations"))

	return db
}

func seedTrip(t *testing.T, repo Repository, creator string) *Trip {
	t.Helper()

	tr, err := NewTrip("Pokhara", "", uuid.New(), creator, nil)
	require.NoError(t, err)
	_, err = repo.CreateNew(context.Background(), tr)
	require.NoError(t, err)
	return &tr
}

func seedExpense(t *testing.T, repo Repository, tripID uuid.UUID, payer string, amount float64, participants []string) *ledger.Expense {
	t.Helper()

	ps := make([]ledger.Participant, 0, len(participants))
	for _, member := range participants {
		ps = append(ps, ledger.Participant{Member: member})
	}
	expense, err := ledger.NewExpense(tripID, "dinner", amount,
		[]ledger.PaymentShare{{Member: payer, Amount: amount}},
		ledger.SplitTypeEqual, ps, "food", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.AddExpense(context.Background(), *expense))
	return expense
}

func TestIntegration_DeleteExpense_WrongTripLeavesExpenseIntact(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	victim := seedTrip(t, repo, "victim@example.com")
	attacker := seedTrip(t, repo, "attacker@example.com")

	expense := seedExpense(t, repo, victim.ID, "victim@example.com", 90.0,
		[]string{"victim@example.com", "bhim@example.com"})

	// Deleting through the wrong trip must refuse and leave the
	// victim's payer and participant rows alone.
	err := repo.DeleteExpense(ctx, attacker.ID, expense.ID)
	assert.ErrorIs(t, err, ErrExpenseNotFound)

	loaded, err := repo.GetByID(ctx, victim.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Expenses, 1)
	assert.Len(t, loaded.Expenses[0].PaidBy, 1)
	assert.Len(t, loaded.Expenses[0].Participants, 2)

	// Paid and owed must still cancel out for the victim trip.
	for _, b := range loaded.Balances() {
		if b.Member == "victim@example.com" {
			assert.InDelta(t, 45.0, b.NetBalance, 0.001)
		}
	}

	// The right trip can still delete it, child rows included.
	require.NoError(t, repo.DeleteExpense(ctx, victim.ID, expense.ID))

	loaded, err = repo.GetByID(ctx, victim.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Expenses)

	var orphans int
	err = db.QueryRowContext(ctx, `
        SELECT (SELECT COUNT(*) FROM expense_payers WHERE expense_id = $1)
             + (SELECT COUNT(*) FROM expense_participants WHERE expense_id = $1)`,
		expense.ID).Scan(&orphans)
	require.NoError(t, err)
	assert.Equal(t, 0, orphans)
}

func TestIntegration_DeleteExpense_UnknownExpense(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	tr := seedTrip(t, repo, "ramesh@example.com")

	err := repo.DeleteExpense(context.Background(), tr.ID, uuid.New())
	assert.ErrorIs(t, err, ErrExpenseNotFound)
}

func TestIntegration_RemoveMember_NotOnRoster(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tr := seedTrip(t, repo, "ramesh@example.com")

	err := repo.RemoveMember(ctx, tr.ID, "stranger@example.com")
	assert.ErrorIs(t, err, ErrNotMember)

	require.NoError(t, repo.AddMember(ctx, tr.ID, "sita@example.com"))
	assert.NoError(t, repo.RemoveMember(ctx, tr.ID, "sita@example.com"))
}

func TestIntegration_ExpenseMutationsTouchTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	tr := seedTrip(t, repo, "ramesh@example.com")

	updatedAt := func() time.Time {
		var ts time.Time
		require.NoError(t, db.QueryRowContext(ctx,
			`SELECT updated_at FROM trips WHERE id = $1`, tr.ID).Scan(&ts))
		return ts
	}

	before := updatedAt()
	time.Sleep(10 * time.Millisecond)

	expense := seedExpense(t, repo, tr.ID, "ramesh@example.com", 50.0,
		[]string{"ramesh@example.com"})
	afterAdd := updatedAt()
	assert.True(t, afterAdd.After(before), "adding an expense should bump updated_at")

	time.Sleep(10 * time.Millisecond)

	require.NoError(t, repo.DeleteExpense(ctx, tr.ID, expense.ID))
	afterDelete := updatedAt()
	assert.True(t, afterDelete.After(afterAdd), "deleting an expense should bump updated_at")
}
