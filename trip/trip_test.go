package trip

import (
	"strings"
	"testing"

	"github.com/asmitpant/tripsplit/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrip(t *testing.T) {
	creator := uuid.New()

	t.Run("creator is always in the roster", func(t *testing.T) {
		trip, err := NewTrip("Pokhara", "", creator, "a@example.com", []string{"b@example.com"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a@example.com", "b@example.com"}, trip.Members)
		assert.Equal(t, creator, trip.CreatedBy)
	})

	t.Run("duplicate members collapse", func(t *testing.T) {
		trip, err := NewTrip("Pokhara", "", creator, "a@example.com", []string{"a@example.com", "b@example.com", "b@example.com"})
		require.NoError(t, err)
		assert.Len(t, trip.Members, 2)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		_, err := NewTrip("", "", creator, "a@example.com", nil)
		assert.ErrorIs(t, err, ErrEmptyName)
	})
}

func TestNewGuest(t *testing.T) {
	t.Run("generates trip-scoped token", func(t *testing.T) {
		guest, err := NewGuest("Sita")
		require.NoError(t, err)
		assert.Equal(t, "Sita", guest.Name)
		assert.True(t, strings.HasPrefix(guest.ID, "guest_"), "id %q", guest.ID)
	})

	t.Run("tokens are unique", func(t *testing.T) {
		first, err := NewGuest("Sita")
		require.NoError(t, err)
		second, err := NewGuest("Sita")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("trims and rejects blank names", func(t *testing.T) {
		guest, err := NewGuest("  Ram  ")
		require.NoError(t, err)
		assert.Equal(t, "Ram", guest.Name)

		_, err = NewGuest("   ")
		assert.ErrorIs(t, err, ErrEmptyName)
	})
}

func TestTrip_HasMember(t *testing.T) {
	trip := Trip{
		Members: []string{"a@example.com"},
		Guests:  []GuestMember{{ID: "guest_1_abc", Name: "Sita"}},
	}

	assert.True(t, trip.HasMember("a@example.com"))
	assert.True(t, trip.HasMember("guest_1_abc"))
	assert.False(t, trip.HasMember("b@example.com"))
	assert.False(t, trip.HasMember("Sita"))
}

func TestTrip_BalancesAndSettlements(t *testing.T) {
	share := 50.0
	trip := Trip{
		ID:      uuid.New(),
		Members: []string{"a", "b"},
		Guests:  []GuestMember{{ID: "guest_1_abc", Name: "Sita"}},
		Expenses: []ledger.Expense{{
			Amount:    100,
			PaidBy:    []ledger.PaymentShare{{Member: "a", Amount: 100}},
			SplitType: ledger.SplitTypeEqual,
			Participants: []ledger.Participant{
				{Member: "a", Amount: &share},
				{Member: "b", Amount: &share},
			},
		}},
	}

	balances := trip.Balances()
	// Registered members plus the guest, even with no guest activity.
	require.Len(t, balances, 3)

	settlements := trip.Settlements()
	require.Len(t, settlements, 1)
	assert.Equal(t, ledger.Settlement{From: "b", To: "a", Amount: 50}, settlements[0])
}
