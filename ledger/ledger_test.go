package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExpense_EqualSplit(t *testing.T) {
	expense, err := NewExpense(uuid.New(), "dinner", 100,
		[]PaymentShare{{Member: "a", Amount: 100}},
		SplitTypeEqual,
		[]Participant{{Member: "a"}, {Member: "b"}, {Member: "c"}},
		"food", zeroTime())
	require.NoError(t, err)

	require.Len(t, expense.Participants, 3)
	for _, p := range expense.Participants {
		require.NotNil(t, p.Amount)
		assert.InDelta(t, 100.0/3, *p.Amount, 1e-9)
	}
	assert.Equal(t, SplitTypeEqual, expense.SplitType)
	assert.False(t, expense.Date.IsZero())
	assert.NotEqual(t, uuid.Nil, expense.ID)
}

func TestNewExpense_CustomSplit(t *testing.T) {
	expense, err := NewExpense(uuid.New(), "hotel", 100,
		[]PaymentShare{{Member: "a", Amount: 100}},
		SplitTypeCustom,
		[]Participant{{Member: "a", Amount: amt(70)}, {Member: "b", Amount: amt(30)}},
		"", zeroTime())
	require.NoError(t, err)
	require.Len(t, expense.Participants, 2)
}

func TestNewExpense_CustomSplitDropsZeroShares(t *testing.T) {
	expense, err := NewExpense(uuid.New(), "hotel", 100,
		[]PaymentShare{{Member: "a", Amount: 100}},
		SplitTypeCustom,
		[]Participant{
			{Member: "a", Amount: amt(100)},
			{Member: "b", Amount: amt(0)},
			{Member: "c"},
		},
		"", zeroTime())
	require.NoError(t, err)
	require.Len(t, expense.Participants, 1)
	assert.Equal(t, "a", expense.Participants[0].Member)
}

func TestNewExpense_Validation(t *testing.T) {
	tripID := uuid.New()
	payers := []PaymentShare{{Member: "a", Amount: 100}}
	participants := []Participant{{Member: "a"}, {Member: "b"}}

	t.Run("empty description", func(t *testing.T) {
		_, err := NewExpense(tripID, "", 100, payers, SplitTypeEqual, participants, "", zeroTime())
		assert.ErrorIs(t, err, ErrEmptyDescription)
	})

	t.Run("zero amount", func(t *testing.T) {
		_, err := NewExpense(tripID, "x", 0, payers, SplitTypeEqual, participants, "", zeroTime())
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("no payers", func(t *testing.T) {
		_, err := NewExpense(tripID, "x", 100, nil, SplitTypeEqual, participants, "", zeroTime())
		assert.ErrorIs(t, err, ErrNoPayers)
	})

	t.Run("payer with zero amount", func(t *testing.T) {
		_, err := NewExpense(tripID, "x", 100,
			[]PaymentShare{{Member: "a", Amount: 100}, {Member: "b", Amount: 0}},
			SplitTypeEqual, participants, "", zeroTime())
		assert.ErrorIs(t, err, ErrInvalidPayer)
	})

	t.Run("equal split without participants", func(t *testing.T) {
		_, err := NewExpense(tripID, "x", 100, payers, SplitTypeEqual, nil, "", zeroTime())
		assert.ErrorIs(t, err, ErrNoParticipants)
	})

	t.Run("custom split with only zero shares", func(t *testing.T) {
		_, err := NewExpense(tripID, "x", 100, payers, SplitTypeCustom,
			[]Participant{{Member: "a", Amount: amt(0)}}, "", zeroTime())
		assert.ErrorIs(t, err, ErrNoParticipants)
	})

	t.Run("unknown split type", func(t *testing.T) {
		_, err := NewExpense(tripID, "x", 100, payers, SplitType("percentage"), participants, "", zeroTime())
		assert.ErrorIs(t, err, ErrInvalidSplitType)
	})
}

func TestNewExpense_PaidSumMismatch(t *testing.T) {
	_, err := NewExpense(uuid.New(), "x", 100,
		[]PaymentShare{{Member: "a", Amount: 60}, {Member: "b", Amount: 30}},
		SplitTypeEqual, []Participant{{Member: "a"}}, "", zeroTime())

	var unbalanced *UnbalancedError
	require.ErrorAs(t, err, &unbalanced)
	assert.Equal(t, "paid", unbalanced.Side)
	assert.InDelta(t, 100, unbalanced.Want, 1e-9)
	assert.InDelta(t, 90, unbalanced.Got, 1e-9)
	assert.Contains(t, unbalanced.Error(), "paid")
}

func TestNewExpense_OwedSumMismatch(t *testing.T) {
	_, err := NewExpense(uuid.New(), "x", 100,
		[]PaymentShare{{Member: "a", Amount: 100}},
		SplitTypeCustom,
		[]Participant{{Member: "a", Amount: amt(50)}, {Member: "b", Amount: amt(40)}},
		"", zeroTime())

	var unbalanced *UnbalancedError
	require.ErrorAs(t, err, &unbalanced)
	assert.Equal(t, "owed", unbalanced.Side)
}

// The 0.01 tolerance boundary is inclusive: a 0.01 gap passes, anything
// larger is rejected.
func TestNewExpense_ToleranceBoundary(t *testing.T) {
	tripID := uuid.New()

	t.Run("paid sum off by exactly 0.01 accepted", func(t *testing.T) {
		_, err := NewExpense(tripID, "x", 100.00,
			[]PaymentShare{{Member: "a", Amount: 99.99}},
			SplitTypeEqual, []Participant{{Member: "a"}, {Member: "b"}}, "", zeroTime())
		assert.NoError(t, err)
	})

	t.Run("paid sum off by 0.02 rejected", func(t *testing.T) {
		_, err := NewExpense(tripID, "x", 100.00,
			[]PaymentShare{{Member: "a", Amount: 99.98}},
			SplitTypeEqual, []Participant{{Member: "a"}, {Member: "b"}}, "", zeroTime())
		var unbalanced *UnbalancedError
		assert.ErrorAs(t, err, &unbalanced)
	})

	t.Run("owed sum off by exactly 0.01 accepted", func(t *testing.T) {
		_, err := NewExpense(tripID, "x", 100.00,
			[]PaymentShare{{Member: "a", Amount: 100}},
			SplitTypeCustom,
			[]Participant{{Member: "a", Amount: amt(49.99)}, {Member: "b", Amount: amt(50)}},
			"", zeroTime())
		assert.NoError(t, err)
	})
}
