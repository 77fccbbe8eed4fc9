package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// applySettlements replays transfers against a balance list and
// returns the remaining net balances keyed by member.
func applySettlements(balances []MemberBalance, settlements []Settlement) map[string]float64 {
	remaining := make(map[string]float64, len(balances))
	for _, b := range balances {
		remaining[b.Member] = b.NetBalance
	}
	for _, s := range settlements {
		remaining[s.From] += s.Amount
		remaining[s.To] -= s.Amount
	}
	return remaining
}

func TestComputeSettlements_SingleDebt(t *testing.T) {
	balances := []MemberBalance{
		{Member: "a", NetBalance: 50},
		{Member: "b", NetBalance: -50},
	}

	settlements := ComputeSettlements(balances)
	require.Len(t, settlements, 1)
	assert.Equal(t, Settlement{From: "b", To: "a", Amount: 50}, settlements[0])
}

func TestComputeSettlements_CustomSplitScenario(t *testing.T) {
	balances := []MemberBalance{
		{Member: "a", NetBalance: 30},
		{Member: "b", NetBalance: -30},
	}

	settlements := ComputeSettlements(balances)
	require.Len(t, settlements, 1)
	assert.Equal(t, Settlement{From: "b", To: "a", Amount: 30}, settlements[0])
}

func TestComputeSettlements_OneCreditorTwoDebtors(t *testing.T) {
	balances := []MemberBalance{
		{Member: "a", NetBalance: 60},
		{Member: "b", NetBalance: -30},
		{Member: "c", NetBalance: -30},
	}

	settlements := ComputeSettlements(balances)
	require.Len(t, settlements, 2)

	var total float64
	for _, s := range settlements {
		assert.Equal(t, "a", s.To)
		assert.InDelta(t, 30, s.Amount, Tolerance)
		total += s.Amount
	}
	assert.InDelta(t, 60, total, Tolerance)
}

func TestComputeSettlements_AllSettled(t *testing.T) {
	balances := []MemberBalance{
		{Member: "a", NetBalance: 0.005},
		{Member: "b", NetBalance: -0.005},
	}
	assert.Empty(t, ComputeSettlements(balances))
}

func TestComputeSettlements_EmptyInput(t *testing.T) {
	assert.Empty(t, ComputeSettlements(nil))
}

func TestComputeSettlements_DrivesBalancesToZero(t *testing.T) {
	balances := []MemberBalance{
		{Member: "a", NetBalance: 173.42},
		{Member: "b", NetBalance: -91.17},
		{Member: "c", NetBalance: 12.75},
		{Member: "d", NetBalance: -55},
		{Member: "e", NetBalance: -40},
	}

	settlements := ComputeSettlements(balances)

	remaining := applySettlements(balances, settlements)
	for member, net := range remaining {
		assert.LessOrEqual(t, math.Abs(net), Tolerance+1e-9, "member %s left unsettled: %f", member, net)
	}
}

func TestComputeSettlements_AmountsAlwaysPositive(t *testing.T) {
	balances := []MemberBalance{
		{Member: "a", NetBalance: 10.004},
		{Member: "b", NetBalance: -5.002},
		{Member: "c", NetBalance: -5.002},
	}

	for _, s := range ComputeSettlements(balances) {
		assert.Greater(t, s.Amount, Tolerance)
	}
}

func TestComputeSettlements_DoesNotMutateInput(t *testing.T) {
	balances := []MemberBalance{
		{Member: "a", NetBalance: 50},
		{Member: "b", NetBalance: -50},
	}

	ComputeSettlements(balances)

	assert.InDelta(t, 50, balances[0].NetBalance, 1e-9)
	assert.InDelta(t, -50, balances[1].NetBalance, 1e-9)
}

func TestComputeSettlements_Repeatable(t *testing.T) {
	balances := []MemberBalance{
		{Member: "a", NetBalance: 20},
		{Member: "b", NetBalance: 15},
		{Member: "c", NetBalance: -25},
		{Member: "d", NetBalance: -10},
	}

	first := ComputeSettlements(balances)
	second := ComputeSettlements(balances)
	assert.Equal(t, first, second)
}

func TestComputeSettlements_RoundsToTwoDecimals(t *testing.T) {
	balances := []MemberBalance{
		{Member: "a", NetBalance: 33.333333},
		{Member: "b", NetBalance: -33.333333},
	}

	settlements := ComputeSettlements(balances)
	require.Len(t, settlements, 1)
	assert.InDelta(t, 33.33, settlements[0].Amount, 1e-9)
}

func TestComputeSettlements_FullPipeline(t *testing.T) {
	expenses := []Expense{
		{
			Amount:    100,
			PaidBy:    []PaymentShare{{Member: "a", Amount: 100}},
			SplitType: SplitTypeEqual,
			Participants: []Participant{
				{Member: "a"},
				{Member: "b"},
				{Member: "c"},
				{Member: "d"},
			},
		},
		{
			Amount:    60,
			PaidBy:    []PaymentShare{{Member: "b", Amount: 60}},
			SplitType: SplitTypeCustom,
			Participants: []Participant{
				{Member: "c", Amount: amt(45)},
				{Member: "d", Amount: amt(15)},
			},
		},
	}

	balances := ComputeBalances([]string{"a", "b", "c", "d"}, nil, expenses)
	settlements := ComputeSettlements(balances)

	remaining := applySettlements(balances, settlements)
	for member, net := range remaining {
		assert.LessOrEqual(t, math.Abs(net), Tolerance+1e-9, "member %s", member)
	}
}
