package ledger

import (
	"math"
	"sort"
)

// ComputeSettlements turns a balance list into pairwise transfers that
// drive every balance to zero, matching the largest creditor against
// the largest debtor greedily. The result is a fast O(n log n)
// approximation of minimal-transaction debt settlement, not a
// guaranteed minimum. An already-settled input yields an empty list.
//
// The input slice is never modified; the walk operates on a copy.
func ComputeSettlements(balances []MemberBalance) []Settlement {
	var creditors, debtors []MemberBalance
	for _, b := range balances {
		switch {
		case b.NetBalance > Tolerance:
			creditors = append(creditors, b)
		case b.NetBalance < -Tolerance:
			debtors = append(debtors, b)
		}
	}

	sort.Slice(creditors, func(i, j int) bool {
		return creditors[i].NetBalance > creditors[j].NetBalance
	})
	sort.Slice(debtors, func(i, j int) bool {
		return debtors[i].NetBalance < debtors[j].NetBalance
	})

	settlements := []Settlement{}

	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		creditor := &creditors[i]
		debtor := &debtors[j]

		amount := math.Min(creditor.NetBalance, -debtor.NetBalance)
		if amount > Tolerance {
			settlements = append(settlements, Settlement{
				From:   debtor.Member,
				To:     creditor.Member,
				Amount: math.Round(amount*100) / 100,
			})
			creditor.NetBalance -= amount
			debtor.NetBalance += amount
		}

		if creditor.NetBalance < Tolerance {
			i++
		}
		if debtor.NetBalance > -Tolerance {
			j++
		}
	}

	return settlements
}
