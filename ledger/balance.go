package ledger

import "sort"

// ComputeBalances aggregates the expense log into one balance per
// member. Every identifier from the roster and guest list gets an
// entry, as does any identifier that appears only inside an expense
// (a member removed from the trip after paying, say). No error paths:
// the aggregation is additive and tolerates any numeric input.
func ComputeBalances(members []string, guestIDs []string, expenses []Expense) []MemberBalance {
	balances := make(map[string]*MemberBalance)

	ensure := func(member string) *MemberBalance {
		if member == "" {
			return nil
		}
		b, ok := balances[member]
		if !ok {
			b = &MemberBalance{Member: member}
			balances[member] = b
		}
		return b
	}

	for _, m := range members {
		ensure(m)
	}
	for _, id := range guestIDs {
		ensure(id)
	}

	for _, expense := range expenses {
		for _, payment := range expense.PaidBy {
			ensure(payment.Member)
		}
		for _, participant := range expense.Participants {
			ensure(participant.Member)
		}
	}

	for _, expense := range expenses {
		for _, payment := range expense.PaidBy {
			if b := ensure(payment.Member); b != nil {
				b.TotalPaid += payment.Amount
			}
		}
	}

	for _, expense := range expenses {
		switch {
		case expense.SplitType == SplitTypeCustom:
			for _, participant := range expense.Participants {
				if participant.Amount == nil {
					continue
				}
				if b := ensure(participant.Member); b != nil {
					b.TotalOwed += *participant.Amount
				}
			}

		default:
			// Equal split. Weighted entries carry the share fixed at
			// creation time; bare entries are the legacy shape and the
			// share is derived from the participant count.
			perHead := 0.0
			if n := len(expense.Participants); n > 0 {
				perHead = expense.Amount / float64(n)
			}
			for _, participant := range expense.Participants {
				b := ensure(participant.Member)
				if b == nil {
					continue
				}
				if participant.Amount != nil {
					b.TotalOwed += *participant.Amount
				} else {
					b.TotalOwed += perHead
				}
			}
		}
	}

	result := make([]MemberBalance, 0, len(balances))
	for _, b := range balances {
		b.NetBalance = b.TotalPaid - b.TotalOwed
		result = append(result, *b)
	}

	// Map iteration order is random; callers compare successive runs.
	sort.Slice(result, func(i, j int) bool {
		return result[i].Member < result[j].Member
	})

	return result
}
