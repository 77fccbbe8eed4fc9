package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type SplitType string

const (
	SplitTypeEqual  SplitType = "equal"
	SplitTypeCustom SplitType = "custom"
)

// Tolerance is the maximum difference, in currency units, at which two
// amounts are still considered equal. Balances within this distance of
// zero count as settled.
const Tolerance = 0.01

// PaymentShare records how much of an expense one member paid.
type PaymentShare struct {
	Member string  `json:"member"`
	Amount float64 `json:"amount"`
}

// Participant records one member's share of an expense. A nil Amount is
// the legacy shape: the member was stored as a bare identifier and owes
// an equal share of the expense total.
type Participant struct {
	Member string   `json:"member"`
	Amount *float64 `json:"amount,omitempty"`
}

// UnmarshalJSON accepts both participant shapes found in stored
// expenses: a bare identifier string, or a {member, amount} object.
func (p *Participant) UnmarshalJSON(data []byte) error {
	var member string
	if err := json.Unmarshal(data, &member); err == nil {
		p.Member = member
		p.Amount = nil
		return nil
	}

	var obj struct {
		Member string   `json:"member"`
		Amount *float64 `json:"amount"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unmarshaling participant: %w", err)
	}
	p.Member = obj.Member
	p.Amount = obj.Amount
	return nil
}

type Expense struct {
	ID           uuid.UUID      `json:"id"`
	TripID       uuid.UUID      `json:"trip_id"`
	Description  string         `json:"description"`
	Amount       float64        `json:"amount"`
	PaidBy       []PaymentShare `json:"paid_by"`
	Participants []Participant  `json:"participants"`
	Date         time.Time      `json:"date"`
	Category     string         `json:"category,omitempty"`
	SplitType    SplitType      `json:"split_type"`
	CreatedAt    time.Time      `json:"created_at"`
}

// MemberBalance is derived from the expense log, never stored.
type MemberBalance struct {
	Member     string  `json:"member"`
	TotalPaid  float64 `json:"total_paid"`
	TotalOwed  float64 `json:"total_owed"`
	NetBalance float64 `json:"net_balance"`
}

// Settlement instructs From to pay To the given amount.
type Settlement struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

var (
	ErrEmptyDescription = errors.New("description can't be empty")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrNoPayers         = errors.New("at least one payer is required")
	ErrInvalidPayer     = errors.New("each payer amount must be positive")
	ErrNoParticipants   = errors.New("at least one participant is required")
	ErrInvalidSplitType = errors.New("unsupported split type")
)

// UnbalancedError reports which side of an expense does not add up to
// the stated total, and by how much.
type UnbalancedError struct {
	Side string // "paid" or "owed"
	Want float64
	Got  float64
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("%s amounts sum to %.2f, expected %.2f (off by %.2f)",
		e.Side, e.Got, e.Want, math.Abs(e.Got-e.Want))
}

// withinTolerance reports whether two amounts differ by at most one
// cent. The comparison happens in integer cents so float noise right at
// the boundary (99.99 vs 100.00) can't flip the result.
func withinTolerance(a, b float64) bool {
	return math.Abs(math.Round(a*100)-math.Round(b*100)) <= Tolerance*100
}

// NewExpense validates and builds an expense. All validation happens
// here, at creation time; the balance computation downstream is purely
// additive and accepts whatever is in the log.
//
// For an equal split the per-head share is computed once, now, and
// carried on each participant. Later roster changes don't alter shares
// of expenses already recorded.
func NewExpense(tripID uuid.UUID, description string, amount float64, paidBy []PaymentShare, splitType SplitType, participants []Participant, category string, date time.Time) (*Expense, error) {
	if description == "" {
		return nil, ErrEmptyDescription
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if len(paidBy) == 0 {
		return nil, ErrNoPayers
	}

	var totalPaid float64
	for _, p := range paidBy {
		if p.Member == "" || p.Amount <= 0 {
			return nil, ErrInvalidPayer
		}
		totalPaid += p.Amount
	}
	if !withinTolerance(totalPaid, amount) {
		return nil, &UnbalancedError{Side: "paid", Want: amount, Got: totalPaid}
	}

	var shares []Participant
	switch splitType {
	case SplitTypeEqual:
		if len(participants) == 0 {
			return nil, ErrNoParticipants
		}
		perHead := amount / float64(len(participants))
		shares = make([]Participant, 0, len(participants))
		for _, p := range participants {
			share := perHead
			shares = append(shares, Participant{Member: p.Member, Amount: &share})
		}

	case SplitTypeCustom:
		shares = make([]Participant, 0, len(participants))
		var totalOwed float64
		for _, p := range participants {
			if p.Amount == nil || *p.Amount <= 0 {
				continue
			}
			owed := *p.Amount
			shares = append(shares, Participant{Member: p.Member, Amount: &owed})
			totalOwed += owed
		}
		if len(shares) == 0 {
			return nil, ErrNoParticipants
		}
		if !withinTolerance(totalOwed, amount) {
			return nil, &UnbalancedError{Side: "owed", Want: amount, Got: totalOwed}
		}

	default:
		return nil, ErrInvalidSplitType
	}

	if date.IsZero() {
		date = time.Now().UTC()
	}

	return &Expense{
		ID:           uuid.New(),
		TripID:       tripID,
		Description:  description,
		Amount:       amount,
		PaidBy:       paidBy,
		Participants: shares,
		Date:         date,
		Category:     category,
		SplitType:    splitType,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
