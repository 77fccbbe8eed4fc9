package trip

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/asmitpant/tripsplit/ledger"
	"github.com/google/uuid"
)

type Repository interface {
	CreateNew(ctx context.Context, t Trip) (string, error)
	GetByID(ctx context.Context, tripID uuid.UUID) (*Trip, error)
	ListForMember(ctx context.Context, member string) ([]Trip, error)
	AddMember(ctx context.Context, tripID uuid.UUID, member string) error
	RemoveMember(ctx context.Context, tripID uuid.UUID, member string) error
	AddGuest(ctx context.Context, tripID uuid.UUID, guest GuestMember) error
	RemoveGuest(ctx context.Context, tripID uuid.UUID, guestID string) error
	AddExpense(ctx context.Context, expense ledger.Expense) error
	DeleteExpense(ctx context.Context, tripID, expenseID uuid.UUID) error
	Delete(ctx context.Context, tripID uuid.UUID) error
}

var (
	ErrEmptyName       = errors.New("name can't be empty")
	ErrNotMember       = errors.New("not a member of this trip")
	ErrDuplicateGuest  = errors.New("a guest with this name already exists")
	ErrGuestInUse      = errors.New("guest is referenced by an expense")
	ErrExpenseNotFound = errors.New("expense not found in this trip")
)

// GuestMember is a trip-scoped participant without an account. Its ID
// is an ephemeral token that the ledger treats like any other member
// identifier.
type GuestMember struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Trip struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	CreatedBy   uuid.UUID        `json:"created_by"`
	Members     []string         `json:"members"`
	Guests      []GuestMember    `json:"guest_members"`
	Expenses    []ledger.Expense `json:"expenses"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewTrip builds a trip owned by creator, identified in the roster by
// creatorMember (the creator's registered identifier). creatorMember is
// always part of the roster.
func NewTrip(name, description string, createdBy uuid.UUID, creatorMember string, members []string) (Trip, error) {
	if name == "" {
		return Trip{}, ErrEmptyName
	}

	roster := make([]string, 0, len(members)+1)
	if creatorMember != "" {
		roster = append(roster, creatorMember)
	}
	for _, m := range members {
		if m != "" && !slices.Contains(roster, m) {
			roster = append(roster, m)
		}
	}

	now := time.Now().UTC()

	return Trip{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
		Members:     roster,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NewGuest mints a guest with a fresh trip-scoped identifier token.
func NewGuest(name string) (GuestMember, error) {
	if strings.TrimSpace(name) == "" {
		return GuestMember{}, ErrEmptyName
	}

	suffix, err := randomSuffix()
	if err != nil {
		return GuestMember{}, fmt.Errorf("generating guest id: %w", err)
	}

	now := time.Now().UTC()

	return GuestMember{
		ID:        fmt.Sprintf("guest_%d_%s", now.UnixMilli(), suffix),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
	}, nil
}

func randomSuffix() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)), nil
}

// HasMember reports whether the identifier belongs to the trip, either
// as a registered member or as a guest.
func (t *Trip) HasMember(member string) bool {
	if slices.Contains(t.Members, member) {
		return true
	}
	for _, g := range t.Guests {
		if g.ID == member {
			return true
		}
	}
	return false
}

func (t *Trip) guestIDs() []string {
	ids := make([]string, 0, len(t.Guests))
	for _, g := range t.Guests {
		ids = append(ids, g.ID)
	}
	return ids
}

// Balances recomputes every member's balance from the full expense log.
func (t *Trip) Balances() []ledger.MemberBalance {
	return ledger.ComputeBalances(t.Members, t.guestIDs(), t.Expenses)
}

// Settlements recomputes the transfer plan from the current balances.
func (t *Trip) Settlements() []ledger.Settlement {
	return ledger.ComputeSettlements(t.Balances())
}
