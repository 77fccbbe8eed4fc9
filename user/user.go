package user

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	Username     string    `json:"username,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Avatar       []byte    `json:"-"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName resolves what to show for this user: full name first,
// then username, then the email local part.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return localPart(u.Email)
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

type Repository interface {
	Register(ctx context.Context, email, password string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	VerifyPassword(hashedPassword, password string) error
	UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, username, bio string) error
	UpdateAvatar(ctx context.Context, img []byte, userID uuid.UUID) error
	Search(ctx context.Context, q string, limit int) ([]User, error)
	DisplayNames(ctx context.Context, identifiers []string) (map[string]string, error)
}
