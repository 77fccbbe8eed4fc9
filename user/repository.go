package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailExists   = errors.New("email already exists")
	ErrInvalidEmail  = errors.New("invalid email format")
	ErrBlankPassword = errors.New("password can't be blank")
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) Register(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	if password == "" {
		return nil, ErrBlankPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = r.db.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	return user, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT id, email, COALESCE(full_name, ''), COALESCE(username, ''), COALESCE(bio, ''), password_hash, avatar, created_at, updated_at FROM users WHERE email = $1`

	var user User
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.Username,
		&user.Bio,
		&user.PasswordHash,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT id, email, COALESCE(full_name, ''), COALESCE(username, ''), COALESCE(bio, ''), password_hash, avatar, created_at, updated_at FROM users WHERE id = $1`

	var user User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.Username,
		&user.Bio,
		&user.PasswordHash,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (r *repository) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (r *repository) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, username, bio string) error {
	query := `UPDATE users SET full_name = $1, username = $2, bio = $3, updated_at = NOW() WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, fullName, username, bio, userID)
	return err
}

func (r *repository) UpdateAvatar(ctx context.Context, img []byte, userID uuid.UUID) error {
	query := `UPDATE users SET avatar = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, img, userID)
	return err
}

// Search finds users whose email or username starts with q. Used by the
// invitation flow's people picker.
func (r *repository) Search(ctx context.Context, q string, limit int) ([]User, error) {
	query := `SELECT id, email, COALESCE(full_name, ''), COALESCE(username, ''), created_at, updated_at
              FROM users
              WHERE email ILIKE $1 OR username ILIKE $1
              ORDER BY email
              LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, escapeLike(strings.ToLower(q))+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Username, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// escapeLike neutralizes LIKE metacharacters so the user's query is
// matched literally. Without it a query of "%" matches everyone.
func escapeLike(q string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
}

// DisplayNames maps ledger identifiers to human-readable names.
// Registered identifiers (emails) resolve through their profile; guest
// tokens and unknown emails fall back to the identifier itself or its
// local part. The ledger never sees any of this.
func (r *repository) DisplayNames(ctx context.Context, identifiers []string) (map[string]string, error) {
	names := make(map[string]string, len(identifiers))

	var emails []string
	for _, id := range identifiers {
		if strings.Contains(id, "@") {
			emails = append(emails, strings.ToLower(id))
			names[id] = localPart(id)
		} else {
			names[id] = id
		}
	}
	if len(emails) == 0 {
		return names, nil
	}

	query := `SELECT email, COALESCE(full_name, ''), COALESCE(username, '') FROM users WHERE email = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(emails))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var email, fullName, username string
		if err := rows.Scan(&email, &fullName, &username); err != nil {
			return nil, err
		}
		u := User{Email: email, FullName: fullName, Username: username}
		names[email] = u.DisplayName()
	}

	return names, rows.Err()
}
