package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"efficio-backend/internal/db"
)

const RoleAdmin = "admin"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Password  string    `db:"password" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserSummary is a user as shown in the admin console.
type UserSummary struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	IsAdmin   bool      `db:"is_admin" json:"is_admin"`
	TaskCount int       `db:"task_count" json:"task_count"`
}

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser stores a new user with an already hashed password.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	u := User{
		ID:        uuid.NewString(),
		Email:     NormalizeEmail(email),
		Password:  passwordHash,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (id, email, password, created_at)
		VALUES (?, ?, ?, ?)`),
		u.ID, u.Email, u.Password, u.CreatedAt,
	)
	if db.IsUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `email = ?`, NormalizeEmail(email))
}

func (s *Store) GetByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `id = ?`, id)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`
		SELECT id, email, password, created_at FROM users WHERE `+where), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("getting user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// ListUsers returns every user, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]UserSummary, error) {
	out := []UserSummary{}
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT
			u.id,
			u.email,
			u.created_at,
			EXISTS (
				SELECT 1 FROM user_roles r WHERE r.user_id = u.id AND r.role = ?
			) AS is_admin,
			(SELECT COUNT(*) FROM tasks t WHERE t.user_id = u.id) AS task_count
		FROM users u
		ORDER BY u.created_at DESC, u.id DESC`), RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
	}
	return out, nil
}

func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM users WHERE id = ?`), userID)
	if err != nil {
		return false, fmt.Errorf("checking user %s: %w", userID, err)
	}
	return n > 0, nil
}

func (s *Store) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`
		SELECT COUNT(*) FROM user_roles WHERE user_id = ? AND role = ?`), userID, role)
	if err != nil {
		return false, fmt.Errorf("checking role %s: %w", role, err)
	}
	return n > 0, nil
}

// GrantRole is a no-op when the user already has the role.
func (s *Store) GrantRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO user_roles (user_id, role) VALUES (?, ?)
		ON CONFLICT (user_id, role) DO NOTHING`), userID, role)
	if err != nil {
		return fmt.Errorf("granting %s to %s: %w", role, userID, err)
	}
	return nil
}

// DeleteUser removes the user with their tasks, attachments, roles and
// analytics events in one transaction.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM users WHERE id = ?`), userID); err != nil {
		return fmt.Errorf("finding user: %w", err)
	}
	if exists == 0 {
		return ErrUserNotFound
	}

	steps := []struct {
		name  string
		query string
	}{
		{"task_attachments", `DELETE FROM task_attachments WHERE task_id IN (SELECT id FROM tasks WHERE user_id = ?)`},
		{"tasks", `DELETE FROM tasks WHERE user_id = ?`},
		{"user_roles", `DELETE FROM user_roles WHERE user_id = ?`},
		{"analytics_events", `DELETE FROM analytics_events WHERE user_id = ?`},
		{"users", `DELETE FROM users WHERE id = ?`},
	}
	for _, st := range steps {
		if _, err := tx.ExecContext(ctx, tx.Rebind(st.query), userID); err != nil {
			return fmt.Errorf("deleting %s: %w", st.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user delete: %w", err)
	}
	return nil
}
