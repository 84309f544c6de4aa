package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested user or session does not exist.
var ErrNotFound = errors.New("auth: not found")

// UserRecord is the persisted user row.
type UserRecord struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionRecord is one refresh token session.
type SessionRecord struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	RefreshToken string
	ExpiresAt    time.Time
}

// Store persists users and refresh sessions.
type Store interface {
	CreateUser(ctx context.Context, name, email, passwordHash string, roles []string) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (UserRecord, error)
	CreateSession(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) error
	GetSessionByToken(ctx context.Context, refreshToken string) (SessionRecord, error)
	RotateSessionToken(ctx context.Context, sessionID uuid.UUID, refreshToken string, expiresAt time.Time) error
	DeleteSessionByToken(ctx context.Context, refreshToken string) error
}

// PGStore implements Store on Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

const userColumns = `id, name, email, password_hash, roles, created_at, updated_at`

func scanUser(row pgx.Row) (UserRecord, error) {
	var u UserRecord
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Roles, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRecord{}, ErrNotFound
	}
	return u, err
}

func (s *PGStore) CreateUser(ctx context.Context, name, email, passwordHash string, roles []string) (UserRecord, error) {
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, roles) VALUES ($1, $2, $3, $4) RETURNING `+userColumns,
		name, email, passwordHash, roles,
	)
	return scanUser(row)
}

func (s *PGStore) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	return scanUser(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *PGStore) GetUserByID(ctx context.Context, id uuid.UUID) (UserRecord, error) {
	return scanUser(s.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PGStore) CreateSession(ctx context.Context, userID uuid.UUID, refreshToken string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO sessions (user_id, refresh_token, expires_at) VALUES ($1, $2, $3)`,
		userID, refreshToken, expiresAt,
	)
	return err
}

func (s *PGStore) GetSessionByToken(ctx context.Context, refreshToken string) (SessionRecord, error) {
	var sess SessionRecord
	err := s.Pool.QueryRow(ctx,
		`SELECT id, user_id, refresh_token, expires_at FROM sessions WHERE refresh_token = $1`,
		refreshToken,
	).Scan(&sess.ID, &sess.UserID, &sess.RefreshToken, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	return sess, err
}

func (s *PGStore) RotateSessionToken(ctx context.Context, sessionID uuid.UUID, refreshToken string, expiresAt time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE sessions SET refresh_token = $2, expires_at = $3 WHERE id = $1`,
		sessionID, refreshToken, expiresAt,
	)
	return err
}

func (s *PGStore) DeleteSessionByToken(ctx context.Context, refreshToken string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken)
	return err
}
