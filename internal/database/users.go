package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrEmailTaken is returned when another account already uses the email.
var ErrEmailTaken = errors.New("email already registered")

const uniqueViolation = "23505"

// User is an account that owns analyses and chat history. Local accounts carry
// a password hash; accounts from an external identity provider carry its
// subject in ExternalID instead. Email is empty for external accounts whose
// token had no email claim.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash *string
	ExternalID   *string
	CreatedAt    time.Time
}

const userColumns = `id, name, COALESCE(email, ''), password_hash, external_id, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.ExternalID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser creates a local account. It returns ErrEmailTaken when the
// email is already in use, including when a concurrent registration won.
func (db *DB) CreateUser(ctx context.Context, name, email, passwordHash string) (*User, error) {
	row := db.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		name, email, passwordHash,
	)
	user, err := scanUser(row)
	if isUniqueViolation(err, "users_email_key") {
		return nil, ErrEmailTaken
	}
	return user, err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

// GetUserByID retrieves a user by their ID.
func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

// GetUserByExternalID retrieves a user by identity provider subject.
func (db *DB) GetUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = $1`,
		externalID,
	)
	return scanUser(row)
}

// GetOrCreateExternalUser returns the user with the given identity provider
// subject, creating one if necessary. An empty email is stored as NULL so any
// number of accounts may lack one.
func (db *DB) GetOrCreateExternalUser(ctx context.Context, externalID, email string) (*User, error) {
	user, err := db.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	row := db.pool.QueryRow(ctx,
		`INSERT INTO users (email, external_id)
		 VALUES (NULLIF($1, ''), $2)
		 ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		 RETURNING `+userColumns,
		email, externalID,
	)
	user, err = scanUser(row)
	if isUniqueViolation(err, "users_email_key") {
		return nil, ErrEmailTaken
	}
	return user, err
}

// DeleteUser deletes a user and, by cascade, their analyses and messages.
func (db *DB) DeleteUser(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	return err
}
