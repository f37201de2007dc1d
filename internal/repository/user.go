package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/pulse-backend/internal/models"
)

// Constraint names follow the Postgres default for column-level UNIQUE.
const (
	uidConstraint      = "users_uid_key"
	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"

	uniqueViolation = "23505"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUIDTaken      = errors.New("uid already taken")
	ErrEmailTaken    = errors.New("email already registered")
	ErrUsernameTaken = errors.New("username already taken")
)

const userColumns = `id, uid, email, username, password_hash, created_at, updated_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE uid = $1)`,
		uid,
	).Scan(&exists)
	return exists, err
}

// Insert relies on the unique constraints; a violation comes back as
// ErrUIDTaken, ErrEmailTaken or ErrUsernameTaken.
func (r *UserRepo) Insert(ctx context.Context, u *models.User) (*models.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (uid, email, username, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		u.UID, u.Email, u.Username, u.PasswordHash,
	)
	out, err := scanUser(row)
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		email,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (r *UserRepo) UpdateUID(ctx context.Context, id int64, uid string) (*models.User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET uid = $1, updated_at = NOW() WHERE id = $2
		 RETURNING `+userColumns,
		uid, id,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// translate maps driver errors onto this package's sentinels.
func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case uidConstraint:
			return ErrUIDTaken
		case emailConstraint:
			return ErrEmailTaken
		case usernameConstraint:
			return ErrUsernameTaken
		}
		return fmt.Errorf("unique violation on %s: %w", pgErr.ConstraintName, err)
	}
	return err
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.UID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
