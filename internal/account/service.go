// Package account owns user registration, login and UID changes.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/kjannette/pulse-backend/internal/auth"
	"github.com/kjannette/pulse-backend/internal/models"
	"github.com/kjannette/pulse-backend/internal/repository"
	"github.com/kjannette/pulse-backend/internal/uid"
	"github.com/rs/zerolog"
)

// maxInsertAttempts bounds allocate-then-insert rounds lost to a
// concurrent registration taking the same uid.
const maxInsertAttempts = 3

// bcrypt only accepts passwords up to 72 bytes.
const (
	minPasswordLen   = 8
	maxPasswordBytes = 72
)

var (
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var usernameRegexp = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// ValidationError is a malformed input the caller can fix and resubmit.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Store is the persistence the service needs; *repository.UserRepo
// satisfies it.
type Store interface {
	uid.Checker
	Insert(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUID(ctx context.Context, id int64, uid string) (*models.User, error)
}

type Alerter interface {
	Send(ctx context.Context, msg string)
}

type Service struct {
	store  Store
	alloc  *uid.Allocator
	tokens auth.Issuer
	alerts Alerter
	log    zerolog.Logger
}

func NewService(store Store, alloc *uid.Allocator, tokens auth.Issuer, alerts Alerter, log zerolog.Logger) *Service {
	return &Service{store: store, alloc: alloc, tokens: tokens, alerts: alerts, log: log}
}

type RegisterInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is a user plus a freshly issued bearer token.
type Session struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if !usernameRegexp.MatchString(username) {
		return nil, &ValidationError{Field: "username", Msg: "must be 3-30 letters, digits or underscores"}
	}
	if len(in.Password) < minPasswordLen {
		return nil, &ValidationError{Field: "password", Msg: fmt.Sprintf("must be at least %d characters", minPasswordLen)}
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, &ValidationError{Field: "password", Msg: fmt.Sprintf("must be at most %d bytes", maxPasswordBytes)}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		id, err := s.alloc.Allocate(ctx)
		if err != nil {
			if errors.Is(err, uid.ErrAllocationExhausted) {
				s.alerts.Send(ctx, fmt.Sprintf("uid allocation exhausted during registration: %v", err))
			}
			return nil, fmt.Errorf("allocate uid: %w", err)
		}
		if err := uid.ValidateGenerated(id); err != nil {
			return nil, fmt.Errorf("allocated uid %q: %w", id, err)
		}

		u, err := s.store.Insert(ctx, &models.User{
			UID:          id,
			Email:        email,
			Username:     username,
			PasswordHash: hash,
		})
		switch {
		case err == nil:
			s.log.Info().Int64("user_id", u.ID).Str("uid", u.UID).Int("attempt", attempt).Msg("user registered")
			return s.session(u)
		case errors.Is(err, repository.ErrUIDTaken):
			s.log.Warn().Str("uid", id).Int("attempt", attempt).Msg("uid taken between check and insert, retrying")
			continue
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		case errors.Is(err, repository.ErrUsernameTaken):
			return nil, fmt.Errorf("%w: username already taken", ErrConflict)
		default:
			return nil, fmt.Errorf("insert user: %w", err)
		}
	}

	s.alerts.Send(ctx, fmt.Sprintf("uid insert lost %d races in a row", maxInsertAttempts))
	return nil, fmt.Errorf("%w: lost %d insert races", uid.ErrAllocationExhausted, maxInsertAttempts)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	u, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

func (s *Service) Me(ctx context.Context, id int64) (*models.User, error) {
	return s.store.GetByID(ctx, id)
}

// ChangeUID applies the update-path rule, which also accepts zero-padded
// values. The unique constraint is the final word on collisions.
func (s *Service) ChangeUID(ctx context.Context, id int64, newUID string) (*models.User, error) {
	if err := uid.ValidateUpdate(newUID); err != nil {
		return nil, &ValidationError{Field: "uid", Msg: err.Error()}
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UID == newUID {
		return current, nil
	}

	taken, err := s.store.ExistsByUID(ctx, newUID)
	if err != nil {
		return nil, fmt.Errorf("check uid: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: uid already taken", ErrConflict)
	}

	u, err := s.store.UpdateUID(ctx, id, newUID)
	if errors.Is(err, repository.ErrUIDTaken) {
		return nil, fmt.Errorf("%w: uid already taken", ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("user_id", id).Str("old_uid", current.UID).Str("uid", u.UID).Msg("uid changed")
	return u, nil
}

func (s *Service) session(u *models.User) (*Session, error) {
	tok, err := s.tokens.Issue(auth.Principal{ID: u.ID, Email: u.Email, Username: u.Username})
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: tok}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &ValidationError{Field: "email", Msg: "must be a valid address"}
	}
	return email, nil
}
