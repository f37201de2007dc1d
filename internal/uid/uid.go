// Package uid allocates the 7-digit public user identifier.
//
// The existence pre-check only lowers the chance of a collision. Two
// concurrent allocations can draw the same free value, so the unique
// constraint on users.uid decides; callers retry allocation plus insert
// when it fires.
package uid

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
)

const (
	Min         = 1000000
	Max         = 9999999
	MaxAttempts = 100
)

var (
	ErrAllocationExhausted = errors.New("no unique uid found within attempt budget")
	ErrInvalidFormat       = errors.New("uid must be exactly 7 digits")
)

var updatePattern = regexp.MustCompile(`^\d{7}$`)

// Checker reports whether a uid is already held by a persisted user.
type Checker interface {
	ExistsByUID(ctx context.Context, uid string) (bool, error)
}

type CheckerFunc func(ctx context.Context, uid string) (bool, error)

func (f CheckerFunc) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	return f(ctx, uid)
}

type Allocator struct {
	checker     Checker
	intn        func(n int) int
	maxAttempts int
}

type Option func(*Allocator)

// WithRand replaces the random source. intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(a *Allocator) { a.intn = intn }
}

func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

func NewAllocator(checker Checker, opts ...Option) *Allocator {
	a := &Allocator{
		checker:     checker,
		intn:        rand.IntN,
		maxAttempts: MaxAttempts,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate draws uniformly from [Min, Max] until the checker reports a free
// value. The value is not reserved.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for range a.maxAttempts {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate := strconv.Itoa(Min + a.intn(Max-Min+1))

		taken, err := a.checker.ExistsByUID(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check uid %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w (%d attempts)", ErrAllocationExhausted, a.maxAttempts)
}

// ValidateGenerated checks the creation-time form: 7 digits with no
// leading zero, numerically in [Min, Max].
func ValidateGenerated(uid string) error {
	if !updatePattern.MatchString(uid) {
		return ErrInvalidFormat
	}
	n, err := strconv.Atoi(uid)
	if err != nil || n < Min || n > Max {
		return ErrInvalidFormat
	}
	return nil
}

// ValidateUpdate checks the update-path form, which also accepts
// zero-padded values such as "0000001". It is intentionally looser than
// ValidateGenerated and the two must not be merged without a product decision.
func ValidateUpdate(uid string) error {
	if !updatePattern.MatchString(uid) {
		return ErrInvalidFormat
	}
	return nil
}
