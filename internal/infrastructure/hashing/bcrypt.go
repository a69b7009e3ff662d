package hashing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/metrics"
)

// DefaultCost keeps a single verification well under 100ms on commodity hardware.
const DefaultCost = 10

// maxPasswordBytes is bcrypt's input limit; longer inputs are rejected
// instead of being silently truncated.
const maxPasswordBytes = 72

// Runner executes CPU-bound work off the caller's goroutine.
// *queue.Pool satisfies it.
type Runner interface {
	Do(ctx context.Context, fn func()) error
}

// BcryptHasher hashes passwords with bcrypt. Digests use the modular crypt
// format ($2a$<cost>$<salt><hash>), so raising the cost never invalidates
// stored digests.
type BcryptHasher struct {
	cost   int
	runner Runner
}

// NewBcryptHasher returns a hasher with the given cost, clamped to bcrypt's
// accepted range. A nil runner executes inline.
func NewBcryptHasher(cost int, runner Runner) *BcryptHasher {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost, runner: runner}
}

// Cost returns the work factor used for new digests.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash returns a salted digest of plaintext. Each call draws a fresh salt.
func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("hash password: %w: empty password", domain.ErrInvalidInput)
	}
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("hash password: %w: password exceeds %d bytes", domain.ErrInvalidInput, maxPasswordBytes)
	}

	var (
		digest []byte
		err    error
	)
	start := time.Now()
	runErr := h.run(ctx, func() {
		digest, err = bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	})
	metrics.PasswordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	if runErr != nil {
		return "", unavailable("hash password", runErr)
	}
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("hash password: %w: %v", domain.ErrInvalidInput, err)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. The comparison inside
// bcrypt uses crypto/subtle, so mismatches take the same time regardless of
// where the first differing byte is. A missing or malformed digest is a
// mismatch; an error is returned only when the comparison could not run.
func (h *BcryptHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if digest == "" {
		return false, nil
	}

	var err error
	start := time.Now()
	runErr := h.run(ctx, func() {
		err = bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	})
	metrics.PasswordHashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	if runErr != nil {
		return false, unavailable("verify password", runErr)
	}
	return err == nil, nil
}

// NeedsRehash reports whether digest was produced with a different cost
// than the one currently configured.
func (h *BcryptHasher) NeedsRehash(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return false
	}
	return cost != h.cost
}

func (h *BcryptHasher) run(ctx context.Context, fn func()) error {
	if h.runner == nil {
		fn()
		return nil
	}
	return h.runner.Do(ctx, fn)
}

// unavailable marks a runner failure (stopped pool, cancelled caller) as a
// transient fault rather than a credential outcome.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
