package txn

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
)

const (
	defaultAttempts  = 4
	defaultBaseDelay = 25 * time.Millisecond
)

// serialization_failure and deadlock_detected are the two SQLSTATEs a
// serializable transaction may raise under write contention.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Runner executes read-modify-write functions inside serializable
// transactions, retrying with exponential backoff when Postgres aborts
// the transaction on a concurrent-modification conflict.
type Runner struct {
	db        *sqlx.DB
	attempts  int
	baseDelay time.Duration
	logger    *zap.Logger

	// onRetry is invoked once per retried attempt, used for metrics.
	onRetry func()
}

// Option customises a Runner.
type Option func(*Runner)

// WithAttempts bounds the retry budget.
func WithAttempts(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithBaseDelay sets the first backoff delay; it doubles per attempt.
func WithBaseDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.baseDelay = d
		}
	}
}

// WithRetryHook registers a callback fired on every retried attempt.
func WithRetryHook(fn func()) Option {
	return func(r *Runner) {
		r.onRetry = fn
	}
}

// NewRunner builds a transaction runner.
func NewRunner(db *sqlx.DB, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{db: db, attempts: defaultAttempts, baseDelay: defaultBaseDelay, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes fn inside a serializable transaction. The whole function
// is re-executed from scratch on conflict; callers must not patch
// partial results across attempts. Exhausting the retry budget yields
// CONFLICT_EXHAUSTED with the operation not applied.
func (r *Runner) Run(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	var lastErr error
	delay := r.baseDelay
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
		if r.onRetry != nil {
			r.onRetry()
		}
		r.logger.Warn("transaction conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return appErrors.Wrap(lastErr, appErrors.ErrConflictExhausted.Code, appErrors.ErrConflictExhausted.Status, appErrors.ErrConflictExhausted.Message)
}

func (r *Runner) runOnce(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return tx.Commit()
}

// IsRetryable reports whether err is a transient serialization conflict.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == codeSerializationFailure || code == codeDeadlockDetected
	}
	return false
}
