package txn

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
)

func newTxnMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func serializationFailure() error {
	return &pq.Error{Code: "40001", Message: "could not serialize access"}
}

func TestRunnerCommitsOnFirstAttempt(t *testing.T) {
	db, mock, cleanup := newTxnMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectCommit()

	runner := NewRunner(db, zap.NewNop())
	calls := 0
	err := runner.Run(context.Background(), func(tx *sqlx.Tx) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerRetriesSerializationFailure(t *testing.T) {
	db, mock, cleanup := newTxnMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	retries := 0
	runner := NewRunner(db, zap.NewNop(),
		WithBaseDelay(time.Millisecond),
		WithRetryHook(func() { retries++ }),
	)

	calls := 0
	err := runner.Run(context.Background(), func(tx *sqlx.Tx) error {
		calls++
		if calls == 1 {
			return serializationFailure()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, retries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerExhaustsRetryBudget(t *testing.T) {
	db, mock, cleanup := newTxnMock(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	runner := NewRunner(db, zap.NewNop(), WithAttempts(3), WithBaseDelay(time.Millisecond))
	err := runner.Run(context.Background(), func(tx *sqlx.Tx) error {
		return serializationFailure()
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflictExhausted.Code, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunnerDoesNotRetryDomainErrors(t *testing.T) {
	db, mock, cleanup := newTxnMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	runner := NewRunner(db, zap.NewNop())
	sentinel := errors.New("boom")
	calls := 0
	err := runner.Run(context.Background(), func(tx *sqlx.Tx) error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(serializationFailure()))
	assert.True(t, IsRetryable(&pq.Error{Code: "40P01"}))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(&pq.Error{Code: "23505"}))
}
