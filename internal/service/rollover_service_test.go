package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/starboard-api/internal/models"
	"github.com/noah-isme/starboard-api/pkg/txn"
)

type mockRolloverScores struct {
	byStudent map[string]*models.StudentScore
	stale     []string
}

func (m *mockRolloverScores) GetTx(ctx context.Context, ext sqlx.ExtContext, studentID string) (*models.StudentScore, error) {
	score, ok := m.byStudent[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *score
	return &copied, nil
}

func (m *mockRolloverScores) UpdateTx(ctx context.Context, ext sqlx.ExtContext, score *models.StudentScore) error {
	copied := *score
	m.byStudent[score.StudentID] = &copied
	return nil
}

func (m *mockRolloverScores) StaleResetDates(ctx context.Context, classID string, monthFirst time.Time) ([]string, error) {
	return m.stale, nil
}

type mockSnapshotWriter struct {
	written []models.MonthlySnapshot
}

func (m *mockSnapshotWriter) InsertIfAbsentTx(ctx context.Context, ext sqlx.ExtContext, snapshot *models.MonthlySnapshot) error {
	for _, existing := range m.written {
		if existing.StudentID == snapshot.StudentID && existing.MonthKey == snapshot.MonthKey {
			return nil
		}
	}
	m.written = append(m.written, *snapshot)
	return nil
}

type mockStampCleaner struct {
	cleared int
}

func (m *mockStampCleaner) ClearStaleQuestCompletions(ctx context.Context, monthFirst time.Time) error {
	m.cleared++
	return nil
}

func newRolloverFixture(t *testing.T) (*RolloverService, *mockRolloverScores, *mockSnapshotWriter, *mockStampCleaner, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	scores := &mockRolloverScores{byStudent: map[string]*models.StudentScore{}}
	snapshots := &mockSnapshotWriter{}
	cleaner := &mockStampCleaner{}
	svc := NewRolloverService(scores, snapshots, cleaner, txn.NewRunner(db, nil, txn.WithAttempts(1)), nil)
	return svc, scores, snapshots, cleaner, mock
}

func TestApplyTxArchivesAndResetsStaleMonth(t *testing.T) {
	svc, _, snapshots, _, _ := newRolloverFixture(t)
	lastMonth := models.MonthFirst(time.Now().UTC()).AddDate(0, -1, 0)
	score := &models.StudentScore{
		StudentID:        "s1",
		TotalStars:       40,
		MonthlyStars:     12,
		LastMonthlyReset: lastMonth,
	}

	changed, err := svc.ApplyTx(context.Background(), nil, score)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Zero(t, score.MonthlyStars)
	assert.Equal(t, float64(40), score.TotalStars)
	assert.Equal(t, models.MonthFirst(time.Now().UTC()), score.LastMonthlyReset)

	require.Len(t, snapshots.written, 1)
	assert.Equal(t, models.MonthKey(lastMonth), snapshots.written[0].MonthKey)
	assert.Equal(t, float64(12), snapshots.written[0].Stars)
}

func TestApplyTxCurrentMonthIsNoOp(t *testing.T) {
	svc, _, snapshots, _, _ := newRolloverFixture(t)
	score := &models.StudentScore{
		StudentID:        "s1",
		MonthlyStars:     5,
		LastMonthlyReset: models.MonthFirst(time.Now().UTC()),
	}

	changed, err := svc.ApplyTx(context.Background(), nil, score)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, float64(5), score.MonthlyStars)
	assert.Empty(t, snapshots.written)
}

func TestApplyTxSkipsEmptyMonthSnapshot(t *testing.T) {
	svc, _, snapshots, _, _ := newRolloverFixture(t)
	score := &models.StudentScore{
		StudentID:        "s1",
		MonthlyStars:     0,
		LastMonthlyReset: models.MonthFirst(time.Now().UTC()).AddDate(0, -2, 0),
	}

	changed, err := svc.ApplyTx(context.Background(), nil, score)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, snapshots.written)
}

func TestEnsureCurrentIsIdempotent(t *testing.T) {
	svc, scores, snapshots, _, mock := newRolloverFixture(t)
	lastMonth := models.MonthFirst(time.Now().UTC()).AddDate(0, -1, 0)
	scores.byStudent["s1"] = &models.StudentScore{
		StudentID:        "s1",
		MonthlyStars:     7,
		LastMonthlyReset: lastMonth,
	}

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, svc.EnsureCurrent(context.Background(), "s1"))
	require.Len(t, snapshots.written, 1)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, svc.EnsureCurrent(context.Background(), "s1"))
	assert.Len(t, snapshots.written, 1)
	assert.Zero(t, scores.byStudent["s1"].MonthlyStars)
}

func TestEnsureCurrentMissingAggregate(t *testing.T) {
	svc, _, _, _, mock := newRolloverFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.EnsureCurrent(context.Background(), "ghost"))
}

func TestEnsureCurrentForClassRepairsStaleStudents(t *testing.T) {
	svc, scores, snapshots, cleaner, mock := newRolloverFixture(t)
	lastMonth := models.MonthFirst(time.Now().UTC()).AddDate(0, -1, 0)
	scores.byStudent["s1"] = &models.StudentScore{StudentID: "s1", MonthlyStars: 3, LastMonthlyReset: lastMonth}
	scores.byStudent["s2"] = &models.StudentScore{StudentID: "s2", MonthlyStars: 4, LastMonthlyReset: lastMonth}
	scores.stale = []string{"s1", "s2"}

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, svc.EnsureCurrentForClass(context.Background(), "c1"))

	assert.Equal(t, 1, cleaner.cleared)
	assert.Len(t, snapshots.written, 2)
}
