package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/starboard-api/internal/models"
)

func TestSnapshotRepositoryInsertIfAbsent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSnapshotRepository(db)
	snapshot := &models.MonthlySnapshot{StudentID: "s1", MonthKey: "2026-02", Stars: 12}
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, month_key) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.InsertIfAbsentTx(context.Background(), db, snapshot))
	require.NotEmpty(t, snapshot.ID)
	require.False(t, snapshot.ArchivedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositorySumByMonthPerClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSnapshotRepository(db)
	rows := sqlmock.NewRows([]string{"class_id", "name", "league", "student_count", "monthly_stars", "quest_completed_at"}).
		AddRow("c1", "3A", "lower", 24, 180.0, nil).
		AddRow("c2", "3B", "lower", 22, 151.5, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN monthly_snapshots ms ON ms.student_id = st.id AND ms.month_key = $2")).
		WithArgs("lower", "2026-02").
		WillReturnRows(rows)

	aggregates, err := repo.SumByMonthPerClass(context.Background(), "lower", "2026-02")
	require.NoError(t, err)
	require.Len(t, aggregates, 2)
	require.Equal(t, 180.0, aggregates[0].MonthlyStars)
	require.Nil(t, aggregates[0].QuestCompletedAt)
	require.NotNil(t, aggregates[1].QuestCompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSnapshotRepository(db)
	rows := sqlmock.NewRows([]string{"id", "student_id", "month_key", "stars", "archived_at"}).
		AddRow("m2", "s1", "2026-02", 12.0, time.Now()).
		AddRow("m1", "s1", "2026-01", 9.5, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM monthly_snapshots WHERE student_id = $1 ORDER BY month_key DESC")).
		WithArgs("s1").
		WillReturnRows(rows)

	snapshots, err := repo.ListByStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	require.Equal(t, "2026-02", snapshots[0].MonthKey)
	require.NoError(t, mock.ExpectationsWereMet())
}
