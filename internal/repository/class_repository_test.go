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

func TestClassRepositorySetQuestCompletedAt(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewClassRepository(db)
	stamp := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND quest_completed_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	stamped, err := repo.SetQuestCompletedAt(context.Background(), "c1", stamp)
	require.NoError(t, err)
	require.True(t, stamped)

	// The guard keeps an already stamped class untouched.
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND quest_completed_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	stamped, err = repo.SetQuestCompletedAt(context.Background(), "c1", stamp)
	require.NoError(t, err)
	require.False(t, stamped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryMonthlyAggregates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewClassRepository(db)
	rows := sqlmock.NewRows([]string{"class_id", "name", "league", "student_count", "monthly_stars", "quest_completed_at"}).
		AddRow("c1", "3A", "lower", 24, 96.0, nil)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(sc.monthly_stars), 0) AS monthly_stars")).
		WithArgs("lower").
		WillReturnRows(rows)

	aggregates, err := repo.MonthlyAggregates(context.Background(), "lower")
	require.NoError(t, err)
	require.Len(t, aggregates, 1)
	require.Equal(t, 24, aggregates[0].StudentCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListWithFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewClassRepository(db)
	rows := sqlmock.NewRows([]string{"id", "name", "league", "quest_completed_at", "created_at", "updated_at"}).
		AddRow("c1", "3A", "lower", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND league = $1 AND name ILIKE $2 ORDER BY name")).
		WithArgs("lower", "%3A%").
		WillReturnRows(rows)

	classes, err := repo.List(context.Background(), models.ClassFilter{League: "lower", Search: "3A"})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	require.Equal(t, "3A", classes[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
