package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/starboard-api/internal/models"
)

func TestAwardLogRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAwardLogRepository(db)
	reason := models.ReasonTeamwork
	entry := &models.AwardLogEntry{
		StudentID: "s1",
		ClassID:   "c1",
		TeacherID: "t1",
		Stars:     3,
		Reason:    &reason,
		AwardDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (student_id, teacher_id, award_date)")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertTx(context.Background(), db, entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAwardLogRepositoryGetForDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAwardLogRepository(db)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "teacher_id", "stars", "reason", "award_date", "note", "created_at", "updated_at"}).
		AddRow("a1", "s1", "c1", "t1", 3.0, string(models.ReasonTeamwork), date, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE student_id = $1 AND teacher_id = $2 AND award_date = $3")).
		WithArgs("s1", "t1", date).
		WillReturnRows(rows)

	entry, err := repo.GetForDayTx(context.Background(), db, "s1", "t1", date)
	require.NoError(t, err)
	require.Equal(t, "a1", entry.ID)
	require.Equal(t, 3.0, entry.Stars)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAwardLogRepositoryUpdateNoteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAwardLogRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE award_log SET note = $2, updated_at = $3 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	note := "context for the grade"
	err := repo.UpdateNote(context.Background(), "missing", &note)
	require.Error(t, err)
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAwardLogRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAwardLogRepository(db)
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "class_id", "teacher_id", "stars", "reason", "award_date", "note", "created_at", "updated_at"}).
		AddRow("a1", "s1", "c1", "t1", 3.0, string(models.ReasonTeamwork), date, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("student_id = $1 AND class_id = $2 ORDER BY award_date DESC")).
		WithArgs("s1", "c1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM award_log WHERE 1=1 AND student_id = $1 AND class_id = $2")).
		WithArgs("s1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	entries, total, err := repo.List(context.Background(), models.AwardFilter{StudentID: "s1", ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
