package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/starboard-api/internal/models"
)

// SnapshotRepository manages the immutable monthly archives.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs a new repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotColumns = "id, student_id, month_key, stars, archived_at"

// InsertIfAbsentTx archives one month total. The unique key on
// (student_id, month_key) makes repeated rollover attempts no-ops.
func (r *SnapshotRepository) InsertIfAbsentTx(ctx context.Context, ext sqlx.ExtContext, snapshot *models.MonthlySnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.ArchivedAt.IsZero() {
		snapshot.ArchivedAt = time.Now().UTC()
	}
	const query = `INSERT INTO monthly_snapshots (id, student_id, month_key, stars, archived_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (student_id, month_key) DO NOTHING`
	if _, err := ext.ExecContext(ctx, query, snapshot.ID, snapshot.StudentID, snapshot.MonthKey, snapshot.Stars, snapshot.ArchivedAt); err != nil {
		return fmt.Errorf("insert monthly snapshot: %w", err)
	}
	return nil
}

// ListByMonthForClass returns the snapshots of one class roster for a month.
func (r *SnapshotRepository) ListByMonthForClass(ctx context.Context, classID, monthKey string) ([]models.StudentAggregate, error) {
	const query = `SELECT st.id AS student_id, st.full_name, st.class_id,
            COALESCE(ms.stars, 0) AS monthly_stars,
            COALESCE(ms.stars, 0) AS total_stars
        FROM students st
        LEFT JOIN monthly_snapshots ms ON ms.student_id = st.id AND ms.month_key = $2
        WHERE st.class_id = $1 AND st.active
        ORDER BY st.full_name`
	var aggregates []models.StudentAggregate
	if err := sqlx.SelectContext(ctx, r.db, &aggregates, query, classID, monthKey); err != nil {
		return nil, fmt.Errorf("list snapshots for class: %w", err)
	}
	return aggregates, nil
}

// SumByMonthPerClass returns each class's archived month total within a league.
func (r *SnapshotRepository) SumByMonthPerClass(ctx context.Context, league, monthKey string) ([]models.ClassAggregate, error) {
	const query = `SELECT ct.id AS class_id, ct.name, ct.league,
            COUNT(st.id) AS student_count,
            COALESCE(SUM(ms.stars), 0) AS monthly_stars,
            ct.quest_completed_at
        FROM class_teams ct
        LEFT JOIN students st ON st.class_id = ct.id AND st.active
        LEFT JOIN monthly_snapshots ms ON ms.student_id = st.id AND ms.month_key = $2
        WHERE ct.league = $1
        GROUP BY ct.id, ct.name, ct.league, ct.quest_completed_at
        ORDER BY ct.name`
	var aggregates []models.ClassAggregate
	if err := sqlx.SelectContext(ctx, r.db, &aggregates, query, league, monthKey); err != nil {
		return nil, fmt.Errorf("sum snapshots per class: %w", err)
	}
	return aggregates, nil
}

// ListByStudent returns one student's archive history, newest first.
func (r *SnapshotRepository) ListByStudent(ctx context.Context, studentID string) ([]models.MonthlySnapshot, error) {
	var snapshots []models.MonthlySnapshot
	query := fmt.Sprintf("SELECT %s FROM monthly_snapshots WHERE student_id = $1 ORDER BY month_key DESC", snapshotColumns)
	if err := sqlx.SelectContext(ctx, r.db, &snapshots, query, studentID); err != nil {
		return nil, fmt.Errorf("list snapshots for student: %w", err)
	}
	return snapshots, nil
}
