package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/starboard-api/internal/models"
)

// ScoreRepository manages the per-student aggregate records. Mutating
// methods take an ExtContext so they run inside the ledger transaction.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository constructs a new repository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

const scoreColumns = "student_id, total_stars, monthly_stars, last_monthly_reset, updated_at"

// Get returns the aggregate for a student.
func (r *ScoreRepository) Get(ctx context.Context, studentID string) (*models.StudentScore, error) {
	return r.GetTx(ctx, r.db, studentID)
}

// GetTx returns the aggregate using the provided executor.
func (r *ScoreRepository) GetTx(ctx context.Context, ext sqlx.ExtContext, studentID string) (*models.StudentScore, error) {
	var score models.StudentScore
	query := fmt.Sprintf("SELECT %s FROM student_scores WHERE student_id = $1", scoreColumns)
	if err := sqlx.GetContext(ctx, ext, &score, query, studentID); err != nil {
		return nil, fmt.Errorf("get student score: %w", err)
	}
	return &score, nil
}

// InsertTx creates the aggregate row for a student.
func (r *ScoreRepository) InsertTx(ctx context.Context, ext sqlx.ExtContext, score *models.StudentScore) error {
	score.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO student_scores (student_id, total_stars, monthly_stars, last_monthly_reset, updated_at)
        VALUES ($1, $2, $3, $4, $5)`
	if _, err := ext.ExecContext(ctx, query, score.StudentID, score.TotalStars, score.MonthlyStars, score.LastMonthlyReset, score.UpdatedAt); err != nil {
		return fmt.Errorf("insert student score: %w", err)
	}
	return nil
}

// UpdateTx rewrites the aggregate values for a student.
func (r *ScoreRepository) UpdateTx(ctx context.Context, ext sqlx.ExtContext, score *models.StudentScore) error {
	score.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_scores
        SET total_stars = $2, monthly_stars = $3, last_monthly_reset = $4, updated_at = $5
        WHERE student_id = $1`
	if _, err := ext.ExecContext(ctx, query, score.StudentID, score.TotalStars, score.MonthlyStars, score.LastMonthlyReset, score.UpdatedAt); err != nil {
		return fmt.Errorf("update student score: %w", err)
	}
	return nil
}

// ListByClass returns aggregates joined with the roster of one class.
func (r *ScoreRepository) ListByClass(ctx context.Context, classID string) ([]models.StudentAggregate, error) {
	const query = `SELECT st.id AS student_id, st.full_name, st.class_id,
            COALESCE(sc.monthly_stars, 0) AS monthly_stars,
            COALESCE(sc.total_stars, 0) AS total_stars
        FROM students st
        LEFT JOIN student_scores sc ON sc.student_id = st.id
        WHERE st.class_id = $1 AND st.active
        ORDER BY st.full_name`
	var aggregates []models.StudentAggregate
	if err := sqlx.SelectContext(ctx, r.db, &aggregates, query, classID); err != nil {
		return nil, fmt.Errorf("list class scores: %w", err)
	}
	return aggregates, nil
}

// StaleResetDates returns ids of students whose aggregate still carries
// a reset date older than the given first-of-month.
func (r *ScoreRepository) StaleResetDates(ctx context.Context, classID string, monthFirst time.Time) ([]string, error) {
	const query = `SELECT sc.student_id
        FROM student_scores sc
        JOIN students st ON st.id = sc.student_id
        WHERE st.class_id = $1 AND sc.last_monthly_reset < $2`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.db, &ids, query, classID, monthFirst); err != nil {
		return nil, fmt.Errorf("list stale reset dates: %w", err)
	}
	return ids, nil
}
