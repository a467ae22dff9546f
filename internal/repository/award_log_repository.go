package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/starboard-api/internal/models"
)

// AwardLogRepository manages finalized award entries. One row exists
// per (student, teacher, date); same-day edits rewrite it in place
// under a stable id.
type AwardLogRepository struct {
	db *sqlx.DB
}

// NewAwardLogRepository constructs a new repository.
func NewAwardLogRepository(db *sqlx.DB) *AwardLogRepository {
	return &AwardLogRepository{db: db}
}

const awardColumns = "id, student_id, class_id, teacher_id, stars, reason, award_date, note, created_at, updated_at"

// GetByID returns one award entry.
func (r *AwardLogRepository) GetByID(ctx context.Context, id string) (*models.AwardLogEntry, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

// GetByIDTx returns one award entry using the provided executor.
func (r *AwardLogRepository) GetByIDTx(ctx context.Context, ext sqlx.ExtContext, id string) (*models.AwardLogEntry, error) {
	var entry models.AwardLogEntry
	query := fmt.Sprintf("SELECT %s FROM award_log WHERE id = $1", awardColumns)
	if err := sqlx.GetContext(ctx, ext, &entry, query, id); err != nil {
		return nil, fmt.Errorf("get award entry: %w", err)
	}
	return &entry, nil
}

// GetForDayTx returns the entry for one student/teacher/date triple.
func (r *AwardLogRepository) GetForDayTx(ctx context.Context, ext sqlx.ExtContext, studentID, teacherID string, date time.Time) (*models.AwardLogEntry, error) {
	var entry models.AwardLogEntry
	query := fmt.Sprintf("SELECT %s FROM award_log WHERE student_id = $1 AND teacher_id = $2 AND award_date = $3", awardColumns)
	if err := sqlx.GetContext(ctx, ext, &entry, query, studentID, teacherID, date); err != nil {
		return nil, fmt.Errorf("get award entry for day: %w", err)
	}
	return &entry, nil
}

// UpsertTx creates or rewrites the entry for the day, keeping the id
// stable across same-day edits.
func (r *AwardLogRepository) UpsertTx(ctx context.Context, ext sqlx.ExtContext, entry *models.AwardLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	const query = `INSERT INTO award_log (id, student_id, class_id, teacher_id, stars, reason, award_date, note, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (student_id, teacher_id, award_date)
        DO UPDATE SET stars = EXCLUDED.stars, reason = EXCLUDED.reason, updated_at = EXCLUDED.updated_at`
	if _, err := ext.ExecContext(ctx, query, entry.ID, entry.StudentID, entry.ClassID, entry.TeacherID, entry.Stars, entry.Reason, entry.AwardDate, entry.Note, entry.CreatedAt, entry.UpdatedAt); err != nil {
		return fmt.Errorf("upsert award entry: %w", err)
	}
	return nil
}

// DeleteTx removes one entry by id.
func (r *AwardLogRepository) DeleteTx(ctx context.Context, ext sqlx.ExtContext, id string) error {
	if _, err := ext.ExecContext(ctx, "DELETE FROM award_log WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete award entry: %w", err)
	}
	return nil
}

// UpdateNote sets the free-text note; the only mutation allowed on
// historical entries.
func (r *AwardLogRepository) UpdateNote(ctx context.Context, id string, note *string) error {
	const query = `UPDATE award_log SET note = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, note, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update award note: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update award note: %w", sql.ErrNoRows)
	}
	return nil
}

// List returns award entries per provided filter, newest first.
func (r *AwardLogRepository) List(ctx context.Context, filter models.AwardFilter) ([]models.AwardLogEntry, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("award_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("award_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size
	query := fmt.Sprintf("SELECT %s FROM award_log WHERE %s ORDER BY award_date DESC, updated_at DESC LIMIT %d OFFSET %d",
		awardColumns, whereClause, size, offset)
	var entries []models.AwardLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list award entries: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM award_log WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count award entries: %w", err)
	}
	return entries, total, nil
}
