package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/starboard-api/internal/models"
)

// DraftRepository manages the editable "today" entries. At most one row
// exists per (student, teacher, date).
type DraftRepository struct {
	db *sqlx.DB
}

// NewDraftRepository constructs a new repository.
func NewDraftRepository(db *sqlx.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

const draftColumns = "id, student_id, teacher_id, draft_date, stars, reason, updated_at"

// GetForDayTx returns the draft for one student/teacher/date triple.
func (r *DraftRepository) GetForDayTx(ctx context.Context, ext sqlx.ExtContext, studentID, teacherID string, date time.Time) (*models.DailyDraft, error) {
	var draft models.DailyDraft
	query := fmt.Sprintf("SELECT %s FROM daily_drafts WHERE student_id = $1 AND teacher_id = $2 AND draft_date = $3", draftColumns)
	if err := sqlx.GetContext(ctx, ext, &draft, query, studentID, teacherID, date); err != nil {
		return nil, fmt.Errorf("get daily draft: %w", err)
	}
	return &draft, nil
}

// UpsertTx creates or supersedes the draft for the day.
func (r *DraftRepository) UpsertTx(ctx context.Context, ext sqlx.ExtContext, draft *models.DailyDraft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	draft.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO daily_drafts (id, student_id, teacher_id, draft_date, stars, reason, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (student_id, teacher_id, draft_date)
        DO UPDATE SET stars = EXCLUDED.stars, reason = EXCLUDED.reason, updated_at = EXCLUDED.updated_at`
	if _, err := ext.ExecContext(ctx, query, draft.ID, draft.StudentID, draft.TeacherID, draft.DraftDate, draft.Stars, draft.Reason, draft.UpdatedAt); err != nil {
		return fmt.Errorf("upsert daily draft: %w", err)
	}
	return nil
}

// DeleteTx removes the draft for the day.
func (r *DraftRepository) DeleteTx(ctx context.Context, ext sqlx.ExtContext, studentID, teacherID string, date time.Time) error {
	const query = `DELETE FROM daily_drafts WHERE student_id = $1 AND teacher_id = $2 AND draft_date = $3`
	if _, err := ext.ExecContext(ctx, query, studentID, teacherID, date); err != nil {
		return fmt.Errorf("delete daily draft: %w", err)
	}
	return nil
}

// ListForDay returns all drafts one teacher holds for a date.
func (r *DraftRepository) ListForDay(ctx context.Context, teacherID string, date time.Time) ([]models.DailyDraft, error) {
	var drafts []models.DailyDraft
	query := fmt.Sprintf("SELECT %s FROM daily_drafts WHERE teacher_id = $1 AND draft_date = $2 ORDER BY updated_at DESC", draftColumns)
	if err := sqlx.SelectContext(ctx, r.db, &drafts, query, teacherID, date); err != nil {
		return nil, fmt.Errorf("list daily drafts: %w", err)
	}
	return drafts, nil
}
