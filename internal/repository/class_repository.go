package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/starboard-api/internal/models"
)

// ClassRepository manages class teams and their roster aggregates.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = "id, name, league, quest_completed_at, created_at, updated_at"

// Get returns one class team.
func (r *ClassRepository) Get(ctx context.Context, id string) (*models.ClassTeam, error) {
	var class models.ClassTeam
	query := fmt.Sprintf("SELECT %s FROM class_teams WHERE id = $1", classColumns)
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, fmt.Errorf("get class team: %w", err)
	}
	return &class, nil
}

// List returns class teams per provided filter.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassTeam, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.League != "" {
		where = append(where, fmt.Sprintf("league = $%d", len(args)+1))
		args = append(args, filter.League)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	query := fmt.Sprintf("SELECT %s FROM class_teams WHERE %s ORDER BY name", classColumns, strings.Join(where, " AND "))
	var classes []models.ClassTeam
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("list class teams: %w", err)
	}
	return classes, nil
}

// Create inserts a new class team.
func (r *ClassRepository) Create(ctx context.Context, class *models.ClassTeam) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO class_teams (id, name, league, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, class.ID, class.Name, class.League, class.CreatedAt, class.UpdatedAt); err != nil {
		return fmt.Errorf("create class team: %w", err)
	}
	return nil
}

// StudentCount returns the active roster size of a class.
func (r *ClassRepository) StudentCount(ctx context.Context, classID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM students WHERE class_id = $1 AND active", classID); err != nil {
		return 0, fmt.Errorf("count class students: %w", err)
	}
	return count, nil
}

// MonthlyAggregates returns each class in a league with its roster size
// and summed live monthly stars.
func (r *ClassRepository) MonthlyAggregates(ctx context.Context, league string) ([]models.ClassAggregate, error) {
	const query = `SELECT ct.id AS class_id, ct.name, ct.league,
            COUNT(st.id) AS student_count,
            COALESCE(SUM(sc.monthly_stars), 0) AS monthly_stars,
            ct.quest_completed_at
        FROM class_teams ct
        LEFT JOIN students st ON st.class_id = ct.id AND st.active
        LEFT JOIN student_scores sc ON sc.student_id = st.id
        WHERE ct.league = $1
        GROUP BY ct.id, ct.name, ct.league, ct.quest_completed_at
        ORDER BY ct.name`
	var aggregates []models.ClassAggregate
	if err := r.db.SelectContext(ctx, &aggregates, query, league); err != nil {
		return nil, fmt.Errorf("list class aggregates: %w", err)
	}
	return aggregates, nil
}

// MonthlyAggregate returns the aggregate row for one class.
func (r *ClassRepository) MonthlyAggregate(ctx context.Context, classID string) (*models.ClassAggregate, error) {
	const query = `SELECT ct.id AS class_id, ct.name, ct.league,
            COUNT(st.id) AS student_count,
            COALESCE(SUM(sc.monthly_stars), 0) AS monthly_stars,
            ct.quest_completed_at
        FROM class_teams ct
        LEFT JOIN students st ON st.class_id = ct.id AND st.active
        LEFT JOIN student_scores sc ON sc.student_id = st.id
        WHERE ct.id = $1
        GROUP BY ct.id, ct.name, ct.league, ct.quest_completed_at`
	var aggregate models.ClassAggregate
	if err := r.db.GetContext(ctx, &aggregate, query, classID); err != nil {
		return nil, fmt.Errorf("get class aggregate: %w", err)
	}
	return &aggregate, nil
}

// SetQuestCompletedAt stamps the quest completion exactly once; the
// guard makes the first writer win and later calls no-ops.
func (r *ClassRepository) SetQuestCompletedAt(ctx context.Context, classID string, completedAt time.Time) (bool, error) {
	const query = `UPDATE class_teams SET quest_completed_at = $2, updated_at = $3
        WHERE id = $1 AND quest_completed_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, classID, completedAt, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set quest completion: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set quest completion: %w", err)
	}
	return affected > 0, nil
}

// ClearStaleQuestCompletions unsets completion stamps from before the
// given first-of-month; the stamp only scopes to the current month.
func (r *ClassRepository) ClearStaleQuestCompletions(ctx context.Context, monthFirst time.Time) error {
	const query = `UPDATE class_teams SET quest_completed_at = NULL, updated_at = $2
        WHERE quest_completed_at IS NOT NULL AND quest_completed_at < $1`
	if _, err := r.db.ExecContext(ctx, query, monthFirst, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear stale quest completions: %w", err)
	}
	return nil
}
