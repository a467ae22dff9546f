package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/starboard-api/internal/models"
)

// EventRepository reads the quest event calendar; the ledger's only
// multiplier input.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs a new repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// ActiveForDate returns the event active for a class on a date, or nil
// when none applies. A class-scoped event wins over a school-wide one.
func (r *EventRepository) ActiveForDate(ctx context.Context, date time.Time, classID string) (*models.QuestEvent, error) {
	const query = `SELECT id, class_id, event_date, kind, reason
        FROM quest_events
        WHERE event_date = $1 AND (class_id = $2 OR class_id IS NULL)
        ORDER BY class_id NULLS LAST
        LIMIT 1`
	var event models.QuestEvent
	if err := r.db.GetContext(ctx, &event, query, date, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active quest event: %w", err)
	}
	return &event, nil
}
