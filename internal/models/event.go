package models

import "time"

// QuestEventKind distinguishes star multiplier events.
type QuestEventKind string

const (
	// EventDouble doubles every raw star value awarded that day.
	EventDouble QuestEventKind = "double"
	// EventReasonBonus adds one star when the award reason matches.
	EventReasonBonus QuestEventKind = "reason_bonus"
)

// QuestEvent is a read-only multiplier input to the ledger. A NULL
// class id scopes the event school-wide.
type QuestEvent struct {
	ID        string         `db:"id" json:"id"`
	ClassID   *string        `db:"class_id" json:"class_id,omitempty"`
	EventDate time.Time      `db:"event_date" json:"event_date"`
	Kind      QuestEventKind `db:"kind" json:"kind"`
	Reason    *AwardReason   `db:"reason" json:"reason,omitempty"`
}
