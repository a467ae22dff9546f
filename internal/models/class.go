package models

import "time"

// ClassTeam represents a class competing in a league.
type ClassTeam struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	// League groups classes into a standings pool, e.g. "lower" / "upper".
	League string `db:"league" json:"league"`
	// QuestCompletedAt is stamped once, the first time the class crosses
	// its diamond milestone in the current month.
	QuestCompletedAt *time.Time `db:"quest_completed_at" json:"quest_completed_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines filter criteria for listing class teams.
type ClassFilter struct {
	League string
	Search string
}
