package models

import "time"

// AwardReason categorises why a star was given.
type AwardReason string

const (
	ReasonTeamwork      AwardReason = "teamwork"
	ReasonEffort        AwardReason = "effort"
	ReasonKindness      AwardReason = "kindness"
	ReasonParticipation AwardReason = "participation"
	ReasonCreativity    AwardReason = "creativity"
)

// StudentScore is the aggregate record per student. It is mutated only
// inside ledger and rollover transactions; total and monthly stars are
// always the signed sum of award-log entries since creation / since the
// last monthly reset.
type StudentScore struct {
	StudentID string `db:"student_id" json:"student_id"`
	// TotalStars never drops below zero; revocations clamp by policy.
	TotalStars   float64 `db:"total_stars" json:"total_stars"`
	MonthlyStars float64 `db:"monthly_stars" json:"monthly_stars"`
	// LastMonthlyReset holds the first-of-month date of the period the
	// monthly counter currently accumulates.
	LastMonthlyReset time.Time `db:"last_monthly_reset" json:"last_monthly_reset"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// DailyDraft is the single editable "today" entry per
// (student, awarding teacher, date). Superseded on edit, deleted when
// its value returns to zero.
type DailyDraft struct {
	ID        string       `db:"id" json:"id"`
	StudentID string       `db:"student_id" json:"student_id"`
	TeacherID string       `db:"teacher_id" json:"teacher_id"`
	DraftDate time.Time    `db:"draft_date" json:"draft_date"`
	Stars     float64      `db:"stars" json:"stars"`
	Reason    *AwardReason `db:"reason" json:"reason,omitempty"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// AwardLogEntry is the finalized award row. Its id stays stable across
// same-day edits to the same student/teacher pair; historical entries
// are immutable except for the free-text note.
type AwardLogEntry struct {
	ID        string       `db:"id" json:"id"`
	StudentID string       `db:"student_id" json:"student_id"`
	ClassID   string       `db:"class_id" json:"class_id"`
	TeacherID string       `db:"teacher_id" json:"teacher_id"`
	Stars     float64      `db:"stars" json:"stars"`
	Reason    *AwardReason `db:"reason" json:"reason,omitempty"`
	AwardDate time.Time    `db:"award_date" json:"award_date"`
	Note      *string      `db:"note" json:"note,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// AwardFilter scopes award-log listings.
type AwardFilter struct {
	StudentID string
	ClassID   string
	TeacherID string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// AppliedDelta describes the outcome of one award operation.
type AppliedDelta struct {
	StudentID    string  `json:"student_id"`
	FinalStars   float64 `json:"final_stars"`
	Diff         float64 `json:"diff"`
	Multiplied   bool    `json:"multiplied"`
	MetadataOnly bool    `json:"metadata_only"`
	NoOp         bool    `json:"no_op"`
}
