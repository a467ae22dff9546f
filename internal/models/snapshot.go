package models

import "time"

// MonthlySnapshot freezes one student's monthly total at rollover.
// Written once per (student, month key) and never mutated.
type MonthlySnapshot struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	MonthKey   string    `db:"month_key" json:"month_key"`
	Stars      float64   `db:"stars" json:"stars"`
	ArchivedAt time.Time `db:"archived_at" json:"archived_at"`
}
