package models

import "time"

// RankMetric selects the aggregate used for student standings.
type RankMetric string

const (
	MetricMonthly RankMetric = "monthly"
	MetricTotal   RankMetric = "total"
)

// MilestoneSet holds the star thresholds for one class, scaled by its
// roster size.
type MilestoneSet struct {
	Bronze  float64 `json:"bronze"`
	Silver  float64 `json:"silver"`
	Gold    float64 `json:"gold"`
	Diamond float64 `json:"diamond"`
}

// ClassAggregate is the raw input of the class ranking computation.
type ClassAggregate struct {
	ClassID          string     `db:"class_id" json:"class_id"`
	Name             string     `db:"name" json:"name"`
	League           string     `db:"league" json:"league"`
	StudentCount     int        `db:"student_count" json:"student_count"`
	MonthlyStars     float64    `db:"monthly_stars" json:"monthly_stars"`
	QuestCompletedAt *time.Time `db:"quest_completed_at" json:"quest_completed_at,omitempty"`
}

// ClassStanding is one ranked row of the class leaderboard.
type ClassStanding struct {
	ClassAggregate
	Milestones MilestoneSet `json:"milestones"`
	Progress   float64      `json:"progress"`
	Rank       int          `json:"rank"`
}

// StudentAggregate is the raw input of the student ranking computation.
type StudentAggregate struct {
	StudentID    string  `db:"student_id" json:"student_id"`
	FullName     string  `db:"full_name" json:"full_name"`
	ClassID      string  `db:"class_id" json:"class_id"`
	MonthlyStars float64 `db:"monthly_stars" json:"monthly_stars"`
	TotalStars   float64 `db:"total_stars" json:"total_stars"`
}

// StudentStanding is one ranked row of the student leaderboard.
type StudentStanding struct {
	StudentAggregate
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}
