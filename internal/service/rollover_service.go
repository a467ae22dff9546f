package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/starboard-api/internal/models"
	"github.com/noah-isme/starboard-api/pkg/txn"
)

type rolloverScoreRepository interface {
	GetTx(ctx context.Context, ext sqlx.ExtContext, studentID string) (*models.StudentScore, error)
	UpdateTx(ctx context.Context, ext sqlx.ExtContext, score *models.StudentScore) error
	StaleResetDates(ctx context.Context, classID string, monthFirst time.Time) ([]string, error)
}

type rolloverSnapshotRepository interface {
	InsertIfAbsentTx(ctx context.Context, ext sqlx.ExtContext, snapshot *models.MonthlySnapshot) error
}

type questStampCleaner interface {
	ClearStaleQuestCompletions(ctx context.Context, monthFirst time.Time) error
}

// RolloverService lazily repairs month boundaries. There is no
// scheduled job: every read path that cares about monthly values calls
// EnsureCurrent first, and the ledger applies the same repair inside
// its own transaction. Running the repair twice is safe; the reset-date
// comparison stands in for an epoch check.
type RolloverService struct {
	scores    rolloverScoreRepository
	snapshots rolloverSnapshotRepository
	classes   questStampCleaner
	runner    *txn.Runner
	logger    *zap.Logger
	now       func() time.Time
}

// NewRolloverService wires rollover dependencies.
func NewRolloverService(
	scores rolloverScoreRepository,
	snapshots rolloverSnapshotRepository,
	classes questStampCleaner,
	runner *txn.Runner,
	logger *zap.Logger,
) *RolloverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RolloverService{
		scores:    scores,
		snapshots: snapshots,
		classes:   classes,
		runner:    runner,
		logger:    logger,
		now:       time.Now,
	}
}

// ApplyTx archives and resets one aggregate in the caller's
// transaction when its reset date is stale. It mutates score in place
// and reports whether anything changed; the caller persists.
func (s *RolloverService) ApplyTx(ctx context.Context, ext sqlx.ExtContext, score *models.StudentScore) (bool, error) {
	monthFirst := models.MonthFirst(s.now().UTC())
	if !score.LastMonthlyReset.Before(monthFirst) {
		return false, nil
	}
	if score.MonthlyStars > 0 {
		snapshot := &models.MonthlySnapshot{
			StudentID: score.StudentID,
			MonthKey:  models.MonthKey(score.LastMonthlyReset),
			Stars:     score.MonthlyStars,
		}
		if err := s.snapshots.InsertIfAbsentTx(ctx, ext, snapshot); err != nil {
			return false, err
		}
	}
	score.MonthlyStars = 0
	score.LastMonthlyReset = monthFirst
	return true, nil
}

// EnsureCurrent rolls one student over in its own transaction. Missing
// aggregates are fine; there is nothing to archive yet.
func (s *RolloverService) EnsureCurrent(ctx context.Context, studentID string) error {
	return s.runner.Run(ctx, func(tx *sqlx.Tx) error {
		score, err := s.scores.GetTx(ctx, tx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		changed, err := s.ApplyTx(ctx, tx, score)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		s.logger.Debug("monthly rollover applied", zap.String("student_id", studentID))
		return s.scores.UpdateTx(ctx, tx, score)
	})
}

// EnsureCurrentForClass repairs the whole roster of a class before a
// standings read, and drops quest stamps left over from prior months.
func (s *RolloverService) EnsureCurrentForClass(ctx context.Context, classID string) error {
	monthFirst := models.MonthFirst(s.now().UTC())
	if s.classes != nil {
		if err := s.classes.ClearStaleQuestCompletions(ctx, monthFirst); err != nil {
			s.logger.Warn("clearing stale quest stamps failed", zap.Error(err))
		}
	}
	stale, err := s.scores.StaleResetDates(ctx, classID, monthFirst)
	if err != nil {
		return err
	}
	for _, studentID := range stale {
		if err := s.EnsureCurrent(ctx, studentID); err != nil {
			return err
		}
	}
	return nil
}
