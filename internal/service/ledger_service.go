package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/starboard-api/internal/models"
	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
	"github.com/noah-isme/starboard-api/pkg/txn"
)

type ledgerStudentReader interface {
	Get(ctx context.Context, id string) (*models.Student, error)
}

type ledgerScoreRepository interface {
	GetTx(ctx context.Context, ext sqlx.ExtContext, studentID string) (*models.StudentScore, error)
	InsertTx(ctx context.Context, ext sqlx.ExtContext, score *models.StudentScore) error
	UpdateTx(ctx context.Context, ext sqlx.ExtContext, score *models.StudentScore) error
	Get(ctx context.Context, studentID string) (*models.StudentScore, error)
}

type ledgerDraftRepository interface {
	GetForDayTx(ctx context.Context, ext sqlx.ExtContext, studentID, teacherID string, date time.Time) (*models.DailyDraft, error)
	UpsertTx(ctx context.Context, ext sqlx.ExtContext, draft *models.DailyDraft) error
	DeleteTx(ctx context.Context, ext sqlx.ExtContext, studentID, teacherID string, date time.Time) error
}

type ledgerAwardRepository interface {
	GetByIDTx(ctx context.Context, ext sqlx.ExtContext, id string) (*models.AwardLogEntry, error)
	GetForDayTx(ctx context.Context, ext sqlx.ExtContext, studentID, teacherID string, date time.Time) (*models.AwardLogEntry, error)
	UpsertTx(ctx context.Context, ext sqlx.ExtContext, entry *models.AwardLogEntry) error
	DeleteTx(ctx context.Context, ext sqlx.ExtContext, id string) error
	List(ctx context.Context, filter models.AwardFilter) ([]models.AwardLogEntry, int, error)
	UpdateNote(ctx context.Context, id string, note *string) error
}

type activeEventSource interface {
	ActiveForDate(ctx context.Context, date time.Time, classID string) (*models.QuestEvent, error)
}

type questCompletionChecker interface {
	CheckQuestCompletion(ctx context.Context, classID string) (bool, error)
}

type monthApplier interface {
	ApplyTx(ctx context.Context, ext sqlx.ExtContext, score *models.StudentScore) (bool, error)
	EnsureCurrent(ctx context.Context, studentID string) error
}

// LedgerService is the single write path for stars. One serializable
// transaction moves the daily draft, the award log and the student
// aggregate together; callers never observe a mixed state.
type LedgerService struct {
	students  ledgerStudentReader
	scores    ledgerScoreRepository
	drafts    ledgerDraftRepository
	awards    ledgerAwardRepository
	events    activeEventSource
	quests    questCompletionChecker
	rollover  monthApplier
	runner    *txn.Runner
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedgerService wires the ledger dependencies.
func NewLedgerService(
	students ledgerStudentReader,
	scores ledgerScoreRepository,
	drafts ledgerDraftRepository,
	awards ledgerAwardRepository,
	events activeEventSource,
	quests questCompletionChecker,
	rollover monthApplier,
	runner *txn.Runner,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LedgerService{
		students:  students,
		scores:    scores,
		drafts:    drafts,
		awards:    awards,
		events:    events,
		quests:    quests,
		rollover:  rollover,
		runner:    runner,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
	svc.validator.RegisterValidation("award_reason", func(fl validator.FieldLevel) bool {
		switch models.AwardReason(fl.Field().String()) {
		case models.ReasonTeamwork, models.ReasonEffort, models.ReasonKindness,
			models.ReasonParticipation, models.ReasonCreativity:
			return true
		default:
			return false
		}
	})
	return svc
}

// AwardStarsRequest sets today's star value for one student from one
// teacher. Stars is the raw value before event multipliers; zero clears
// the day.
type AwardStarsRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	TeacherID string  `json:"teacher_id" validate:"required"`
	Stars     float64 `json:"stars" validate:"gte=0"`
	Reason    string  `json:"reason" validate:"omitempty,award_reason"`
}

// AwardStars applies one award action and returns the applied delta.
func (s *LedgerService) AwardStars(ctx context.Context, req AwardStarsRequest) (*models.AppliedDelta, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid award payload")
	}
	student, err := s.students.Get(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	today := models.DateOnly(s.now().UTC())
	finalStars, multiplied := s.resolveMultiplier(ctx, student.ClassID, today, req)

	var reason *models.AwardReason
	if req.Reason != "" {
		r := models.AwardReason(req.Reason)
		reason = &r
	}

	delta := &models.AppliedDelta{StudentID: req.StudentID, FinalStars: finalStars, Multiplied: multiplied}
	err = s.runner.Run(ctx, func(tx *sqlx.Tx) error {
		// Re-executed from scratch on conflict: the draft's old value may
		// have changed under us.
		delta.Diff = 0
		delta.MetadataOnly = false
		delta.NoOp = false
		return s.applyAward(ctx, tx, student, req.TeacherID, today, finalStars, reason, delta)
	})
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrConflictExhausted.Code && s.metrics != nil {
			s.metrics.RecordTxExhausted()
		}
		return nil, err
	}

	if delta.Diff != 0 {
		if s.metrics != nil {
			s.metrics.RecordAwardApplied()
		}
		if s.cache != nil {
			_ = s.cache.Invalidate(ctx, "standings:*")
		}
	}
	if delta.Diff > 0 && s.quests != nil {
		if _, err := s.quests.CheckQuestCompletion(ctx, student.ClassID); err != nil {
			s.logger.Warn("quest completion check failed", zap.String("class_id", student.ClassID), zap.Error(err))
		}
	}
	return delta, nil
}

// resolveMultiplier applies the active quest event, when one exists.
// The event source is a best-effort collaborator: a lookup failure
// never fails the award, it only forfeits the multiplier.
func (s *LedgerService) resolveMultiplier(ctx context.Context, classID string, date time.Time, req AwardStarsRequest) (float64, bool) {
	event, err := s.events.ActiveForDate(ctx, date, classID)
	if err != nil {
		s.logger.Warn("quest event lookup failed, awarding unmultiplied", zap.Error(err))
		return req.Stars, false
	}
	if event == nil || req.Stars <= 0 {
		return req.Stars, false
	}
	switch event.Kind {
	case models.EventDouble:
		return req.Stars * 2, true
	case models.EventReasonBonus:
		if event.Reason != nil && req.Reason == string(*event.Reason) {
			return req.Stars + 1, true
		}
	}
	return req.Stars, false
}

// applyAward is the atomic section. Draft, award log and aggregate
// move together or not at all.
func (s *LedgerService) applyAward(ctx context.Context, tx *sqlx.Tx, student *models.Student, teacherID string, today time.Time, finalStars float64, reason *models.AwardReason, delta *models.AppliedDelta) error {
	oldStars := 0.0
	draft, err := s.drafts.GetForDayTx(ctx, tx, student.ID, teacherID, today)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if draft != nil {
		oldStars = draft.Stars
	}
	diff := finalStars - oldStars
	delta.Diff = diff

	if diff == 0 {
		if finalStars == 0 {
			delta.NoOp = true
			return nil
		}
		// Metadata-only edit: the teacher changed why the star was
		// given, not how many. No aggregate movement.
		delta.MetadataOnly = true
		entry, err := s.awards.GetForDayTx(ctx, tx, student.ID, teacherID, today)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		entry.Reason = reason
		return s.awards.UpsertTx(ctx, tx, entry)
	}

	score, err := s.scores.GetTx(ctx, tx, student.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		seed := diff
		if seed < 0 {
			seed = 0
		}
		score = &models.StudentScore{
			StudentID:        student.ID,
			TotalStars:       seed,
			MonthlyStars:     seed,
			LastMonthlyReset: models.MonthFirst(today),
		}
		if err := s.scores.InsertTx(ctx, tx, score); err != nil {
			return err
		}
	} else {
		if _, err := s.rollover.ApplyTx(ctx, tx, score); err != nil {
			return err
		}
		score.TotalStars = clampStars(score.TotalStars + diff)
		score.MonthlyStars = clampStars(score.MonthlyStars + diff)
		if err := s.scores.UpdateTx(ctx, tx, score); err != nil {
			return err
		}
	}

	if finalStars == 0 {
		if err := s.drafts.DeleteTx(ctx, tx, student.ID, teacherID, today); err != nil {
			return err
		}
		entry, err := s.awards.GetForDayTx(ctx, tx, student.ID, teacherID, today)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		return s.awards.DeleteTx(ctx, tx, entry.ID)
	}

	newDraft := &models.DailyDraft{
		StudentID: student.ID,
		TeacherID: teacherID,
		DraftDate: today,
		Stars:     finalStars,
		Reason:    reason,
	}
	if draft != nil {
		newDraft.ID = draft.ID
	}
	if err := s.drafts.UpsertTx(ctx, tx, newDraft); err != nil {
		return err
	}

	entry, err := s.awards.GetForDayTx(ctx, tx, student.ID, teacherID, today)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		entry = &models.AwardLogEntry{
			StudentID: student.ID,
			ClassID:   student.ClassID,
			TeacherID: teacherID,
			AwardDate: today,
		}
	}
	entry.Stars = finalStars
	entry.Reason = reason
	return s.awards.UpsertTx(ctx, tx, entry)
}

// RevokeAward removes one finalized entry and reverses its aggregate
// contribution. The monthly component is reversed only when the entry
// belongs to the current month.
func (s *LedgerService) RevokeAward(ctx context.Context, logID string) error {
	if logID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "award id is required")
	}
	today := models.DateOnly(s.now().UTC())
	var revoked *models.AwardLogEntry
	err := s.runner.Run(ctx, func(tx *sqlx.Tx) error {
		entry, err := s.awards.GetByIDTx(ctx, tx, logID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "award entry not found")
			}
			return err
		}
		revoked = entry

		score, err := s.scores.GetTx(ctx, tx, entry.StudentID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if score != nil {
			if _, err := s.rollover.ApplyTx(ctx, tx, score); err != nil {
				return err
			}
			score.TotalStars = clampStars(score.TotalStars - entry.Stars)
			if models.MonthKey(entry.AwardDate) == models.MonthKey(today) {
				score.MonthlyStars = clampStars(score.MonthlyStars - entry.Stars)
			}
			if err := s.scores.UpdateTx(ctx, tx, score); err != nil {
				return err
			}
		}

		if err := s.awards.DeleteTx(ctx, tx, entry.ID); err != nil {
			return err
		}
		if models.DateOnly(entry.AwardDate).Equal(today) {
			return s.drafts.DeleteTx(ctx, tx, entry.StudentID, entry.TeacherID, today)
		}
		return nil
	})
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrConflictExhausted.Code && s.metrics != nil {
			s.metrics.RecordTxExhausted()
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordAwardRevoked()
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, "standings:*")
	}
	s.logger.Info("award revoked",
		zap.String("award_id", revoked.ID),
		zap.String("student_id", revoked.StudentID),
		zap.Float64("stars", revoked.Stars),
	)
	return nil
}

// GetScore returns one student's aggregate after repairing a stale
// month boundary.
func (s *LedgerService) GetScore(ctx context.Context, studentID string) (*models.StudentScore, error) {
	if err := s.rollover.EnsureCurrent(ctx, studentID); err != nil {
		return nil, err
	}
	score, err := s.scores.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No awards yet: expose a zero aggregate rather than a 404.
			return &models.StudentScore{
				StudentID:        studentID,
				LastMonthlyReset: models.MonthFirst(s.now().UTC()),
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load score")
	}
	return score, nil
}

// ListAwards returns finalized entries with pagination.
func (s *LedgerService) ListAwards(ctx context.Context, filter models.AwardFilter) ([]models.AwardLogEntry, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	entries, total, err := s.awards.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list awards")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return entries, pagination, nil
}

// UpdateAwardNote attaches or clears the free-text note on an entry.
func (s *LedgerService) UpdateAwardNote(ctx context.Context, logID string, note *string) error {
	if err := s.awards.UpdateNote(ctx, logID, note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "award entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update award note")
	}
	return nil
}

// clampStars keeps aggregates at zero or above; corrections never take
// a student negative by policy.
func clampStars(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
