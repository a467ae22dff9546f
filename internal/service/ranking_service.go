package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/starboard-api/internal/models"
	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
)

// Milestone scaling factors per roster head.
const (
	bronzePerStudent  = 4
	silverPerStudent  = 8
	goldPerStudent    = 13
	diamondPerStudent = 18
)

type classAggregateReader interface {
	MonthlyAggregates(ctx context.Context, league string) ([]models.ClassAggregate, error)
	MonthlyAggregate(ctx context.Context, classID string) (*models.ClassAggregate, error)
	SetQuestCompletedAt(ctx context.Context, classID string, completedAt time.Time) (bool, error)
}

type studentAggregateReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.StudentAggregate, error)
}

type snapshotAggregateReader interface {
	ListByMonthForClass(ctx context.Context, classID, monthKey string) ([]models.StudentAggregate, error)
	SumByMonthPerClass(ctx context.Context, league, monthKey string) ([]models.ClassAggregate, error)
}

type monthRepairer interface {
	EnsureCurrentForClass(ctx context.Context, classID string) error
}

// RankingService turns score aggregates into ordered standings and
// milestone progress. The ranking itself is pure; the service wraps it
// with repository reads, lazy rollover repair and optional caching.
type RankingService struct {
	classes   classAggregateReader
	scores    studentAggregateReader
	snapshots snapshotAggregateReader
	rollover  monthRepairer
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewRankingService wires ranking dependencies.
func NewRankingService(
	classes classAggregateReader,
	scores studentAggregateReader,
	snapshots snapshotAggregateReader,
	rollover monthRepairer,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{
		classes:   classes,
		scores:    scores,
		snapshots: snapshots,
		rollover:  rollover,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ComputeMilestones scales the bronze/silver/gold/diamond thresholds by
// roster size. An empty class keeps a diamond goal of 18 so progress
// never divides by zero.
func ComputeMilestones(studentCount int) (models.MilestoneSet, error) {
	if studentCount < 0 {
		return models.MilestoneSet{}, appErrors.Clone(appErrors.ErrValidation, "student count must not be negative")
	}
	set := models.MilestoneSet{
		Bronze:  math.Round(float64(studentCount) * bronzePerStudent),
		Silver:  math.Round(float64(studentCount) * silverPerStudent),
		Gold:    math.Round(float64(studentCount) * goldPerStudent),
		Diamond: math.Round(float64(studentCount) * diamondPerStudent),
	}
	if set.Diamond <= 0 {
		set.Diamond = diamondPerStudent
	}
	return set, nil
}

// ClassProgress returns the percentage of the diamond goal reached,
// capped at 100.
func ClassProgress(monthlyStars float64, milestones models.MilestoneSet) float64 {
	if milestones.Diamond <= 0 {
		return 0
	}
	return math.Min(100, monthlyStars/milestones.Diamond*100)
}

// compareClasses orders two standings rows best-first. A zero result
// means the rows tie for ranking purposes.
func compareClasses(a, b models.ClassStanding) int {
	switch {
	case a.Progress > b.Progress:
		return -1
	case a.Progress < b.Progress:
		return 1
	}
	aDone := a.QuestCompletedAt != nil
	bDone := b.QuestCompletedAt != nil
	switch {
	case aDone && bDone:
		if a.QuestCompletedAt.Before(*b.QuestCompletedAt) {
			return -1
		}
		if b.QuestCompletedAt.Before(*a.QuestCompletedAt) {
			return 1
		}
		return 0
	case aDone:
		return -1
	case bDone:
		return 1
	}
	switch {
	case a.MonthlyStars > b.MonthlyStars:
		return -1
	case a.MonthlyStars < b.MonthlyStars:
		return 1
	}
	return 0
}

// RankClasses computes milestone progress and standard competition
// ranks (tied rows share a rank, the following distinct row takes its
// 1-based position, e.g. 1,1,3).
func RankClasses(aggregates []models.ClassAggregate) []models.ClassStanding {
	standings := make([]models.ClassStanding, 0, len(aggregates))
	for _, agg := range aggregates {
		milestones, _ := ComputeMilestones(agg.StudentCount)
		standings = append(standings, models.ClassStanding{
			ClassAggregate: agg,
			Milestones:     milestones,
			Progress:       ClassProgress(agg.MonthlyStars, milestones),
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return compareClasses(standings[i], standings[j]) < 0
	})
	for i := range standings {
		if i > 0 && compareClasses(standings[i-1], standings[i]) == 0 {
			standings[i].Rank = standings[i-1].Rank
		} else {
			standings[i].Rank = i + 1
		}
	}
	return standings
}

// RankStudents orders students by the selected metric with the same
// competition-ranking rule.
func RankStudents(aggregates []models.StudentAggregate, metric models.RankMetric) []models.StudentStanding {
	standings := make([]models.StudentStanding, 0, len(aggregates))
	for _, agg := range aggregates {
		score := agg.MonthlyStars
		if metric == models.MetricTotal {
			score = agg.TotalStars
		}
		standings = append(standings, models.StudentStanding{StudentAggregate: agg, Score: score})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	for i := range standings {
		if i > 0 && standings[i-1].Score == standings[i].Score {
			standings[i].Rank = standings[i-1].Rank
		} else {
			standings[i].Rank = i + 1
		}
	}
	return standings
}

// GroupBrackets folds consecutive entries sharing a rank into reveal
// brackets; ranks of 3 or better render as podium reveals.
func GroupBrackets(entries []models.CeremonyEntry) []models.RankBracket {
	var brackets []models.RankBracket
	for _, entry := range entries {
		if n := len(brackets); n > 0 && brackets[n-1].Rank == entry.Rank {
			brackets[n-1].Entries = append(brackets[n-1].Entries, entry)
			continue
		}
		brackets = append(brackets, models.RankBracket{
			Rank:    entry.Rank,
			Podium:  entry.Rank <= 3,
			Entries: []models.CeremonyEntry{entry},
		})
	}
	return brackets
}

// ClassStandings returns the live leaderboard of one league.
func (s *RankingService) ClassStandings(ctx context.Context, league string) ([]models.ClassStanding, error) {
	if league == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "league is required")
	}
	cacheKey := fmt.Sprintf("standings:classes:%s", league)
	var cached []models.ClassStanding
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached, nil
		}
	}
	aggregates, err := s.classes.MonthlyAggregates(ctx, league)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class aggregates")
	}
	for _, agg := range aggregates {
		if err := s.rollover.EnsureCurrentForClass(ctx, agg.ClassID); err != nil {
			return nil, err
		}
	}
	aggregates, err = s.classes.MonthlyAggregates(ctx, league)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class aggregates")
	}
	standings := RankClasses(aggregates)
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, standings, 0)
	}
	return standings, nil
}

// StudentStandings returns the live leaderboard of one class roster.
func (s *RankingService) StudentStandings(ctx context.Context, classID string, metric models.RankMetric) ([]models.StudentStanding, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}
	if metric != models.MetricTotal {
		metric = models.MetricMonthly
	}
	cacheKey := fmt.Sprintf("standings:students:%s:%s", classID, metric)
	var cached []models.StudentStanding
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return cached, nil
		}
	}
	if err := s.rollover.EnsureCurrentForClass(ctx, classID); err != nil {
		return nil, err
	}
	aggregates, err := s.scores.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student aggregates")
	}
	standings := RankStudents(aggregates, metric)
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, standings, 0)
	}
	return standings, nil
}

// HistoricalClassStandings ranks a completed month from its frozen
// snapshots. Quest completion stamps only scope the current month, so
// historical ties fall through to the raw star tie-break.
func (s *RankingService) HistoricalClassStandings(ctx context.Context, league, monthKey string) ([]models.ClassStanding, error) {
	aggregates, err := s.snapshots.SumByMonthPerClass(ctx, league, monthKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to load monthly snapshots")
	}
	for i := range aggregates {
		aggregates[i].QuestCompletedAt = nil
	}
	return RankClasses(aggregates), nil
}

// HistoricalStudentStandings ranks a class roster for a completed month.
func (s *RankingService) HistoricalStudentStandings(ctx context.Context, classID, monthKey string) ([]models.StudentStanding, error) {
	aggregates, err := s.snapshots.ListByMonthForClass(ctx, classID, monthKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "failed to load monthly snapshots")
	}
	return RankStudents(aggregates, models.MetricMonthly), nil
}

// MilestoneProgress returns one class's thresholds and progress.
func (s *RankingService) MilestoneProgress(ctx context.Context, classID string) (*models.ClassStanding, error) {
	aggregate, err := s.classes.MonthlyAggregate(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "class not found")
	}
	if err := s.rollover.EnsureCurrentForClass(ctx, classID); err != nil {
		return nil, err
	}
	aggregate, err = s.classes.MonthlyAggregate(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class aggregate")
	}
	milestones, err := ComputeMilestones(aggregate.StudentCount)
	if err != nil {
		return nil, err
	}
	return &models.ClassStanding{
		ClassAggregate: *aggregate,
		Milestones:     milestones,
		Progress:       ClassProgress(aggregate.MonthlyStars, milestones),
	}, nil
}

// CheckQuestCompletion recomputes the class monthly total against its
// diamond goal and stamps the completion once; the guarded update makes
// the first crossing win and every later check a no-op.
func (s *RankingService) CheckQuestCompletion(ctx context.Context, classID string) (bool, error) {
	aggregate, err := s.classes.MonthlyAggregate(ctx, classID)
	if err != nil {
		return false, fmt.Errorf("quest completion check: %w", err)
	}
	if aggregate.QuestCompletedAt != nil {
		return false, nil
	}
	milestones, err := ComputeMilestones(aggregate.StudentCount)
	if err != nil {
		return false, err
	}
	if aggregate.MonthlyStars < milestones.Diamond {
		return false, nil
	}
	stamped, err := s.classes.SetQuestCompletedAt(ctx, classID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("quest completion check: %w", err)
	}
	if stamped {
		s.logger.Info("quest completed", zap.String("class_id", classID))
		if s.metrics != nil {
			s.metrics.RecordQuestCompletion()
		}
	}
	return stamped, nil
}
