package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/starboard-api/internal/models"
)

func TestComputeMilestones(t *testing.T) {
	set, err := ComputeMilestones(25)
	require.NoError(t, err)
	assert.Equal(t, float64(100), set.Bronze)
	assert.Equal(t, float64(200), set.Silver)
	assert.Equal(t, float64(325), set.Gold)
	assert.Equal(t, float64(450), set.Diamond)
}

func TestComputeMilestonesEmptyClass(t *testing.T) {
	set, err := ComputeMilestones(0)
	require.NoError(t, err)
	assert.Equal(t, float64(18), set.Diamond)
}

func TestComputeMilestonesNegativeCount(t *testing.T) {
	_, err := ComputeMilestones(-1)
	require.Error(t, err)
}

func TestClassProgressCapped(t *testing.T) {
	set, err := ComputeMilestones(1)
	require.NoError(t, err)
	assert.Equal(t, float64(50), ClassProgress(9, set))
	assert.Equal(t, float64(100), ClassProgress(40, set))
}

func TestRankClassesCompetitionRanks(t *testing.T) {
	aggregates := []models.ClassAggregate{
		{ClassID: "a", Name: "3A", StudentCount: 1, MonthlyStars: 10},
		{ClassID: "b", Name: "3B", StudentCount: 1, MonthlyStars: 10},
		{ClassID: "c", Name: "3C", StudentCount: 1, MonthlyStars: 7},
	}

	standings := RankClasses(aggregates)
	require.Len(t, standings, 3)
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, 1, standings[1].Rank)
	assert.Equal(t, 3, standings[2].Rank)
}

func TestRankClassesQuestTieBreak(t *testing.T) {
	early := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	aggregates := []models.ClassAggregate{
		{ClassID: "slow", StudentCount: 1, MonthlyStars: 20, QuestCompletedAt: &late},
		{ClassID: "fast", StudentCount: 1, MonthlyStars: 18, QuestCompletedAt: &early},
	}

	standings := RankClasses(aggregates)
	// Both capped at 100% progress; the earlier completion wins.
	assert.Equal(t, "fast", standings[0].ClassID)
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, "slow", standings[1].ClassID)
	assert.Equal(t, 2, standings[1].Rank)
}

func TestRankStudentsByMetric(t *testing.T) {
	aggregates := []models.StudentAggregate{
		{StudentID: "s1", MonthlyStars: 5, TotalStars: 40},
		{StudentID: "s2", MonthlyStars: 9, TotalStars: 12},
	}

	monthly := RankStudents(aggregates, models.MetricMonthly)
	assert.Equal(t, "s2", monthly[0].StudentID)
	assert.Equal(t, float64(9), monthly[0].Score)

	total := RankStudents(aggregates, models.MetricTotal)
	assert.Equal(t, "s1", total[0].StudentID)
	assert.Equal(t, float64(40), total[0].Score)
}

func TestGroupBracketsFoldsTies(t *testing.T) {
	entries := []models.CeremonyEntry{
		{ID: "a", Rank: 1},
		{ID: "b", Rank: 2},
		{ID: "c", Rank: 2},
		{ID: "d", Rank: 4},
	}

	brackets := GroupBrackets(entries)
	require.Len(t, brackets, 3)
	assert.True(t, brackets[0].Podium)
	assert.Len(t, brackets[1].Entries, 2)
	assert.True(t, brackets[1].Podium)
	assert.False(t, brackets[2].Podium)
}

type mockClassAggregates struct {
	aggregate *models.ClassAggregate
	stamped   bool
	stampedAt time.Time
}

func (m *mockClassAggregates) MonthlyAggregates(ctx context.Context, league string) ([]models.ClassAggregate, error) {
	if m.aggregate == nil {
		return nil, nil
	}
	return []models.ClassAggregate{*m.aggregate}, nil
}

func (m *mockClassAggregates) MonthlyAggregate(ctx context.Context, classID string) (*models.ClassAggregate, error) {
	agg := *m.aggregate
	return &agg, nil
}

func (m *mockClassAggregates) SetQuestCompletedAt(ctx context.Context, classID string, completedAt time.Time) (bool, error) {
	if m.aggregate.QuestCompletedAt != nil {
		return false, nil
	}
	m.stamped = true
	m.stampedAt = completedAt
	m.aggregate.QuestCompletedAt = &completedAt
	return true, nil
}

type mockStudentAggregates struct {
	rows []models.StudentAggregate
}

func (m *mockStudentAggregates) ListByClass(ctx context.Context, classID string) ([]models.StudentAggregate, error) {
	return m.rows, nil
}

type mockSnapshotAggregates struct {
	students []models.StudentAggregate
	classes  []models.ClassAggregate
}

func (m *mockSnapshotAggregates) ListByMonthForClass(ctx context.Context, classID, monthKey string) ([]models.StudentAggregate, error) {
	return m.students, nil
}

func (m *mockSnapshotAggregates) SumByMonthPerClass(ctx context.Context, league, monthKey string) ([]models.ClassAggregate, error) {
	return m.classes, nil
}

type mockRepairer struct {
	repaired []string
}

func (m *mockRepairer) EnsureCurrentForClass(ctx context.Context, classID string) error {
	m.repaired = append(m.repaired, classID)
	return nil
}

func TestCheckQuestCompletionStampsOnce(t *testing.T) {
	classes := &mockClassAggregates{
		aggregate: &models.ClassAggregate{ClassID: "c1", StudentCount: 1, MonthlyStars: 20},
	}
	svc := NewRankingService(classes, &mockStudentAggregates{}, &mockSnapshotAggregates{}, &mockRepairer{}, nil, nil, nil)

	stamped, err := svc.CheckQuestCompletion(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, stamped)
	require.True(t, classes.stamped)

	stamped, err = svc.CheckQuestCompletion(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, stamped)
}

func TestCheckQuestCompletionBelowGoal(t *testing.T) {
	classes := &mockClassAggregates{
		aggregate: &models.ClassAggregate{ClassID: "c1", StudentCount: 2, MonthlyStars: 20},
	}
	svc := NewRankingService(classes, &mockStudentAggregates{}, &mockSnapshotAggregates{}, &mockRepairer{}, nil, nil, nil)

	stamped, err := svc.CheckQuestCompletion(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, stamped)
	assert.False(t, classes.stamped)
}

func TestHistoricalClassStandingsIgnoreQuestStamps(t *testing.T) {
	now := time.Now()
	snapshots := &mockSnapshotAggregates{
		classes: []models.ClassAggregate{
			{ClassID: "a", StudentCount: 1, MonthlyStars: 30, QuestCompletedAt: &now},
			{ClassID: "b", StudentCount: 1, MonthlyStars: 30},
		},
	}
	svc := NewRankingService(&mockClassAggregates{}, &mockStudentAggregates{}, snapshots, &mockRepairer{}, nil, nil, nil)

	standings, err := svc.HistoricalClassStandings(context.Background(), "lower", "2026-02")
	require.NoError(t, err)
	require.Len(t, standings, 2)
	// Identical frozen totals tie; the stamp only scopes the live month.
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, 1, standings[1].Rank)
}

func TestStudentStandingsRepairsMonthFirst(t *testing.T) {
	repairer := &mockRepairer{}
	scores := &mockStudentAggregates{rows: []models.StudentAggregate{{StudentID: "s1", MonthlyStars: 3}}}
	svc := NewRankingService(&mockClassAggregates{}, scores, &mockSnapshotAggregates{}, repairer, nil, nil, nil)

	standings, err := svc.StudentStandings(context.Background(), "c1", models.MetricMonthly)
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.Equal(t, []string{"c1"}, repairer.repaired)
}
