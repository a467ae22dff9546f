package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/starboard-api/internal/models"
	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
)

type mockStandings struct {
	classes  []models.ClassStanding
	students []models.StudentStanding
	err      error
	calls    int
}

func (m *mockStandings) HistoricalClassStandings(ctx context.Context, league, monthKey string) ([]models.ClassStanding, error) {
	m.calls++
	return m.classes, m.err
}

func (m *mockStandings) HistoricalStudentStandings(ctx context.Context, classID, monthKey string) ([]models.StudentStanding, error) {
	m.calls++
	return m.students, m.err
}

type mockViewed struct {
	flags map[string]bool
}

func viewedTestKey(mode, scope, monthKey string) string {
	return mode + ":" + scope + ":" + monthKey
}

func (m *mockViewed) MarkViewed(ctx context.Context, mode, scope, monthKey string) error {
	if m.flags == nil {
		m.flags = make(map[string]bool)
	}
	m.flags[viewedTestKey(mode, scope, monthKey)] = true
	return nil
}

func (m *mockViewed) IsViewed(ctx context.Context, mode, scope, monthKey string) (bool, error) {
	return m.flags[viewedTestKey(mode, scope, monthKey)], nil
}

type failingCommentator struct{}

func (failingCommentator) GenerateLine(ctx context.Context, c CommentaryContext) (string, error) {
	return "", fmt.Errorf("generator offline")
}

func classStanding(id string, rank int, stars float64) models.ClassStanding {
	return models.ClassStanding{
		ClassAggregate: models.ClassAggregate{ClassID: id, Name: id, MonthlyStars: stars},
		Rank:           rank,
	}
}

func newCeremonyFixture(standings *mockStandings, viewed *mockViewed, commentator Commentator) *CeremonyService {
	return NewCeremonyService(standings, viewed, commentator, nil, nil, nil, CeremonyConfig{})
}

func teamStart() StartCeremonyRequest {
	return StartCeremonyRequest{Mode: "team", Scope: "lower", MonthKey: "2026-02"}
}

func TestCeremonyFullRevealWithShowdown(t *testing.T) {
	standings := &mockStandings{classes: []models.ClassStanding{
		classStanding("a", 1, 40),
		classStanding("b", 2, 30),
		classStanding("c", 3, 20),
		classStanding("d", 4, 10),
	}}
	viewed := &mockViewed{}
	svc := newCeremonyFixture(standings, viewed, nil)

	view, err := svc.Start(context.Background(), teamStart())
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyRevealing, view.State)
	assert.Equal(t, 4, view.Remaining)

	// Worst-first: rank 4 then rank 3.
	view, err = svc.Advance(context.Background(), view.SessionID)
	require.NoError(t, err)
	require.Len(t, view.Revealed, 1)
	assert.Equal(t, 4, view.Revealed[0].Rank)
	assert.NotEmpty(t, view.Revealed[0].Commentary)

	view, err = svc.Advance(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Revealed[1].Rank)

	// Two single finalists left: the next advance arms the showdown.
	view, err = svc.Advance(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyShowdownPending, view.State)
	require.Len(t, view.Finalists, 2)
	assert.Nil(t, view.Winner)

	view, err = svc.RevealWinner(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyWinnerRevealed, view.State)
	require.NotNil(t, view.Winner)
	assert.Equal(t, "a", view.Winner.ID)
	require.NotNil(t, view.RunnerUp)
	assert.Equal(t, "b", view.RunnerUp.ID)
	assert.True(t, viewed.flags[viewedTestKey("team", "lower", "2026-02")])

	view, err = svc.Advance(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyEnded, view.State)
}

func TestCeremonySkipKeepsFinalSuspense(t *testing.T) {
	standings := &mockStandings{classes: []models.ClassStanding{
		classStanding("a", 1, 40),
		classStanding("b", 2, 30),
		classStanding("c", 3, 20),
		classStanding("d", 4, 10),
		classStanding("e", 5, 5),
	}}
	svc := newCeremonyFixture(standings, &mockViewed{}, nil)

	view, err := svc.Start(context.Background(), teamStart())
	require.NoError(t, err)

	view, err = svc.Skip(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyRevealing, view.State)
	assert.Equal(t, 2, view.Remaining)
	assert.Len(t, view.Revealed, 3)

	view, err = svc.Advance(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyShowdownPending, view.State)
}

func TestCeremonyTiedTopGroupHasNoShowdown(t *testing.T) {
	standings := &mockStandings{classes: []models.ClassStanding{
		classStanding("a", 1, 40),
		classStanding("b", 1, 40),
		classStanding("c", 3, 20),
	}}
	svc := newCeremonyFixture(standings, &mockViewed{}, nil)

	view, err := svc.Start(context.Background(), teamStart())
	require.NoError(t, err)

	view, err = svc.Advance(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Revealed[0].Rank)

	// The tied pair is revealed together; no single winner exists.
	view, err = svc.Advance(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyWinnerRevealed, view.State)
	assert.Nil(t, view.Winner)
	require.Len(t, view.Revealed, 2)
	assert.Len(t, view.Revealed[1].Entries, 2)
}

func TestCeremonyAlreadyViewedComesBackIdle(t *testing.T) {
	standings := &mockStandings{classes: []models.ClassStanding{classStanding("a", 1, 10)}}
	viewed := &mockViewed{flags: map[string]bool{viewedTestKey("team", "lower", "2026-02"): true}}
	svc := newCeremonyFixture(standings, viewed, nil)

	view, err := svc.Start(context.Background(), teamStart())
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyIdle, view.State)
	assert.Zero(t, standings.calls)
}

func TestCeremonyEmptyStandingsEndImmediately(t *testing.T) {
	svc := newCeremonyFixture(&mockStandings{}, &mockViewed{}, nil)

	view, err := svc.Start(context.Background(), teamStart())
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyEnded, view.State)
}

func TestCeremonyFailedFetchAndRetry(t *testing.T) {
	standings := &mockStandings{err: fmt.Errorf("snapshots unavailable")}
	svc := newCeremonyFixture(standings, &mockViewed{}, nil)

	view, err := svc.Start(context.Background(), teamStart())
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyFailed, view.State)
	assert.NotEmpty(t, view.Error)

	standings.err = nil
	standings.classes = []models.ClassStanding{classStanding("a", 1, 10), classStanding("b", 2, 5)}

	view, err = svc.Retry(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyRevealing, view.State)
	assert.Empty(t, view.Error)
}

func TestCeremonyRetryOnlyFromFailed(t *testing.T) {
	standings := &mockStandings{classes: []models.ClassStanding{classStanding("a", 1, 10)}}
	svc := newCeremonyFixture(standings, &mockViewed{}, nil)

	view, err := svc.Start(context.Background(), teamStart())
	require.NoError(t, err)

	_, err = svc.Retry(context.Background(), view.SessionID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCeremonyCommentaryFallsBackToCannedLine(t *testing.T) {
	standings := &mockStandings{classes: []models.ClassStanding{
		classStanding("a", 1, 10),
		classStanding("b", 2, 8),
		classStanding("c", 3, 5),
	}}
	svc := newCeremonyFixture(standings, &mockViewed{}, failingCommentator{})

	view, err := svc.Start(context.Background(), teamStart())
	require.NoError(t, err)

	view, err = svc.Advance(context.Background(), view.SessionID)
	require.NoError(t, err)
	require.Len(t, view.Revealed, 1)
	assert.NotEmpty(t, view.Revealed[0].Commentary)
}

func TestCeremonyEndIsIdempotent(t *testing.T) {
	standings := &mockStandings{students: []models.StudentStanding{
		{StudentAggregate: models.StudentAggregate{StudentID: "s1", FullName: "Mina"}, Score: 9, Rank: 1},
	}}
	viewed := &mockViewed{}
	svc := newCeremonyFixture(standings, viewed, nil)

	view, err := svc.Start(context.Background(), StartCeremonyRequest{Mode: "hero", Scope: "c1", MonthKey: "2026-02"})
	require.NoError(t, err)

	view, err = svc.End(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyEnded, view.State)
	assert.True(t, viewed.flags[viewedTestKey("hero", "c1", "2026-02")])

	view, err = svc.End(context.Background(), view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyEnded, view.State)
}

func TestCeremonyUnknownSession(t *testing.T) {
	svc := newCeremonyFixture(&mockStandings{}, &mockViewed{}, nil)

	_, err := svc.Get("nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCeremonyStartValidatesPayload(t *testing.T) {
	svc := newCeremonyFixture(&mockStandings{}, &mockViewed{}, nil)

	_, err := svc.Start(context.Background(), StartCeremonyRequest{Mode: "circus", Scope: "x", MonthKey: "2026-02"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
