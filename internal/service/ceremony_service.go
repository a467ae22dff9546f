package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/starboard-api/internal/models"
	appErrors "github.com/noah-isme/starboard-api/pkg/errors"
)

// CommentaryContext keys one generated reveal line.
type CommentaryContext struct {
	Entries []models.CeremonyEntry
	Rank    int
	Mode    models.CeremonyMode
}

// Commentator produces one line of reveal commentary. Implementations
// may fail; the ceremony substitutes a canned line and never blocks a
// state transition on it.
type Commentator interface {
	GenerateLine(ctx context.Context, commentary CommentaryContext) (string, error)
}

// CannedCommentator is the deterministic fallback generator.
type CannedCommentator struct{}

// GenerateLine returns a fixed line per rank band.
func (CannedCommentator) GenerateLine(_ context.Context, c CommentaryContext) (string, error) {
	label := "heroes"
	if c.Mode == models.ModeTeam {
		label = "teams"
	}
	if len(c.Entries) == 1 {
		if c.Mode == models.ModeTeam {
			label = "team"
		} else {
			label = "hero"
		}
	}
	switch {
	case c.Rank <= 3:
		return fmt.Sprintf("Place %d goes to our shining %s!", c.Rank, label), nil
	default:
		return fmt.Sprintf("At place %d, a big hand for these %s.", c.Rank, label), nil
	}
}

type viewedFlagStore interface {
	MarkViewed(ctx context.Context, mode, scope, monthKey string) error
	IsViewed(ctx context.Context, mode, scope, monthKey string) (bool, error)
}

type historicalStandingsProvider interface {
	HistoricalClassStandings(ctx context.Context, league, monthKey string) ([]models.ClassStanding, error)
	HistoricalStudentStandings(ctx context.Context, classID, monthKey string) ([]models.StudentStanding, error)
}

// ceremonySession holds one viewer's reveal walk. Sessions are single
// threaded per viewer; the mutex only guards concurrent HTTP retries.
type ceremonySession struct {
	mu sync.Mutex

	id       string
	mode     models.CeremonyMode
	scope    string
	monthKey string
	state    models.CeremonyState

	// brackets are ordered worst-rank-first; cursor points at the next
	// bracket to reveal.
	brackets []models.RankBracket
	cursor   int
	revealed []models.RevealedBracket

	finalists []models.CeremonyEntry
	winner    *models.CeremonyEntry
	runnerUp  *models.CeremonyEntry

	errMsg    string
	createdAt time.Time
}

type sessionStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]*ceremonySession
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, items: make(map[string]*ceremonySession)}
}

func (s *sessionStore) Save(session *ceremonySession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[session.id] = session
}

func (s *sessionStore) Get(id string) (*ceremonySession, bool) {
	s.mu.RLock()
	session, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(session.createdAt) > s.ttl {
		s.Delete(id)
		return nil, false
	}
	return session, true
}

func (s *sessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// CeremonyService drives the monthly awards reveal over frozen
// standings. One session walks rank brackets worst-first, holds the
// final 1-vs-2 as a showdown, and stamps the viewed flag so a finished
// ceremony does not replay.
type CeremonyService struct {
	standings   historicalStandingsProvider
	viewed      viewedFlagStore
	commentator Commentator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	store       *sessionStore
}

// CeremonyConfig governs session behaviour.
type CeremonyConfig struct {
	SessionTTL time.Duration
}

// NewCeremonyService wires ceremony dependencies.
func NewCeremonyService(
	standings historicalStandingsProvider,
	viewed viewedFlagStore,
	commentator Commentator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg CeremonyConfig,
) *CeremonyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if commentator == nil {
		commentator = CannedCommentator{}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	return &CeremonyService{
		standings:   standings,
		viewed:      viewed,
		commentator: commentator,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		store:       newSessionStore(cfg.SessionTTL),
	}
}

// StartCeremonyRequest opens a reveal session for one completed month.
// Scope is a league in team mode and a class id in hero mode.
type StartCeremonyRequest struct {
	Mode     string `json:"mode" validate:"required,oneof=team hero"`
	Scope    string `json:"scope" validate:"required"`
	MonthKey string `json:"month_key" validate:"required,len=7"`
}

// Start opens a session. A ceremony already marked viewed comes back
// idle with nothing to reveal; a failed fetch comes back in the failed
// state with a retry action.
func (s *CeremonyService) Start(ctx context.Context, req StartCeremonyRequest) (*models.CeremonyView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ceremony payload")
	}
	mode := models.CeremonyMode(req.Mode)

	session := &ceremonySession{
		id:        uuid.NewString(),
		mode:      mode,
		scope:     req.Scope,
		monthKey:  req.MonthKey,
		state:     models.CeremonyLoading,
		createdAt: time.Now(),
	}

	alreadyViewed, err := s.viewed.IsViewed(ctx, req.Mode, req.Scope, req.MonthKey)
	if err != nil {
		s.logger.Warn("viewed flag lookup failed", zap.Error(err))
	}
	if alreadyViewed {
		session.state = models.CeremonyIdle
		s.store.Save(session)
		return s.view(session), nil
	}

	s.load(ctx, session)
	s.store.Save(session)
	if s.metrics != nil {
		s.metrics.RecordCeremonyOpened(req.Mode)
	}
	return s.view(session), nil
}

// load fetches and brackets the frozen standings. The fetch honours ctx
// so a viewer navigating away cancels it; nothing is ever revealed from
// incomplete data.
func (s *CeremonyService) load(ctx context.Context, session *ceremonySession) {
	entries, err := s.fetchEntries(ctx, session)
	if err != nil {
		session.state = models.CeremonyFailed
		session.errMsg = appErrors.FromError(err).Message
		s.logger.Warn("ceremony data fetch failed",
			zap.String("scope", session.scope),
			zap.String("month", session.monthKey),
			zap.Error(err),
		)
		return
	}
	ranked := GroupBrackets(entries)
	// Reveal order runs from the worst rank up to the winner.
	session.brackets = make([]models.RankBracket, 0, len(ranked))
	for i := len(ranked) - 1; i >= 0; i-- {
		session.brackets = append(session.brackets, ranked[i])
	}
	session.cursor = 0
	session.revealed = nil
	session.finalists = nil
	session.winner = nil
	session.runnerUp = nil
	session.errMsg = ""
	if len(session.brackets) == 0 {
		session.state = models.CeremonyEnded
		return
	}
	session.state = models.CeremonyRevealing
}

func (s *CeremonyService) fetchEntries(ctx context.Context, session *ceremonySession) ([]models.CeremonyEntry, error) {
	if session.mode == models.ModeTeam {
		standings, err := s.standings.HistoricalClassStandings(ctx, session.scope, session.monthKey)
		if err != nil {
			return nil, err
		}
		entries := make([]models.CeremonyEntry, 0, len(standings))
		for _, st := range standings {
			entries = append(entries, models.CeremonyEntry{ID: st.ClassID, Name: st.Name, Score: st.MonthlyStars, Rank: st.Rank})
		}
		return entries, nil
	}
	standings, err := s.standings.HistoricalStudentStandings(ctx, session.scope, session.monthKey)
	if err != nil {
		return nil, err
	}
	entries := make([]models.CeremonyEntry, 0, len(standings))
	for _, st := range standings {
		entries = append(entries, models.CeremonyEntry{ID: st.StudentID, Name: st.FullName, Score: st.Score, Rank: st.Rank})
	}
	return entries, nil
}

// Get returns the current session snapshot.
func (s *CeremonyService) Get(sessionID string) (*models.CeremonyView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return s.view(session), nil
}

// Advance reveals the next rank bracket, or arms the showdown when
// exactly the two single finalists remain.
func (s *CeremonyService) Advance(ctx context.Context, sessionID string) (*models.CeremonyView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	switch session.state {
	case models.CeremonyRevealing:
		if s.armShowdown(session) {
			return s.view(session), nil
		}
		s.revealNext(ctx, session, true)
	case models.CeremonyWinnerRevealed:
		s.end(ctx, session)
	case models.CeremonyShowdownPending, models.CeremonyEnded, models.CeremonyIdle, models.CeremonyFailed:
		// No-op: showdown waits for the explicit winner reveal, terminal
		// states stay put.
	}
	return s.view(session), nil
}

// armShowdown checks the final 1-vs-2 condition: two brackets left,
// ranks 2 then 1, one finalist each.
func (s *CeremonyService) armShowdown(session *ceremonySession) bool {
	remaining := session.brackets[session.cursor:]
	if len(remaining) != 2 {
		return false
	}
	if remaining[0].Rank != 2 || remaining[1].Rank != 1 {
		return false
	}
	if len(remaining[0].Entries) != 1 || len(remaining[1].Entries) != 1 {
		return false
	}
	// Presented in bracket order, undifferentiated until RevealWinner.
	session.finalists = []models.CeremonyEntry{remaining[0].Entries[0], remaining[1].Entries[0]}
	session.state = models.CeremonyShowdownPending
	return true
}

func (s *CeremonyService) revealNext(ctx context.Context, session *ceremonySession, withCommentary bool) {
	if session.cursor >= len(session.brackets) {
		session.state = models.CeremonyWinnerRevealed
		return
	}
	bracket := session.brackets[session.cursor]
	revealed := models.RevealedBracket{RankBracket: bracket}
	if withCommentary {
		line, err := s.commentator.GenerateLine(ctx, CommentaryContext{
			Entries: bracket.Entries,
			Rank:    bracket.Rank,
			Mode:    session.mode,
		})
		if err != nil {
			s.logger.Warn("commentary generation failed, using canned line", zap.Error(err))
			line, _ = CannedCommentator{}.GenerateLine(ctx, CommentaryContext{
				Entries: bracket.Entries,
				Rank:    bracket.Rank,
				Mode:    session.mode,
			})
		}
		revealed.Commentary = line
	}
	session.revealed = append(session.revealed, revealed)
	session.cursor++

	if session.cursor == len(session.brackets) {
		// Last bracket shown without a showdown (e.g. a tied top group).
		if bracket.Rank == 1 && len(bracket.Entries) == 1 {
			winner := bracket.Entries[0]
			session.winner = &winner
		}
		session.state = models.CeremonyWinnerRevealed
		s.markViewed(ctx, session)
	}
}

// RevealWinner resolves the showdown, promoting the rank-1 finalist.
func (s *CeremonyService) RevealWinner(ctx context.Context, sessionID string) (*models.CeremonyView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state != models.CeremonyShowdownPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no showdown pending")
	}
	for i := range session.finalists {
		finalist := session.finalists[i]
		if finalist.Rank == 1 {
			session.winner = &finalist
		} else {
			session.runnerUp = &finalist
		}
	}
	// Both showdown brackets count as revealed now, runner-up first.
	remaining := session.brackets[session.cursor:]
	session.revealed = append(session.revealed,
		models.RevealedBracket{RankBracket: remaining[0]},
		models.RevealedBracket{RankBracket: remaining[1]},
	)
	session.cursor = len(session.brackets)
	session.state = models.CeremonyWinnerRevealed
	s.markViewed(ctx, session)
	if s.metrics != nil {
		s.metrics.RecordCeremonyEnded()
	}
	return s.view(session), nil
}

// Skip fast-forwards the reveal, keeping the final suspense beat: the
// last two brackets stay unrevealed. With fewer than two remaining the
// ceremony ends outright.
func (s *CeremonyService) Skip(ctx context.Context, sessionID string) (*models.CeremonyView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state != models.CeremonyRevealing {
		return s.view(session), nil
	}
	remaining := len(session.brackets) - session.cursor
	if remaining < 2 {
		s.end(ctx, session)
		return s.view(session), nil
	}
	for session.cursor < len(session.brackets)-2 {
		session.revealed = append(session.revealed, models.RevealedBracket{RankBracket: session.brackets[session.cursor]})
		session.cursor++
	}
	return s.view(session), nil
}

// Retry re-runs the data fetch from the failed state.
func (s *CeremonyService) Retry(ctx context.Context, sessionID string) (*models.CeremonyView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state != models.CeremonyFailed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is not in a failed state")
	}
	session.state = models.CeremonyLoading
	s.load(ctx, session)
	return s.view(session), nil
}

// End closes the session and stamps the viewed flag.
func (s *CeremonyService) End(ctx context.Context, sessionID string) (*models.CeremonyView, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	s.end(ctx, session)
	return s.view(session), nil
}

func (s *CeremonyService) end(ctx context.Context, session *ceremonySession) {
	if session.state == models.CeremonyEnded {
		return
	}
	session.state = models.CeremonyEnded
	s.markViewed(ctx, session)
	if s.metrics != nil {
		s.metrics.RecordCeremonyEnded()
	}
}

// markViewed is idempotent; the flag keys on (mode, scope, month).
func (s *CeremonyService) markViewed(ctx context.Context, session *ceremonySession) {
	if err := s.viewed.MarkViewed(ctx, string(session.mode), session.scope, session.monthKey); err != nil {
		s.logger.Warn("marking ceremony viewed failed", zap.Error(err))
	}
}

func (s *CeremonyService) session(id string) (*ceremonySession, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session id is required")
	}
	session, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "ceremony session not found or expired")
	}
	return session, nil
}

func (s *CeremonyService) view(session *ceremonySession) *models.CeremonyView {
	view := &models.CeremonyView{
		SessionID: session.id,
		Mode:      session.mode,
		Scope:     session.scope,
		MonthKey:  session.monthKey,
		State:     session.state,
		Remaining: len(session.brackets) - session.cursor,
		Revealed:  append([]models.RevealedBracket(nil), session.revealed...),
		Winner:    session.winner,
		RunnerUp:  session.runnerUp,
		Error:     session.errMsg,
	}
	if session.state == models.CeremonyShowdownPending {
		view.Finalists = append([]models.CeremonyEntry(nil), session.finalists...)
	}
	return view
}
