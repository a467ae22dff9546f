package models

// CeremonyMode selects which standings a reveal walks through.
type CeremonyMode string

const (
	// ModeTeam reveals class standings for a league.
	ModeTeam CeremonyMode = "team"
	// ModeHero reveals student standings for a class.
	ModeHero CeremonyMode = "hero"
)

// CeremonyState enumerates the reveal machine states.
type CeremonyState string

const (
	CeremonyIdle            CeremonyState = "idle"
	CeremonyLoading         CeremonyState = "loading"
	CeremonyRevealing       CeremonyState = "revealing"
	CeremonyShowdownPending CeremonyState = "showdown_pending"
	CeremonyWinnerRevealed  CeremonyState = "winner_revealed"
	CeremonyEnded           CeremonyState = "ended"
	CeremonyFailed          CeremonyState = "failed"
)

// CeremonyEntry is one contender inside a rank bracket.
type CeremonyEntry struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// RankBracket groups consecutive standings entries sharing a rank;
// tied entries are revealed together.
type RankBracket struct {
	Rank    int             `json:"rank"`
	Podium  bool            `json:"podium"`
	Entries []CeremonyEntry `json:"entries"`
}

// RevealedBracket is a bracket after its reveal step, with the
// commentary line attached.
type RevealedBracket struct {
	RankBracket
	Commentary string `json:"commentary,omitempty"`
}

// CeremonyView is the externally visible session snapshot.
type CeremonyView struct {
	SessionID string        `json:"session_id"`
	Mode      CeremonyMode  `json:"mode"`
	Scope     string        `json:"scope"`
	MonthKey  string        `json:"month_key"`
	State     CeremonyState `json:"state"`
	// Remaining counts brackets not yet revealed.
	Remaining int               `json:"remaining"`
	Revealed  []RevealedBracket `json:"revealed"`
	// Finalists is populated only in the showdown state, in input order
	// so the pair stays undifferentiated until the winner reveal.
	Finalists []CeremonyEntry `json:"finalists,omitempty"`
	Winner    *CeremonyEntry  `json:"winner,omitempty"`
	RunnerUp  *CeremonyEntry  `json:"runner_up,omitempty"`
	Error     string          `json:"error,omitempty"`
}
