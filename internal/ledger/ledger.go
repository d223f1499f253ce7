package ledger

import "errors"

// The ledger persists player stats and round outcomes. This core only
// consumes it: every call is best-effort, and a failing ledger never blocks
// a player from seeing their computed score.

var (
	ErrAlreadyCompleted = errors.New("daily challenge already completed")
	ErrNotFound         = errors.New("player not found")
)

type PlayerStats struct {
	PlayerID     string
	TotalRounds  int
	TotalScore   int64
	BestScore    int
	CurrentLevel int
}

type ChallengeStatus struct {
	DateKey   int
	TriesUsed int
	Completed bool
}

type Entry struct {
	Rank      int
	PlayerID  string
	Level     int
	Score     int64
	BestScore int
}

type Ledger interface {
	RecordProgressionRound(playerID string, score, newLevel, elapsedMs int, passed bool) error
	RecordChallengeRound(playerID string, dateKey, score, elapsedMs int, passed, verified bool) error
	PlayerStats(playerID string) (PlayerStats, error)
	ChallengeStatus(dateKey int, playerID string) (ChallengeStatus, error)
	Leaderboard(limit int) ([]Entry, error)
}
