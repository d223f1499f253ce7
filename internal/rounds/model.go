package rounds

import "time"

// Kind distinguishes the open-ended progression mode from the fixed daily
// challenge.
type Kind string

const (
	KindProgression = Kind("PROGRESSION")
	KindDaily       = Kind("DAILY")
)

// Difficulty is the puzzle shape handed to the client for one round.
type Difficulty struct {
	GridSize       int
	Steps          int
	TimeLimitMs    int
	ShowDurationMs int
	IntervalMs     int
}

// Round is one live play of the puzzle. Owned exclusively by the Registry
// from start until submit or expiry; never reused.
type Round struct {
	ID       string
	PlayerID string
	Sequence []int
	Difficulty
	Kind      Kind
	Level     int // progression rounds only
	DateKey   int // daily rounds only, yyyymmdd
	StartedAt time.Time
}

// Elapsed returns wall time since the round started.
func (r *Round) Elapsed(now time.Time) time.Duration {
	return now.Sub(r.StartedAt)
}

// CorrectSteps walks the clicked tiles against the expected sequence in
// lockstep and returns the length of the longest matching prefix. Trailing
// clicks after the first mismatch never count.
func CorrectSteps(sequence, clicked []int) int {
	n := 0
	for i := 0; i < len(sequence) && i < len(clicked); i++ {
		if clicked[i] != sequence[i] {
			break
		}
		n++
	}
	return n
}
