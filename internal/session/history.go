package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"memorix/internal/telemetry"
)

const (
	// historyCap bounds per-player history; the oldest summary is evicted
	// first once the ring is full.
	historyCap = 1000

	// A gap this long between rounds starts a new session.
	sessionGap = 30 * time.Minute
)

// RoundSummary is the per-round slice of history the rolling statistics are
// computed from.
type RoundSummary struct {
	At             time.Time
	DurationMs     int
	CorrectSteps   int
	Perfect        bool
	Passed         bool
	MeanReactionMs float64
}

// Stats are the session/history counters attached to a feature row, computed
// as of the round just recorded (inclusive).
type Stats struct {
	SessionID          string
	RoundInSession     int
	SessionAvgDuration float64
	PerfectStreak      int
	Rounds24h          int
	Rounds7d           int
	SuccessRate7d      float64
	AvgCorrectSteps7d  float64
	ReactionTrendSlope float64
}

// Tracker keeps in-memory, process-lifetime history per player. Nothing here
// survives a restart; that is a stated limitation, not a defect.
type Tracker struct {
	mu      sync.Mutex
	players map[string]*playerState
	now     func() time.Time
}

type playerState struct {
	history ring

	sessionID       string
	sessionRounds   int
	sessionDuration int64 // ms, summed over the session
	lastRoundAt     time.Time
}

func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{players: make(map[string]*playerState), now: now}
}

// Record appends a round summary to the player's history and returns the
// rolling statistics including that round.
func (t *Tracker) Record(playerID string, sum RoundSummary) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	p := t.players[playerID]
	if p == nil {
		p = &playerState{history: newRing(historyCap)}
		t.players[playerID] = p
	}
	if p.sessionID == "" || now.Sub(p.lastRoundAt) > sessionGap {
		p.sessionID = uuid.New().String()
		p.sessionRounds = 0
		p.sessionDuration = 0
	}

	p.history.push(sum)
	p.sessionRounds++
	p.sessionDuration += int64(sum.DurationMs)
	p.lastRoundAt = now

	return t.statsLocked(p, now)
}

func (t *Tracker) statsLocked(p *playerState, now time.Time) Stats {
	s := Stats{
		SessionID:          p.sessionID,
		RoundInSession:     p.sessionRounds,
		SessionAvgDuration: float64(p.sessionDuration) / float64(p.sessionRounds),
		PerfectStreak:      p.history.perfectStreak(),
	}

	var reactions []float64
	var correctSum7d, passed7d, in7d int
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	p.history.each(func(r RoundSummary) {
		if r.MeanReactionMs > 0 {
			reactions = append(reactions, r.MeanReactionMs)
		}
		if r.At.After(dayAgo) {
			s.Rounds24h++
		}
		if r.At.After(weekAgo) {
			in7d++
			correctSum7d += r.CorrectSteps
			if r.Passed {
				passed7d++
			}
		}
	})

	s.Rounds7d = in7d
	if in7d > 0 {
		s.SuccessRate7d = float64(passed7d) / float64(in7d)
		s.AvgCorrectSteps7d = float64(correctSum7d) / float64(in7d)
	}
	s.ReactionTrendSlope = telemetry.TrendSlope(reactions)
	return s
}

// ring is a fixed-capacity buffer of round summaries, evicting oldest-first.
type ring struct {
	entries []RoundSummary
	start   int // index of the oldest entry
	size    int
}

func newRing(capacity int) ring {
	return ring{entries: make([]RoundSummary, capacity)}
}

func (r *ring) push(e RoundSummary) {
	if r.size < len(r.entries) {
		r.entries[(r.start+r.size)%len(r.entries)] = e
		r.size++
		return
	}
	// Full: overwrite the oldest slot and advance.
	r.entries[r.start] = e
	r.start = (r.start + 1) % len(r.entries)
}

// each visits summaries oldest to newest.
func (r *ring) each(fn func(RoundSummary)) {
	for i := 0; i < r.size; i++ {
		fn(r.entries[(r.start+i)%len(r.entries)])
	}
}

// perfectStreak scans backward from the most recent entry until the first
// non-perfect round.
func (r *ring) perfectStreak() int {
	streak := 0
	for i := r.size - 1; i >= 0; i-- {
		if !r.entries[(r.start+i)%len(r.entries)].Perfect {
			break
		}
		streak++
	}
	return streak
}
