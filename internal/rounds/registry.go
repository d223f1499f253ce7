package rounds

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("round not found")
	ErrUnauthorized = errors.New("round belongs to another player")
)

const sweepInterval = 10 * time.Second

// Registry holds the live rounds. It is the single source of truth for
// whether a round is still playable: a round leaves the map exactly once,
// on submit or when the sweep retires it as abandoned.
type Registry struct {
	mu     sync.Mutex
	rounds map[string]*Round

	now       func() time.Time
	grace     time.Duration
	onAbandon func(*Round)
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewRegistry builds a registry with an injected clock. onAbandon is called
// (outside the lock) for every round the sweep retires; it may be nil.
func NewRegistry(now func() time.Time, grace time.Duration, onAbandon func(*Round)) *Registry {
	if now == nil {
		now = time.Now
	}
	r := &Registry{
		rounds:    make(map[string]*Round),
		now:       now,
		grace:     grace,
		onAbandon: onAbandon,
		stop:      make(chan struct{}),
	}
	go r.sweepAbandoned()
	return r
}

// Start stores a new round for the given puzzle and returns it. Nothing
// stops a player from holding several concurrent rounds.
func (r *Registry) Start(playerID string, kind Kind, diff Difficulty, level, dateKey int) *Round {
	round := &Round{
		ID:         uuid.New().String(),
		PlayerID:   playerID,
		Sequence:   GenerateSequence(diff.GridSize, diff.Steps),
		Difficulty: diff,
		Kind:       kind,
		Level:      level,
		DateKey:    dateKey,
		StartedAt:  r.now(),
	}
	r.mu.Lock()
	r.rounds[round.ID] = round
	r.mu.Unlock()
	return round
}

// Take looks up and removes the round in one step. A second Take for the
// same ID reports ErrNotFound; a mismatched player leaves the round
// registered and reports ErrUnauthorized.
func (r *Registry) Take(roundID, playerID string) (*Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[roundID]
	if !ok {
		return nil, ErrNotFound
	}
	if round.PlayerID != playerID {
		return nil, ErrUnauthorized
	}
	delete(r.rounds, roundID)
	return round, nil
}

// Len reports the number of live rounds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rounds)
}

// Close stops the background sweep.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Registry) sweepAbandoned() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

// sweepOnce retires every round older than its time limit plus the grace
// period, so an abandoned round cannot live in the map forever.
func (r *Registry) sweepOnce() {
	now := r.now()
	var expired []*Round

	r.mu.Lock()
	for id, round := range r.rounds {
		deadline := round.StartedAt.Add(time.Duration(round.TimeLimitMs)*time.Millisecond + r.grace)
		if now.After(deadline) {
			delete(r.rounds, id)
			expired = append(expired, round)
		}
	}
	r.mu.Unlock()

	for _, round := range expired {
		log.Printf("[Registry] Abandoned round %s retired (player %s)\n", round.ID, round.PlayerID)
		if r.onAbandon != nil {
			r.onAbandon(round)
		}
	}
}
