package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"memorix/internal/anticheat"
	"memorix/internal/config"
	"memorix/internal/dataset"
	"memorix/internal/ledger"
	"memorix/internal/live"
	"memorix/internal/rounds"
	"memorix/internal/scoring"
	"memorix/internal/session"
	"memorix/internal/telemetry"
)

type Server struct {
	Cfg      config.Config
	Rounds   *rounds.Registry
	Sessions *session.Tracker
	Dataset  *dataset.Store
	Ledger   ledger.Ledger // nil if no database configured
	Feed     *live.Hub

	now func() time.Time

	levelMu sync.Mutex
	levels  map[string]int // progression level cache, seeded from the ledger
}

func New(cfg config.Config, store *dataset.Store, lgr ledger.Ledger, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	return &Server{
		Cfg:      cfg,
		Sessions: session.NewTracker(now),
		Dataset:  store,
		Ledger:   lgr,
		Feed:     live.NewHub(),
		now:      now,
		levels:   make(map[string]int),
	}
}

type startRequest struct {
	PlayerID string `json:"playerId"`
	Level    int    `json:"level,omitempty"`
}

type startResponse struct {
	RoundID        string `json:"roundId"`
	Sequence       []int  `json:"sequence"`
	GridSize       int    `json:"gridSize"`
	Steps          int    `json:"steps"`
	ShowDurationMs int    `json:"showDurationMs"`
	IntervalMs     int    `json:"intervalMs"`
	TimeLimitMs    int    `json:"timeLimitMs"`
	Level          int    `json:"level,omitempty"`
	DateKey        int    `json:"dateKey,omitempty"`
}

type submitRequest struct {
	RoundID  string            `json:"roundId"`
	PlayerID string            `json:"playerId"`
	Clicks   []telemetry.Click `json:"clicks"`
	Sample   telemetry.Sample  `json:"telemetry"`
}

// roundResult is the part of a submit response both modes share.
type roundResult struct {
	Score        int  `json:"score"`
	CorrectSteps int  `json:"correctSteps"`
	TotalSteps   int  `json:"totalSteps"`
	ElapsedMs    int  `json:"elapsedMs"`
	TimeExpired  bool `json:"timeExpired"`
	Verified     bool `json:"verified"`
	IsPerfect    bool `json:"isPerfect"`
}

type infiniteResult struct {
	roundResult
	CanContinue bool   `json:"canContinue"`
	NextLevel   int    `json:"nextLevel"`
	Message     string `json:"message"`
}

type dailyResult struct {
	roundResult
	Passed       bool   `json:"passed"`
	RewardEarned bool   `json:"rewardEarned"`
	Message      string `json:"message"`
}

type apiError struct {
	Kind    string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Handle] Encoding response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, apiError{Kind: kind, Message: message})
}

// takeRound resolves a submit's round or writes the tagged error outcome.
func (s *Server) takeRound(w http.ResponseWriter, req submitRequest) (*rounds.Round, bool) {
	round, err := s.Rounds.Take(req.RoundID, req.PlayerID)
	switch {
	case errors.Is(err, rounds.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "round not found")
		return nil, false
	case errors.Is(err, rounds.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "UNAUTHORIZED", "round belongs to another player")
		return nil, false
	}
	return round, true
}

// verdict is everything derived from one submission before it is persisted.
type verdict struct {
	sample       telemetry.Sample
	correctSteps int
	elapsedMs    int
	score        int
	perfect      bool
	expired      bool
	passed       bool
	verification anticheat.Result
	features     telemetry.Features
	stats        session.Stats
}

// judge runs the shared submit pipeline: correctness, timing, score,
// verification, feature extraction, and the history update.
func (s *Server) judge(round *rounds.Round, req submitRequest) verdict {
	now := s.now()

	sample := req.Sample
	if len(sample.Clicks) == 0 {
		sample.Clicks = req.Clicks
	}
	if sample.TurnStartTs == 0 {
		sample.TurnStartTs = round.StartedAt.UnixMilli()
	}

	v := verdict{sample: sample}
	v.correctSteps = rounds.CorrectSteps(round.Sequence, sample.ClickedTiles())
	v.elapsedMs = int(round.Elapsed(now).Milliseconds())
	v.perfect = v.correctSteps == round.Steps
	v.expired = v.elapsedMs > round.TimeLimitMs
	v.passed = v.perfect && !v.expired

	switch round.Kind {
	case rounds.KindDaily:
		v.score = scoring.Daily(s.Cfg.Daily, v.correctSteps, round.Steps, v.elapsedMs, round.TimeLimitMs)
	default:
		v.score = scoring.Progression(s.Cfg.Progression, v.correctSteps, round.Steps, v.elapsedMs, round.TimeLimitMs, round.Level)
	}

	v.verification = anticheat.Verify(s.Cfg.AntiCheat, sample)
	if !v.verification.Passed {
		anticheatFailures.Inc()
		log.Printf("[AntiCheat] Round %s failed verification: %v\n", round.ID, v.verification.Reasons)
	}

	v.features = telemetry.Extract(round.Sequence, sample)
	v.stats = s.Sessions.Record(round.PlayerID, session.RoundSummary{
		At:             now,
		DurationMs:     v.elapsedMs,
		CorrectSteps:   v.correctSteps,
		Perfect:        v.perfect,
		Passed:         v.passed,
		MeanReactionMs: v.features.Reaction.Mean,
	})
	return v
}

// persist appends the feature row and, when enabled, the raw dump for one
// finished round. Enqueue only; durability is the dataset store's problem.
func (s *Server) persist(round *rounds.Round, v verdict) {
	playerHash := telemetry.Fingerprint(round.PlayerID)
	timestamp := s.now().UTC().Format(time.RFC3339)
	f := v.features

	s.Dataset.AppendRow(dataset.FeatureRow{
		RoundID:    round.ID,
		PlayerHash: playerHash,
		Timestamp:  timestamp,
		RoundKind:  string(round.Kind),
		Level:      round.Level,
		DateKey:    round.DateKey,

		GridSize:      round.GridSize,
		Steps:         round.Steps,
		CorrectSteps:  v.correctSteps,
		TimeElapsedMs: v.elapsedMs,
		TimeLimitMs:   round.TimeLimitMs,
		IsPerfect:     v.perfect,
		TimeExpired:   v.expired,

		Verified:            v.verification.Passed,
		VerificationReasons: v.verification.Reasons,
		Score:               v.score,

		MeanReaction:    f.Reaction.Mean,
		StdReaction:     f.Reaction.Std,
		MinReaction:     f.Reaction.Min,
		MaxReaction:     f.Reaction.Max,
		EntropyReaction: f.Reaction.Entropy,

		MeanInterClick:    f.InterClick.Mean,
		StdInterClick:     f.InterClick.Std,
		MinInterClick:     f.InterClick.Min,
		MaxInterClick:     f.InterClick.Max,
		EntropyInterClick: f.InterClick.Entropy,

		MeanClickX:      f.MeanNormX,
		StdClickX:       f.StdNormX,
		MeanClickY:      f.MeanNormY,
		StdClickY:       f.StdNormY,
		PositionEntropy: f.PositionEntropy,

		PointerMoveCount:       f.Pointer.Count,
		PointerTotalDistance:   f.Pointer.TotalDistance,
		PointerAvgSpeed:        f.Pointer.AvgSpeed,
		PointerMaxSpeed:        f.Pointer.MaxSpeed,
		PointerDirectionChange: f.Pointer.DirectionChanges,
		PointerAccelChanges:    f.Pointer.AccelSignChanges,
		PointerPauseCount:      f.Pointer.PauseCount,
		PointerIdleRatio:       f.Pointer.IdleRatio,

		MisclickCount:  f.MisclickCount,
		DoubleClicks:   f.DoubleClicks,
		Hesitations:    f.Hesitations,
		OvershootCount: f.OvershootCount,
		DominantMethod: f.DominantMethod,

		SessionIDHash:      telemetry.Fingerprint(v.stats.SessionID),
		RoundInSession:     v.stats.RoundInSession,
		SessionAvgDuration: v.stats.SessionAvgDuration,
		PerfectStreak:      v.stats.PerfectStreak,
		Rounds24h:          v.stats.Rounds24h,
		Rounds7d:           v.stats.Rounds7d,
		SuccessRate7d:      v.stats.SuccessRate7d,
		AvgCorrectSteps7d:  v.stats.AvgCorrectSteps7d,
		ReactionTrendSlope: v.stats.ReactionTrendSlope,

		DeviceHash: f.DeviceHash,
	})

	s.Dataset.AppendRaw(dataset.RawRound{
		RoundID:    round.ID,
		PlayerHash: playerHash,
		Timestamp:  timestamp,
		RoundKind:  string(round.Kind),
		Sequence:   round.Sequence,
		Sample:     v.sample,
	})
}

func (s *Server) handleStartInfinite(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "player identity required")
		return
	}

	level := req.Level
	if level < 1 {
		level = s.playerLevel(req.PlayerID)
	}
	diff := rounds.ProgressionDifficulty(s.Cfg.Progression, level)
	round := s.Rounds.Start(req.PlayerID, rounds.KindProgression, diff, level, 0)
	roundsStarted.WithLabelValues("progression").Inc()

	writeJSON(w, http.StatusOK, startResponse{
		RoundID:        round.ID,
		Sequence:       round.Sequence,
		GridSize:       round.GridSize,
		Steps:          round.Steps,
		ShowDurationMs: round.ShowDurationMs,
		IntervalMs:     round.IntervalMs,
		TimeLimitMs:    round.TimeLimitMs,
		Level:          round.Level,
	})
}

func (s *Server) handleSubmitInfinite(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed submission")
		return
	}
	round, ok := s.takeRound(w, req)
	if !ok {
		return
	}

	v := s.judge(round, req)
	s.persist(round, v)
	roundsSubmitted.WithLabelValues("progression").Inc()

	nextLevel := round.Level
	if v.passed && v.verification.Passed {
		nextLevel = round.Level + 1
		s.setPlayerLevel(round.PlayerID, nextLevel)
		levelUps.Inc()
		log.Printf("[Handle:SubmitInfinite] Level up! %s -> Level %d\n", round.PlayerID, nextLevel)
	}

	verified := v.verification.Passed
	if s.Ledger != nil && v.verification.Passed {
		if err := s.Ledger.RecordProgressionRound(round.PlayerID, v.score, nextLevel, v.elapsedMs, v.passed); err != nil {
			log.Printf("[Ledger] RecordProgressionRound error: %v\n", err)
			verified = false
		}
	}

	s.Feed.Broadcast(live.RoundEvent{
		Type:         live.EventRoundCompleted,
		PlayerHash:   telemetry.Fingerprint(round.PlayerID),
		Kind:         string(round.Kind),
		Level:        round.Level,
		Score:        v.score,
		CorrectSteps: v.correctSteps,
		Perfect:      v.perfect,
		Passed:       v.passed,
	})

	msg := fmt.Sprintf("Got %d/%d correct. Try again!", v.correctSteps, round.Steps)
	if v.passed && v.verification.Passed {
		msg = fmt.Sprintf("Perfect! Level %d complete! Moving to Level %d", round.Level, nextLevel)
	}
	writeJSON(w, http.StatusOK, infiniteResult{
		roundResult: roundResult{
			Score:        v.score,
			CorrectSteps: v.correctSteps,
			TotalSteps:   round.Steps,
			ElapsedMs:    v.elapsedMs,
			TimeExpired:  v.expired,
			Verified:     verified,
			IsPerfect:    v.perfect,
		},
		CanContinue: v.passed && v.verification.Passed,
		NextLevel:   nextLevel,
		Message:     msg,
	})
}

func (s *Server) handleStartDaily(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "player identity required")
		return
	}

	dateKey := dateKeyUTC(s.now())
	if s.Ledger != nil {
		status, err := s.Ledger.ChallengeStatus(dateKey, req.PlayerID)
		if err != nil {
			log.Printf("[Ledger] ChallengeStatus error: %v\n", err)
		} else {
			if status.Completed {
				writeError(w, http.StatusBadRequest, "ALREADY_COMPLETED",
					"You already completed today's challenge. Come back tomorrow!")
				return
			}
			if status.TriesUsed >= s.Cfg.Daily.MaxTriesPerDay {
				writeError(w, http.StatusBadRequest, "TRIES_EXCEEDED",
					fmt.Sprintf("You've used all %d tries today. Come back tomorrow!", s.Cfg.Daily.MaxTriesPerDay))
				return
			}
		}
	}

	diff := rounds.DailyDifficulty(s.Cfg.Daily)
	round := s.Rounds.Start(req.PlayerID, rounds.KindDaily, diff, 0, dateKey)
	roundsStarted.WithLabelValues("daily").Inc()

	writeJSON(w, http.StatusOK, startResponse{
		RoundID:        round.ID,
		Sequence:       round.Sequence,
		GridSize:       round.GridSize,
		Steps:          round.Steps,
		ShowDurationMs: round.ShowDurationMs,
		IntervalMs:     round.IntervalMs,
		TimeLimitMs:    round.TimeLimitMs,
		DateKey:        round.DateKey,
	})
}

func (s *Server) handleSubmitDaily(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed submission")
		return
	}
	round, ok := s.takeRound(w, req)
	if !ok {
		return
	}

	v := s.judge(round, req)
	s.persist(round, v)
	roundsSubmitted.WithLabelValues("daily").Inc()

	verified := v.verification.Passed
	rewardEarned := false
	if s.Ledger != nil && v.verification.Passed {
		err := s.Ledger.RecordChallengeRound(round.PlayerID, round.DateKey, v.score, v.elapsedMs, v.passed, true)
		switch {
		case errors.Is(err, ledger.ErrAlreadyCompleted):
			writeError(w, http.StatusBadRequest, "ALREADY_COMPLETED", "You already completed today's challenge!")
			return
		case err != nil:
			log.Printf("[Ledger] RecordChallengeRound error: %v\n", err)
			verified = false
		default:
			rewardEarned = v.passed
		}
	}

	s.Feed.Broadcast(live.RoundEvent{
		Type:         live.EventRoundCompleted,
		PlayerHash:   telemetry.Fingerprint(round.PlayerID),
		Kind:         string(round.Kind),
		Score:        v.score,
		CorrectSteps: v.correctSteps,
		Perfect:      v.perfect,
		Passed:       v.passed,
	})

	msg := fmt.Sprintf("Got %d/%d correct. Try again!", v.correctSteps, round.Steps)
	if v.expired {
		msg = "Time expired! Try again."
	}
	if v.passed {
		msg = "Perfect! Challenge complete!"
	}
	writeJSON(w, http.StatusOK, dailyResult{
		roundResult: roundResult{
			Score:        v.score,
			CorrectSteps: v.correctSteps,
			TotalSteps:   round.Steps,
			ElapsedMs:    v.elapsedMs,
			TimeExpired:  v.expired,
			Verified:     verified,
			IsPerfect:    v.perfect,
		},
		Passed:       v.passed,
		RewardEarned: rewardEarned,
		Message:      msg,
	})
}

func (s *Server) handleDailyStatus(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("player")
	dateKey := dateKeyUTC(s.now())

	status := ledger.ChallengeStatus{DateKey: dateKey}
	if s.Ledger != nil {
		var err error
		status, err = s.Ledger.ChallengeStatus(dateKey, playerID)
		if err != nil {
			log.Printf("[Ledger] ChallengeStatus error: %v\n", err)
			writeError(w, http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "could not read challenge status")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dateKey":   status.DateKey,
		"triesUsed": status.TriesUsed,
		"maxTries":  s.Cfg.Daily.MaxTriesPerDay,
		"completed": status.Completed,
		"canPlay":   status.TriesUsed < s.Cfg.Daily.MaxTriesPerDay && !status.Completed,
	})
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	if s.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "no ledger configured")
		return
	}
	playerID := r.PathValue("player")
	stats, err := s.Ledger.PlayerStats(playerID)
	if errors.Is(err, ledger.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "player not found")
		return
	}
	if err != nil {
		log.Printf("[Ledger] PlayerStats error: %v\n", err)
		writeError(w, http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "could not read player stats")
		return
	}
	s.setPlayerLevel(playerID, stats.CurrentLevel)

	writeJSON(w, http.StatusOK, map[string]any{
		"playerId":     stats.PlayerID,
		"totalRounds":  stats.TotalRounds,
		"totalScore":   stats.TotalScore,
		"bestScore":    stats.BestScore,
		"currentLevel": stats.CurrentLevel,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "no ledger configured")
		return
	}
	entries, err := s.Ledger.Leaderboard(100)
	if err != nil {
		log.Printf("[Ledger] Leaderboard error: %v\n", err)
		writeError(w, http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "could not read leaderboard")
		return
	}

	board := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		board = append(board, map[string]any{
			"rank":      e.Rank,
			"playerId":  e.PlayerID,
			"level":     e.Level,
			"score":     e.Score,
			"bestScore": e.BestScore,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leaderboard":  board,
		"totalPlayers": len(board),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"progression": s.Cfg.Progression,
		"daily":       s.Cfg.Daily,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Ledger != nil {
		type pinger interface{ Ping() error }
		if p, ok := s.Ledger.(pinger); ok {
			if err := p.Ping(); err != nil {
				writeError(w, http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", err.Error())
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLive upgrades the connection and streams round events until the
// client goes away.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("[Live] Accept error: %v\n", err)
		return
	}

	c := &live.Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, 16),
	}
	s.Feed.Register(c)
	defer s.Feed.Unregister(c.ID)

	c.WritePump(r.Context())
	conn.Close(websocket.StatusNormalClosure, "")
}

// abandonRound is the registry's sweep callback: an unsubmitted round still
// produces a dataset row and a history entry, scored as a total miss.
func (s *Server) abandonRound(round *rounds.Round) {
	now := s.now()
	elapsedMs := int(round.Elapsed(now).Milliseconds())

	stats := s.Sessions.Record(round.PlayerID, session.RoundSummary{
		At:           now,
		DurationMs:   elapsedMs,
		CorrectSteps: 0,
		Perfect:      false,
		Passed:       false,
	})

	s.Dataset.AppendRow(dataset.FeatureRow{
		RoundID:        round.ID,
		PlayerHash:     telemetry.Fingerprint(round.PlayerID),
		Timestamp:      now.UTC().Format(time.RFC3339),
		RoundKind:      string(round.Kind),
		Level:          round.Level,
		DateKey:        round.DateKey,
		GridSize:       round.GridSize,
		Steps:          round.Steps,
		TimeElapsedMs:  elapsedMs,
		TimeLimitMs:    round.TimeLimitMs,
		TimeExpired:    true,
		DominantMethod: telemetry.MethodUnknown,

		SessionIDHash:      telemetry.Fingerprint(stats.SessionID),
		RoundInSession:     stats.RoundInSession,
		SessionAvgDuration: stats.SessionAvgDuration,
		PerfectStreak:      stats.PerfectStreak,
		Rounds24h:          stats.Rounds24h,
		Rounds7d:           stats.Rounds7d,
		SuccessRate7d:      stats.SuccessRate7d,
		AvgCorrectSteps7d:  stats.AvgCorrectSteps7d,
		ReactionTrendSlope: stats.ReactionTrendSlope,
	})

	roundsAbandoned.Inc()
	s.Feed.Broadcast(live.RoundEvent{
		Type:       live.EventRoundAbandoned,
		PlayerHash: telemetry.Fingerprint(round.PlayerID),
		Kind:       string(round.Kind),
		Level:      round.Level,
	})
}

func (s *Server) playerLevel(playerID string) int {
	s.levelMu.Lock()
	level, ok := s.levels[playerID]
	s.levelMu.Unlock()
	if ok {
		return level
	}
	if s.Ledger != nil {
		if stats, err := s.Ledger.PlayerStats(playerID); err == nil && stats.CurrentLevel > 0 {
			s.setPlayerLevel(playerID, stats.CurrentLevel)
			return stats.CurrentLevel
		}
	}
	return 1
}

func (s *Server) setPlayerLevel(playerID string, level int) {
	s.levelMu.Lock()
	s.levels[playerID] = level
	s.levelMu.Unlock()
}

// dateKeyUTC renders a UTC date as yyyymmdd, the daily challenge's key.
func dateKeyUTC(t time.Time) int {
	y, m, d := t.UTC().Date()
	return y*10000 + int(m)*100 + d
}
