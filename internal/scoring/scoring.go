package scoring

import (
	"math"

	"memorix/internal/config"
)

// Both modes share the same skeleton:
//
//	score = floor(basePoints×percentCorrect + timeBonus)
//
// with a second floor after the perfect-round multiplier. The progression
// variant then compounds a per-level multiplier, floored only at the end.

// Progression scores an open-ended round at the given level.
func Progression(cfg config.ProgressionConfig, correctSteps, totalSteps, elapsedMs, timeLimitMs, level int) int {
	score := base(correctSteps, totalSteps, elapsedMs, timeLimitMs,
		cfg.PointsPerStep, cfg.TimeBonusPerMs, cfg.PerfectMultiplier)
	if level < 1 {
		level = 1
	}
	return int(math.Floor(float64(score) * math.Pow(cfg.LevelMultiplier, float64(level-1))))
}

// Daily scores a daily challenge round; fixed constants, no level multiplier.
func Daily(cfg config.DailyConfig, correctSteps, totalSteps, elapsedMs, timeLimitMs int) int {
	return base(correctSteps, totalSteps, elapsedMs, timeLimitMs,
		cfg.PointsPerStep, cfg.TimeBonusPerMs, cfg.PerfectMultiplier)
}

func base(correctSteps, totalSteps, elapsedMs, timeLimitMs, pointsPerStep int, bonusPerMs, perfectMultiplier float64) int {
	basePoints := float64(totalSteps * pointsPerStep)
	percentCorrect := 0.0
	if totalSteps > 0 {
		percentCorrect = float64(correctSteps) / float64(totalSteps)
	}
	timeLeftMs := timeLimitMs - elapsedMs
	if timeLeftMs < 0 {
		timeLeftMs = 0
	}
	timeBonus := math.Floor(float64(timeLeftMs) * bonusPerMs)

	score := math.Floor(basePoints*percentCorrect + timeBonus)
	if correctSteps == totalSteps && totalSteps > 0 {
		score = math.Floor(score * perfectMultiplier)
	}
	return int(score)
}
