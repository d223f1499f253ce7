package rounds

import (
	"math/rand"

	"memorix/internal/config"
)

// ProgressionDifficulty derives the puzzle shape for a progression level.
// Grid size and step count grow with level up to their maxima; the timing
// parameters shrink down to their minima.
func ProgressionDifficulty(cfg config.ProgressionConfig, level int) Difficulty {
	if level < 1 {
		level = 1
	}

	gridSize := cfg.BaseGridSize + (level-1)/cfg.GridSizeIncreaseEvery
	if gridSize > cfg.MaxGridSize {
		gridSize = cfg.MaxGridSize
	}

	steps := int(float64(cfg.BaseSteps) + float64(level-1)*cfg.StepsIncreaseRate)
	if steps > cfg.MaxSteps {
		steps = cfg.MaxSteps
	}

	return Difficulty{
		GridSize:       gridSize,
		Steps:          steps,
		TimeLimitMs:    clampMin(cfg.BaseTimeLimitMs-(level-1)*cfg.TimeLimitDecreaseMs, cfg.MinTimeLimitMs),
		ShowDurationMs: clampMin(cfg.BaseShowDurationMs-(level-1)*cfg.ShowDecreaseMs, cfg.MinShowDurationMs),
		IntervalMs:     clampMin(cfg.BaseIntervalMs-(level-1)*cfg.IntervalDecreaseMs, cfg.MinIntervalMs),
	}
}

// DailyDifficulty is the fixed challenge shape; it does not vary by player
// or date.
func DailyDifficulty(cfg config.DailyConfig) Difficulty {
	return Difficulty{
		GridSize:       cfg.GridSize,
		Steps:          cfg.Steps,
		TimeLimitMs:    cfg.TimeLimitMs,
		ShowDurationMs: cfg.ShowDurationMs,
		IntervalMs:     cfg.IntervalMs,
	}
}

// GenerateSequence samples steps tile indices uniformly in [0, gridSize²).
// Consecutive repeats are allowed.
func GenerateSequence(gridSize, steps int) []int {
	maxIndex := gridSize * gridSize
	seq := make([]int, steps)
	for i := range seq {
		seq[i] = rand.Intn(maxIndex)
	}
	return seq
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}
