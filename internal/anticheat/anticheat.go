package anticheat

import (
	"memorix/internal/config"
	"memorix/internal/telemetry"
)

// Result is the verifier's verdict for one submitted round. A failed result
// keeps the round off the ledger but never hides the score from the player.
type Result struct {
	Passed  bool
	Reasons []string
}

// Verify applies the reaction-time heuristic to a submitted sample. With
// anti-cheat disabled, or with no clicks to judge, the round passes.
func Verify(cfg config.AntiCheatConfig, sample telemetry.Sample) Result {
	if !cfg.Enabled {
		return Result{Passed: true}
	}
	if len(sample.Clicks) == 0 {
		return Result{Passed: true}
	}

	reactions := sample.ReactionTimes()
	total := 0.0
	for _, rt := range reactions {
		total += rt
	}
	avg := total / float64(len(reactions))

	if avg < float64(cfg.MinReactionTimeMs) {
		return Result{Passed: false, Reasons: []string{"suspiciously fast reactions"}}
	}
	return Result{Passed: true}
}
