package telemetry

import (
	"math"
	"testing"
)

func TestSummarizePath_Empty(t *testing.T) {
	s := SummarizePath(nil)
	if s.Count != 0 || s.TotalDistance != 0 || s.IdleRatio != 0 {
		t.Errorf("empty path stats = %+v, want zeros", s)
	}
}

func TestSummarizePath_SingleSample(t *testing.T) {
	s := SummarizePath([]PointerSample{{X: 10, Y: 10, Ts: 0}})
	if s.Count != 1 || s.TotalDistance != 0 {
		t.Errorf("single sample stats = %+v, want count 1, distance 0", s)
	}
}

func TestSummarizePath_StraightLine(t *testing.T) {
	// 4 samples, 100px every 100ms: speed 1 px/ms, no turns, no pauses.
	path := []PointerSample{
		{X: 0, Y: 0, Ts: 0},
		{X: 100, Y: 0, Ts: 100},
		{X: 200, Y: 0, Ts: 200},
		{X: 300, Y: 0, Ts: 300},
	}
	s := SummarizePath(path)
	if s.TotalDistance != 300 {
		t.Errorf("TotalDistance = %v, want 300", s.TotalDistance)
	}
	if math.Abs(s.AvgSpeed-1.0) > 1e-9 || math.Abs(s.MaxSpeed-1.0) > 1e-9 {
		t.Errorf("speeds = %v/%v, want 1/1", s.AvgSpeed, s.MaxSpeed)
	}
	if s.DirectionChanges != 0 {
		t.Errorf("DirectionChanges = %d, want 0", s.DirectionChanges)
	}
	if s.PauseCount != 0 || s.IdleRatio != 0 {
		t.Errorf("pauses = %d, idle = %v, want 0/0", s.PauseCount, s.IdleRatio)
	}
}

func TestSummarizePath_DirectionChange(t *testing.T) {
	// Sharp right-angle turn exceeds the π/4 threshold.
	path := []PointerSample{
		{X: 0, Y: 0, Ts: 0},
		{X: 100, Y: 0, Ts: 100},
		{X: 100, Y: 100, Ts: 200},
	}
	s := SummarizePath(path)
	if s.DirectionChanges != 1 {
		t.Errorf("DirectionChanges = %d, want 1", s.DirectionChanges)
	}
}

func TestSummarizePath_PausesAndIdleRatio(t *testing.T) {
	// Two near-stationary segments out of four samples.
	path := []PointerSample{
		{X: 0, Y: 0, Ts: 0},
		{X: 1, Y: 0, Ts: 100}, // 0.01 px/ms: pause
		{X: 2, Y: 0, Ts: 200}, // pause
		{X: 200, Y: 0, Ts: 300},
	}
	s := SummarizePath(path)
	if s.PauseCount != 2 {
		t.Errorf("PauseCount = %d, want 2", s.PauseCount)
	}
	if math.Abs(s.IdleRatio-0.5) > 1e-9 {
		t.Errorf("IdleRatio = %v, want 0.5", s.IdleRatio)
	}
}

func TestSummarizePath_AccelSignChanges(t *testing.T) {
	// Speeds 1, 2, 1, 2 → deltas +1, -1, +1 → two sign flips.
	path := []PointerSample{
		{X: 0, Y: 0, Ts: 0},
		{X: 100, Y: 0, Ts: 100},
		{X: 300, Y: 0, Ts: 200},
		{X: 400, Y: 0, Ts: 300},
		{X: 600, Y: 0, Ts: 400},
	}
	s := SummarizePath(path)
	if s.AccelSignChanges != 2 {
		t.Errorf("AccelSignChanges = %d, want 2", s.AccelSignChanges)
	}
}

func TestWindowBefore(t *testing.T) {
	path := []PointerSample{
		{Ts: 100},
		{Ts: 2000},
		{Ts: 2900},
		{Ts: 3040},
		{Ts: 3500},
	}
	// Click at 3000: window [1800, 3050].
	got := windowBefore(path, 3000)
	if len(got) != 3 {
		t.Fatalf("window size = %d, want 3", len(got))
	}
	if got[0].Ts != 2000 || got[2].Ts != 3040 {
		t.Errorf("window = %v, want samples at 2000..3040", got)
	}
}

func TestOvershoots_NoGeometry(t *testing.T) {
	window := []PointerSample{{X: 10, Y: 10}, {X: 20, Y: 20}, {X: 30, Y: 30}}
	if n := overshoots(window, 0, 0); n != 0 {
		t.Errorf("overshoots without geometry = %d, want 0", n)
	}
}

func TestOvershoots_PassAndReturn(t *testing.T) {
	// Pointer approaches the target at x=100, shoots past to 140, comes back.
	window := []PointerSample{
		{X: 0, Y: 0},
		{X: 60, Y: 0},
		{X: 95, Y: 0},
		{X: 140, Y: 0},
		{X: 105, Y: 0},
	}
	if n := overshoots(window, 100, 0); n != 1 {
		t.Errorf("overshoots = %d, want 1", n)
	}
}
