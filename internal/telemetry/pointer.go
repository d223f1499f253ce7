package telemetry

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// Pointer-path slice considered to belong to a click: samples inside
	// this window before the click, plus a small slack after it.
	preClickWindowMs  = 1200
	postClickSlackMs  = 50
	pauseSpeedFloor   = 0.1 // px/ms
	turnAngleRadians  = math.Pi / 4
	overshootRadiusPx = 100
	overshootSlackPx  = 8
)

// PathStats are the round-level pointer-movement aggregates. An empty path
// is all zeros, idle ratio included.
type PathStats struct {
	Count            int
	TotalDistance    float64
	AvgSpeed         float64
	MaxSpeed         float64
	DirectionChanges int
	AccelSignChanges int
	PauseCount       int
	IdleRatio        float64
}

func SummarizePath(path []PointerSample) PathStats {
	out := PathStats{Count: len(path)}
	if len(path) < 2 {
		return out
	}

	var speeds []float64
	for i := 1; i < len(path); i++ {
		dx := path[i].X - path[i-1].X
		dy := path[i].Y - path[i-1].Y
		dist := math.Hypot(dx, dy)
		out.TotalDistance += dist

		if dt := path[i].Ts - path[i-1].Ts; dt > 0 {
			speed := dist / float64(dt)
			speeds = append(speeds, speed)
			if speed < pauseSpeedFloor {
				out.PauseCount++
			}
			if speed > out.MaxSpeed {
				out.MaxSpeed = speed
			}
		}

		if i > 1 {
			prevAngle := math.Atan2(path[i-1].Y-path[i-2].Y, path[i-1].X-path[i-2].X)
			angle := math.Atan2(dy, dx)
			if math.Abs(angle-prevAngle) > turnAngleRadians {
				out.DirectionChanges++
			}
		}
	}

	if len(speeds) > 0 {
		out.AvgSpeed = stat.Mean(speeds, nil)
	}
	out.AccelSignChanges = signChanges(speeds)
	out.IdleRatio = float64(out.PauseCount) / float64(len(path))
	return out
}

// signChanges counts flips in the sign of consecutive speed deltas,
// skipping zero deltas.
func signChanges(speeds []float64) int {
	changes := 0
	prevSign := 0
	for i := 1; i < len(speeds); i++ {
		d := speeds[i] - speeds[i-1]
		if d == 0 {
			continue
		}
		sign := 1
		if d < 0 {
			sign = -1
		}
		if prevSign != 0 && sign != prevSign {
			changes++
		}
		prevSign = sign
	}
	return changes
}

// windowBefore returns the slice of the path whose timestamps fall inside
// the pre-click window ending just after the click.
func windowBefore(path []PointerSample, clickTs int64) []PointerSample {
	var out []PointerSample
	lo := clickTs - preClickWindowMs
	hi := clickTs + postClickSlackMs
	for _, p := range path {
		if p.Ts >= lo && p.Ts <= hi {
			out = append(out, p)
		}
	}
	return out
}

// pathLengthAndSpeeds reduces a window to its length and speed extremes.
func pathLengthAndSpeeds(window []PointerSample) (length, avgSpeed, peakSpeed float64) {
	var speeds []float64
	for i := 1; i < len(window); i++ {
		dist := math.Hypot(window[i].X-window[i-1].X, window[i].Y-window[i-1].Y)
		length += dist
		if dt := window[i].Ts - window[i-1].Ts; dt > 0 {
			speeds = append(speeds, dist/float64(dt))
		}
	}
	for _, s := range speeds {
		if s > peakSpeed {
			peakSpeed = s
		}
	}
	if len(speeds) > 0 {
		avgSpeed = stat.Mean(speeds, nil)
	}
	return length, avgSpeed, peakSpeed
}

// overshoots counts direction reversals of the distance-to-target series
// close to the target: the pointer closes in, passes or stops short, and
// backs away again. Requires tile-center geometry; callers pass zero targets
// when the client omitted it, and get 0.
func overshoots(window []PointerSample, targetX, targetY float64) int {
	if len(window) < 3 || (targetX == 0 && targetY == 0) {
		return 0
	}
	count := 0
	decreasing := false
	prev := math.Hypot(window[0].X-targetX, window[0].Y-targetY)
	for _, p := range window[1:] {
		d := math.Hypot(p.X-targetX, p.Y-targetY)
		switch {
		case d < prev:
			decreasing = true
		case decreasing && d > prev+overshootSlackPx && prev <= overshootRadiusPx:
			count++
			decreasing = false
		}
		prev = d
	}
	return count
}
