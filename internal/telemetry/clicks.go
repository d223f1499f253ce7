package telemetry

// ClickRecord is one click enriched against the expected sequence and the
// pointer path around it.
type ClickRecord struct {
	Number       int // 1-based position in the round
	ExpectedTile int // -1 when the click has no expected step
	ActualTile   int
	Correct      bool
	InputMethod  string
	ReactionMs   float64
	NormX        float64
	NormY        float64
	PathLength   float64
	PathAvgSpeed float64
	PathMaxSpeed float64
	Overshoots   int
}

// EnrichClicks derives a record per click. Reaction times are clamped at
// zero; positions are normalized by the reported screen extent with a
// fallback of 1 so a missing descriptor cannot divide by zero.
func EnrichClicks(sequence []int, sample Sample) []ClickRecord {
	screenW := sample.Device.Screen.Width
	screenH := sample.Device.Screen.Height
	if screenW <= 0 {
		screenW = 1
	}
	if screenH <= 0 {
		screenH = 1
	}

	out := make([]ClickRecord, len(sample.Clicks))
	for i, c := range sample.Clicks {
		rec := ClickRecord{
			Number:       i + 1,
			ExpectedTile: -1,
			ActualTile:   c.TileIndex,
			InputMethod:  c.InputMethod(),
			NormX:        c.XPx / screenW,
			NormY:        c.YPx / screenH,
		}
		if i < len(sequence) {
			rec.ExpectedTile = sequence[i]
			rec.Correct = c.TileIndex == sequence[i]
		}

		baseline := sample.TurnStartTs
		if i > 0 {
			baseline = sample.Clicks[i-1].ClientTs
		} else if baseline == 0 {
			baseline = c.ClientTs
		}
		if rt := float64(c.ClientTs - baseline); rt > 0 {
			rec.ReactionMs = rt
		}

		window := windowBefore(sample.PointerPath, c.ClientTs)
		rec.PathLength, rec.PathAvgSpeed, rec.PathMaxSpeed = pathLengthAndSpeeds(window)
		rec.Overshoots = overshoots(window, c.XPx, c.YPx)

		out[i] = rec
	}
	return out
}
