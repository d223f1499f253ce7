package telemetry

const (
	doubleClickMs = 80
	hesitationMs  = 2000
)

// Features is the round-level statistical aggregate of one submission —
// everything in the dataset row that is derived from the raw sample alone
// (session and history counters are appended by the caller).
type Features struct {
	Reaction   SeriesStats
	InterClick SeriesStats

	MeanNormX       float64
	StdNormX        float64
	MeanNormY       float64
	StdNormY        float64
	PositionEntropy float64

	Pointer PathStats

	MisclickCount  int
	DoubleClicks   int
	Hesitations    int
	OvershootCount int
	DominantMethod string

	DeviceHash string
}

// Extract aggregates the enriched clicks and pointer path of one round.
// A round with no clicks yields zeroed statistics, not an error.
func Extract(sequence []int, sample Sample) Features {
	records := EnrichClicks(sequence, sample)

	f := Features{
		Pointer:        SummarizePath(sample.PointerPath),
		DominantMethod: dominantMethod(records),
		DeviceHash:     DeviceFingerprint(sample.Device),
	}

	if len(records) == 0 {
		return f
	}

	reactions := make([]float64, len(records))
	xs := make([]float64, len(records))
	ys := make([]float64, len(records))
	for i, r := range records {
		reactions[i] = r.ReactionMs
		xs[i] = r.NormX
		ys[i] = r.NormY

		if !r.Correct {
			f.MisclickCount++
		}
		if r.ReactionMs > hesitationMs {
			f.Hesitations++
		}
		if i > 0 && sample.Clicks[i].ClientTs-sample.Clicks[i-1].ClientTs < doubleClickMs {
			f.DoubleClicks++
		}
		f.OvershootCount += r.Overshoots
	}

	f.Reaction = Summarize(reactions)
	f.InterClick = Summarize(reactions[1:]) // deltas between consecutive clicks

	xStats := Summarize(xs)
	yStats := Summarize(ys)
	f.MeanNormX, f.StdNormX = xStats.Mean, xStats.Std
	f.MeanNormY, f.StdNormY = yStats.Mean, yStats.Std
	f.PositionEntropy = PositionEntropy(xs, ys)

	return f
}

// dominantMethod picks the most frequent resolved input method, breaking
// ties in first-seen order. Empty rounds report the default method.
func dominantMethod(records []ClickRecord) string {
	if len(records) == 0 {
		return MethodUnknown
	}
	counts := make(map[string]int)
	var order []string
	for _, r := range records {
		if counts[r.InputMethod] == 0 {
			order = append(order, r.InputMethod)
		}
		counts[r.InputMethod]++
	}
	best := order[0]
	for _, m := range order[1:] {
		if counts[m] > counts[best] {
			best = m
		}
	}
	return best
}
