package dataset

import (
	"strconv"
	"strings"
)

// SchemaVersion is bumped whenever the column set changes; it is the first
// column of every row so mixed files stay parseable.
const SchemaVersion = 1

// Columns is the dataset header, written once when the file is created.
// Order here is load-bearing: FeatureRow.CSV must match it exactly.
var Columns = []string{
	"schema_version",
	"round_id",
	"player_hash",
	"timestamp",
	"round_kind",
	"level",
	"date_key",
	"grid_size",
	"steps",
	"correct_steps",
	"time_elapsed_ms",
	"time_limit_ms",
	"is_perfect",
	"time_expired",
	"verified",
	"verification_reasons",
	"score",
	"mean_reaction_time",
	"std_reaction_time",
	"min_reaction_time",
	"max_reaction_time",
	"entropy_reaction_time",
	"mean_inter_click_interval",
	"std_inter_click_interval",
	"min_inter_click_interval",
	"max_inter_click_interval",
	"entropy_inter_click",
	"mean_click_x",
	"std_click_x",
	"mean_click_y",
	"std_click_y",
	"click_position_entropy",
	"pointer_move_count",
	"pointer_total_distance",
	"pointer_avg_speed",
	"pointer_max_speed",
	"pointer_direction_changes",
	"pointer_accel_sign_changes",
	"pointer_pause_count",
	"pointer_idle_ratio",
	"misclick_count",
	"double_click_count",
	"hesitation_count",
	"overshoot_count",
	"dominant_input_method",
	"session_id_hash",
	"round_in_session",
	"session_avg_round_duration_ms",
	"consecutive_perfect_rounds",
	"rounds_24h",
	"rounds_7d",
	"success_rate_7d",
	"avg_correct_steps_7d",
	"trend_reaction_time",
	"device_hash",
	"label",
}

// FeatureRow is one dataset row: the full derived feature vector for a
// single submitted (or abandoned) round. Rows are append-only and never
// updated in place.
type FeatureRow struct {
	RoundID   string
	PlayerHash string
	Timestamp string
	RoundKind string
	Level     int
	DateKey   int

	GridSize      int
	Steps         int
	CorrectSteps  int
	TimeElapsedMs int
	TimeLimitMs   int
	IsPerfect     bool
	TimeExpired   bool

	Verified            bool
	VerificationReasons []string
	Score               int

	MeanReaction    float64
	StdReaction     float64
	MinReaction     float64
	MaxReaction     float64
	EntropyReaction float64

	MeanInterClick    float64
	StdInterClick     float64
	MinInterClick     float64
	MaxInterClick     float64
	EntropyInterClick float64

	MeanClickX      float64
	StdClickX       float64
	MeanClickY      float64
	StdClickY       float64
	PositionEntropy float64

	PointerMoveCount       int
	PointerTotalDistance   float64
	PointerAvgSpeed        float64
	PointerMaxSpeed        float64
	PointerDirectionChange int
	PointerAccelChanges    int
	PointerPauseCount      int
	PointerIdleRatio       float64

	MisclickCount  int
	DoubleClicks   int
	Hesitations    int
	OvershootCount int
	DominantMethod string

	SessionIDHash      string
	RoundInSession     int
	SessionAvgDuration float64
	PerfectStreak      int
	Rounds24h          int
	Rounds7d           int
	SuccessRate7d      float64
	AvgCorrectSteps7d  float64
	ReactionTrendSlope float64

	DeviceHash string

	// Label is a placeholder for later manual or model annotation.
	Label string
}

// CSV renders the row in Columns order.
func (r FeatureRow) CSV() []byte {
	label := r.Label
	if label == "" {
		label = "human"
	}
	fields := []string{
		itoa(SchemaVersion),
		quote(r.RoundID),
		quote(r.PlayerHash),
		quote(r.Timestamp),
		quote(r.RoundKind),
		itoa(r.Level),
		itoa(r.DateKey),
		itoa(r.GridSize),
		itoa(r.Steps),
		itoa(r.CorrectSteps),
		itoa(r.TimeElapsedMs),
		itoa(r.TimeLimitMs),
		boolBit(r.IsPerfect),
		boolBit(r.TimeExpired),
		boolBit(r.Verified),
		quote(strings.Join(r.VerificationReasons, ";")),
		itoa(r.Score),
		ftoa(r.MeanReaction),
		ftoa(r.StdReaction),
		ftoa(r.MinReaction),
		ftoa(r.MaxReaction),
		ftoa(r.EntropyReaction),
		ftoa(r.MeanInterClick),
		ftoa(r.StdInterClick),
		ftoa(r.MinInterClick),
		ftoa(r.MaxInterClick),
		ftoa(r.EntropyInterClick),
		ftoa(r.MeanClickX),
		ftoa(r.StdClickX),
		ftoa(r.MeanClickY),
		ftoa(r.StdClickY),
		ftoa(r.PositionEntropy),
		itoa(r.PointerMoveCount),
		ftoa(r.PointerTotalDistance),
		ftoa(r.PointerAvgSpeed),
		ftoa(r.PointerMaxSpeed),
		itoa(r.PointerDirectionChange),
		itoa(r.PointerAccelChanges),
		itoa(r.PointerPauseCount),
		ftoa(r.PointerIdleRatio),
		itoa(r.MisclickCount),
		itoa(r.DoubleClicks),
		itoa(r.Hesitations),
		itoa(r.OvershootCount),
		quote(r.DominantMethod),
		quote(r.SessionIDHash),
		itoa(r.RoundInSession),
		ftoa(r.SessionAvgDuration),
		itoa(r.PerfectStreak),
		itoa(r.Rounds24h),
		itoa(r.Rounds7d),
		ftoa(r.SuccessRate7d),
		ftoa(r.AvgCorrectSteps7d),
		ftoa(r.ReactionTrendSlope),
		quote(r.DeviceHash),
		quote(label),
	}
	return []byte(strings.Join(fields, ",") + "\n")
}

// Header is the CSV header line including the trailing newline.
func Header() []byte {
	return []byte(strings.Join(Columns, ",") + "\n")
}

func itoa(v int) string { return strconv.Itoa(v) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

func boolBit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
