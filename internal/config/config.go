package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration, populated from environment
// variables. Every knob has a default so the server runs out of the box.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	Progression ProgressionConfig `envPrefix:"PROGRESSION_"`
	Daily       DailyConfig       `envPrefix:"DAILY_"`
	AntiCheat   AntiCheatConfig   `envPrefix:"ANTICHEAT_"`
	Dataset     DatasetConfig     `envPrefix:"DATASET_"`

	// RoundGraceMs is how long past its time limit an unsubmitted round
	// stays in the registry before the sweep retires it as abandoned.
	RoundGraceMs int `env:"ROUND_GRACE_MS" envDefault:"30000"`
}

// ProgressionConfig drives the open-ended mode: difficulty grows with level,
// clamped at the configured extremes.
type ProgressionConfig struct {
	BaseGridSize          int     `env:"BASE_GRID_SIZE" envDefault:"3"`
	MaxGridSize           int     `env:"MAX_GRID_SIZE" envDefault:"6"`
	GridSizeIncreaseEvery int     `env:"GRID_SIZE_INCREASE_EVERY" envDefault:"3"`
	BaseSteps             int     `env:"BASE_STEPS" envDefault:"3"`
	MaxSteps              int     `env:"MAX_STEPS" envDefault:"12"`
	StepsIncreaseRate     float64 `env:"STEPS_INCREASE_RATE" envDefault:"0.5"`
	BaseTimeLimitMs       int     `env:"BASE_TIME_LIMIT_MS" envDefault:"10000"`
	MinTimeLimitMs        int     `env:"MIN_TIME_LIMIT_MS" envDefault:"4000"`
	TimeLimitDecreaseMs   int     `env:"TIME_LIMIT_DECREASE_MS" envDefault:"200"`
	BaseShowDurationMs    int     `env:"BASE_SHOW_DURATION_MS" envDefault:"800"`
	MinShowDurationMs     int     `env:"MIN_SHOW_DURATION_MS" envDefault:"300"`
	ShowDecreaseMs        int     `env:"SHOW_DECREASE_MS" envDefault:"25"`
	BaseIntervalMs        int     `env:"BASE_INTERVAL_MS" envDefault:"300"`
	MinIntervalMs         int     `env:"MIN_INTERVAL_MS" envDefault:"100"`
	IntervalDecreaseMs    int     `env:"INTERVAL_DECREASE_MS" envDefault:"10"`

	PointsPerStep     int     `env:"POINTS_PER_STEP" envDefault:"10"`
	TimeBonusPerMs    float64 `env:"TIME_BONUS_PER_MS" envDefault:"0.1"`
	PerfectMultiplier float64 `env:"PERFECT_MULTIPLIER" envDefault:"1.5"`
	LevelMultiplier   float64 `env:"LEVEL_MULTIPLIER" envDefault:"1.15"`
}

// DailyConfig is the fixed daily challenge: one puzzle shape, a capped number
// of tries per day, no level multiplier.
type DailyConfig struct {
	GridSize          int     `env:"GRID_SIZE" envDefault:"4"`
	Steps             int     `env:"STEPS" envDefault:"6"`
	TimeLimitMs       int     `env:"TIME_LIMIT_MS" envDefault:"15000"`
	ShowDurationMs    int     `env:"SHOW_DURATION_MS" envDefault:"600"`
	IntervalMs        int     `env:"INTERVAL_MS" envDefault:"250"`
	MaxTriesPerDay    int     `env:"MAX_TRIES_PER_DAY" envDefault:"3"`
	PointsPerStep     int     `env:"POINTS_PER_STEP" envDefault:"20"`
	TimeBonusPerMs    float64 `env:"TIME_BONUS_PER_MS" envDefault:"0.2"`
	PerfectMultiplier float64 `env:"PERFECT_MULTIPLIER" envDefault:"1.5"`
}

type AntiCheatConfig struct {
	Enabled           bool `env:"ENABLED" envDefault:"true"`
	MinReactionTimeMs int  `env:"MIN_REACTION_TIME_MS" envDefault:"150"`
}

type DatasetConfig struct {
	Dir             string `env:"DIR" envDefault:"./data"`
	FlushIntervalMs int    `env:"FLUSH_INTERVAL_MS" envDefault:"2000"`
	MaxBufferBytes  int    `env:"MAX_BUFFER_BYTES" envDefault:"65536"`
	SaveRawEvents   bool   `env:"SAVE_RAW_EVENTS" envDefault:"true"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
