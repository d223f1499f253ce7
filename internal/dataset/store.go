package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"memorix/internal/config"
	"memorix/internal/telemetry"
)

// RawRound is the optional per-round event dump: the untouched sample plus
// round metadata, with the player identity already hashed.
type RawRound struct {
	SchemaVersion int              `json:"schemaVersion"`
	RoundID       string           `json:"roundId"`
	PlayerHash    string           `json:"playerHash"`
	Timestamp     string           `json:"timestamp"`
	RoundKind     string           `json:"roundKind"`
	Sequence      []int            `json:"sequence"`
	Sample        telemetry.Sample `json:"telemetry"`
}

// Store owns the durable dataset files: the feature-vector CSV and, when
// enabled, the raw-event JSONL. Both share the buffered-flush discipline.
type Store struct {
	rows *Appender
	raw  *Appender // nil when raw retention is off
}

func Open(cfg config.DatasetConfig) (*Store, error) {
	interval := time.Duration(cfg.FlushIntervalMs) * time.Millisecond

	rows, err := NewAppender(filepath.Join(cfg.Dir, "dataset.csv"), Header(), interval, cfg.MaxBufferBytes)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	s := &Store{rows: rows}

	if cfg.SaveRawEvents {
		raw, err := NewAppender(filepath.Join(cfg.Dir, "rounds.raw.jsonl"), nil, interval, cfg.MaxBufferBytes)
		if err != nil {
			return nil, fmt.Errorf("opening raw dump: %w", err)
		}
		s.raw = raw
	}
	return s, nil
}

// Run blocks until ctx is cancelled and both files have taken their final
// synchronous flush.
func (s *Store) Run(ctx context.Context) {
	if s.raw != nil {
		go s.raw.Run(ctx)
	}
	s.rows.Run(ctx)
	if s.raw != nil {
		<-s.raw.Done()
	}
}

func (s *Store) AppendRow(row FeatureRow) {
	s.rows.Append(row.CSV())
}

func (s *Store) AppendRaw(r RawRound) {
	if s.raw == nil {
		return
	}
	r.SchemaVersion = SchemaVersion
	line, err := json.Marshal(r)
	if err != nil {
		log.Printf("[Dataset] Marshaling raw round %s: %v\n", r.RoundID, err)
		return
	}
	s.raw.Append(append(line, '\n'))
}
