package ledger

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres implements Ledger on top of PostgreSQL.
type Postgres struct {
	conn *sql.DB
}

func Connect(dsn string) (*Postgres, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	log.Println("[Ledger] Connected to PostgreSQL")
	return &Postgres{conn: conn}, nil
}

func (p *Postgres) Close() error {
	return p.conn.Close()
}

func (p *Postgres) Ping() error {
	return p.conn.Ping()
}

func (p *Postgres) Migrate() error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations dir: %w", err)
	}
	for _, entry := range entries {
		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}
		if _, err := p.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", entry.Name(), err)
		}
		log.Printf("[Ledger] Applied migration: %s\n", entry.Name())
	}
	return nil
}

func (p *Postgres) RecordProgressionRound(playerID string, score, newLevel, elapsedMs int, passed bool) error {
	tx, err := p.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO progression_rounds (player_id, score, level, elapsed_ms, passed)
		VALUES ($1, $2, $3, $4, $5)
	`, playerID, score, newLevel, elapsedMs, passed)
	if err != nil {
		return fmt.Errorf("recording progression round: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO player_stats (player_id, total_rounds, total_score, best_score, current_level)
		VALUES ($1, 1, $2, $2, $3)
		ON CONFLICT (player_id) DO UPDATE SET
			total_rounds = player_stats.total_rounds + 1,
			total_score = player_stats.total_score + $2,
			best_score = GREATEST(player_stats.best_score, $2),
			current_level = GREATEST(player_stats.current_level, $3),
			updated_at = now()
	`, playerID, score, newLevel)
	if err != nil {
		return fmt.Errorf("updating player stats: %w", err)
	}

	return tx.Commit()
}

func (p *Postgres) RecordChallengeRound(playerID string, dateKey, score, elapsedMs int, passed, verified bool) error {
	tx, err := p.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var completed bool
	err = tx.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM challenge_attempts
			WHERE player_id = $1 AND date_key = $2 AND passed
		)
	`, playerID, dateKey).Scan(&completed)
	if err != nil {
		return fmt.Errorf("checking challenge completion: %w", err)
	}
	if completed {
		return ErrAlreadyCompleted
	}

	_, err = tx.Exec(`
		INSERT INTO challenge_attempts (player_id, date_key, score, elapsed_ms, passed, verified)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, playerID, dateKey, score, elapsedMs, passed, verified)
	if err != nil {
		return fmt.Errorf("recording challenge attempt: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO player_stats (player_id, total_rounds, total_score, best_score, current_level)
		VALUES ($1, 1, $2, $2, 1)
		ON CONFLICT (player_id) DO UPDATE SET
			total_rounds = player_stats.total_rounds + 1,
			total_score = player_stats.total_score + $2,
			best_score = GREATEST(player_stats.best_score, $2),
			updated_at = now()
	`, playerID, score)
	if err != nil {
		return fmt.Errorf("updating player stats: %w", err)
	}

	return tx.Commit()
}

func (p *Postgres) PlayerStats(playerID string) (PlayerStats, error) {
	stats := PlayerStats{PlayerID: playerID}
	err := p.conn.QueryRow(`
		SELECT total_rounds, total_score, best_score, current_level
		FROM player_stats WHERE player_id = $1
	`, playerID).Scan(&stats.TotalRounds, &stats.TotalScore, &stats.BestScore, &stats.CurrentLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return PlayerStats{}, ErrNotFound
	}
	if err != nil {
		return PlayerStats{}, fmt.Errorf("reading player stats: %w", err)
	}
	return stats, nil
}

func (p *Postgres) ChallengeStatus(dateKey int, playerID string) (ChallengeStatus, error) {
	status := ChallengeStatus{DateKey: dateKey}
	err := p.conn.QueryRow(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE passed) > 0
		FROM challenge_attempts
		WHERE player_id = $1 AND date_key = $2
	`, playerID, dateKey).Scan(&status.TriesUsed, &status.Completed)
	if err != nil {
		return ChallengeStatus{}, fmt.Errorf("reading challenge status: %w", err)
	}
	return status, nil
}

// Leaderboard sorts by level descending, then total score descending.
func (p *Postgres) Leaderboard(limit int) ([]Entry, error) {
	rows, err := p.conn.Query(`
		SELECT player_id, current_level, total_score, best_score
		FROM player_stats
		ORDER BY current_level DESC, total_score DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("reading leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	rank := 1
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.PlayerID, &e.Level, &e.Score, &e.BestScore); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
