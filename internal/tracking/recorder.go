package tracking

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Play is one row of play history: a track that reached the output and
// how it ended
type Play struct {
	ID         int64
	StartedAt  time.Time
	Path       string
	SampleRate int
	Frames     int64
	Completed  bool
	Reason     string
}

// Duration converts the played frame count to wall-clock time
func (p Play) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(p.Frames) / float64(p.SampleRate) * float64(time.Second))
}

// Stats summarizes the whole history table
type Stats struct {
	TotalPlays     int64
	CompletedPlays int64
	TotalFrames    int64
}

// Recorder writes and reads play history. It is safe for concurrent
// use; database/sql serializes access to the sqlite handle.
type Recorder struct {
	db *sql.DB
}

// NewRecorder wraps an open history database
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record inserts one finished play and returns its row id
func (r *Recorder) Record(play Play) (int64, error) {
	if play.StartedAt.IsZero() {
		play.StartedAt = time.Now()
	}

	completed := 0
	if play.Completed {
		completed = 1
	}

	result, err := r.db.Exec(`
		INSERT INTO plays (started_at, path, sample_rate, frames, completed, reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		play.StartedAt.UnixMilli(), play.Path, play.SampleRate, play.Frames, completed, play.Reason)
	if err != nil {
		return 0, fmt.Errorf("failed to insert play: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get play id: %w", err)
	}

	slog.Debug("play recorded",
		"id", id,
		"path", play.Path,
		"frames", play.Frames,
		"reason", play.Reason)
	return id, nil
}

// Recent returns the most recent plays, newest first
func (r *Recorder) Recent(limit int) ([]Play, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, started_at, path, sample_rate, frames, completed, reason
		FROM plays
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []Play
	for rows.Next() {
		var p Play
		var startedMs int64
		var completed int
		if err := rows.Scan(&p.ID, &startedMs, &p.Path, &p.SampleRate, &p.Frames, &completed, &p.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		p.StartedAt = time.UnixMilli(startedMs)
		p.Completed = completed == 1
		plays = append(plays, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plays: %w", err)
	}
	return plays, nil
}

// Stats aggregates over the whole table
func (r *Recorder) Stats() (Stats, error) {
	var s Stats
	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(completed), 0),
		       COALESCE(SUM(frames), 0)
		FROM plays`).Scan(&s.TotalPlays, &s.CompletedPlays, &s.TotalFrames)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to aggregate plays: %w", err)
	}
	return s, nil
}
