package tracking

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	require.NoError(t, err, "NewDatabase failed")
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDatabaseCreatesFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "history.db")

	db, err := NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
}

func TestDatabaseSchemaExists(t *testing.T) {
	db := setupTestDB(t)

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM plays").Scan(&count)
	assert.NoError(t, err, "plays table should be queryable")

	for _, indexName := range []string{"idx_plays_started", "idx_plays_path"} {
		var n int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", indexName).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "index %s should exist", indexName)
	}
}

func TestRecorderRecordAndRecent(t *testing.T) {
	rec := NewRecorder(setupTestDB(t))

	base := time.Now().Add(-time.Minute)
	first, err := rec.Record(Play{
		StartedAt:  base,
		Path:       "/music/a.wav",
		SampleRate: 44100,
		Frames:     44100,
		Completed:  true,
		Reason:     "finished",
	})
	require.NoError(t, err)
	assert.Greater(t, first, int64(0))

	_, err = rec.Record(Play{
		StartedAt:  base.Add(30 * time.Second),
		Path:       "/music/b.mp3",
		SampleRate: 48000,
		Frames:     24000,
		Completed:  false,
		Reason:     "skipped",
	})
	require.NoError(t, err)

	plays, err := rec.Recent(10)
	require.NoError(t, err)
	require.Len(t, plays, 2)

	// newest first
	assert.Equal(t, "/music/b.mp3", plays[0].Path)
	assert.Equal(t, "skipped", plays[0].Reason)
	assert.False(t, plays[0].Completed)
	assert.Equal(t, 500*time.Millisecond, plays[0].Duration())

	assert.Equal(t, "/music/a.wav", plays[1].Path)
	assert.True(t, plays[1].Completed)
	assert.Equal(t, time.Second, plays[1].Duration())
}

func TestRecorderRecentLimit(t *testing.T) {
	rec := NewRecorder(setupTestDB(t))

	for i := 0; i < 5; i++ {
		_, err := rec.Record(Play{
			Path:       "/music/loop.wav",
			SampleRate: 44100,
			Frames:     int64(i),
			Reason:     "finished",
			Completed:  true,
		})
		require.NoError(t, err)
	}

	plays, err := rec.Recent(3)
	require.NoError(t, err)
	assert.Len(t, plays, 3)
}

func TestRecorderStats(t *testing.T) {
	rec := NewRecorder(setupTestDB(t))

	stats, err := rec.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats, "empty table aggregates to zero")

	_, err = rec.Record(Play{Path: "a", SampleRate: 44100, Frames: 100, Completed: true, Reason: "finished"})
	require.NoError(t, err)
	_, err = rec.Record(Play{Path: "b", SampleRate: 44100, Frames: 50, Completed: false, Reason: "stopped"})
	require.NoError(t, err)

	stats, err = rec.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalPlays)
	assert.Equal(t, int64(1), stats.CompletedPlays)
	assert.Equal(t, int64(150), stats.TotalFrames)
}

func TestRecorderRejectsInvalidRows(t *testing.T) {
	rec := NewRecorder(setupTestDB(t))

	_, err := rec.Record(Play{Path: "bad", SampleRate: 0, Frames: 10, Reason: "finished"})
	assert.Error(t, err, "zero sample rate violates the schema check")

	_, err = rec.Record(Play{Path: "bad", SampleRate: 44100, Frames: -1, Reason: "finished"})
	assert.Error(t, err, "negative frame count violates the schema check")
}
