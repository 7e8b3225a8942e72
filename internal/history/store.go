// Package history persists cleanup run reports in a local SQLite database.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

// RunStatus is the terminal state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded cleanup run.
type Run struct {
	ID         string
	GuildID    string
	Role       string
	Status     RunStatus
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Processed  int
	Succeeded  int
	Skipped    int
	Failed     int
	Remaining  int
	Elapsed    time.Duration
	Error      string
	// Failures is only populated by GetRun.
	Failures []Failure
}

// Failure is one entity whose action failed during a run.
type Failure struct {
	EntityID   string
	EntityName string
}

// Store wraps the history database.
type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening history database %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: stable.
	db.SetMaxOpenConns(1)

	s := &Store{DB: db}
	if err = s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
