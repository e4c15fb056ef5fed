// Package store provides the SQLite-backed sample store for recorded gesture data.
//
// The dataset lives in a single standalone SQLite file. Every mutation writes
// a complete new file next to it and renames it into place, so readers and
// crash recovery only ever see a whole dataset. Before an append touches an
// existing dataset, the file is copied verbatim into the backups directory.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Default file names inside the data directory.
const (
	DatasetFile = "words_dataset.db"
	BackupDir   = "backups"
)

var (
	// ErrNoDataset is returned when no dataset file has been written yet.
	ErrNoDataset = errors.New("dataset not found")
	// ErrLabelNotFound is returned when a label has no stored samples.
	ErrLabelNotFound = errors.New("label not found")
	// ErrShapeMismatch is returned when features and labels disagree in length
	// or feature vectors disagree in dimension.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidLabel is returned for empty labels.
	ErrInvalidLabel = errors.New("label must not be empty")
)

// SampleStore is an append-only, backed-up store of labeled feature vectors.
// It is safe for concurrent use; operations are serialized.
type SampleStore struct {
	path      string
	backupDir string
	log       zerolog.Logger
	now       func() time.Time
	mu        sync.Mutex
}

// Option configures a SampleStore.
type Option func(*SampleStore)

// WithLogger sets the logger used for store events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *SampleStore) { s.log = l }
}

// WithClock overrides the clock used to name backups.
func WithClock(now func() time.Time) Option {
	return func(s *SampleStore) { s.now = now }
}

// New creates a SampleStore rooted at dataDir. The data and backup
// directories are created if missing; the dataset file itself is not.
func New(dataDir string, opts ...Option) (*SampleStore, error) {
	s := &SampleStore{
		path:      filepath.Join(dataDir, DatasetFile),
		backupDir: filepath.Join(dataDir, BackupDir),
		log:       zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	return s, nil
}

// Path returns the dataset file path.
func (s *SampleStore) Path() string {
	return s.path
}

// BackupDir returns the directory holding dataset snapshots.
func (s *SampleStore) BackupDir() string {
	return s.backupDir
}

// Exists reports whether a dataset file is present.
func (s *SampleStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// openDB opens a SQLite database file. When migrate is set the schema is
// created; readers skip it so a read never rewrites the file.
func openDB(ctx context.Context, path string, migrate bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if migrate {
		if err := runMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return db, nil
}
