package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/google/uuid"
)

// Dataset holds samples as two co-indexed sequences.
type Dataset struct {
	X [][]float64
	Y []string
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Y)
}

// Dim returns the feature dimension, or 0 for an empty dataset.
func (d *Dataset) Dim() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// Classes returns the distinct labels in order of first appearance.
func (d *Dataset) Classes() []string {
	seen := make(map[string]bool)
	var classes []string
	for _, y := range d.Y {
		if !seen[y] {
			seen[y] = true
			classes = append(classes, y)
		}
	}
	return classes
}

// LabelCount is the number of stored samples for one label.
type LabelCount struct {
	Label   string `json:"label"`
	Samples int    `json:"samples"`
}

// validate checks that X and Y are co-indexed and X is rectangular with the
// given dimension (any dimension when dim is 0).
func validate(x [][]float64, y []string, dim int) error {
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d feature rows, %d labels", ErrShapeMismatch, len(x), len(y))
	}
	for i := range x {
		if y[i] == "" {
			return fmt.Errorf("sample %d: %w", i, ErrInvalidLabel)
		}
		if dim == 0 {
			dim = len(x[i])
		}
		if len(x[i]) != dim || dim == 0 {
			return fmt.Errorf("%w: sample %d has %d features, expected %d", ErrShapeMismatch, i, len(x[i]), dim)
		}
	}
	return nil
}

// Append adds samples to the dataset and returns how many were added.
// Empty input is a no-op. When a dataset already exists it is first copied
// into the backups directory; a failed backup aborts the append.
func (s *SampleStore) Append(ctx context.Context, x [][]float64, y []string) (int, error) {
	if len(x) == 0 && len(y) == 0 {
		return 0, nil
	}
	if err := validate(x, y, 0); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := &Dataset{}
	if s.Exists() {
		backup, err := s.backup()
		if err != nil {
			return 0, fmt.Errorf("append aborted: %w", err)
		}
		s.log.Debug().Str("backup", backup).Msg("dataset backed up")

		existing, err := readDataset(ctx, s.path)
		if err != nil {
			return 0, err
		}
		if existing.Len() > 0 && existing.Dim() != len(x[0]) {
			return 0, fmt.Errorf("%w: dataset has %d features, new samples have %d", ErrShapeMismatch, existing.Dim(), len(x[0]))
		}
		merged = existing
	}

	merged.X = append(merged.X, x...)
	merged.Y = append(merged.Y, y...)

	if err := s.replace(ctx, merged); err != nil {
		return 0, err
	}

	s.log.Info().Int("added", len(x)).Int("total", merged.Len()).Msg("samples appended")
	return len(x), nil
}

// RemoveLabel deletes every sample with the given label and returns how many
// were removed. An unknown label leaves the file untouched. Removing the last
// samples deletes the dataset file.
func (s *SampleStore) RemoveLabel(ctx context.Context, label string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Exists() {
		return 0, ErrNoDataset
	}

	ds, err := readDataset(ctx, s.path)
	if err != nil {
		return 0, err
	}

	kept := &Dataset{}
	for i, y := range ds.Y {
		if y != label {
			kept.X = append(kept.X, ds.X[i])
			kept.Y = append(kept.Y, y)
		}
	}

	removed := ds.Len() - kept.Len()
	if removed == 0 {
		return 0, fmt.Errorf("%w: %q", ErrLabelNotFound, label)
	}

	if kept.Len() > 0 {
		if err := s.replace(ctx, kept); err != nil {
			return 0, err
		}
	} else if err := os.Remove(s.path); err != nil {
		return 0, fmt.Errorf("failed to delete empty dataset: %w", err)
	}

	s.log.Info().Str("label", label).Int("removed", removed).Int("remaining", kept.Len()).Msg("label removed")
	return removed, nil
}

// Load reads the whole dataset.
func (s *SampleStore) Load(ctx context.Context) (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Exists() {
		return nil, ErrNoDataset
	}
	return readDataset(ctx, s.path)
}

// Labels returns per-label sample counts in order of first appearance.
// A missing dataset yields an empty list.
func (s *SampleStore) Labels(ctx context.Context) ([]LabelCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Exists() {
		return []LabelCount{}, nil
	}

	db, err := openDB(ctx, s.path, false)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT label, COUNT(*) FROM samples GROUP BY label ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("failed to count labels: %w", err)
	}
	defer rows.Close()

	labels := []LabelCount{}
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Samples); err != nil {
			return nil, err
		}
		labels = append(labels, lc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return labels, nil
}

// replace writes ds to a temporary file next to the dataset and renames it
// over the dataset file.
func (s *SampleStore) replace(ctx context.Context, ds *Dataset) (err error) {
	tmp := fmt.Sprintf("%s.%s.tmp", s.path, uuid.NewString())
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err := writeDataset(ctx, tmp, ds); err != nil {
		return err
	}
	if err := syncFile(tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace dataset: %w", err)
	}
	return nil
}

// writeDataset creates a fresh dataset database at path.
func writeDataset(ctx context.Context, path string, ds *Dataset) error {
	db, err := openDB(ctx, path, true)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return err
	}

	if err := insertSamples(ctx, tx, ds); err != nil {
		tx.Rollback()
		db.Close()
		return err
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return fmt.Errorf("failed to commit dataset: %w", err)
	}

	return db.Close()
}

func insertSamples(ctx context.Context, tx *sql.Tx, ds *Dataset) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('dim', ?)`, strconv.Itoa(ds.Dim())); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (label, features) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range ds.Y {
		if _, err := stmt.ExecContext(ctx, ds.Y[i], encodeFeatures(ds.X[i])); err != nil {
			return fmt.Errorf("failed to insert sample %d: %w", i, err)
		}
	}
	return nil
}

// readDataset loads every sample from the database at path, in id order.
func readDataset(ctx context.Context, path string) (*Dataset, error) {
	db, err := openDB(ctx, path, false)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var dimValue string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'dim'`).Scan(&dimValue)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset metadata: %w", err)
	}
	dim, err := strconv.Atoi(dimValue)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset dimension %q: %w", dimValue, err)
	}

	rows, err := db.QueryContext(ctx, `SELECT label, features FROM samples ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	defer rows.Close()

	ds := &Dataset{}
	for rows.Next() {
		var label string
		var blob []byte
		if err := rows.Scan(&label, &blob); err != nil {
			return nil, err
		}
		features, err := decodeFeatures(blob)
		if err != nil {
			return nil, err
		}
		if len(features) != dim {
			return nil, fmt.Errorf("%w: stored sample has %d features, expected %d", ErrShapeMismatch, len(features), dim)
		}
		ds.X = append(ds.X, features)
		ds.Y = append(ds.Y, label)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ds, nil
}

// encodeFeatures packs a feature vector as little-endian float64 values.
func encodeFeatures(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(f))
	}
	return buf
}

func decodeFeatures(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, errors.New("corrupt feature blob")
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v, nil
}

// syncFile flushes a file's contents to stable storage.
func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
