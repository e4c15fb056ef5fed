package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	backupPrefix     = "backup_"
	backupTimeLayout = "20060102_150405.000000"
)

// backup copies the current dataset file verbatim into the backup directory
// and returns the path of the copy. Callers must hold s.mu.
func (s *SampleStore) backup() (string, error) {
	src, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to open dataset for backup: %w", err)
	}
	defer src.Close()

	dst, path, err := s.createBackupFile()
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to copy dataset: %w", err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to sync backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close backup: %w", err)
	}

	return path, nil
}

// createBackupFile exclusively creates a new timestamped backup file,
// suffixing the name when a backup with the same timestamp already exists.
func (s *SampleStore) createBackupFile() (*os.File, string, error) {
	base := backupPrefix + s.now().Format(backupTimeLayout)
	for i := 0; ; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		path := filepath.Join(s.backupDir, name+filepath.Ext(DatasetFile))

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("failed to create backup: %w", err)
		}
	}
}

// Backups lists backup file paths, oldest first.
func (s *SampleStore) Backups() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) {
			continue
		}
		paths = append(paths, filepath.Join(s.backupDir, e.Name()))
	}
	sort.Strings(paths)

	return paths, nil
}
