// Package audit provides file-based persistence for authorization check
// records: JSON Lines output with daily rotation, size caps, and retention
// cleanup.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/storyglot/authz/internal/domain/audit"
)

// checkFilePattern matches check log filenames: checks-YYYY-MM-DD.log or
// checks-YYYY-MM-DD-N.log for size-rotated segments.
var checkFilePattern = regexp.MustCompile(`^checks-(\d{4}-\d{2}-\d{2})(?:-(\d+))?\.log$`)

// FileStoreConfig holds configuration for the file-based check store.
type FileStoreConfig struct {
	// Dir is the directory where check log files are stored.
	Dir string
	// RetentionDays is the number of days to keep log files (default 30).
	RetentionDays int
	// MaxFileSizeMB is the maximum file size before rotation (default 100).
	MaxFileSizeMB int
}

// FileStore implements audit.Store with date and size rotation plus
// retention cleanup.
type FileStore struct {
	dir           string
	maxFileSize   int64
	retentionDays int

	mu            sync.Mutex
	currentFile   *os.File
	currentDate   string
	currentSize   int64
	currentSuffix int
	closed        bool

	logger *slog.Logger
	cancel context.CancelFunc
}

// NewFileStore creates the log directory if needed, opens today's file,
// runs retention cleanup, and starts the hourly cleanup goroutine.
func NewFileStore(cfg FileStoreConfig, logger *slog.Logger) (*FileStore, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 100
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create check log directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &FileStore{
		dir:           cfg.Dir,
		maxFileSize:   int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		cancel:        cancel,
	}

	today := time.Now().UTC().Format("2006-01-02")
	if err := s.openCurrentFile(today); err != nil {
		cancel()
		return nil, fmt.Errorf("open check log file: %w", err)
	}

	s.runCleanup()
	go s.cleanupLoop(ctx)

	return s, nil
}

// Append writes records as JSON Lines to the current file, rotating by
// date or by size as needed.
func (s *FileStore) Append(_ context.Context, records ...audit.CheckRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		dateStr := rec.Timestamp.UTC().Format("2006-01-02")
		if dateStr != s.currentDate {
			if err := s.rotateDateLocked(dateStr); err != nil {
				return fmt.Errorf("date rotation: %w", err)
			}
		}
		if s.currentSize >= s.maxFileSize {
			if err := s.rotateSizeLocked(); err != nil {
				return fmt.Errorf("size rotation: %w", err)
			}
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal check record: %w", err)
		}
		n, err := s.currentFile.Write(append(data, '\n'))
		if err != nil {
			return fmt.Errorf("write check record: %w", err)
		}
		s.currentSize += int64(n)
	}

	return nil
}

// Flush syncs the current file to disk.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentFile != nil {
		return s.currentFile.Sync()
	}
	return nil
}

// Close stops the cleanup goroutine and closes the current file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()

	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		err := s.currentFile.Close()
		s.currentFile = nil
		return err
	}
	return nil
}

// openCurrentFile opens or creates the file for dateStr, resuming the
// highest existing size-rotation suffix for that date.
func (s *FileStore) openCurrentFile(dateStr string) error {
	suffix := s.findHighestSuffix(dateStr)

	f, size, err := s.openFile(dateStr, suffix)
	if err != nil {
		return err
	}

	s.currentFile = f
	s.currentDate = dateStr
	s.currentSize = size
	s.currentSuffix = suffix
	return nil
}

func (s *FileStore) findHighestSuffix(dateStr string) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}

	highest := 0
	for _, e := range entries {
		date, suffix, ok := parseCheckFilename(e.Name())
		if !ok || date != dateStr {
			continue
		}
		if suffix > highest {
			highest = suffix
		}
	}
	return highest
}

func (s *FileStore) openFile(dateStr string, suffix int) (*os.File, int64, error) {
	filename := buildCheckFilename(dateStr, suffix)
	path := filepath.Join(s.dir, filename)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, 0, fmt.Errorf("open file %s: %w", filename, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat file %s: %w", filename, err)
	}
	return f, info.Size(), nil
}

// rotateDateLocked closes the current file and opens one for dateStr.
// Must be called with s.mu held.
func (s *FileStore) rotateDateLocked(dateStr string) error {
	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		_ = s.currentFile.Close()
		s.currentFile = nil
	}

	s.currentSuffix = 0
	s.currentDate = dateStr

	f, size, err := s.openFile(dateStr, 0)
	if err != nil {
		return err
	}
	s.currentFile = f
	s.currentSize = size
	return nil
}

// rotateSizeLocked closes the current file and opens the next suffix for
// the same date. Must be called with s.mu held.
func (s *FileStore) rotateSizeLocked() error {
	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		_ = s.currentFile.Close()
		s.currentFile = nil
	}

	s.currentSuffix++

	f, size, err := s.openFile(s.currentDate, s.currentSuffix)
	if err != nil {
		return err
	}
	s.currentFile = f
	s.currentSize = size
	return nil
}

// runCleanup deletes check log files older than the retention period.
func (s *FileStore) runCleanup() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("check log cleanup: failed to read directory", "dir", s.dir, "error", err)
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted := 0

	for _, e := range entries {
		date, _, ok := parseCheckFilename(e.Name())
		if !ok {
			continue
		}
		fileDate, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
				s.logger.Error("check log cleanup: failed to delete file",
					"file", e.Name(), "error", err)
			} else {
				deleted++
			}
		}
	}

	if deleted > 0 {
		s.logger.Info("check log cleanup completed", "deleted", deleted)
	}
}

func (s *FileStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func parseCheckFilename(name string) (date string, suffix int, ok bool) {
	matches := checkFilePattern.FindStringSubmatch(name)
	if matches == nil {
		return "", 0, false
	}
	if matches[2] != "" {
		n, err := strconv.Atoi(matches[2])
		if err != nil {
			return "", 0, false
		}
		suffix = n
	}
	return matches[1], suffix, true
}

func buildCheckFilename(dateStr string, suffix int) string {
	if suffix == 0 {
		return fmt.Sprintf("checks-%s.log", dateStr)
	}
	return fmt.Sprintf("checks-%s-%d.log", dateStr, suffix)
}

// Compile-time interface verification.
var _ audit.Store = (*FileStore)(nil)
