// Package ledgerstore persists the state ledger document to disk:
// atomic writes (write-tmp-then-rename), a ".bak" backup of the
// previous version, and a cross-process flock so two reconciler
// processes never interleave writes to the same ledger file.
package ledgerstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/rulectl/rulectl/internal/domain/ledger"
)

// Store manages reading and writing the ledger's state file.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates a Store for the given file path.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the configured ledger file path.
func (s *Store) Path() string { return s.path }

// Exists reports whether the ledger file is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and parses the ledger document. A missing file yields a
// fresh document for the given workspace rather than an error, so
// first-run never needs special-casing by callers.
func (s *Store) Load(workspace string) (*ledger.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("ledger file not found, starting fresh", "path", s.path)
			doc := ledger.NewDocument()
			doc.Workspace = workspace
			return doc, nil
		}
		return nil, fmt.Errorf("ledgerstore: read %s: %w", s.path, err)
	}

	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(s.path); statErr == nil {
			if mode := info.Mode().Perm(); mode&0077 != 0 {
				s.logger.Warn("ledger file has too-open permissions, should be 0600",
					"path", s.path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}

	var doc ledger.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("ledgerstore: parse %s: %w", s.path, err)
	}
	return &doc, nil
}

// Save writes doc to disk atomically:
//  1. acquire in-process mutex
//  2. acquire flock on path+".lock"
//  3. back up the current file to path+".bak"
//  4. marshal doc as indented JSON
//  5. write to path+".tmp" with 0600 permissions, fsync
//  6. rename path+".tmp" -> path
//  7. release flock and mutex
func (s *Store) Save(doc *ledger.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("ledgerstore: create parent dir: %w", err)
	}

	lockPath := s.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("ledgerstore: open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return fmt.Errorf("ledgerstore: acquire file lock: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	if currentData, readErr := os.ReadFile(s.path); readErr == nil {
		if writeErr := os.WriteFile(s.path+".bak", currentData, 0600); writeErr != nil {
			s.logger.Warn("failed to back up ledger file", "error", writeErr)
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("ledgerstore: marshal document: %w", err)
	}
	data = append(data, '\n')

	if err := s.writeAtomic(data); err != nil {
		return err
	}

	if err := os.Chmod(s.path, 0600); err != nil {
		s.logger.Warn("failed to set permissions on ledger file", "error", err)
	}

	s.logger.Debug("ledger saved", "path", s.path)
	return nil
}

func (s *Store) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("ledgerstore: create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("ledgerstore: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("ledgerstore: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("ledgerstore: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("ledgerstore: rename temp to ledger: %w", err)
	}
	return nil
}

