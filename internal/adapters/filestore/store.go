// Package filestore keeps raw dumps, benchmark histories and export bundles
// as JSON files.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

// Store implements ports.RawStore, ports.HistoryStore and ports.ExportWriter
// on the local filesystem. Every write replaces the target file atomically.
type Store struct {
	rawDir       string
	processedDir string
	exportDir    string
	logger       *slog.Logger
}

// Option configures the store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger.With("component", "filestore")
	}
}

// New creates a store rooted at the given directories
func New(rawDir, processedDir, exportDir string, opts ...Option) *Store {
	s := &Store{
		rawDir:       rawDir,
		processedDir: processedDir,
		exportDir:    exportDir,
		logger:       slog.Default().With("component", "filestore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RawPath returns the dump file of one collector run
func (s *Store) RawPath(benchmark string, platform domain.Platform, date string) string {
	return filepath.Join(s.rawDir, fmt.Sprintf("%s_%s_%s.json", benchmark, platform, date))
}

// HistoryPath returns the history file of a benchmark
func (s *Store) HistoryPath(benchmark string) string {
	return filepath.Join(s.processedDir, benchmark+"_history.json")
}

// ExportPath returns the file of an export bundle
func (s *Store) ExportPath(name string) string {
	return filepath.Join(s.exportDir, name+".json")
}

// SaveRaw writes the observations of one collector run
func (s *Store) SaveRaw(_ context.Context, benchmark string, platform domain.Platform, date string, observations []domain.PriceObservation) (string, error) {
	if observations == nil {
		observations = []domain.PriceObservation{}
	}

	path := s.RawPath(benchmark, platform, date)
	if err := writeJSON(path, observations); err != nil {
		return "", fmt.Errorf("saving raw data: %w", err)
	}

	s.logger.Debug("raw data written", "path", path, "observations", len(observations))
	return path, nil
}

// Load reads a benchmark history
func (s *Store) Load(_ context.Context, benchmark string) (*domain.History, error) {
	path := s.HistoryPath(benchmark)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoHistory, benchmark)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrHistoryStore, path, err)
	}

	history := domain.NewHistory(benchmark)
	if err := json.Unmarshal(data, history); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", domain.ErrHistoryStore, path, err)
	}
	history.Benchmark = benchmark

	return history, nil
}

// Save replaces the history file of h.Benchmark
func (s *Store) Save(_ context.Context, h *domain.History) error {
	path := s.HistoryPath(h.Benchmark)
	if err := writeJSON(path, h); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrHistoryStore, err)
	}

	s.logger.Debug("history written", "path", path, "points", h.Len())
	return nil
}

// Ping checks that the history directory exists or can be created
func (s *Store) Ping(_ context.Context) error {
	if err := os.MkdirAll(s.processedDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrHistoryStore, err)
	}
	return nil
}

// WriteExport writes an export bundle
func (s *Store) WriteExport(_ context.Context, name string, bundle *domain.ExportBundle) (string, error) {
	path := s.ExportPath(name)
	if err := writeJSON(path, bundle); err != nil {
		return "", fmt.Errorf("writing export %s: %w", name, err)
	}
	return path, nil
}

// writeJSON encodes v into a temporary file next to path and renames it
// into place, so readers never see a partial file
func writeJSON(path string, v any) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
