package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"RiverWatch/internal/domain"
	"RiverWatch/internal/ports"
)

const defaultFileMode fs.FileMode = 0o644

// FileStore persists the watermark as a JSON metadata file.
type FileStore struct {
	path         string
	sourceURL    string
	historyLimit int
	now          func() time.Time
	logger       *slog.Logger
}

var _ ports.WatermarkStore = (*FileStore)(nil)

// Option customises a FileStore.
type Option func(*FileStore)

// WithClock replaces time.Now; used by tests and by the app to pin the timezone.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// WithHistoryLimit caps the stored execution history.
func WithHistoryLimit(n int) Option {
	return func(s *FileStore) { s.historyLimit = n }
}

// WithLogger attaches a logger for load/save diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *FileStore) { s.logger = l }
}

// NewFileStore builds a store for the metadata file at path.
func NewFileStore(path, sourceURL string, opts ...Option) *FileStore {
	s := &FileStore{
		path:         path,
		sourceURL:    sourceURL,
		historyLimit: domain.DefaultHistoryLimit,
		now:          time.Now,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the metadata file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the persisted state, or a fresh one when the file is absent or unreadable.
func (s *FileStore) Load(ctx context.Context) domain.WatermarkState {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no metadata yet, starting fresh", "path", s.path)
		return s.fresh()
	}
	if err != nil {
		s.logger.Warn("cannot read metadata, starting fresh", "path", s.path, "error", err)
		return s.fresh()
	}

	var st domain.WatermarkState
	if err := json.Unmarshal(raw, &st); err != nil {
		s.logger.Warn("corrupt metadata, starting fresh", "path", s.path, "error", err)
		return s.fresh()
	}

	if st.History == nil {
		st.History = []domain.RunSummary{}
	}
	if st.SourceURL == "" {
		st.SourceURL = s.sourceURL
	}
	return st
}

// Save replaces the metadata file with st. The new content is written to a
// temporary file in the same directory and renamed over the target, so an
// interrupted save leaves the previous file intact.
func (s *FileStore) Save(ctx context.Context, st domain.WatermarkState) error {
	payload, err := encode(st)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp metadata: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(s.fileMode()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp metadata: %w", err)
	}

	if err := writeAndSync(tmp, payload); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp metadata: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace metadata: %w", err)
	}

	s.logger.Debug("metadata saved", "path", s.path, "last_date_value", st.LastDateValue)
	return nil
}

// Update folds a run into st using the store clock and history limit.
func (s *FileStore) Update(st domain.WatermarkState, all, fresh []domain.Bulletin) domain.WatermarkState {
	next := st.Advance(all, fresh, s.now(), s.historyLimit)
	if s.sourceURL != "" {
		next.SourceURL = s.sourceURL
	}
	return next
}

// fileMode keeps the permissions of an existing metadata file; CreateTemp
// would otherwise leave the target 0600 after the rename.
func (s *FileStore) fileMode() fs.FileMode {
	if info, err := os.Stat(s.path); err == nil {
		return info.Mode().Perm()
	}
	return defaultFileMode
}

func (s *FileStore) fresh() domain.WatermarkState {
	return domain.NewWatermarkState(s.sourceURL, s.now())
}

func encode(st domain.WatermarkState) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeAndSync(f *os.File, payload []byte) error {
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
