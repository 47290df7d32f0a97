package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"RiverWatch/internal/ports"
)

// ErrLocked is returned when another run holds the lock.
var ErrLocked = ports.ErrLocked

// FileLock is an advisory lock next to the metadata file.
type FileLock struct {
	path       string
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

var _ ports.Locker = (*FileLock)(nil)

// NewFileLock guards statePath with statePath+".lock". Locks older than
// staleAfter are considered abandoned; zero disables breaking.
func NewFileLock(statePath string, staleAfter time.Duration, log *slog.Logger) *FileLock {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &FileLock{
		path:       statePath + ".lock",
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     log,
	}
}

// Lock acquires the lock or returns ErrLocked.
func (l *FileLock) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := l.create()
	if errors.Is(err, fs.ErrExist) && l.breakStale() {
		f, err = l.create()
	}
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, l.path)
	}
	if err != nil {
		return nil, fmt.Errorf("create lock: %w", err)
	}

	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	_ = f.Close()

	release := func() {
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("cannot release state lock", "path", l.path, "error", err)
		}
	}
	return release, nil
}

func (l *FileLock) create() (*os.File, error) {
	return os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

func (l *FileLock) breakStale() bool {
	if l.staleAfter <= 0 {
		return false
	}
	info, err := os.Stat(l.path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}
	age := l.now().Sub(info.ModTime())
	if age < l.staleAfter {
		return false
	}
	l.logger.Warn("breaking stale state lock", "path", l.path, "age", age.String())
	return os.Remove(l.path) == nil
}
