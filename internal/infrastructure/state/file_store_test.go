package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"RiverWatch/internal/domain"
)

const source = "https://www.pref.miyagi.jp/life/4/15/49/index.html"

var fixedNow = time.Date(2024, time.March, 2, 8, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "miyagi_river_metadata.json")
	return NewFileStore(path, source, WithClock(func() time.Time { return fixedNow })), path
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	st := store.Load(context.Background())

	require.Equal(t, 0, st.LastDateValue)
	require.Equal(t, source, st.SourceURL)
	require.Equal(t, "2024-03-02 08:00:00", st.LastRun)
	require.Empty(t, st.History)
}

func TestLoadCorruptFileReturnsDefault(t *testing.T) {
	t.Parallel()

	for name, content := range map[string]string{
		"garbage":    "{not json",
		"truncated":  `{"last_date_value": 2024`,
		"wrong type": `{"last_date_value": "yesterday"}`,
		"array":      `[1, 2, 3]`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store, path := newStore(t)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			st := store.Load(context.Background())
			require.Equal(t, 0, st.LastDateValue)
			require.Equal(t, source, st.SourceURL)
		})
	}
}

func TestLoadReadsLegacyMetadata(t *testing.T) {
	t.Parallel()

	store, path := newStore(t)
	legacy := `{
  "last_date_value": 20240105,
  "last_run": "2024-01-06 06:00:00",
  "total_articles_found": 12,
  "total_new_articles": 3,
  "execution_history": [
    {"timestamp": "2024-01-06 06:00:00", "articles_found": 12, "new_articles": 3}
  ],
  "source_url": "https://www.pref.miyagi.jp/life/4/15/49/index.html"
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	st := store.Load(context.Background())
	require.Equal(t, 20240105, st.LastDateValue)
	require.Equal(t, 12, st.TotalSeen)
	require.Equal(t, 3, st.TotalNew)
	require.Len(t, st.History, 1)
	require.Equal(t, 3, st.History[0].New)
}

func TestSaveUpdateLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store, path := newStore(t)
	ctx := context.Background()

	all := []domain.Bulletin{
		{DateValue: 20240301, DateText: "2024年3月1日", Title: "河川の水位", URL: "https://example.jp/a"},
		{DateValue: 20240105, DateText: "2024年1月5日", Title: "ダム", URL: "https://example.jp/b"},
	}
	fresh := all[:1]

	loaded := store.Load(ctx)
	updated := store.Update(loaded, all, fresh)
	require.NoError(t, store.Save(ctx, updated))

	reloaded := store.Load(ctx)
	require.Equal(t, 20240301, reloaded.LastDateValue)
	require.Equal(t, loaded.TotalSeen+2, reloaded.TotalSeen)
	require.Equal(t, loaded.TotalNew+1, reloaded.TotalNew)
	require.Equal(t, updated, reloaded)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"total_articles_found": 2`)
	require.Contains(t, string(raw), `"source_url": "https://www.pref.miyagi.jp/life/4/15/49/index.html"`)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	store, path := newStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, store.Update(store.Load(ctx), nil, nil)))
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestSavePermissions(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}

	ctx := context.Background()

	t.Run("new file is world readable", func(t *testing.T) {
		t.Parallel()

		store, path := newStore(t)
		require.NoError(t, store.Save(ctx, store.Load(ctx)))

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	})

	t.Run("existing mode is kept", func(t *testing.T) {
		t.Parallel()

		store, path := newStore(t)
		require.NoError(t, os.WriteFile(path, []byte(`{"last_date_value": 1}`), 0o600))
		require.NoError(t, os.Chmod(path, 0o640))

		require.NoError(t, store.Save(ctx, store.Load(ctx)))

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	})
}

func TestSaveFailureKeepsPreviousFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "missing-dir", "state.json")
	store := NewFileStore(path, source)

	err := store.Save(context.Background(), domain.WatermarkState{LastDateValue: 1})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	require.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestUpdateUsesHistoryLimit(t *testing.T) {
	t.Parallel()

	store := NewFileStore("unused.json", source, WithHistoryLimit(2), WithClock(func() time.Time { return fixedNow }))
	st := domain.WatermarkState{}
	for i := 0; i < 5; i++ {
		st = store.Update(st, nil, nil)
	}
	require.Len(t, st.History, 2)
	require.Equal(t, source, st.SourceURL)
}

func TestFileLock(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.json")
	lock := NewFileLock(statePath, time.Hour, nil)
	ctx := context.Background()

	release, err := lock.Lock(ctx)
	require.NoError(t, err)

	_, err = NewFileLock(statePath, time.Hour, nil).Lock(ctx)
	require.ErrorIs(t, err, ErrLocked)

	release()

	again, err := lock.Lock(ctx)
	require.NoError(t, err)
	again()
}

func TestFileLockBreaksStaleLock(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(statePath+".lock", []byte("stale"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(statePath+".lock", old, old))

	release, err := NewFileLock(statePath, time.Hour, nil).Lock(context.Background())
	require.NoError(t, err)
	defer release()

	raw, err := os.ReadFile(statePath + ".lock")
	require.NoError(t, err)
	require.NotEqual(t, "stale", strings.TrimSpace(string(raw)))
}

func TestFileLockCreateFailureIsNotContention(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "missing-dir", "state.json")
	_, err := NewFileLock(statePath, time.Hour, nil).Lock(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrLocked)
}
