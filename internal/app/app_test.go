package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"RiverWatch/internal/artifact"
	"RiverWatch/internal/config"
)

const listing = `<html><body><div id="tmp_contents"><ul>
<li><a href="/site/kasen/1.html">河川水位の速報</a>（2024年3月1日）</li>
<li><a href="/site/kasen/2.html">ダム放流のお知らせ</a>（2024年2月20日）</li>
</ul></div></body></html>`

func testConfig(t *testing.T, url, kind string) config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.LoadFrom("")
	cfg.Source.URL = url
	cfg.Source.Timeout = 2 * time.Second
	cfg.State.Path = filepath.Join(dir, "state.json")
	cfg.Output.Kind = kind
	cfg.Output.Dir = dir
	cfg.Ledger.Path = filepath.Join(dir, "ledger.db")
	cfg.Notifications.Telegram = config.TelegramConfig{}
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplicationEndToEnd(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(listing))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL+"/life/index.html", "notice")
	application, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer application.Close()

	ctx := context.Background()
	first, err := application.Run(ctx)
	require.NoError(t, err)
	require.True(t, first.HasNew)
	require.Len(t, first.Fresh, 2)
	require.Equal(t, server.URL+"/site/kasen/1.html", first.Fresh[0].URL)

	second, err := application.Run(ctx)
	require.NoError(t, err)
	require.False(t, second.HasNew)

	status := application.Status(ctx)
	require.Equal(t, 20240301, status.LastDateValue)
	require.Equal(t, 4, status.TotalSeen)
	require.Equal(t, 2, status.TotalNew)

	notice, err := os.ReadFile(filepath.Join(cfg.Output.Dir, cfg.Output.NoticeFile))
	require.NoError(t, err)
	require.Empty(t, notice)

	runs, err := application.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, second.RunID, runs[0].ID)
}

func TestApplicationUnknownOutputKind(t *testing.T) {
	t.Parallel()

	_, err := New(testConfig(t, "http://127.0.0.1:1/", "pdf"), quietLogger())
	require.ErrorIs(t, err, artifact.ErrUnknownKind)
}

func TestApplicationHistoryWithoutLedger(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1/", "csv")
	cfg.Ledger.Path = ""
	application, err := New(cfg, quietLogger())
	require.NoError(t, err)

	_, err = application.History(context.Background(), 5)
	require.True(t, errors.Is(err, ErrNoLedger))
}
