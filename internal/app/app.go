package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"RiverWatch/internal/artifact"
	"RiverWatch/internal/config"
	"RiverWatch/internal/domain"
	"RiverWatch/internal/infrastructure/parser"
	"RiverWatch/internal/infrastructure/render"
	"RiverWatch/internal/infrastructure/state"
	"RiverWatch/internal/infrastructure/storage"
	"RiverWatch/internal/infrastructure/telegram"
	"RiverWatch/internal/logging"
	"RiverWatch/internal/ports"
	"RiverWatch/internal/usecase"
)

// ErrNoLedger is returned by History when no ledger path is configured.
var ErrNoLedger = errors.New("run ledger is not configured")

// Application wires configs to use cases.
type Application struct {
	cfg      config.Config
	store    *state.FileStore
	ledger   *storage.SQLiteLedger
	pipeline *usecase.Pipeline
	logger   *slog.Logger
}

// New builds a runnable application instance for the configured output kind.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	loc := cfg.Location()
	now := func() time.Time { return time.Now().In(loc) }

	registry := artifact.NewRegistry()
	registry.Register(render.NewCSVRenderer(cfg.Output.Dir, baseLogger.With("component", "render.csv")))
	registry.Register(render.NewNoticeRenderer(cfg.Output.Dir, cfg.Output.NoticeFile, baseLogger.With("component", "render.notice")))

	renderer, err := registry.Resolve(cfg.Output.Kind)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}

	store := state.NewFileStore(cfg.State.Path, cfg.Source.URL,
		state.WithClock(now),
		state.WithHistoryLimit(cfg.State.HistoryLimit),
		state.WithLogger(baseLogger.With("component", "state")),
	)
	locker := state.NewFileLock(cfg.State.Path, cfg.State.LockStaleAfter, baseLogger.With("component", "lock"))

	source := parser.NewPageSource(nil, cfg.Source, baseLogger.With("component", "source"))

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	application := &Application{cfg: cfg, store: store, logger: baseLogger}

	var ledger ports.RunLedger
	if cfg.Ledger.Path != "" {
		opened, err := storage.OpenSQLiteLedger(cfg.Ledger.Path)
		if err != nil {
			baseLogger.Warn("run ledger unavailable, continuing without it", "path", cfg.Ledger.Path, "error", err)
		} else {
			application.ledger = opened
			ledger = opened
		}
	}

	application.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:    source,
		Store:     store,
		Locker:    locker,
		Renderer:  renderer,
		Notifier:  notifier,
		Ledger:    ledger,
		Logger:    baseLogger.With("component", "pipeline"),
		SourceURL: cfg.Source.URL,
		Now:       now,
	})
	return application, nil
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) (usecase.Result, error) {
	return a.pipeline.Run(ctx)
}

// Status returns the persisted watermark without modifying it.
func (a *Application) Status(ctx context.Context) domain.WatermarkState {
	return a.store.Load(ctx)
}

// StatePath is the metadata file in use.
func (a *Application) StatePath() string {
	return a.store.Path()
}

// History lists recent runs from the ledger.
func (a *Application) History(ctx context.Context, limit int) ([]ports.RunRecord, error) {
	if a.ledger == nil {
		return nil, ErrNoLedger
	}
	return a.ledger.RecentRuns(ctx, limit)
}

// Close releases the ledger.
func (a *Application) Close() error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}
