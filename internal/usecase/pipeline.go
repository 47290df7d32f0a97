package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"RiverWatch/internal/artifact"
	"RiverWatch/internal/domain"
	"RiverWatch/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source   ports.BulletinSource
	Store    ports.WatermarkStore
	Locker   ports.Locker
	Renderer artifact.Renderer
	Notifier ports.Notifier
	Ledger   ports.RunLedger
	Logger   *slog.Logger
	// SourceURL is recorded in the ledger.
	SourceURL string
	Now       func() time.Time
}

// Pipeline implements one change-detection run.
type Pipeline struct {
	source    ports.BulletinSource
	store     ports.WatermarkStore
	locker    ports.Locker
	renderer  artifact.Renderer
	notifier  ports.Notifier
	ledger    ports.RunLedger
	logger    *slog.Logger
	sourceURL string
	now       func() time.Time
}

// Result is the outcome of a run.
type Result struct {
	RunID             string
	HasNew            bool
	Found             int
	Skipped           int
	Fresh             []domain.Bulletin
	PreviousWatermark int
	Watermark         int
	Shape             ports.Shape
	Artifact          artifact.Artifact
	FetchErr          error
	ArtifactErr       error
	SaveErr           error
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:    deps.Source,
		store:     deps.Store,
		locker:    deps.Locker,
		renderer:  deps.Renderer,
		notifier:  deps.Notifier,
		ledger:    deps.Ledger,
		logger:    deps.Logger,
		sourceURL: deps.SourceURL,
		now:       deps.Now,
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run loads the watermark, fetches and diffs the page, renders the new
// bulletins and persists the advanced watermark. Once the lock is held every
// failure is logged and degraded so the run record is always written; the
// returned error only reports that another run holds the lock.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if p.store == nil {
		return Result{}, fmt.Errorf("watermark store is not configured")
	}

	if p.locker != nil {
		release, err := p.locker.Lock(ctx)
		switch {
		case errors.Is(err, ports.ErrLocked):
			return Result{}, fmt.Errorf("acquire state lock: %w", err)
		case err != nil:
			p.logger.Warn("state lock unavailable, running unguarded", "error", err)
		default:
			defer release()
		}
	}

	runAt := p.now()
	result := Result{RunID: uuid.NewString(), Shape: ports.ShapeUnfetched}

	state := p.store.Load(ctx)
	result.PreviousWatermark = state.LastDateValue
	p.logger.Info("run started", "run_id", result.RunID, "last_date_value", state.LastDateValue)

	var all []domain.Bulletin
	if p.source != nil {
		extraction, err := p.source.Fetch(ctx)
		result.Shape = extraction.Shape
		result.Skipped = extraction.Skipped
		if err != nil {
			result.FetchErr = err
			p.logger.Warn("fetch failed, treating as zero bulletins", "error", err)
		} else {
			all = extraction.Bulletins
		}
	}
	result.Found = len(all)

	fresh := FindNew(all, state.LastDateValue)
	result.Fresh = fresh
	result.HasNew = len(fresh) > 0

	if highest, ok := domain.MaxDateValue(all); ok {
		p.logger.Info("bulletins found", "count", len(all), "latest", highest, "new", len(fresh))
	} else {
		p.logger.Info("no bulletins found", "shape", result.Shape)
	}

	if p.renderer != nil {
		art, err := p.renderer.Render(ctx, fresh, runAt)
		result.Artifact = art
		if err != nil {
			result.ArtifactErr = err
			p.logger.Error("render artifact", "kind", p.renderer.Kind(), "error", err)
		}
	}

	if p.notifier != nil && result.HasNew {
		if err := p.notifier.Announce(ctx, fresh); err != nil {
			p.logger.Error("announce new bulletins", "error", err)
		}
	}

	next := p.store.Update(state, all, fresh)
	result.Watermark = next.LastDateValue
	if err := p.store.Save(ctx, next); err != nil {
		result.SaveErr = err
		p.logger.Error("save watermark", "error", err)
	}

	if p.ledger != nil {
		err := p.ledger.RecordRun(ctx, ports.RunRecord{
			ID:        result.RunID,
			StartedAt: runAt,
			SourceURL: p.sourceURL,
			Shape:     result.Shape,
			Found:     result.Found,
			New:       len(fresh),
			Watermark: next.LastDateValue,
		}, fresh)
		if err != nil {
			p.logger.Error("record run in ledger", "error", err)
		}
	}

	p.logger.Info("run finished", "run_id", result.RunID, "has_new", result.HasNew, "watermark", result.Watermark)
	return result, nil
}
