package ports

import (
	"context"
	"errors"
	"time"

	"RiverWatch/internal/domain"
)

// Extraction is the outcome of reading the listing on the source page.
type Extraction struct {
	Bulletins []domain.Bulletin
	Shape     Shape
	Skipped   int
}

// Shape tells whether the page still had the structure the extractor expects.
type Shape string

const (
	ShapeOK             Shape = "ok"
	ShapeContentMissing Shape = "content-missing"
	ShapeListingMissing Shape = "listing-missing"
	ShapeUnfetched      Shape = "unfetched"
)

// BulletinSource fetches the source page and extracts its bulletins.
type BulletinSource interface {
	Fetch(ctx context.Context) (Extraction, error)
}

// WatermarkStore owns the persisted change-detection state.
type WatermarkStore interface {
	Load(ctx context.Context) domain.WatermarkState
	Save(ctx context.Context, state domain.WatermarkState) error
	Update(state domain.WatermarkState, all, fresh []domain.Bulletin) domain.WatermarkState
}

// ErrLocked reports that another run holds the state lock.
var ErrLocked = errors.New("another run holds the state lock")

// Locker serialises runs sharing the same state file. Only ErrLocked refuses
// a run; any other lock failure lets the run proceed unguarded.
type Locker interface {
	Lock(ctx context.Context) (release func(), err error)
}

// RunRecord is the audit row written to the run ledger.
type RunRecord struct {
	ID        string
	StartedAt time.Time
	SourceURL string
	Shape     Shape
	Found     int
	New       int
	Watermark int
}

// RunLedger keeps an append-only audit of runs and the bulletins they announced.
type RunLedger interface {
	RecordRun(ctx context.Context, run RunRecord, fresh []domain.Bulletin) error
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Notifier announces newly detected bulletins on a chat channel.
type Notifier interface {
	Announce(ctx context.Context, fresh []domain.Bulletin) error
}
