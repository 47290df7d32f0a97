package render

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"RiverWatch/internal/artifact"
	"RiverWatch/internal/domain"
)

// KindCSV selects the tabular export.
const KindCSV = "csv"

var csvHeader = []string{"date_str", "title", "url"}

// CSVRenderer writes new bulletins to new_river_articles_YYYYMMDD.csv.
type CSVRenderer struct {
	dir    string
	logger *slog.Logger
}

var _ artifact.Renderer = (*CSVRenderer)(nil)

// NewCSVRenderer writes files into dir.
func NewCSVRenderer(dir string, log *slog.Logger) *CSVRenderer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CSVRenderer{dir: dir, logger: log}
}

func (r *CSVRenderer) Kind() string { return KindCSV }

// FileName returns the export name for a run on runAt.
func (r *CSVRenderer) FileName(runAt time.Time) string {
	return filepath.Join(r.dir, fmt.Sprintf("new_river_articles_%s.csv", runAt.Format("20060102")))
}

// Render writes nothing when bulletins is empty.
func (r *CSVRenderer) Render(ctx context.Context, bulletins []domain.Bulletin, runAt time.Time) (artifact.Artifact, error) {
	result := artifact.Artifact{Kind: KindCSV}
	path := r.FileName(runAt)

	if len(bulletins) == 0 {
		r.logger.Info("nothing to save", "file", path)
		return result, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return result, fmt.Errorf("create csv: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return result, fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range bulletins {
		if err := w.Write([]string{b.DateText, b.Title, b.URL}); err != nil {
			_ = f.Close()
			return result, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return result, fmt.Errorf("flush csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return result, fmt.Errorf("close csv: %w", err)
	}

	r.logger.Info("bulletins saved", "count", len(bulletins), "file", path)
	result.Path = path
	result.HasContent = true
	return result, nil
}
