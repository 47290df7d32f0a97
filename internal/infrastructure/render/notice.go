package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"RiverWatch/internal/artifact"
	"RiverWatch/internal/domain"
)

// KindNotice selects the notification text file.
const KindNotice = "notice"

// NoticeRenderer writes a human-readable notice to a fixed file on every run.
type NoticeRenderer struct {
	path   string
	logger *slog.Logger
}

var _ artifact.Renderer = (*NoticeRenderer)(nil)

// NewNoticeRenderer writes to dir/fileName.
func NewNoticeRenderer(dir, fileName string, log *slog.Logger) *NoticeRenderer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &NoticeRenderer{path: filepath.Join(dir, fileName), logger: log}
}

func (r *NoticeRenderer) Kind() string { return KindNotice }

// Render always writes the file; it is empty when there is nothing new so
// downstream steps can test its size.
func (r *NoticeRenderer) Render(ctx context.Context, bulletins []domain.Bulletin, runAt time.Time) (artifact.Artifact, error) {
	text := artifact.FormatNotice(bulletins)
	result := artifact.Artifact{Kind: KindNotice}

	if err := os.WriteFile(r.path, []byte(text), 0o644); err != nil {
		return result, fmt.Errorf("write notice: %w", err)
	}

	result.Path = r.path
	result.HasContent = text != ""
	r.logger.Info("notice written", "file", r.path, "bulletins", len(bulletins))
	return result, nil
}
