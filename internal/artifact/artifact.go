package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"RiverWatch/internal/domain"
)

// ErrUnknownKind is returned when no renderer is registered for a kind.
var ErrUnknownKind = errors.New("unknown artifact kind")

// Artifact describes the file a renderer produced for one run.
type Artifact struct {
	Kind string
	// Path is empty when nothing was written.
	Path       string
	HasContent bool
}

// Renderer turns the bulletins found in a run into an output artifact.
type Renderer interface {
	Kind() string
	Render(ctx context.Context, bulletins []domain.Bulletin, runAt time.Time) (Artifact, error)
}

// Registry keeps a mapping from artifact kinds to their renderers.
type Registry struct {
	renderers map[string]Renderer
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{renderers: map[string]Renderer{}}
}

// Register adds or replaces a renderer implementation.
func (r *Registry) Register(renderer Renderer) {
	if r.renderers == nil {
		r.renderers = map[string]Renderer{}
	}
	r.renderers[renderer.Kind()] = renderer
}

// Resolve returns a renderer by kind or ErrUnknownKind.
func (r *Registry) Resolve(kind string) (Renderer, error) {
	if renderer, ok := r.renderers[kind]; ok {
		return renderer, nil
	}
	return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownKind, kind, r.Kinds())
}

// Kinds lists registered kinds in lexical order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.renderers))
	for k := range r.renderers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// NoticeSeparator joins consecutive bulletin blocks in notice text.
const NoticeSeparator = "\n\n---\n\n"

// FormatNotice renders bulletins as labelled blocks; no bulletins yield "".
func FormatNotice(bulletins []domain.Bulletin) string {
	if len(bulletins) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(bulletins))
	for _, b := range bulletins {
		blocks = append(blocks, fmt.Sprintf("📢 宮城県 河川情報 新着記事\n📅 日付: %s\n📰 タイトル: %s\n🔗 URL: %s",
			b.DateText, b.Title, b.URL))
	}
	return strings.Join(blocks, NoticeSeparator)
}
