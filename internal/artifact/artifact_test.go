package artifact

import (
	"context"
	"errors"
	"testing"
	"time"

	"RiverWatch/internal/domain"
)

type stubRenderer struct{ kind string }

func (s stubRenderer) Kind() string { return s.kind }

func (s stubRenderer) Render(context.Context, []domain.Bulletin, time.Time) (Artifact, error) {
	return Artifact{Kind: s.kind}, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(stubRenderer{kind: "csv"})
	reg.Register(stubRenderer{kind: "notice"})

	r, err := reg.Resolve("notice")
	if err != nil {
		t.Fatalf("resolve notice: %v", err)
	}
	if r.Kind() != "notice" {
		t.Fatalf("unexpected renderer: %s", r.Kind())
	}

	if _, err := reg.Resolve("pdf"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}

	kinds := reg.Kinds()
	if len(kinds) != 2 || kinds[0] != "csv" || kinds[1] != "notice" {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
}

func TestRegistryZeroValue(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(stubRenderer{kind: "csv"})
	if _, err := reg.Resolve("csv"); err != nil {
		t.Fatalf("resolve on zero registry: %v", err)
	}
}
