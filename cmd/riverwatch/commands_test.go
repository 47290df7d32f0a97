package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"RiverWatch/internal/artifact"
	"RiverWatch/internal/domain"
	"RiverWatch/internal/usecase"
)

func TestPrintResult(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printResult(&buf, usecase.Result{
		HasNew:            true,
		Found:             3,
		PreviousWatermark: 20240105,
		Watermark:         20240301,
		Fresh: []domain.Bulletin{
			{DateValue: 20240301, DateText: "2024年3月1日", Title: "洪水予報", URL: "https://example.jp/a"},
		},
		Artifact: artifact.Artifact{Kind: "csv", Path: "new_river_articles_20240302.csv", HasContent: true},
	})

	out := buf.String()
	for _, want := range []string{
		"previous watermark: 20240105, current: 20240301, bulletins on page: 3",
		"1 new bulletin(s)",
		"2024年3月1日 - 洪水予報\nURL: https://example.jp/a",
		"artifact: new_river_articles_20240302.csv",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintResultNothingNew(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printResult(&buf, usecase.Result{FetchErr: errors.New("timeout")})

	out := buf.String()
	if !strings.Contains(out, "page could not be fetched: timeout") || !strings.Contains(out, "no new bulletins") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
