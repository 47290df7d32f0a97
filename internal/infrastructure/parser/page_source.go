package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"RiverWatch/internal/config"
	"RiverWatch/internal/ports"
)

const maxPageBytes = 10 << 20

// PageSource implements BulletinSource for a single listing page.
type PageSource struct {
	client         *http.Client
	pageURL        string
	userAgent      string
	acceptLanguage string
	logger         *slog.Logger
}

var _ ports.BulletinSource = (*PageSource)(nil)

// NewPageSource wires an HTTP client; a nil client gets the configured timeout.
func NewPageSource(client *http.Client, cfg config.SourceConfig, log *slog.Logger) *PageSource {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &PageSource{
		client:         client,
		pageURL:        cfg.URL,
		userAgent:      cfg.UserAgent,
		acceptLanguage: cfg.AcceptLanguage,
		logger:         log,
	}
}

// Fetch downloads the page once and extracts its bulletins.
func (s *PageSource) Fetch(ctx context.Context) (ports.Extraction, error) {
	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return ports.Extraction{Shape: ports.ShapeUnfetched}, err
	}

	s.logger.Debug("page fetched", "url", s.pageURL)
	return ExtractBulletins(doc, s.pageURL, s.logger), nil
}

func (s *PageSource) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if s.acceptLanguage != "" {
		req.Header.Set("Accept-Language", s.acceptLanguage)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("source returned %s", resp.Status)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}
