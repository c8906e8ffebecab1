package crawler

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/nao1215/harvester/internal/classify"
	"github.com/nao1215/harvester/internal/model"
	"github.com/nao1215/harvester/internal/pipeline"
)

// ExtractStep parses fetched HTML and fills the page's title, links, and
// text snapshot. Non-HTML content passes through untouched.
type ExtractStep struct{}

// Do implements pipeline.Step.
func (s *ExtractStep) Do(_ context.Context, result *pipeline.Result) error {
	page := result.Page
	if !strings.Contains(strings.ToLower(page.ContentType), "html") {
		return nil
	}

	parser, err := NewParser(page.URL)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	parsed, err := parser.Parse(bytes.NewReader(page.Raw))
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	page.Title = parsed.Title
	page.Links = parsed.Links
	page.Snapshot = parsed.Text
	page.TruncateSnapshot()
	return nil
}

// Name implements pipeline.Step.
func (s *ExtractStep) Name() string { return "extract" }

// ClassifyStep annotates the page with its detected language. Detection
// failures are not errors; an inconclusive page simply stays unannotated.
type ClassifyStep struct{}

// Do implements pipeline.Step.
func (s *ClassifyStep) Do(_ context.Context, result *pipeline.Result) error {
	result.Page.Language = classify.Detect(result.Page)
	return nil
}

// Name implements pipeline.Step.
func (s *ClassifyStep) Name() string { return "classify" }

// PageStore persists fetched pages. Implemented by database.HarvestDB.
type PageStore interface {
	SavePage(ctx context.Context, sessionID string, page *model.Page) error
}

// StoreStep persists the enriched page.
type StoreStep struct {
	store PageStore
}

// NewStoreStep creates a StoreStep backed by the given store.
func NewStoreStep(store PageStore) *StoreStep {
	return &StoreStep{store: store}
}

// Do implements pipeline.Step.
func (s *StoreStep) Do(ctx context.Context, result *pipeline.Result) error {
	if err := s.store.SavePage(ctx, result.Task.SessionID, result.Page); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// Name implements pipeline.Step.
func (s *StoreStep) Name() string { return "store" }
