package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"skyfeed/internal/generate"
	"skyfeed/internal/model"
	"skyfeed/internal/store"

	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// maxExcerptLen bounds how much scraped page text goes into the prompt.
const maxExcerptLen = 2000

// Scraper defines the interface for downloading source pages.
// This allows us to mock the enrichment step in tests.
type Scraper interface {
	Scrape(url string, timeout time.Duration) (*readability.Article, error)
}

// DefaultScraper is the real implementation that uses the internet
type DefaultScraper struct{}

func (s *DefaultScraper) Scrape(url string, timeout time.Duration) (*readability.Article, error) {
	art, err := readability.FromURL(url, timeout)
	return &art, err
}

// Result summarizes one drain call. Done is the reported count.
type Result struct {
	Claimed int `json:"claimed"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Drainer claims pending queue entries and runs them through the
// generation service, producing drafts. Overlapping drains are safe:
// the store's claim CAS ensures each entry is processed exactly once.
type Drainer struct {
	store     store.Store
	generator generate.Generator
	logger    *zap.Logger
	scraper   Scraper
}

// NewDrainer initializes the drainer with the DefaultScraper.
func NewDrainer(st store.Store, gen generate.Generator, logger *zap.Logger) *Drainer {
	return &Drainer{
		store:     st,
		generator: gen,
		logger:    logger,
		scraper:   &DefaultScraper{},
	}
}

// Drain claims up to maxBatch pending entries, oldest first, and
// processes each one. A failing entry goes to its terminal error
// state and never aborts the rest of the batch.
func (d *Drainer) Drain(ctx context.Context, maxBatch int) (Result, error) {
	var result Result

	pending, err := d.store.PendingEntries(ctx, maxBatch)
	if err != nil {
		return result, fmt.Errorf("select pending entries: %w", err)
	}

	for _, entry := range pending {
		claimed, err := d.store.ClaimEntry(ctx, entry.Key, time.Now())
		if err == store.ErrClaimConflict || err == store.ErrNotFound {
			result.Skipped++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("claim entry %s: %w", entry.Key, err)
		}
		result.Claimed++

		if d.processEntry(ctx, *claimed) {
			result.Done++
		} else {
			result.Failed++
		}
	}

	d.logger.Info("Drain complete",
		zap.Int("claimed", result.Claimed),
		zap.Int("done", result.Done),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))

	return result, nil
}

func (d *Drainer) processEntry(ctx context.Context, entry model.QueueEntry) bool {
	logger := d.logger.With(zap.String("key", entry.Key), zap.String("title", entry.Title))
	logger.Info("Processing started")

	content, err := d.generator.Generate(ctx, d.buildPrompt(entry))
	if err != nil {
		logger.Error("Generation failed", zap.Error(err))
		return d.failEntry(ctx, entry, err.Error(), logger)
	}

	draft := model.NewDraft(entry, *content)
	if err := d.store.SaveDraft(ctx, draft); err != nil {
		logger.Error("Failed to save draft", zap.Error(err))
		return d.failEntry(ctx, entry, err.Error(), logger)
	}

	if err := d.store.CompleteEntry(ctx, entry.Key, draft.ID, time.Now()); err != nil {
		logger.Error("Failed to mark entry done", zap.Error(err))
		return false
	}

	logger.Info("Draft created", zap.String("draft_id", draft.ID))
	return true
}

// buildPrompt concatenates the entry fields, plus readable text from
// the source page when the scrape succeeds. A scrape failure only
// degrades the prompt, it never fails the entry.
func (d *Drainer) buildPrompt(entry model.QueueEntry) string {
	var b strings.Builder
	b.WriteString(entry.Title)
	b.WriteString("\n")
	b.WriteString(entry.URL)
	if entry.Summary != "" {
		b.WriteString("\n")
		b.WriteString(entry.Summary)
	}

	if d.scraper != nil {
		page, err := d.scraper.Scrape(entry.URL, 30*time.Second)
		if err != nil {
			d.logger.Debug("Source scrape failed, using bare prompt",
				zap.String("url", entry.URL), zap.Error(err))
			return b.String()
		}
		excerpt := strings.TrimSpace(page.TextContent)
		if len(excerpt) > maxExcerptLen {
			excerpt = excerpt[:maxExcerptLen]
		}
		if excerpt != "" {
			b.WriteString("\n\n")
			b.WriteString(excerpt)
		}
	}

	return b.String()
}

func (d *Drainer) failEntry(ctx context.Context, entry model.QueueEntry, msg string, logger *zap.Logger) bool {
	if err := d.store.FailEntry(ctx, entry.Key, msg, time.Now()); err != nil {
		logger.Error("Failed to record entry error", zap.Error(err))
	}
	return false
}
