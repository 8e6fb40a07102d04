package ingest

import (
	"context"

	"skyfeed/internal/config"
	"skyfeed/internal/feed"
	"skyfeed/internal/model"
	"skyfeed/internal/store"

	"go.uber.org/zap"
)

// FeedFetcher downloads one feed URL as raw text.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FeedParser extracts candidate items from raw feed text.
type FeedParser interface {
	Parse(raw string) ([]model.CandidateItem, error)
}

// Report summarizes one fetch cycle. Inserted is the cycle's result:
// the number of genuinely new queue entries.
type Report struct {
	Sources  int `json:"sources"`
	Failed   int `json:"failed"`
	Items    int `json:"items"`
	Inserted int `json:"inserted"`
}

// Ingestor runs one fetch cycle over all configured feed groups.
type Ingestor struct {
	store   store.Store
	fetcher FeedFetcher
	parser  FeedParser
	feeds   []config.FeedGroup
	logger  *zap.Logger
}

func NewIngestor(st store.Store, fetcher FeedFetcher, parser FeedParser, feeds []config.FeedGroup, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		store:   st,
		fetcher: fetcher,
		parser:  parser,
		feeds:   feeds,
		logger:  logger,
	}
}

// NewDefaultIngestor wires the real HTTP fetcher and gofeed parser.
func NewDefaultIngestor(st store.Store, cfg config.Config, logger *zap.Logger) *Ingestor {
	return NewIngestor(
		st,
		feed.NewFetcher(cfg.Fetch.Timeout.Std(), cfg.Fetch.UserAgent),
		feed.NewParser(cfg.Fetch.ItemsPerFeed),
		cfg.Feeds,
		logger,
	)
}

// Run processes every source sequentially. A failing source is logged
// and skipped; it never aborts the rest of the cycle. Retries come
// from the external scheduler re-invoking the cycle, not from here.
func (i *Ingestor) Run(ctx context.Context) (Report, error) {
	var report Report

	for _, group := range i.feeds {
		for _, url := range group.URLs {
			report.Sources++

			raw, err := i.fetcher.Fetch(ctx, url)
			if err != nil {
				report.Failed++
				i.logger.Warn("Feed fetch failed",
					zap.String("category", group.Category),
					zap.String("url", url),
					zap.Error(err))
				continue
			}

			items, err := i.parser.Parse(raw)
			if err != nil {
				report.Failed++
				i.logger.Warn("Feed parse failed",
					zap.String("category", group.Category),
					zap.String("url", url),
					zap.Error(err))
				continue
			}

			for _, item := range items {
				report.Items++

				entry := model.NewQueueEntry(group.Category, item)
				inserted, err := i.store.InsertEntry(ctx, entry)
				if err != nil {
					i.logger.Error("Enqueue failed",
						zap.String("key", entry.Key),
						zap.Error(err))
					continue
				}
				if inserted {
					report.Inserted++
					i.logger.Info("Entry queued",
						zap.String("key", entry.Key),
						zap.String("category", group.Category),
						zap.String("title", item.Title))
				}
			}
		}
	}

	i.logger.Info("Fetch cycle complete",
		zap.Int("sources", report.Sources),
		zap.Int("failed", report.Failed),
		zap.Int("items", report.Items),
		zap.Int("inserted", report.Inserted))

	return report, nil
}
