package feed

import (
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"skyfeed/internal/model"
)

// Parser turns raw RSS/Atom text into candidate items. gofeed handles
// both syndication shapes (RSS items and Atom entries) and strips
// CDATA wrapping for us.
type Parser struct {
	parser   *gofeed.Parser
	maxItems int
}

// NewParser caps the number of items taken per feed so one oversized
// source cannot dominate a fetch cycle.
func NewParser(maxItems int) *Parser {
	return &Parser{
		parser:   gofeed.NewParser(),
		maxItems: maxItems,
	}
}

// Parse extracts up to maxItems normalized candidates. Items missing a
// title or link are dropped silently.
func (p *Parser) Parse(raw string) ([]model.CandidateItem, error) {
	parsed, err := p.parser.ParseString(raw)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var items []model.CandidateItem
	for _, entry := range parsed.Items {
		if len(items) >= p.maxItems {
			break
		}

		item := model.CandidateItem{
			Title:   strings.TrimSpace(entry.Title),
			Link:    strings.TrimSpace(entry.Link),
			Summary: pickSummary(entry),
		}
		if !item.Valid() {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// pickSummary prefers the item description, falling back to the
// content body for Atom feeds that only carry <content>.
func pickSummary(entry *gofeed.Item) string {
	if s := strings.TrimSpace(entry.Description); s != "" {
		return s
	}
	return strings.TrimSpace(entry.Content)
}
