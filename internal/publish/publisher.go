package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"skyfeed/internal/model"
	"skyfeed/internal/store"

	"go.uber.org/zap"
)

// maxSlugLen caps derived slugs.
const maxSlugLen = 140

// Publisher promotes a draft to a published article.
type Publisher struct {
	store  store.Store
	logger *zap.Logger
}

func NewPublisher(st store.Store, logger *zap.Logger) *Publisher {
	return &Publisher{store: st, logger: logger}
}

// Publish loads the draft, derives its slug and hands the atomic
// promotion to the store. Slug collisions resolve to base-2, base-3,
// and so on inside the store transaction.
func (p *Publisher) Publish(ctx context.Context, draftID string) (*model.Article, error) {
	draft, err := p.store.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load draft %s: %w", draftID, err)
	}

	source := draft.Slug
	if source == "" {
		source = draft.SEOTitle
	}
	base := Slugify(source)

	article, err := p.store.PublishDraft(ctx, draftID, base, time.Now())
	if err != nil {
		return nil, fmt.Errorf("publish draft %s: %w", draftID, err)
	}

	p.logger.Info("Draft published",
		zap.String("draft_id", draftID),
		zap.String("article_id", article.ID),
		zap.String("slug", article.Slug))

	return article, nil
}

// Slugify normalizes a title into a lowercase ASCII dash-separated
// slug, capped in length. Runs of non-alphanumerics collapse into a
// single dash; an empty result falls back to "article".
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash

	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return "article"
	}
	return slug
}
