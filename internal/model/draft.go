package model

import (
	"time"

	"github.com/google/uuid"
)

type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusPublished DraftStatus = "published"
)

// GeneratedContent is the structured result of one generation call.
type GeneratedContent struct {
	SEOTitle string   `json:"seoTitle"`
	MetaDesc string   `json:"metaDesc"`
	Slug     string   `json:"slug"`
	Tags     []string `json:"tags"`
	Keywords []string `json:"keywords"`
	HTML     string   `json:"html"`
	Images   []string `json:"images"`
}

// Draft is generated-but-unpublished content produced from a processed
// queue entry. It mutates exactly once, when publish flips its status
// and links the created article.
type Draft struct {
	ID          string      `json:"id"`
	SEOTitle    string      `json:"seo_title"`
	MetaDesc    string      `json:"meta_desc"`
	Slug        string      `json:"slug"`
	Tags        []string    `json:"tags"`
	Keywords    []string    `json:"keywords"`
	HTML        string      `json:"html"`
	Images      []string    `json:"images"`
	SourceURL   string      `json:"source_url"`
	Category    string      `json:"category"`
	Status      DraftStatus `json:"status"`
	ArticleID   string      `json:"article_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
}

// NewDraft builds a draft from generated content and its source entry.
func NewDraft(entry QueueEntry, content GeneratedContent) Draft {
	return Draft{
		ID:        uuid.NewString(),
		SEOTitle:  content.SEOTitle,
		MetaDesc:  content.MetaDesc,
		Slug:      content.Slug,
		Tags:      content.Tags,
		Keywords:  content.Keywords,
		HTML:      content.HTML,
		Images:    content.Images,
		SourceURL: entry.URL,
		Category:  entry.Category,
		Status:    DraftStatusDraft,
		CreatedAt: time.Now().UTC(),
	}
}

// Article is a published piece readable on the public surface.
type Article struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	MetaDesc    string    `json:"meta_desc"`
	Tags        []string  `json:"tags"`
	Keywords    []string  `json:"keywords"`
	HTML        string    `json:"html"`
	Images      []string  `json:"images"`
	Category    string    `json:"category"`
	SourceURL   string    `json:"source_url"`
	PublishedAt time.Time `json:"published_at"`
}
