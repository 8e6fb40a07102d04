package model

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
)

type EntryStatus string

const (
	StatusPending    EntryStatus = "pending"
	StatusProcessing EntryStatus = "processing"
	StatusDone       EntryStatus = "done"
	StatusError      EntryStatus = "error"
)

// MaxErrorLen bounds the error message stored on a failed entry.
const MaxErrorLen = 500

// CandidateItem is one normalized item pulled out of a feed.
// It lives only for the duration of a fetch cycle.
type CandidateItem struct {
	Title   string
	Link    string
	Summary string
}

// Valid reports whether the item carries the required fields.
func (c CandidateItem) Valid() bool {
	return c.Title != "" && c.Link != ""
}

// QueueEntry is one unit of ingested content awaiting generation.
// Key is the dedup fingerprint; category/title/url/summary/created_at
// never change after insert, only status and the result fields do.
type QueueEntry struct {
	Key         string      `json:"key"`
	Category    string      `json:"category"`
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Summary     string      `json:"summary,omitempty"`
	Status      EntryStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
	DraftID     string      `json:"draft_id,omitempty"`
}

// Fingerprint derives the dedup key for an item: SHA1 of the lowercased
// link, falling back to the title for feeds without a stable link.
func Fingerprint(item CandidateItem) string {
	src := item.Link
	if src == "" {
		src = item.Title
	}
	sum := sha1.Sum([]byte(strings.ToLower(src)))
	return hex.EncodeToString(sum[:])
}

// NewQueueEntry creates a pending entry from a parsed item.
func NewQueueEntry(category string, item CandidateItem) QueueEntry {
	return QueueEntry{
		Key:       Fingerprint(item),
		Category:  category,
		Title:     item.Title,
		URL:       item.Link,
		Summary:   item.Summary,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Terminal reports whether the status permits no further transitions.
func (s EntryStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// TruncateError caps an error message for storage.
func TruncateError(msg string) string {
	if len(msg) > MaxErrorLen {
		return msg[:MaxErrorLen]
	}
	return msg
}
