package store

import (
	"context"
	"errors"
	"time"

	"skyfeed/internal/model"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrClaimConflict    = errors.New("entry already claimed")
	ErrBadTransition    = errors.New("invalid status transition")
	ErrAlreadyPublished = errors.New("draft already published")
)

// Store is the durable coordination point for the whole pipeline.
// All cross-invocation safety (dedup, claims, publish atomicity) lives
// behind these methods; callers hold no locks of their own.
type Store interface {
	// InsertEntry inserts a pending entry unless its key already
	// exists. First insert wins; the bool reports whether this call
	// created the entry.
	InsertEntry(ctx context.Context, entry model.QueueEntry) (bool, error)
	GetEntry(ctx context.Context, key string) (*model.QueueEntry, error)
	// PendingEntries returns up to limit pending entries, oldest first.
	PendingEntries(ctx context.Context, limit int) ([]model.QueueEntry, error)
	// ListEntries returns the most recently inserted entries.
	ListEntries(ctx context.Context, limit int) ([]model.QueueEntry, error)

	// ClaimEntry flips pending -> processing. ErrClaimConflict means a
	// concurrent drain got there first and the entry must be skipped.
	ClaimEntry(ctx context.Context, key string, now time.Time) (*model.QueueEntry, error)
	// CompleteEntry flips processing -> done and records the draft id.
	CompleteEntry(ctx context.Context, key, draftID string, now time.Time) error
	// FailEntry flips processing -> error with a truncated message.
	FailEntry(ctx context.Context, key, msg string, now time.Time) error
	// RequeueEntry flips error -> pending for manual retry.
	RequeueEntry(ctx context.Context, key string) error

	SaveDraft(ctx context.Context, draft model.Draft) error
	GetDraft(ctx context.Context, id string) (*model.Draft, error)
	// PublishDraft atomically resolves a unique slug from baseSlug,
	// creates the article and marks the draft published. Either all
	// three writes land or none do.
	PublishDraft(ctx context.Context, draftID, baseSlug string, now time.Time) (*model.Article, error)

	Close()
}
