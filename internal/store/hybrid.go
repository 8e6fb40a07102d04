package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"skyfeed/internal/model"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	entryPrefix   = "queue:entry:"
	pendingIndex  = "queue:pending"
	recentEntries = "queue:recent"
	draftPrefix   = "draft:"
	articlePrefix = "article:"
	slugPrefix    = "slug:"

	recentKeep = 199
)

// HybridStore combines Redis (queue state, atomic claims) and Badger
// (drafts and published articles with their heavy HTML).
type HybridStore struct {
	rdb *redis.Client
	db  *badger.DB
}

// NewHybridStore initializes both databases.
// Pass badgerPath="" to run in queue-only mode (no draft operations).
func NewHybridStore(redisAddr string, badgerPath string) (*HybridStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var db *badger.DB
	var err error

	if badgerPath != "" {
		opts := badger.DefaultOptions(badgerPath)
		opts.Logger = nil // Silence default logger
		db, err = badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
	}

	return &HybridStore{rdb: rdb, db: db}, nil
}

// Close cleans up connections
func (s *HybridStore) Close() {
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// InsertEntry is the dedup gate: SETNX on the content key means the
// first fetch cycle to see an item owns it, concurrent cycles no-op.
func (s *HybridStore) InsertEntry(ctx context.Context, entry model.QueueEntry) (bool, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}

	inserted, err := s.rdb.SetNX(ctx, entryPrefix+entry.Key, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("insert entry %s: %w", entry.Key, err)
	}
	if !inserted {
		return false, nil
	}

	// Index the new entry: pending ZSET scored by creation time gives
	// FIFO drain order, recent list gives operator visibility.
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, pendingIndex, redis.Z{
		Score:  float64(entry.CreatedAt.UnixNano()),
		Member: entry.Key,
	})
	pipe.LPush(ctx, recentEntries, entry.Key)
	pipe.LTrim(ctx, recentEntries, 0, recentKeep)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("index entry %s: %w", entry.Key, err)
	}

	return true, nil
}

func (s *HybridStore) GetEntry(ctx context.Context, key string) (*model.QueueEntry, error) {
	val, err := s.rdb.Get(ctx, entryPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var entry model.QueueEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", key, err)
	}
	return &entry, nil
}

// PendingEntries returns up to limit pending entries, oldest first.
// The ZSET is score-ordered, so a plain range walk is FIFO.
func (s *HybridStore) PendingEntries(ctx context.Context, limit int) ([]model.QueueEntry, error) {
	keys, err := s.rdb.ZRange(ctx, pendingIndex, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	var entries []model.QueueEntry
	for _, key := range keys {
		entry, err := s.GetEntry(ctx, key)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if entry.Status != model.StatusPending {
			continue
		}
		entries = append(entries, *entry)
	}

	return entries, nil
}

// ListEntries fetches the most recently inserted entries.
func (s *HybridStore) ListEntries(ctx context.Context, limit int) ([]model.QueueEntry, error) {
	keys, err := s.rdb.LRange(ctx, recentEntries, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	var entries []model.QueueEntry
	for _, key := range keys {
		entry, err := s.GetEntry(ctx, key)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	return entries, nil
}

// ClaimEntry grants exclusive processing rights via an optimistic
// WATCH transaction: if another drain touches the entry between read
// and write, EXEC fails and the caller skips the entry.
func (s *HybridStore) ClaimEntry(ctx context.Context, key string, now time.Time) (*model.QueueEntry, error) {
	var claimed model.QueueEntry

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, entryPrefix+key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		var entry model.QueueEntry
		if err := json.Unmarshal(val, &entry); err != nil {
			return fmt.Errorf("decode entry %s: %w", key, err)
		}
		if entry.Status != model.StatusPending {
			return ErrClaimConflict
		}

		started := now.UTC()
		entry.Status = model.StatusProcessing
		entry.StartedAt = &started

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, entryPrefix+key, data, 0)
			pipe.ZRem(ctx, pendingIndex, key)
			return nil
		})
		if err != nil {
			return err
		}

		claimed = entry
		return nil
	}, entryPrefix+key)

	if err == redis.TxFailedErr {
		return nil, ErrClaimConflict
	}
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

// CompleteEntry finishes a claimed entry and links its draft.
func (s *HybridStore) CompleteEntry(ctx context.Context, key, draftID string, now time.Time) error {
	return s.transition(ctx, key, model.StatusProcessing, func(entry *model.QueueEntry) {
		processed := now.UTC()
		entry.Status = model.StatusDone
		entry.DraftID = draftID
		entry.ProcessedAt = &processed
	}, nil)
}

// FailEntry records a terminal failure on a claimed entry.
func (s *HybridStore) FailEntry(ctx context.Context, key, msg string, now time.Time) error {
	return s.transition(ctx, key, model.StatusProcessing, func(entry *model.QueueEntry) {
		processed := now.UTC()
		entry.Status = model.StatusError
		entry.Error = model.TruncateError(msg)
		entry.ProcessedAt = &processed
	}, nil)
}

// RequeueEntry resets an errored entry for another drain pass. The
// pending index gets the original creation time back, so a requeued
// entry keeps its place in FIFO order.
func (s *HybridStore) RequeueEntry(ctx context.Context, key string) error {
	return s.transition(ctx, key, model.StatusError, func(entry *model.QueueEntry) {
		entry.Status = model.StatusPending
		entry.Error = ""
		entry.StartedAt = nil
		entry.ProcessedAt = nil
	}, func(pipe redis.Pipeliner, entry model.QueueEntry) {
		pipe.ZAdd(ctx, pendingIndex, redis.Z{
			Score:  float64(entry.CreatedAt.UnixNano()),
			Member: entry.Key,
		})
	})
}

// transition applies a guarded status mutation under WATCH. The entry
// must currently hold the expected status; anything else (including a
// terminal state) is ErrBadTransition.
func (s *HybridStore) transition(ctx context.Context, key string, want model.EntryStatus, mutate func(*model.QueueEntry), extra func(redis.Pipeliner, model.QueueEntry)) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, entryPrefix+key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		var entry model.QueueEntry
		if err := json.Unmarshal(val, &entry); err != nil {
			return fmt.Errorf("decode entry %s: %w", key, err)
		}
		if entry.Status != want {
			return ErrBadTransition
		}

		mutate(&entry)

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, entryPrefix+key, data, 0)
			if extra != nil {
				extra(pipe, entry)
			}
			return nil
		})
		return err
	}, entryPrefix+key)

	if err == redis.TxFailedErr {
		return ErrBadTransition
	}
	return err
}

// SaveDraft writes a draft document to Badger.
func (s *HybridStore) SaveDraft(ctx context.Context, draft model.Draft) error {
	if s.db == nil {
		return fmt.Errorf("cannot save draft: badgerdb is not initialized")
	}

	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(draftPrefix+draft.ID), data)
	})
}

func (s *HybridStore) GetDraft(ctx context.Context, id string) (*model.Draft, error) {
	if s.db == nil {
		return nil, fmt.Errorf("cannot read draft: badgerdb is not initialized")
	}

	var draft model.Draft
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(draftPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &draft)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &draft, nil
}

// PublishDraft promotes a draft inside one Badger transaction: slug
// probing, article creation, slug indexing and the draft's published
// flip all commit together or not at all.
func (s *HybridStore) PublishDraft(ctx context.Context, draftID, baseSlug string, now time.Time) (*model.Article, error) {
	if s.db == nil {
		return nil, fmt.Errorf("cannot publish draft: badgerdb is not initialized")
	}

	var article model.Article
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(draftPrefix + draftID))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		var draft model.Draft
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &draft)
		}); err != nil {
			return err
		}
		if draft.Status == model.DraftStatusPublished {
			return ErrAlreadyPublished
		}

		slug, err := probeSlug(txn, baseSlug)
		if err != nil {
			return err
		}

		published := now.UTC()
		article = model.Article{
			ID:          uuid.NewString(),
			Slug:        slug,
			Title:       draft.SEOTitle,
			MetaDesc:    draft.MetaDesc,
			Tags:        draft.Tags,
			Keywords:    draft.Keywords,
			HTML:        draft.HTML,
			Images:      draft.Images,
			Category:    draft.Category,
			SourceURL:   draft.SourceURL,
			PublishedAt: published,
		}

		articleData, err := json.Marshal(article)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(articlePrefix+article.ID), articleData); err != nil {
			return err
		}
		if err := txn.Set([]byte(slugPrefix+slug), []byte(article.ID)); err != nil {
			return err
		}

		draft.Status = model.DraftStatusPublished
		draft.ArticleID = article.ID
		draft.Slug = slug
		draft.PublishedAt = &published

		draftData, err := json.Marshal(draft)
		if err != nil {
			return err
		}
		return txn.Set([]byte(draftPrefix+draftID), draftData)
	})
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// probeSlug walks slug, slug-2, slug-3, ... until a free one is found.
// Publish is a low-frequency human action, so a linear probe is fine.
func probeSlug(txn *badger.Txn, base string) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		_, err := txn.Get([]byte(slugPrefix + candidate))
		if err == badger.ErrKeyNotFound {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
