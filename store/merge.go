package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"

	"github.com/scipunch/rssreader/apperr"
	"github.com/scipunch/rssreader/fetcher/types"
)

// MergeResult counts what a Merge changed
type MergeResult struct {
	Inserted int
	Updated  int
	Skipped  int // items without guid or link
}

// Merge reconciles a fetched snapshot with the stored records of sourceURL.
// The whole snapshot is applied in one transaction: on error nothing changes.
func (s *Store) Merge(ctx context.Context, sourceURL string, feed types.Feed) (MergeResult, error) {
	var res MergeResult
	if sourceURL == "" {
		return res, apperr.InvalidArgument("source url must not be empty")
	}
	if s.readOnly {
		return res, apperr.StoreUnavailable("merge", errReadOnly)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	firstSeen := encodeTime(s.now().UTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, apperr.StoreUnavailable("failed to begin merge", err)
	}
	defer tx.Rollback()

	order, latest := collapse(feed.Items)
	res.Skipped = len(feed.Items) - countIdentified(feed.Items)

	for _, identity := range order {
		next, err := encodeItem(feed.Title, latest[identity])
		if err != nil {
			return MergeResult{}, apperr.StoreUnavailable("failed to encode item", err)
		}

		outcome, err := mergeItem(ctx, tx, sourceURL, identity, next, firstSeen)
		if err != nil {
			return MergeResult{}, err
		}
		switch outcome {
		case inserted:
			res.Inserted++
		case updated:
			res.Updated++
		}
	}
	if res.Skipped > 0 {
		s.log.Debugw("items without identity skipped", "source", sourceURL, "count", res.Skipped)
	}

	orderJSON, err := encodeOrder(order)
	if err != nil {
		return MergeResult{}, apperr.StoreUnavailable("failed to encode snapshot order", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sources (source_url, feed_title, latest_order, merge_seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(merge_seq), 0) + 1 FROM sources))
		ON CONFLICT (source_url) DO UPDATE SET
			feed_title = excluded.feed_title,
			latest_order = excluded.latest_order,
			merge_seq = excluded.merge_seq
	`, sourceURL, feed.Title, orderJSON)
	if err != nil {
		return MergeResult{}, apperr.StoreUnavailable("failed to record source", err)
	}

	if err := tx.Commit(); err != nil {
		return MergeResult{}, apperr.StoreUnavailable("failed to commit merge", err)
	}

	s.log.Debugw("snapshot merged",
		"source", sourceURL,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"skipped", res.Skipped)
	return res, nil
}

// collapse keys a snapshot by identity. An identity repeated within the
// snapshot keeps the position of its first occurrence and the fields of its last.
func collapse(items []types.FeedItem) ([]string, map[string]types.FeedItem) {
	order := make([]string, 0, len(items))
	latest := make(map[string]types.FeedItem, len(items))
	for _, item := range items {
		identity := item.Identity()
		if identity == "" {
			continue
		}
		if _, ok := latest[identity]; !ok {
			order = append(order, identity)
		}
		latest[identity] = item
	}
	return order, latest
}

func countIdentified(items []types.FeedItem) int {
	return lo.CountBy(items, func(item types.FeedItem) bool { return item.Identity() != "" })
}

type mergeOutcome int

const (
	unchanged mergeOutcome = iota
	inserted
	updated
)

func mergeItem(ctx context.Context, tx *sql.Tx, sourceURL, identity string, next columns, firstSeen string) (mergeOutcome, error) {
	var cur columns
	err := tx.QueryRowContext(ctx, `
		SELECT feed_title, guid, title, link, published, pub_day, description, extra
		FROM items WHERE source_url = ? AND identity = ?
	`, sourceURL, identity).Scan(
		&cur.FeedTitle, &cur.GUID, &cur.Title, &cur.Link,
		&cur.Published, &cur.PubDay, &cur.Description, &cur.Extra)

	if errors.Is(err, sql.ErrNoRows) {
		ib := sqlbuilder.SQLite.NewInsertBuilder()
		ib.InsertInto("items").
			Cols("source_url", "identity", "feed_title", "guid", "title", "link",
				"published", "pub_day", "description", "extra", "first_seen_at").
			Values(sourceURL, identity, next.FeedTitle, next.GUID, next.Title, next.Link,
				next.Published, next.PubDay, next.Description, next.Extra, firstSeen)
		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return unchanged, apperr.StoreUnavailable(fmt.Sprintf("failed to insert '%s'", identity), err)
		}
		return inserted, nil
	}
	if err != nil {
		return unchanged, apperr.StoreUnavailable(fmt.Sprintf("failed to look up '%s'", identity), err)
	}

	if cur == next {
		return unchanged, nil
	}

	// first_seen_at is never reassigned
	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update("items").
		Set(
			ub.Assign("feed_title", next.FeedTitle),
			ub.Assign("guid", next.GUID),
			ub.Assign("title", next.Title),
			ub.Assign("link", next.Link),
			ub.Assign("published", next.Published),
			ub.Assign("pub_day", next.PubDay),
			ub.Assign("description", next.Description),
			ub.Assign("extra", next.Extra),
		).
		Where(ub.Equal("source_url", sourceURL), ub.Equal("identity", identity))
	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return unchanged, apperr.StoreUnavailable(fmt.Sprintf("failed to update '%s'", identity), err)
	}
	return updated, nil
}
