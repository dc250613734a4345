package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"

	"github.com/scipunch/rssreader/apperr"
	"github.com/scipunch/rssreader/fetcher/types"
)

// Record is one persisted item together with where and when it was first seen
type Record struct {
	SourceURL   string
	FeedTitle   string
	Item        types.FeedItem
	FirstSeenAt time.Time
}

// Items drops the bookkeeping fields of records, keeping their order.
func Items(records []Record) []types.FeedItem {
	return lo.Map(records, func(r Record, _ int) types.FeedItem { return r.Item })
}

var recordColumns = []string{
	"source_url", "identity", "feed_title", "guid", "title", "link",
	"published", "pub_day", "description", "extra", "first_seen_at",
}

// QueryByDate returns every stored item published on day, across all sources,
// ordered by source url and then by the order the items were first stored.
func (s *Store) QueryByDate(ctx context.Context, day civil.Date) ([]Record, error) {
	return s.queryByDate(ctx, "", day)
}

// QueryByDateForSource is QueryByDate restricted to one source.
func (s *Store) QueryByDateForSource(ctx context.Context, sourceURL string, day civil.Date) ([]Record, error) {
	if sourceURL == "" {
		return nil, apperr.InvalidArgument("source url must not be empty")
	}
	return s.queryByDate(ctx, sourceURL, day)
}

func (s *Store) queryByDate(ctx context.Context, sourceURL string, day civil.Date) ([]Record, error) {
	if !day.IsValid() {
		return nil, apperr.InvalidArgument("invalid date %s", day)
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(recordColumns...).From("items").Where(sb.Equal("pub_day", day.String()))
	if sourceURL != "" {
		sb.Where(sb.Equal("source_url", sourceURL))
	}
	sb.OrderBy("source_url", "id").Asc()

	query, args := sb.Build()
	records, err := s.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	s.log.Debugw("date query", "date", day.String(), "source", sourceURL, "matches", len(records))
	return records, nil
}

// QueryLatest returns the items of the most recently merged source in the
// order of its latest snapshot. limit 0 means all items; negative limits are rejected.
func (s *Store) QueryLatest(ctx context.Context, limit int) (types.Feed, error) {
	if limit < 0 {
		return types.Feed{}, apperr.InvalidArgument("limit must not be negative, got %d", limit)
	}

	var sourceURL, feedTitle, orderJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT source_url, feed_title, latest_order
		FROM sources ORDER BY merge_seq DESC LIMIT 1
	`).Scan(&sourceURL, &feedTitle, &orderJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Feed{}, nil
	}
	if err != nil {
		return types.Feed{}, apperr.StoreUnavailable("failed to read latest source", err)
	}

	order, err := decodeOrder(orderJSON)
	if err != nil {
		return types.Feed{}, apperr.StoreUnavailable("corrupted source order", err)
	}
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	feed := types.Feed{Title: feedTitle, Items: make([]types.FeedItem, 0, len(order))}
	if len(order) == 0 {
		return feed, nil
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(recordColumns...).From("items").Where(
		sb.Equal("source_url", sourceURL),
		sb.In("identity", sqlbuilder.Flatten(order)...),
	)
	query, args := sb.Build()

	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return types.Feed{}, err
	}

	byIdentity := make(map[string]types.FeedItem, len(rows))
	for _, r := range rows {
		byIdentity[r.identity] = r.record.Item
	}
	for _, identity := range order {
		item, ok := byIdentity[identity]
		if !ok {
			return types.Feed{}, apperr.StoreUnavailable("inconsistent store",
				fmt.Errorf("identity '%s' listed for '%s' but not stored", identity, sourceURL))
		}
		feed.Items = append(feed.Items, item)
	}
	return feed, nil
}

type storedRow struct {
	identity string
	record   Record
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.queryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r storedRow, _ int) Record { return r.record }), nil
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]storedRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.StoreUnavailable("failed to query items", err)
	}
	defer rows.Close()

	out := []storedRow{}
	for rows.Next() {
		var (
			row       storedRow
			c         columns
			firstSeen string
		)
		if err := rows.Scan(&row.record.SourceURL, &row.identity, &c.FeedTitle, &c.GUID,
			&c.Title, &c.Link, &c.Published, &c.PubDay, &c.Description, &c.Extra, &firstSeen); err != nil {
			return nil, apperr.StoreUnavailable("failed to scan item", err)
		}

		item, err := decodeItem(c)
		if err != nil {
			return nil, apperr.StoreUnavailable("corrupted item", err)
		}
		row.record.Item = item
		row.record.FeedTitle = c.FeedTitle
		row.record.FirstSeenAt, err = decodeTime(firstSeen)
		if err != nil {
			return nil, apperr.StoreUnavailable("corrupted first_seen_at", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreUnavailable("failed to read items", err)
	}
	return out, nil
}
