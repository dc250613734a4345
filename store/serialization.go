package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/scipunch/rssreader/fetcher/types"
)

// Fixed width keeps lexical order equal to chronological order for UTC values
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var errReadOnly = errors.New("store opened read-only")

// columns is the stored form of one item; comparable so merges can detect changes.
type columns struct {
	FeedTitle   string
	GUID        string
	Title       string
	Link        string
	Published   string
	PubDay      string
	Description string
	Extra       string
}

func encodeItem(feedTitle string, item types.FeedItem) (columns, error) {
	extra, err := encodeExtra(item.Extra)
	if err != nil {
		return columns{}, err
	}

	c := columns{
		FeedTitle:   feedTitle,
		GUID:        item.GUID,
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Extra:       extra,
	}
	if item.HasDate() {
		c.Published = encodeTime(item.Published)
		c.PubDay = civil.DateOf(item.Published).String()
	}
	return c, nil
}

func decodeItem(c columns) (types.FeedItem, error) {
	item := types.FeedItem{
		Title:       c.Title,
		Link:        c.Link,
		Description: c.Description,
		GUID:        c.GUID,
	}

	if c.Published != "" {
		published, err := decodeTime(c.Published)
		if err != nil {
			return item, fmt.Errorf("failed to decode published date with %w", err)
		}
		item.Published = published
	}

	extra, err := decodeExtra(c.Extra)
	if err != nil {
		return item, err
	}
	item.Extra = extra
	return item, nil
}

func encodeExtra(extra types.Extra) (string, error) {
	if len(extra) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("failed to marshal extra fields with %w", err)
	}
	return string(data), nil
}

func decodeExtra(data string) (types.Extra, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var extra types.Extra
	if err := json.Unmarshal([]byte(data), &extra); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extra fields with %w", err)
	}
	return extra, nil
}

func encodeOrder(identities []string) (string, error) {
	data, err := json.Marshal(identities)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot order with %w", err)
	}
	return string(data), nil
}

func decodeOrder(data string) ([]string, error) {
	var identities []string
	if err := json.Unmarshal([]byte(data), &identities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot order with %w", err)
	}
	return identities, nil
}

func encodeTime(t time.Time) string {
	return t.Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
