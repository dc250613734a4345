package types

import (
	"context"
	"time"
)

// Feed represents a collection of items from a feed source
type Feed struct {
	Title       string
	Description string
	Items       []FeedItem
}

// FeedItem represents a single item in a feed
type FeedItem struct {
	Title       string
	Link        string
	Description string
	Published   time.Time // zero when the feed did not carry a date
	GUID        string    // Unique identifier within the source feed, may be empty
	Extra       Extra     // Feed-specific fields kept verbatim, in feed order
}

// Identity returns the key that distinguishes the item within its source.
func (i FeedItem) Identity() string {
	if i.GUID != "" {
		return i.GUID
	}
	return i.Link
}

// HasDate reports whether the item carries a publication date.
func (i FeedItem) HasDate() bool {
	return !i.Published.IsZero()
}

// Field is one entry of an Extra side-map.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Extra is an ordered string mapping. Keys are unique; Set on an existing key
// replaces the value in place.
type Extra []Field

// Get returns the value stored for key.
func (e Extra) Get(key string) (string, bool) {
	for _, f := range e {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Set stores value under key, keeping the original position of an existing key.
func (e Extra) Set(key, value string) Extra {
	for i := range e {
		if e[i].Key == key {
			out := e.Clone()
			out[i].Value = value
			return out
		}
	}
	return append(e.Clone(), Field{Key: key, Value: value})
}

// Clone returns a copy that shares no memory with e.
func (e Extra) Clone() Extra {
	if e == nil {
		return nil
	}
	out := make(Extra, len(e))
	copy(out, e)
	return out
}

// Equal reports whether both maps hold the same keys and values in the same order.
func (e Extra) Equal(other Extra) bool {
	if len(e) != len(other) {
		return false
	}
	for i := range e {
		if e[i] != other[i] {
			return false
		}
	}
	return true
}

// FeedFetcher is an interface for fetching feeds from different sources
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (Feed, error)
}
