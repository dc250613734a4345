package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scipunch/rssreader/fetcher/types"
)

// Keys of the structured item object, in output order. Extra fields follow.
const (
	keyTitle       = "title"
	keyLink        = "link"
	keyPubDate     = "pubDate"
	keyGUID        = "guid"
	keyDescription = "description"
)

// JSONDateLayout is the structured pubDate format; it keeps nanoseconds
const JSONDateLayout = time.RFC3339Nano

func jsonDate(item types.FeedItem) string {
	if !item.HasDate() {
		return ""
	}
	return item.Published.Format(JSONDateLayout)
}

var reservedKeys = map[string]bool{
	keyTitle:       true,
	keyLink:        true,
	keyPubDate:     true,
	keyGUID:        true,
	keyDescription: true,
}

type structuredFeed struct {
	Title string           `json:"Feed title"`
	Items []structuredItem `json:"items"`
}

// structuredItem marshals as a flat object with known keys first and extra
// keys after them, omitting empty values.
type structuredItem types.FeedItem

func (s structuredItem) MarshalJSON() ([]byte, error) {
	item := types.FeedItem(s)

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key, value string) error {
		if value == "" {
			return nil
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeJSONString(&buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		return writeJSONString(&buf, value)
	}

	known := []struct{ key, value string }{
		{keyTitle, item.Title},
		{keyLink, item.Link},
		{keyPubDate, jsonDate(item)},
		{keyGUID, item.GUID},
		{keyDescription, item.Description},
	}
	for _, kv := range known {
		if err := write(kv.key, kv.value); err != nil {
			return nil, err
		}
	}
	for _, f := range item.Extra {
		if reservedKeys[f.Key] {
			continue
		}
		if err := write(f.Key, f.Value); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates every value with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}

// JSON renders {"Feed title": ..., "items": [...]}
func JSON(feed types.Feed) ([]byte, error) {
	doc := structuredFeed{
		Title: feed.Title,
		Items: make([]structuredItem, len(feed.Items)),
	}
	for i, item := range feed.Items {
		doc.Items[i] = structuredItem(item)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "   ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode structured feed with %w", err)
	}
	return buf.Bytes(), nil
}

// ParseJSON reads a document produced by JSON back into a feed. Keys other
// than the known ones become Extra fields in document order.
func ParseJSON(data []byte) (types.Feed, error) {
	var raw struct {
		Title string            `json:"Feed title"`
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.Feed{}, fmt.Errorf("failed to decode structured feed with %w", err)
	}

	feed := types.Feed{Title: raw.Title, Items: make([]types.FeedItem, 0, len(raw.Items))}
	for i, msg := range raw.Items {
		item, err := parseStructuredItem(msg)
		if err != nil {
			return types.Feed{}, fmt.Errorf("item %d: %w", i, err)
		}
		feed.Items = append(feed.Items, item)
	}
	return feed, nil
}

func parseStructuredItem(msg json.RawMessage) (types.FeedItem, error) {
	var item types.FeedItem

	dec := json.NewDecoder(bytes.NewReader(msg))
	if _, err := dec.Token(); err != nil {
		return item, err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return item, err
		}
		key, ok := tok.(string)
		if !ok {
			return item, fmt.Errorf("unexpected key token %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return item, fmt.Errorf("field '%s': %w", key, err)
		}

		switch key {
		case keyTitle:
			item.Title = value
		case keyLink:
			item.Link = value
		case keyGUID:
			item.GUID = value
		case keyDescription:
			item.Description = value
		case keyPubDate:
			published, err := time.Parse(JSONDateLayout, value)
			if err != nil {
				return item, fmt.Errorf("field '%s': %w", key, err)
			}
			item.Published = published
		default:
			item.Extra = item.Extra.Set(key, value)
		}
	}
	return item, nil
}
