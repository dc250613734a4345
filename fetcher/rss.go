package fetcher

import (
	"context"
	"html"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/scipunch/rssreader/apperr"
	"github.com/scipunch/rssreader/fetcher/types"
)

var spaceRe = regexp.MustCompile(`[ \t\r\f\v\x{00a0}]+`)

// Field names the fetcher itself produces; custom feed elements with these
// names are not copied into Extra.
var knownFields = map[string]bool{
	"title":       true,
	"link":        true,
	"pubDate":     true,
	"guid":        true,
	"description": true,
}

// RSSFetcher fetches RSS and Atom feeds using gofeed
type RSSFetcher struct {
	parser *gofeed.Parser
	strip  *bluemonday.Policy
}

// NewRSSFetcher creates a new RSS fetcher. A nil client falls back to gofeed's default.
func NewRSSFetcher(client *http.Client, userAgent string) *RSSFetcher {
	p := gofeed.NewParser()
	if client != nil {
		p.Client = client
	}
	if userAgent != "" {
		p.UserAgent = userAgent
	}

	strip := bluemonday.StrictPolicy()
	strip.AddSpaceWhenStrippingTag(true)

	return &RSSFetcher{parser: p, strip: strip}
}

// Fetch retrieves and parses a feed from the given URL
func (f *RSSFetcher) Fetch(ctx context.Context, url string) (types.Feed, error) {
	gofeedFeed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return types.Feed{}, &apperr.FetchError{URL: url, Cause: err}
	}
	return f.convert(gofeedFeed, url), nil
}

// Parse converts an already downloaded feed document.
func (f *RSSFetcher) Parse(body string, url string) (types.Feed, error) {
	gofeedFeed, err := f.parser.ParseString(body)
	if err != nil {
		return types.Feed{}, &apperr.FetchError{URL: url, Cause: err}
	}
	return f.convert(gofeedFeed, url), nil
}

func (f *RSSFetcher) convert(src *gofeed.Feed, url string) types.Feed {
	feed := types.Feed{
		Title:       strings.TrimSpace(src.Title),
		Description: f.htmlToText(src.Description),
		Items:       make([]types.FeedItem, 0, len(src.Items)),
	}
	if feed.Title == "" {
		feed.Title = url
	}

	for _, item := range src.Items {
		feed.Items = append(feed.Items, f.convertItem(item))
	}
	return feed
}

func (f *RSSFetcher) convertItem(item *gofeed.Item) types.FeedItem {
	description := item.Description
	if strings.TrimSpace(description) == "" {
		description = item.Content
	}

	feedItem := types.FeedItem{
		Title:       f.htmlToText(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Description: f.htmlToText(description),
		GUID:        strings.TrimSpace(item.GUID),
	}

	// Parse published date if available
	if item.PublishedParsed != nil {
		feedItem.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		feedItem.Published = *item.UpdatedParsed
	}

	feedItem.Extra = extraFields(item)
	return feedItem
}

func extraFields(item *gofeed.Item) types.Extra {
	var extra types.Extra

	if item.Author != nil {
		author := strings.TrimSpace(item.Author.Name)
		if author == "" {
			author = strings.TrimSpace(item.Author.Email)
		}
		if author != "" {
			extra = extra.Set("author", author)
		}
	}
	if len(item.Categories) > 0 {
		extra = extra.Set("category", strings.Join(item.Categories, ", "))
	}
	if item.Updated != "" && item.Updated != item.Published && item.PublishedParsed != nil {
		extra = extra.Set("updated", item.Updated)
	}
	if item.Image != nil && item.Image.URL != "" {
		extra = extra.Set("image", item.Image.URL)
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			extra = extra.Set("enclosure", enc.URL)
			break
		}
	}

	// gofeed keeps unknown RSS elements in a map; sort for a stable order
	keys := make([]string, 0, len(item.Custom))
	for k := range item.Custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if knownFields[k] {
			continue
		}
		if v := strings.TrimSpace(item.Custom[k]); v != "" {
			extra = extra.Set(k, v)
		}
	}

	return extra
}

// htmlToText drops markup from feed text and decodes entities.
func (f *RSSFetcher) htmlToText(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(f.strip.Sanitize(s))

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
