package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/scipunch/rssreader/fetcher/types"
)

//go:embed templates/feed.html.tmpl
var feedHTML string

var htmlTemplate = template.Must(template.New("feed").
	Funcs(template.FuncMap{"label": label, "isImage": isImageURL}).
	Parse(feedHTML))

type htmlItem struct {
	Anchor string
	Date   string
	Item   types.FeedItem
}

type htmlDocument struct {
	Title string
	Items []htmlItem
}

// HTML renders a standalone page with a table of contents
func HTML(feed types.Feed) ([]byte, error) {
	doc := htmlDocument{Title: feed.Title, Items: make([]htmlItem, len(feed.Items))}
	for i, item := range feed.Items {
		doc.Items[i] = htmlItem{
			Anchor: anchorID(item, i),
			Date:   formatDate(item),
			Item:   item,
		}
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to execute html template with %w", err)
	}
	return buf.Bytes(), nil
}
