package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/scipunch/rssreader/fetcher/types"
)

// DefaultWidth is the separator width when the output is not a terminal
const DefaultWidth = 80

// Text renders human-readable output with DefaultWidth separators
func Text(feed types.Feed) ([]byte, error) {
	return TextWidth(DefaultWidth)(feed)
}

// TextWidth returns a text renderer whose item separator spans width columns.
// Widths below one fall back to DefaultWidth.
func TextWidth(width int) Func {
	if width < 1 {
		width = DefaultWidth
	}
	separator := strings.Repeat("*", width)

	return func(feed types.Feed) ([]byte, error) {
		var buf bytes.Buffer

		header := "Feed: " + feed.Title
		buf.WriteString(header)
		buf.WriteByte('\n')
		buf.WriteString(strings.Repeat("=", min(len([]rune(header)), width)))
		buf.WriteString("\n\n")

		for _, item := range feed.Items {
			writeLine(&buf, "Title", item.Title)
			writeLine(&buf, "Date", formatDate(item))
			writeLine(&buf, "Link", item.Link)
			for _, f := range item.Extra {
				writeLine(&buf, label(f.Key), f.Value)
			}
			if item.Description != "" {
				buf.WriteByte('\n')
				buf.WriteString(item.Description)
				buf.WriteByte('\n')
			}
			buf.WriteString(separator)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	}
}

func writeLine(buf *bytes.Buffer, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(buf, "%s: %s\n", key, value)
}
