// Package render turns a feed title and an ordered item list into output
// documents. Every renderer is a pure function: it keeps input order, never
// modifies its argument and renders an empty item list as a valid document.
package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/scipunch/rssreader/fetcher/types"
)

// Format names one output encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatHTML Format = "html"
	FormatFB2  Format = "fb2"
)

// Func renders a feed into a complete document
type Func func(feed types.Feed) ([]byte, error)

// Set is the fixed renderer table. Callers wanting a terminal-sized text
// separator use TextWidth directly.
var Set = map[Format]Func{
	FormatJSON: JSON,
	FormatText: Text,
	FormatHTML: HTML,
	FormatFB2:  FB2,
}

// Lookup returns the renderer for f
func Lookup(f Format) (Func, error) {
	fn, ok := Set[f]
	if !ok {
		return nil, fmt.Errorf("unknown output format '%s'", f)
	}
	return fn, nil
}

// DateLayout is how publication dates are shown to readers
const DateLayout = time.RFC1123Z

func formatDate(item types.FeedItem) string {
	if !item.HasDate() {
		return ""
	}
	return item.Published.Format(DateLayout)
}

// anchorID derives a stable document-local id from position and identity.
func anchorID(item types.FeedItem, index int) string {
	key := fmt.Sprintf("%d:%s:%s", index, item.Identity(), item.Title)
	hash := sha256.Sum256([]byte(key))
	return "item-" + hex.EncodeToString(hash[:8])
}

// label turns an extra field key into a display label: "pubDate" -> "PubDate".
func label(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(r)) + key[size:]
}

// isImageURL reports whether value is an http(s) URL whose file extension
// maps to an image MIME type.
func isImageURL(value string) bool {
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return strings.HasPrefix(mime.TypeByExtension(strings.ToLower(path.Ext(u.Path))), "image/")
}
