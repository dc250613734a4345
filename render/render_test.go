package render

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/rssreader/fetcher/types"
)

func sampleFeed() types.Feed {
	return types.Feed{
		Title: "Yahoo News",
		Items: []types.FeedItem{
			{
				Title:       "Second story",
				Link:        "https://news.example.com/2",
				Description: "Body of the second story",
				Published:   time.Date(2021, 11, 2, 14, 30, 0, 0, time.UTC),
				GUID:        "guid-2",
				Extra:       types.Extra{{Key: "author", Value: "Jane"}, {Key: "category", Value: "World"}},
			},
			{
				Title: "First story",
				Link:  "https://news.example.com/1",
			},
		},
	}
}

func cloneFeed(f types.Feed) types.Feed {
	out := f
	out.Items = make([]types.FeedItem, len(f.Items))
	for i, item := range f.Items {
		item.Extra = item.Extra.Clone()
		out.Items[i] = item
	}
	return out
}

func TestSetCoversEveryFormat(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatText, FormatHTML, FormatFB2} {
		fn, err := Lookup(f)
		require.NoError(t, err, f)
		require.NotNil(t, fn, f)
	}

	_, err := Lookup("pdf")
	assert.Error(t, err)
}

func TestRenderersDoNotMutateInput(t *testing.T) {
	for format, fn := range Set {
		t.Run(string(format), func(t *testing.T) {
			feed := sampleFeed()
			before := cloneFeed(feed)

			_, err := fn(feed)
			require.NoError(t, err)
			assert.Equal(t, before, feed)
		})
	}
}

func TestRenderersAreDeterministic(t *testing.T) {
	for format, fn := range Set {
		t.Run(string(format), func(t *testing.T) {
			first, err := fn(sampleFeed())
			require.NoError(t, err)
			second, err := fn(sampleFeed())
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestRenderersPreserveOrder(t *testing.T) {
	for format, fn := range Set {
		t.Run(string(format), func(t *testing.T) {
			out, err := fn(sampleFeed())
			require.NoError(t, err)

			second := bytes.Index(out, []byte("Second story"))
			first := bytes.Index(out, []byte("First story"))
			require.GreaterOrEqual(t, second, 0)
			require.GreaterOrEqual(t, first, 0)
			assert.Less(t, second, first)
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	feed := sampleFeed()
	feed.Items = append(feed.Items, types.FeedItem{
		Title:     "Fractional",
		GUID:      "guid-3",
		Published: time.Date(2024, 1, 5, 9, 0, 0, 500_000_000, time.FixedZone("", 3*3600)),
	})
	out, err := JSON(feed)
	require.NoError(t, err)

	parsed, err := ParseJSON(out)
	require.NoError(t, err)

	require.Equal(t, feed.Title, parsed.Title)
	require.Len(t, parsed.Items, len(feed.Items))
	for i := range feed.Items {
		want, got := feed.Items[i], parsed.Items[i]
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.Link, got.Link)
		assert.Equal(t, want.GUID, got.GUID)
		assert.Equal(t, want.Description, got.Description)
		assert.True(t, want.Published.Equal(got.Published), "published %v != %v", want.Published, got.Published)
		assert.True(t, want.Extra.Equal(got.Extra), "extra %v != %v", want.Extra, got.Extra)
	}
}

func TestJSONKeyOrder(t *testing.T) {
	out, err := JSON(sampleFeed())
	require.NoError(t, err)

	doc := string(out)
	keys := []string{`"Feed title"`, `"items"`, `"title"`, `"link"`, `"pubDate"`, `"guid"`, `"description"`, `"author"`, `"category"`}
	last := -1
	for _, k := range keys {
		idx := strings.Index(doc, k)
		require.Greater(t, idx, last, "key %s out of order", k)
		last = idx
	}
	assert.Contains(t, doc, `"pubDate": "2021-11-02T14:30:00Z"`)
}

func TestJSONOmitsEmptyFields(t *testing.T) {
	out, err := JSON(types.Feed{Title: "T", Items: []types.FeedItem{{Title: "only title"}}})
	require.NoError(t, err)

	var doc struct {
		Items []map[string]string `json:"items"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	require.Len(t, doc.Items, 1)
	assert.Equal(t, map[string]string{"title": "only title"}, doc.Items[0])
}

func TestJSONKnownFieldsWinOverExtras(t *testing.T) {
	feed := types.Feed{Items: []types.FeedItem{{
		Title: "real",
		Extra: types.Extra{{Key: "title", Value: "fake"}, {Key: "comments", Value: "3"}},
	}}}
	out, err := JSON(feed)
	require.NoError(t, err)

	var doc struct {
		Items []map[string]string `json:"items"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, map[string]string{"title": "real", "comments": "3"}, doc.Items[0])
}

func TestJSONKeepsCharactersUnescaped(t *testing.T) {
	out, err := JSON(types.Feed{Title: "Новости <b>&</b>"})
	require.NoError(t, err)

	assert.Contains(t, string(out), `"Feed title": "Новости <b>&</b>"`)
	assert.Contains(t, string(out), `"items": []`)
}

func TestText(t *testing.T) {
	out, err := TextWidth(10)(sampleFeed())
	require.NoError(t, err)

	want := strings.Join([]string{
		"Feed: Yahoo News",
		"==========",
		"",
		"Title: Second story",
		"Date: Tue, 02 Nov 2021 14:30:00 +0000",
		"Link: https://news.example.com/2",
		"Author: Jane",
		"Category: World",
		"",
		"Body of the second story",
		"**********",
		"Title: First story",
		"Link: https://news.example.com/1",
		"**********",
		"",
	}, "\n")
	assert.Equal(t, want, string(out))
}

func TestTextDefaultWidth(t *testing.T) {
	out, err := Text(sampleFeed())
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n"+strings.Repeat("*", DefaultWidth)+"\n")

	out, err = TextWidth(0)(sampleFeed())
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n"+strings.Repeat("*", DefaultWidth)+"\n")
}

func TestHTMLEscapesContent(t *testing.T) {
	feed := types.Feed{
		Title: "Escaping",
		Items: []types.FeedItem{
			{
				Title: `<b>&"'</b>`,
				Link:  "https://example.com/a?b=1&c=2",
			},
			{
				Title:       `<script>alert("x")</script>`,
				Description: `1 < 2 & "quoted"`,
			},
		},
	}
	out, err := HTML(feed)
	require.NoError(t, err)

	doc := string(out)
	assert.NotContains(t, doc, "<script>")
	assert.NotContains(t, doc, "<b>")
	assert.NotContains(t, doc, `<b>&"'</b>`)
	assert.Contains(t, doc, "&lt;b&gt;&amp;&#34;&#39;&lt;/b&gt;")
	assert.Contains(t, doc, "1 &lt; 2 &amp; &#34;quoted&#34;")
}

func TestHTMLImageExtras(t *testing.T) {
	feed := types.Feed{Title: "Pictures", Items: []types.FeedItem{{
		Title: "Story",
		Extra: types.Extra{
			{Key: "image", Value: "https://cdn.example.com/photo.JPG"},
			{Key: "enclosure", Value: "https://cdn.example.com/episode.mp3"},
		},
	}}}
	out, err := HTML(feed)
	require.NoError(t, err)

	doc := string(out)
	assert.Contains(t, doc, `<img src="https://cdn.example.com/photo.JPG" alt="Image">`)
	assert.Contains(t, doc, "<dt>Enclosure</dt><dd>https://cdn.example.com/episode.mp3</dd>")
}

func TestIsImageURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/a.png", true},
		{"http://example.com/dir/b.jpeg?size=large", true},
		{"https://example.com/c.gif", true},
		{"https://example.com/page.html", false},
		{"https://example.com/audio.mp3", false},
		{"/relative/d.png", false},
		{"javascript:alert(1).png", false},
		{"Jane", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isImageURL(tt.in), tt.in)
	}
}

func TestHTMLTableOfContents(t *testing.T) {
	feed := sampleFeed()
	out, err := HTML(feed)
	require.NoError(t, err)

	doc := string(out)
	assert.Contains(t, doc, "<h1>Yahoo News</h1>")
	for i, item := range feed.Items {
		id := anchorID(item, i)
		assert.Contains(t, doc, `href="#`+id+`"`)
		assert.Contains(t, doc, `<section id="`+id+`">`)
	}
	assert.Contains(t, doc, "<dt>Author</dt><dd>Jane</dd>")
}

func TestHTMLEmptyFeed(t *testing.T) {
	out, err := HTML(types.Feed{Title: "Empty"})
	require.NoError(t, err)

	doc := string(out)
	assert.Contains(t, doc, "<h1>Empty</h1>")
	assert.NotContains(t, doc, "<section")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(doc), "</html>"))
}

// wellFormed consumes every token of an XML document
func wellFormed(t *testing.T, data []byte) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		require.NoError(t, err)
	}
}

func TestFB2Document(t *testing.T) {
	out, err := FB2(sampleFeed())
	require.NoError(t, err)
	wellFormed(t, out)

	doc := string(out)
	assert.True(t, strings.HasPrefix(doc, xml.Header))
	assert.Contains(t, doc, `xmlns="`+fb2Namespace+`"`)
	assert.Contains(t, doc, `xmlns:l="`+xlinkNamespace+`"`)
	assert.Contains(t, doc, "<book-title>Yahoo News</book-title>")
	assert.Contains(t, doc, `<date value="2021-11-02">2021-11-02</date>`)
	assert.Contains(t, doc, `<a l:href="https://news.example.com/2">https://news.example.com/2</a>`)
	assert.Equal(t, 2, strings.Count(doc, "<section "))
}

func TestFB2Escaping(t *testing.T) {
	feed := types.Feed{
		Title: `<b>&"'</b>`,
		Items: []types.FeedItem{
			{Title: `<b>&"'</b>`, Link: "https://example.com/?x=1&y=2"},
			{Title: `a < b & c`},
		},
	}
	out, err := FB2(feed)
	require.NoError(t, err)
	wellFormed(t, out)

	doc := string(out)
	assert.NotContains(t, doc, "<b>")
	assert.NotContains(t, doc, `<b>&"'</b>`)
	assert.Contains(t, doc, "<p>&lt;b&gt;&amp;&#34;&#39;&lt;/b&gt;</p>")
	assert.Contains(t, doc, "a &lt; b &amp; c")
}

func TestFB2ImageExtras(t *testing.T) {
	feed := types.Feed{Title: "Pictures", Items: []types.FeedItem{{
		Title: "Story",
		Extra: types.Extra{{Key: "image", Value: "https://cdn.example.com/photo.png"}},
	}}}
	out, err := FB2(feed)
	require.NoError(t, err)
	wellFormed(t, out)

	assert.Contains(t, string(out), `<a l:href="https://cdn.example.com/photo.png">https://cdn.example.com/photo.png</a>`)
}

func TestFB2EmptyFeed(t *testing.T) {
	out, err := FB2(types.Feed{Title: "Empty"})
	require.NoError(t, err)
	wellFormed(t, out)

	doc := string(out)
	assert.Equal(t, 1, strings.Count(doc, "<section>"))
	assert.Contains(t, doc, "<p>No news.</p>")
}

func TestFB2DocumentID(t *testing.T) {
	a := documentID(sampleFeed())
	b := documentID(sampleFeed())
	assert.Equal(t, a, b)

	other := sampleFeed()
	other.Items = other.Items[:1]
	assert.NotEqual(t, a, documentID(other))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Author", label("author"))
	assert.Equal(t, "Ёлка", label("ёлка"))
	assert.Equal(t, "", label(""))
}
