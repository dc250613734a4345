package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scipunch/rssreader/fetcher/types"
)

const (
	fb2Namespace   = "http://www.gribuser.ru/xml/fictionbook/2.0"
	xlinkNamespace = "http://www.w3.org/1999/xlink"
	fb2Genre       = "nonfiction"
	fb2Nickname    = "rssreader"
	fb2Program     = "rssreader"
)

type fb2Book struct {
	XMLName     xml.Name       `xml:"FictionBook"`
	Namespace   string         `xml:"xmlns,attr"`
	XLink       string         `xml:"xmlns:l,attr"`
	Description fb2Description `xml:"description"`
	Body        fb2Body        `xml:"body"`
}

type fb2Description struct {
	TitleInfo    fb2TitleInfo    `xml:"title-info"`
	DocumentInfo fb2DocumentInfo `xml:"document-info"`
}

type fb2Author struct {
	Nickname string `xml:"nickname"`
}

type fb2TitleInfo struct {
	Genre     string    `xml:"genre"`
	Author    fb2Author `xml:"author"`
	BookTitle string    `xml:"book-title"`
	Lang      string    `xml:"lang"`
}

type fb2Date struct {
	Value string `xml:"value,attr,omitempty"`
	Text  string `xml:",chardata"`
}

type fb2DocumentInfo struct {
	Author      fb2Author `xml:"author"`
	ProgramUsed string    `xml:"program-used"`
	Date        fb2Date   `xml:"date"`
	ID          string    `xml:"id"`
	Version     string    `xml:"version"`
}

type fb2Link struct {
	Href string `xml:"l:href,attr"`
	Text string `xml:",chardata"`
}

type fb2Paragraph struct {
	Text string   `xml:",chardata"`
	Link *fb2Link `xml:"a,omitempty"`
}

type fb2Title struct {
	Paragraphs []fb2Paragraph `xml:"p"`
}

type fb2Section struct {
	ID         string         `xml:"id,attr,omitempty"`
	Title      fb2Title       `xml:"title"`
	Paragraphs []fb2Paragraph `xml:"p"`
}

type fb2Body struct {
	Title    fb2Title     `xml:"title"`
	Sections []fb2Section `xml:"section"`
}

// FB2 renders a FictionBook 2.0 e-book with one section per item
func FB2(feed types.Feed) ([]byte, error) {
	book := fb2Book{
		Namespace: fb2Namespace,
		XLink:     xlinkNamespace,
		Description: fb2Description{
			TitleInfo: fb2TitleInfo{
				Genre:     fb2Genre,
				Author:    fb2Author{Nickname: fb2Nickname},
				BookTitle: feed.Title,
				Lang:      "en",
			},
			DocumentInfo: fb2DocumentInfo{
				Author:      fb2Author{Nickname: fb2Nickname},
				ProgramUsed: fb2Program,
				Date:        documentDate(feed.Items),
				ID:          documentID(feed).String(),
				Version:     "1.0",
			},
		},
		Body: fb2Body{
			Title:    fb2Title{Paragraphs: []fb2Paragraph{{Text: feed.Title}}},
			Sections: make([]fb2Section, 0, len(feed.Items)),
		},
	}

	for i, item := range feed.Items {
		book.Body.Sections = append(book.Body.Sections, fb2ItemSection(item, i))
	}
	// a FictionBook body needs at least one section
	if len(book.Body.Sections) == 0 {
		book.Body.Sections = []fb2Section{{
			Title:      fb2Title{Paragraphs: []fb2Paragraph{{Text: feed.Title}}},
			Paragraphs: []fb2Paragraph{{Text: "No news."}},
		}}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(book); err != nil {
		return nil, fmt.Errorf("failed to encode fb2 document with %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush fb2 document with %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func fb2ItemSection(item types.FeedItem, index int) fb2Section {
	title := item.Title
	if title == "" {
		title = item.Link
	}
	section := fb2Section{
		ID:    anchorID(item, index),
		Title: fb2Title{Paragraphs: []fb2Paragraph{{Text: title}}},
	}

	if date := formatDate(item); date != "" {
		section.Paragraphs = append(section.Paragraphs, fb2Paragraph{Text: "Date: " + date})
	}
	if item.Link != "" {
		section.Paragraphs = append(section.Paragraphs, fb2Paragraph{
			Text: "Link: ",
			Link: &fb2Link{Href: item.Link, Text: item.Link},
		})
	}
	for _, f := range item.Extra {
		p := fb2Paragraph{Text: label(f.Key) + ": " + f.Value}
		if isImageURL(f.Value) {
			// images are referenced by url, not embedded as binaries
			p = fb2Paragraph{Text: label(f.Key) + ": ", Link: &fb2Link{Href: f.Value, Text: f.Value}}
		}
		section.Paragraphs = append(section.Paragraphs, p)
	}
	for _, line := range strings.Split(item.Description, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			section.Paragraphs = append(section.Paragraphs, fb2Paragraph{Text: line})
		}
	}
	// FictionBook requires at least one paragraph in a section
	if len(section.Paragraphs) == 0 {
		section.Paragraphs = []fb2Paragraph{{Text: title}}
	}
	return section
}

// documentDate is the newest publication date, empty when no item carries one
func documentDate(items []types.FeedItem) fb2Date {
	var newest time.Time
	for _, item := range items {
		if item.HasDate() && item.Published.After(newest) {
			newest = item.Published
		}
	}
	if newest.IsZero() {
		return fb2Date{}
	}
	return fb2Date{Value: newest.Format(time.DateOnly), Text: newest.Format(time.DateOnly)}
}

// documentID is a name-based UUID, so rendering the same feed twice gives the same id
func documentID(feed types.Feed) uuid.UUID {
	var name strings.Builder
	name.WriteString(feed.Title)
	for _, item := range feed.Items {
		name.WriteByte('\n')
		name.WriteString(item.Identity())
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name.String()))
}
