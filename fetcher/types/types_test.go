package types

import (
	"testing"
	"time"
)

func TestFeedItem_Identity(t *testing.T) {
	tests := []struct {
		name string
		item FeedItem
		want string
	}{
		{
			name: "guid wins",
			item: FeedItem{GUID: "urn:1", Link: "http://x/1"},
			want: "urn:1",
		},
		{
			name: "link fallback",
			item: FeedItem{Link: "http://x/1"},
			want: "http://x/1",
		},
		{
			name: "no identity",
			item: FeedItem{Title: "orphan"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.Identity(); got != tt.want {
				t.Errorf("Identity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFeedItem_HasDate(t *testing.T) {
	if (FeedItem{}).HasDate() {
		t.Error("zero item should not have a date")
	}
	if !(FeedItem{Published: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)}).HasDate() {
		t.Error("dated item should report a date")
	}
}

func TestExtra_SetKeepsOrder(t *testing.T) {
	var e Extra
	e = e.Set("author", "ann")
	e = e.Set("category", "go")
	e = e.Set("author", "bob")

	if len(e) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(e))
	}
	if e[0].Key != "author" || e[0].Value != "bob" {
		t.Errorf("expected author=bob first, got %+v", e[0])
	}
	if v, ok := e.Get("category"); !ok || v != "go" {
		t.Errorf("Get(category) = %q, %v", v, ok)
	}
	if _, ok := e.Get("missing"); ok {
		t.Error("Get on a missing key should report false")
	}
}

func TestExtra_SetDoesNotMutateReceiver(t *testing.T) {
	orig := Extra{{Key: "a", Value: "1"}}
	_ = orig.Set("a", "2")
	if orig[0].Value != "1" {
		t.Errorf("receiver mutated: %+v", orig)
	}
}

func TestExtra_Equal(t *testing.T) {
	a := Extra{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}
	b := Extra{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}}
	if a.Equal(b) {
		t.Error("different order must not be equal")
	}
	if !a.Equal(a.Clone()) {
		t.Error("clone must be equal")
	}
	if !Extra(nil).Equal(Extra{}) {
		t.Error("nil and empty should be equal")
	}
}
