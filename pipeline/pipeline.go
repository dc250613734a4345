// Package pipeline drives one reader invocation: fetch and merge a source,
// select items by limit or date, and render them to files and stdout.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/scipunch/rssreader/apperr"
	"github.com/scipunch/rssreader/fetcher/types"
	"github.com/scipunch/rssreader/filter"
	"github.com/scipunch/rssreader/render"
	"github.com/scipunch/rssreader/store"
)

// State is a step of a pipeline run
type State int

const (
	Idle State = iota
	Fetching
	Merging
	Selecting
	Rendering
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Merging:
		return "merging"
	case Selecting:
		return "selecting"
	case Rendering:
		return "rendering"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Store is the part of the feed store a run needs
type Store interface {
	Merge(ctx context.Context, sourceURL string, feed types.Feed) (store.MergeResult, error)
	QueryByDate(ctx context.Context, day civil.Date) ([]store.Record, error)
	QueryByDateForSource(ctx context.Context, sourceURL string, day civil.Date) ([]store.Record, error)
}

// Request describes one invocation. Limit 0 means no limit.
type Request struct {
	Source   string
	Limit    int
	Date     *civil.Date
	JSON     bool
	HTMLPath string
	FB2Path  string
}

// Result reports how far a run got and what it produced
type Result struct {
	State State
	Merge store.MergeResult
	Feed  types.Feed
}

// Pipeline runs requests against a store and a fetcher
type Pipeline struct {
	store       Store
	fetcher     types.FeedFetcher
	filters     *filter.Chain
	filterNames []string
	stdout      io.Writer
	textWidth   int
	log         *zap.SugaredLogger
}

// Option customises New
type Option func(*Pipeline)

// WithFilters applies the named filters of chain to every selection
func WithFilters(chain *filter.Chain, names []string) Option {
	return func(p *Pipeline) {
		p.filters = chain
		p.filterNames = names
	}
}

// WithStdout redirects the console renderer output
func WithStdout(w io.Writer) Option { return func(p *Pipeline) { p.stdout = w } }

// WithTextWidth sets the separator width of text output
func WithTextWidth(width int) Option { return func(p *Pipeline) { p.textWidth = width } }

// WithLogger sets the logger used for progress diagnostics
func WithLogger(log *zap.SugaredLogger) Option { return func(p *Pipeline) { p.log = log } }

// New creates a pipeline. fetcher may be nil for runs without a source.
func New(st Store, fetcher types.FeedFetcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     st,
		fetcher:   fetcher,
		stdout:    os.Stdout,
		textWidth: render.DefaultWidth,
		log:       zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ParseDate accepts YYYY-MM-DD and the compact YYYYMMDD form
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.DateOnly, "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, apperr.InvalidArgument("malformed date '%s', expected YYYY-MM-DD or YYYYMMDD", s)
}

// Validate rejects requests that cannot run, before any I/O
func (r Request) Validate() error {
	if r.Limit < 0 {
		return apperr.InvalidArgument("limit must not be negative, got %d", r.Limit)
	}
	if r.Source == "" && r.Date == nil {
		return apperr.InvalidArgument("a source or a date is required")
	}
	if r.Date != nil && !r.Date.IsValid() {
		return apperr.InvalidArgument("invalid date %s", r.Date)
	}
	return nil
}

// Run executes req. The returned Result carries the last state reached; on
// error it is Failed and the state where the failure happened is logged.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	res := Result{State: Idle}
	fail := func(err error) (Result, error) {
		p.log.Debugw("run failed", "state", res.State.String(), "error", err)
		res.State = Failed
		return res, err
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}

	var snapshot types.Feed
	if req.Source != "" {
		if p.fetcher == nil {
			return fail(apperr.InvalidArgument("no fetcher configured for source '%s'", req.Source))
		}

		res.State = Fetching
		p.log.Infow("fetching feed", "url", req.Source)
		feed, err := p.fetcher.Fetch(ctx, req.Source)
		if err != nil {
			return fail(err)
		}
		snapshot = feed

		res.State = Merging
		merged, err := p.store.Merge(ctx, req.Source, snapshot)
		if err != nil {
			return fail(err)
		}
		res.Merge = merged
		p.log.Infow("feed merged", "url", req.Source,
			"inserted", merged.Inserted, "updated", merged.Updated, "skipped", merged.Skipped)
	}

	res.State = Selecting
	selected, err := p.selectItems(ctx, req, snapshot)
	if err != nil {
		return fail(err)
	}
	if p.filters != nil {
		var dropped int
		selected.Items, dropped = p.filters.Apply(selected.Items, p.filterNames)
		if dropped > 0 {
			p.log.Debugw("items filtered", "dropped", dropped, "kept", len(selected.Items))
		}
	}
	// the limit counts items that passed the filters
	if req.Date == nil && req.Limit > 0 && len(selected.Items) > req.Limit {
		selected.Items = selected.Items[:req.Limit]
	}
	res.Feed = selected

	res.State = Rendering
	if err := p.render(req, selected); err != nil {
		return fail(err)
	}

	res.State = Done
	return res, nil
}

func (p *Pipeline) selectItems(ctx context.Context, req Request, snapshot types.Feed) (types.Feed, error) {
	if req.Date == nil {
		return snapshot, nil
	}

	if req.Limit > 0 {
		p.log.Debugw("limit ignored for date query", "limit", req.Limit, "date", req.Date.String())
	}

	var (
		records []store.Record
		err     error
	)
	if req.Source != "" {
		records, err = p.store.QueryByDateForSource(ctx, req.Source, *req.Date)
	} else {
		records, err = p.store.QueryByDate(ctx, *req.Date)
	}
	if err != nil {
		return types.Feed{}, err
	}

	return types.Feed{Title: dateTitle(records, *req.Date), Items: store.Items(records)}, nil
}

// dateTitle is the shared feed title of records, or a generic heading when
// they come from feeds with different titles or there are none.
func dateTitle(records []store.Record, day civil.Date) string {
	titles := lo.Uniq(lo.Map(records, func(r store.Record, _ int) string { return r.FeedTitle }))
	if len(titles) == 1 && titles[0] != "" {
		return titles[0]
	}
	return "News for " + day.String()
}

func (p *Pipeline) render(req Request, feed types.Feed) error {
	files := []struct {
		path   string
		format render.Format
	}{
		{req.HTMLPath, render.FormatHTML},
		{req.FB2Path, render.FormatFB2},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		fn, err := render.Lookup(f.format)
		if err != nil {
			return err
		}
		doc, err := fn(feed)
		if err != nil {
			return err
		}
		if err := writeFileAtomic(f.path, doc); err != nil {
			return err
		}
		p.log.Infow("document written", "path", f.path, "format", string(f.format), "items", len(feed.Items))
	}

	console := render.TextWidth(p.textWidth)
	if req.JSON {
		fn, err := render.Lookup(render.FormatJSON)
		if err != nil {
			return err
		}
		console = fn
	}
	doc, err := console(feed)
	if err != nil {
		return err
	}
	if _, err := p.stdout.Write(doc); err != nil {
		return fmt.Errorf("failed to write output with %w", err)
	}
	return nil
}
