package filter

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/scipunch/rssreader/config"
	"github.com/scipunch/rssreader/fetcher/types"
)

// Chain applies named filters to selected feed items
type Chain struct {
	filters map[string]*compiledFilter
	log     *zap.SugaredLogger
}

type compiledFilter struct {
	config          config.Filter
	excludePatterns []*regexp.Regexp
}

// New compiles every configured filter. An invalid pattern fails the whole chain.
func New(filtersConfig map[string]config.Filter, log *zap.SugaredLogger) (*Chain, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	compiled := make(map[string]*compiledFilter, len(filtersConfig))

	for name, filterCfg := range filtersConfig {
		cf := &compiledFilter{
			config:          filterCfg,
			excludePatterns: make([]*regexp.Regexp, 0, len(filterCfg.ExcludePatterns)),
		}
		for _, pattern := range filterCfg.ExcludePatterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("filter '%s' has invalid pattern '%s' with %w", name, pattern, err)
			}
			cf.excludePatterns = append(cf.excludePatterns, re)
		}
		compiled[name] = cf
	}

	return &Chain{filters: compiled, log: log}, nil
}

// Apply keeps the items passing every named filter, in their original order,
// and reports how many were dropped. The input slice is not modified.
func (c *Chain) Apply(items []types.FeedItem, filterNames []string) ([]types.FeedItem, int) {
	if len(filterNames) == 0 {
		return items, 0
	}

	kept := lo.Filter(items, func(item types.FeedItem, _ int) bool {
		include, reason := c.ShouldInclude(item, filterNames)
		if !include {
			c.log.Debugw("item filtered", "title", item.Title, "reason", reason)
		}
		return include
	})
	return kept, len(items) - len(kept)
}

// ShouldInclude returns true if the item passes all filters named in filterNames
func (c *Chain) ShouldInclude(item types.FeedItem, filterNames []string) (bool, string) {
	for _, filterName := range filterNames {
		filter, exists := c.filters[filterName]
		if !exists {
			c.log.Warnw("filter not found, skipping", "filter_name", filterName)
			continue
		}

		if include, reason := applyFilter(item, filter, filterName); !include {
			return false, reason
		}
	}

	return true, ""
}

func applyFilter(item types.FeedItem, filter *compiledFilter, filterName string) (bool, string) {
	if filter.config.RequireDate && !item.HasDate() {
		return false, filterName + ":require_date"
	}

	text := item.Title + " " + item.Description

	if filter.config.MinLength > 0 && utf8.RuneCountInString(text) < filter.config.MinLength {
		return false, filterName + ":min_length"
	}

	if filter.config.MinWords > 0 && countWords(text) < filter.config.MinWords {
		return false, filterName + ":min_words"
	}

	for i, pattern := range filter.excludePatterns {
		if pattern.MatchString(text) {
			return false, filterName + ":exclude_pattern[" + filter.config.ExcludePatterns[i] + "]"
		}
	}

	return true, ""
}

func countWords(text string) int {
	words := 0
	inWord := false

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if !inWord {
				words++
				inWord = true
			}
		} else {
			inWord = false
		}
	}

	return words
}
