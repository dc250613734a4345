package fetcher

import (
	"fmt"
	"net/http"
	"time"

	"github.com/scipunch/rssreader/config"
	"github.com/scipunch/rssreader/fetcher/types"
)

const defaultTimeout = 20 * time.Second

// New creates the feed fetcher described by the fetch section of the config
func New(cfg config.Fetch) (types.FeedFetcher, error) {
	if cfg.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("fetch timeout must not be negative, got %d", cfg.TimeoutSeconds)
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return NewRSSFetcher(&http.Client{Timeout: timeout}, cfg.UserAgent), nil
}
