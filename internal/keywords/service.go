// Package keywords serves the paginated keyword list and the live feed
// through short-TTL read-through caches, and runs the credit-gated unlock
// flow.
package keywords

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nichepulse/nichepulse-go/internal/api"
	"github.com/nichepulse/nichepulse-go/internal/logging"
	"github.com/nichepulse/nichepulse-go/internal/metrics"
)

const (
	pathList = "/keywords"
	pathLive = "/keywords/live"

	defaultPageSize     = 20
	defaultPageCacheTTL = 5 * time.Minute
	defaultLiveCacheTTL = 15 * time.Second
)

// Config configures the keyword service.
type Config struct {
	Client   *api.Client
	Logger   *logging.Logger
	PageSize int
	// PageCacheTTL is minutes-order; LiveCacheTTL is seconds-order.
	PageCacheTTL time.Duration
	LiveCacheTTL time.Duration
}

// Service is the read side of the keyword list plus the unlock mutation.
type Service struct {
	client    *api.Client
	logger    *logging.Logger
	pageSize  int
	pageCache *PageCache
	liveCache *LiveCache
}

// NewService creates a keyword service with its caches.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pageTTL := cfg.PageCacheTTL
	if pageTTL <= 0 {
		pageTTL = defaultPageCacheTTL
	}
	liveTTL := cfg.LiveCacheTTL
	if liveTTL <= 0 {
		liveTTL = defaultLiveCacheTTL
	}

	return &Service{
		client:    cfg.Client,
		logger:    logger,
		pageSize:  pageSize,
		pageCache: NewPageCache(pageTTL),
		liveCache: NewLiveCache(liveTTL),
	}
}

// PageCache exposes the page cache, mainly for tests and cache warmers.
func (s *Service) PageCache() *PageCache { return s.pageCache }

// LiveCache exposes the live cache.
func (s *Service) LiveCache() *LiveCache { return s.liveCache }

// List returns one page of keywords (zero-based page index), read through
// the page cache. A fresh entry is served without a network call.
func (s *Service) List(ctx context.Context, page int) ([]Keyword, error) {
	if page < 0 {
		return nil, fmt.Errorf("keywords: page must be non-negative")
	}

	if items, ok := s.pageCache.Get(page); ok {
		metrics.CacheHit("page")
		return items, nil
	}
	metrics.CacheMiss("page")

	path := fmt.Sprintf("%s?limit=%d&offset=%d", pathList, s.pageSize, page*s.pageSize)
	payload, err := api.Do[listPayload](ctx, s.client, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	s.pageCache.Put(page, payload.Items)
	return payload.Items, nil
}

// Live returns the live feed, read through its dedicated single-entry cache.
func (s *Service) Live(ctx context.Context) ([]Keyword, error) {
	if items, ok := s.liveCache.Get(); ok {
		metrics.CacheHit("live")
		return items, nil
	}
	metrics.CacheMiss("live")
	return s.RefreshLive(ctx)
}

// RefreshLive fetches the live feed unconditionally and repopulates the
// cache. The background poller calls this on its interval.
func (s *Service) RefreshLive(ctx context.Context) ([]Keyword, error) {
	payload, err := api.Do[listPayload](ctx, s.client, http.MethodGet, pathLive, nil)
	if err != nil {
		return nil, err
	}
	s.liveCache.Put(payload.Items)
	return payload.Items, nil
}

// unlock issues the remote unlock call for one item and returns the revealed
// record. On success every cached page that could contain the item is
// discarded - in practice the whole cache, plus the live feed.
func (s *Service) unlock(ctx context.Context, id string) (Keyword, error) {
	revealed, err := api.Do[Keyword](ctx, s.client, http.MethodPost, pathList+"/"+id+"/unlock", nil)
	if err != nil {
		return Keyword{}, err
	}

	s.pageCache.Invalidate()
	s.liveCache.Invalidate()
	return revealed, nil
}
