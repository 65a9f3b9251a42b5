// Package fetcher loads product list pages through a shared, keyed cache.
//
// Identical keys requested within the dedup interval are answered from the
// cache, and identical concurrent requests share a single network call.
// There is no background revalidation: entries only change through Fetch
// after expiry or through an explicit Invalidate. Expired pages of keys
// nobody asks for again, such as those of rotated tokens, are swept while
// new pages are stored.
package fetcher

import (
	"context"
	"sync"
	"time"

	"quantum-stock/internal/domain"
	"quantum-stock/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultDedupInterval matches the list screen's cache window
const DefaultDedupInterval = 60 * time.Second

// Lister loads one page of products
type Lister interface {
	List(ctx context.Context, token string, params repository.ListParams) (*domain.PageResult, error)
}

// Options configures a Fetcher
type Options struct {
	DedupInterval time.Duration
	Now           func() time.Time
	Logger        *zap.Logger
}

type entry struct {
	data      *domain.PageResult
	fetchedAt time.Time
}

// flight is one network call for a key. A flight marked stale still
// answers its callers but its result is not cached.
type flight struct {
	stale bool
}

// Fetcher is the shared page cache
type Fetcher struct {
	lister Lister
	group  singleflight.Group
	dedup  time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu        sync.Mutex
	entries   map[string]*entry
	inflight  map[string]map[*flight]struct{}
	lastSweep time.Time
}

// New creates a Fetcher backed by lister
func New(lister Lister, opts Options) *Fetcher {
	if opts.DedupInterval <= 0 {
		opts.DedupInterval = DefaultDedupInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Fetcher{
		lister:    lister,
		dedup:     opts.DedupInterval,
		now:       opts.Now,
		logger:    opts.Logger,
		entries:   make(map[string]*entry),
		inflight:  make(map[string]map[*flight]struct{}),
		lastSweep: opts.Now(),
	}
}

// Fetch returns the page for key, from cache when fresh
func (f *Fetcher) Fetch(ctx context.Context, key Key) (*domain.PageResult, error) {
	id := key.String()

	if data, ok := f.Peek(key); ok {
		return data, nil
	}

	v, err, shared := f.group.Do(id, func() (interface{}, error) {
		// The previous call for id may have filled the cache since Peek
		if data, ok := f.Peek(key); ok {
			return data, nil
		}

		fl := f.begin(id)

		// A caller cancelling must not fail the others sharing this call
		data, err := f.lister.List(context.WithoutCancel(ctx), key.Token, key.Params())

		f.finish(id, fl, data, err)
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		f.logger.Warn("Failed to fetch product page",
			zap.Int("page", key.Page),
			zap.String("category", key.Category),
			zap.Error(err),
		)
		return nil, err
	}

	if shared {
		f.logger.Debug("Product page request shared", zap.Int("page", key.Page))
	}

	return v.(*domain.PageResult), nil
}

func (f *Fetcher) begin(id string) *flight {
	fl := &flight{}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight[id] == nil {
		f.inflight[id] = make(map[*flight]struct{})
	}
	f.inflight[id][fl] = struct{}{}
	return fl
}

// finish records the outcome of fl and forgets it. Expired pages of other
// keys are swept at most once per dedup interval.
func (f *Fetcher) finish(id string, fl *flight, data *domain.PageResult, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.inflight[id], fl)
	if len(f.inflight[id]) == 0 {
		delete(f.inflight, id)
	}

	now := f.now()
	if now.Sub(f.lastSweep) >= f.dedup {
		f.sweepLocked(now)
	}
	if err == nil && !fl.stale {
		f.entries[id] = &entry{data: data, fetchedAt: now}
	}
}

func (f *Fetcher) sweepLocked(now time.Time) {
	for id, e := range f.entries {
		if now.Sub(e.fetchedAt) >= f.dedup {
			delete(f.entries, id)
		}
	}
	f.lastSweep = now
}

// Len returns the number of cached pages, fresh or not yet swept
func (f *Fetcher) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Peek returns a fresh cached page without fetching
func (f *Fetcher) Peek(key Key) (*domain.PageResult, bool) {
	id := key.String()

	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		return nil, false
	}
	if f.now().Sub(e.fetchedAt) >= f.dedup {
		delete(f.entries, id)
		return nil, false
	}
	return e.data, true
}

// Invalidate drops the cached page for key. A fetch already in flight for
// key still answers its callers but is not cached.
func (f *Fetcher) Invalidate(key Key) {
	id := key.String()

	f.mu.Lock()
	delete(f.entries, id)
	for fl := range f.inflight[id] {
		fl.stale = true
	}
	f.mu.Unlock()

	f.group.Forget(id)
}

// InvalidateAll drops every cached page, used after a write changes the list
func (f *Fetcher) InvalidateAll() {
	f.mu.Lock()
	ids := make([]string, 0, len(f.inflight))
	for id, flights := range f.inflight {
		ids = append(ids, id)
		for fl := range flights {
			fl.stale = true
		}
	}
	f.entries = make(map[string]*entry)
	f.mu.Unlock()

	for _, id := range ids {
		f.group.Forget(id)
	}
}
