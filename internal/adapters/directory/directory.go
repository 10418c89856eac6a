package directory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	"github.com/SBCM-Alliance/G-Cart/pkg/logger"
	"github.com/SBCM-Alliance/G-Cart/pkg/metrics"
)

const (
	defaultTTL          = 60 * time.Second
	defaultFetchTimeout = 5 * time.Second
)

// Origin says where a snapshot came from.
type Origin string

// Snapshot origins.
const (
	OriginLive     Origin = "live"     // fetched for this call
	OriginCache    Origin = "cache"    // fresh cached fetch
	OriginStale    Origin = "stale"    // fetch failed, older fetch reused
	OriginFallback Origin = "fallback" // nothing fetched yet, sample set
)

// Snapshot is a point-in-time copy of the directory.
type Snapshot struct {
	Partners    []model.Partner `json:"partners"`
	Origin      Origin          `json:"origin"`
	FetchedAt   time.Time       `json:"fetched_at"`
	Quarantined []RowError      `json:"quarantined,omitempty"`
}

// Option applies a configuration option to the Directory.
type Option func(*Directory)

// WithTTL sets how long a fetch is served from cache.
func WithTTL(ttl time.Duration) Option {
	return func(d *Directory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds a single fetch.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(d *Directory) {
		if timeout > 0 {
			d.fetchTimeout = timeout
		}
	}
}

// WithFallback replaces the sample partners served when nothing was fetched.
func WithFallback(partners []model.Partner) Option {
	return func(d *Directory) {
		d.fallback = slices.Clone(partners)
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

// Directory caches partner fetches. Snapshot never fails: a broken source
// degrades to the last good fetch and then to the fallback set.
type Directory struct {
	source       Source
	fallback     []model.Partner
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	logger       logger.Logger

	mu   sync.RWMutex
	last *Snapshot
	// degraded is served until retryAt after a failed fetch.
	degraded *Snapshot
	retryAt  time.Time

	group singleflight.Group
}

// New creates a directory over source. A nil source always serves the
// fallback set.
func New(source Source, opts ...Option) *Directory {
	d := &Directory{
		source:       source,
		fallback:     SamplePartners(),
		ttl:          defaultTTL,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		logger:       logger.Get().Named("directory"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TTL returns the cache lifetime.
func (d *Directory) TTL() time.Duration { return d.ttl }

// Snapshot returns the current directory, refreshing it when the cache is
// older than the TTL. Concurrent callers share one fetch. After a failed
// fetch the degraded snapshot is served for one TTL without fetching again;
// Run keeps retrying in the background.
func (d *Directory) Snapshot(ctx context.Context) Snapshot {
	if snap, ok := d.fresh(); ok {
		return snap
	}
	return d.Refresh(ctx)
}

// Refresh fetches now regardless of cache age.
func (d *Directory) Refresh(ctx context.Context) Snapshot {
	v, _, _ := d.group.Do("refresh", func() (any, error) {
		return d.refresh(context.WithoutCancel(ctx)), nil
	})
	return copySnapshot(v.(Snapshot))
}

// Run refreshes the cache every TTL until ctx is done.
func (d *Directory) Run(ctx context.Context) {
	d.Refresh(ctx)

	ticker := time.NewTicker(d.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Refresh(ctx)
		}
	}
}

func (d *Directory) fresh() (Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	now := d.now()
	if d.degraded != nil && now.Before(d.retryAt) {
		return copySnapshot(*d.degraded), true
	}
	if d.last != nil && now.Sub(d.last.FetchedAt) < d.ttl {
		snap := copySnapshot(*d.last)
		snap.Origin = OriginCache
		return snap, true
	}
	return Snapshot{}, false
}

func (d *Directory) refresh(ctx context.Context) Snapshot {
	if d.source == nil {
		return d.degrade(ctx, nil)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, d.fetchTimeout)
	defer cancel()

	batch, err := d.source.Fetch(fetchCtx)

	for _, q := range batch.Quarantined {
		d.logger.Warn(ctx, "quarantined partner row",
			logger.Int("row", q.Row),
			logger.String("reason", q.Reason))
	}
	metrics.RecordDirectoryQuarantined(len(batch.Quarantined))

	if err == nil && len(batch.Partners) == 0 {
		err = fmt.Errorf("%w: source returned no partners", ErrMalformed)
	}
	if err != nil {
		metrics.RecordErrorByComponent("directory", "fetch")
		return d.degrade(ctx, err)
	}

	snap := Snapshot{
		Partners:    batch.Partners,
		Origin:      OriginLive,
		FetchedAt:   d.now(),
		Quarantined: batch.Quarantined,
	}

	d.mu.Lock()
	d.last = &snap
	d.degraded = nil
	d.mu.Unlock()

	d.record(snap)
	return snap
}

func (d *Directory) degrade(ctx context.Context, cause error) Snapshot {
	d.mu.RLock()
	last := d.last
	d.mu.RUnlock()

	var snap Snapshot
	if last != nil {
		snap = copySnapshot(*last)
		snap.Origin = OriginStale
	} else {
		snap = Snapshot{Partners: slices.Clone(d.fallback), Origin: OriginFallback, FetchedAt: d.now()}
		if snap.Partners == nil {
			snap.Partners = []model.Partner{}
		}
	}

	d.mu.Lock()
	d.degraded = &snap
	d.retryAt = d.now().Add(d.ttl)
	d.mu.Unlock()

	if cause != nil {
		d.logger.Warn(ctx, "partner directory unavailable, serving degraded snapshot",
			logger.String("origin", string(snap.Origin)),
			logger.Error(cause))
	}
	d.record(snap)
	return snap
}

func (d *Directory) record(snap Snapshot) {
	metrics.RecordDirectoryRefresh(string(snap.Origin))
	metrics.UpdateDirectoryPartners(len(snap.Partners))
}

func copySnapshot(s Snapshot) Snapshot {
	s.Partners = slices.Clone(s.Partners)
	s.Quarantined = slices.Clone(s.Quarantined)
	return s
}
