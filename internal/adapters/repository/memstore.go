package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/session"
	"github.com/SBCM-Alliance/G-Cart/pkg/metrics"
)

const (
	defaultTTL                   = 30 * time.Minute
	defaultSweepInterval         = time.Minute
	defaultMetricsUpdateInterval = 5 * time.Second
)

type record struct {
	sess    session.Session
	expires time.Time
}

// MemoryStore is an in-process SessionStore with idle expiry.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]record

	ttl                   time.Duration
	sweepInterval         time.Duration
	metricsUpdateInterval time.Duration
	now                   func() time.Time

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewMemoryStore constructs a memory store and starts its janitor. The
// background goroutines stop when ctx is cancelled or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:                  make(map[string]record),
		ttl:                   defaultTTL,
		sweepInterval:         defaultSweepInterval,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		now:                   time.Now,
		stopChan:              make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.every(ctx, s.sweepInterval, func() { s.Sweep() })
	s.every(ctx, s.metricsUpdateInterval, func() { metrics.UpdateSessionsActive(s.Count(ctx)) })

	return s
}

func (s *MemoryStore) every(ctx context.Context, interval time.Duration, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Close stops the janitor and metrics goroutines.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Create implements SessionStore.
func (s *MemoryStore) Create(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byID[sess.ID]; ok && s.now().Before(rec.expires) {
		return fmt.Errorf("create session %s: %w", sess.ID, ErrExists)
	}
	s.byID[sess.ID] = record{sess: *clone(*sess), expires: s.now().Add(s.ttl)}
	return nil
}

// Get implements SessionStore.
func (s *MemoryStore) Get(_ context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(id)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	return clone(rec.sess), nil
}

// Update implements SessionStore. fn runs under the store lock.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*session.Session) error) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.live(id)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("update session %s: %w", id, ErrNotFound)
	}

	working := *clone(rec.sess)
	if err := fn(&working); err != nil {
		return nil, err
	}

	s.byID[id] = record{sess: working, expires: s.now().Add(s.ttl)}
	return clone(working), nil
}

// Delete implements SessionStore.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(id); !ok {
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}
	delete(s.byID, id)
	return nil
}

// Count implements SessionStore.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, rec := range s.byID {
		if now.Before(rec.expires) {
			n++
		}
	}
	return n
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, rec := range s.byID {
		if !now.Before(rec.expires) {
			delete(s.byID, id)
			removed++
		}
	}
	return removed
}

// live returns the record when it exists and has not expired. Caller holds mu.
func (s *MemoryStore) live(id string) (record, bool) {
	rec, ok := s.byID[id]
	if !ok || !s.now().Before(rec.expires) {
		return record{}, false
	}
	return rec, true
}

// clone copies the session including the values behind its pointers.
func clone(sess session.Session) *session.Session {
	if sess.Project != nil {
		p := *sess.Project
		p.RequiredTags = slices.Clone(p.RequiredTags)
		sess.Project = &p
	}
	if sess.Result != nil {
		r := *sess.Result
		r.Members = slices.Clone(r.Members)
		sess.Result = &r
	}
	return &sess
}
