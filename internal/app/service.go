// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SBCM-Alliance/G-Cart/internal/adapters/catalog"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/directory"
	eventqueue "github.com/SBCM-Alliance/G-Cart/internal/adapters/mq/queue"
	workerpool "github.com/SBCM-Alliance/G-Cart/internal/adapters/mq/worker"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/repository"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/ws"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/matching"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/session"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/team"
	"github.com/SBCM-Alliance/G-Cart/pkg/logger"
	"github.com/SBCM-Alliance/G-Cart/pkg/metrics"
)

// Offer outcomes as counted in metrics.
const (
	offerAdded       = "added"
	offerDuplicate   = "duplicate"
	offerStale       = "stale"
	offerNotEligible = "not_eligible"
	offerRejected    = "rejected"
)

// ErrNotStarted is returned by commands issued before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for team formation.
type Service struct {
	mu sync.RWMutex

	// Core components
	owner     model.Owner
	catalog   catalog.Catalog
	directory *directory.Directory
	store     repository.SessionStore
	matcher   *matching.Matcher
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool
	hub       *ws.Hub

	// Configuration
	workerCount int
	queueSize   int
	sessionTTL  time.Duration
	formURL     string
	now         func() time.Time
	newID       func() string

	// State
	started bool
	cancel  context.CancelFunc

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: 2,
		queueSize:   1024,
		sessionTTL:  30 * time.Minute,
		now:         time.Now,
		newID:       uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the components that were not injected and starts the
// notification pipeline. Background work outlives ctx until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting team formation service...")

	if s.catalog == nil {
		static, err := catalog.NewStatic(catalog.SampleProjects())
		if err != nil {
			return fmt.Errorf("sample catalog: %w", err)
		}
		s.catalog = static
		s.logger.Info(ctx, "using sample catalog")
	}
	if s.directory == nil {
		s.directory = directory.New(nil)
		s.logger.Info(ctx, "no partner sheet configured; using sample partners")
	}
	if s.matcher == nil {
		s.matcher = matching.New()
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if s.store == nil {
		s.store = repository.NewMemoryStore(runCtx, repository.WithTTL(s.sessionTTL))
		s.logger.Info(ctx, "using in-memory session store")
	}

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.hub = ws.NewHub()
	go s.hub.Run(runCtx)

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.hub)
	s.pool.Start(runCtx)

	go s.directory.Run(runCtx)

	s.started = true
	s.logger.Info(ctx, "team formation service started",
		logger.String("owner", s.owner.Name),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("localFirst", s.matcher.LocalFirst()),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping team formation service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "notification workers did not stop cleanly", logger.Error(err))
	}

	s.cancel()

	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "error closing session store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "team formation service stopped")
}

// Owner returns the leading company.
func (s *Service) Owner() model.Owner {
	return s.owner
}

// PartnerFormURL returns the partner registration link, empty when unset.
func (s *Service) PartnerFormURL() string {
	return s.formURL
}

// Projects lists catalog projects matching q.
func (s *Service) Projects(ctx context.Context, q catalog.Query) ([]model.Project, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	projects, err := s.catalog.Projects(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("catalog", "list")
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return catalog.Filter(projects, q), nil
}

// Project returns one catalog project.
func (s *Service) Project(ctx context.Context, id int) (model.Project, error) {
	if err := s.ready(); err != nil {
		return model.Project{}, err
	}
	return s.catalog.Project(ctx, id)
}

// Directory returns the current partner snapshot. It never fails.
func (s *Service) Directory(ctx context.Context) directory.Snapshot {
	if err := s.ready(); err != nil {
		return directory.Snapshot{Partners: []model.Partner{}, Origin: directory.OriginFallback}
	}
	return s.directory.Snapshot(ctx)
}

// CreateSession starts a browsing session for the owner.
func (s *Service) CreateSession(ctx context.Context) (*session.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	sess := session.New(s.newID(), s.owner, s.now())
	if err := s.store.Create(ctx, sess); err != nil {
		metrics.RecordErrorByComponent("sessions", "create")
		return nil, fmt.Errorf("create session: %w", err)
	}
	metrics.RecordSessionCreated()
	s.logger.Debug(ctx, "session created", logger.String("session_id", sess.ID))
	return sess, nil
}

// Session loads a session.
func (s *Service) Session(ctx context.Context, id string) (*session.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// EndSession deletes a session.
func (s *Service) EndSession(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// SelectProject makes projectID the session's active project with a fresh
// team.
func (s *Service) SelectProject(ctx context.Context, id string, projectID int) (*session.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	p, err := s.catalog.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sess, err := s.store.Update(ctx, id, func(sess *session.Session) error {
		return sess.SelectProject(p, s.now())
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordProjectSelected(sess.Shortfall() <= 0)
	return sess, nil
}

// Back returns the session to the catalog.
func (s *Service) Back(ctx context.Context, id string) (*session.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, id, func(sess *session.Session) error {
		sess.Back(s.now())
		return nil
	})
}

// Recommend lists partners for the session's project from the latest
// directory snapshot.
func (s *Service) Recommend(ctx context.Context, id string) (team.Recommendation, error) {
	if err := s.ready(); err != nil {
		return team.Recommendation{}, err
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return team.Recommendation{}, err
	}
	return sess.Recommend(s.matcher, s.directory.Snapshot(ctx).Partners)
}

// Offer adds the named partner to the session's team. added is false when the
// partner was already a member.
func (s *Service) Offer(ctx context.Context, id, partner string) (*session.Session, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}
	snap := s.directory.Snapshot(ctx)

	var added bool
	sess, err := s.store.Update(ctx, id, func(sess *session.Session) error {
		_, ok, err := sess.Offer(partner, snap.Partners, s.now())
		added = ok
		return err
	})
	switch {
	case errors.Is(err, session.ErrStaleReference):
		metrics.RecordOffer(offerStale)
		s.notify(ctx, model.Notification{
			SessionID: id,
			Kind:      model.NotifyOfferUnavailable,
			Partner:   partner,
			Message:   partner + " は現在パートナー一覧にありません",
		})
		return nil, false, err
	case errors.Is(err, session.ErrNotEligible):
		metrics.RecordOffer(offerNotEligible)
		return nil, false, err
	case err != nil:
		metrics.RecordOffer(offerRejected)
		return nil, false, err
	}

	if !added {
		metrics.RecordOffer(offerDuplicate)
		return sess, false, nil
	}
	metrics.RecordOffer(offerAdded)
	s.notify(ctx, model.Notification{
		SessionID: id,
		Kind:      model.NotifyOfferSent,
		Partner:   partner,
		Message:   partner + " にオファーを送信しました",
	})
	return sess, true, nil
}

// ConfirmBid closes the session with the JV bid result.
func (s *Service) ConfirmBid(ctx context.Context, id string) (*session.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	sess, err := s.store.Update(ctx, id, func(sess *session.Session) error {
		_, err := sess.ConfirmBid(s.now())
		return err
	})
	if err != nil {
		metrics.RecordBid("rejected")
		return nil, err
	}
	metrics.RecordBid("confirmed")
	s.logger.Info(ctx, "bid confirmed",
		logger.String("session_id", id),
		logger.Int("project_id", sess.Result.ProjectID),
		logger.Int("members", len(sess.Result.Members)),
		logger.Int64("total_capacity", int64(sess.Result.TotalCapacity)),
	)
	s.notify(ctx, model.Notification{
		SessionID: id,
		Kind:      model.NotifyBidConfirmed,
		Message:   sess.Result.AllocationNote,
	})
	return sess, nil
}

// Subscribe attaches a notification stream to a session.
func (s *Service) Subscribe(sessionID string, sub ws.Subscriber) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.hub.Register(sessionID, sub)
}

// Unsubscribe detaches a notification stream.
func (s *Service) Unsubscribe(sessionID string, sub ws.Subscriber) {
	if s.ready() != nil {
		return
	}
	s.hub.Unregister(sessionID, sub)
}

// notify queues n for delivery. A full queue drops it; team state is
// already committed.
func (s *Service) notify(ctx context.Context, n model.Notification) {
	if n.At.IsZero() {
		n.At = s.now()
	}
	if !s.queue.Enqueue(ctx, n) {
		s.logger.Debug(ctx, "notification dropped",
			logger.String("session_id", n.SessionID),
			logger.String("kind", string(n.Kind)),
		)
	}
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"owner":       s.owner.Name,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		sessions := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["queueCapacity"] = s.queue.Capacity()
		stats["sessions"] = sessions
		stats["subscribers"] = s.hub.Subscribers("")
		stats["delivered"] = s.pool.Delivered()
		stats["directoryTTL"] = s.directory.TTL().String()
		stats["localFirst"] = s.matcher.LocalFirst()

		metrics.UpdateNotifyQueueSize(queueLen)
		metrics.UpdateSessionsActive(sessions)
	}

	return stats
}
