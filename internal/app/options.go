package service

import (
	"time"

	"github.com/SBCM-Alliance/G-Cart/internal/adapters/catalog"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/directory"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/repository"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/matching"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	"github.com/SBCM-Alliance/G-Cart/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithOwner sets the company that leads every session.
func WithOwner(owner model.Owner) Option {
	return func(s *Service) {
		s.owner = owner
	}
}

// WithCatalog sets the project catalog. Without it the sample catalog is used.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithDirectory sets the partner directory. Without it the sample partners
// are served.
func WithDirectory(d *directory.Directory) Option {
	return func(s *Service) {
		if d != nil {
			s.directory = d
		}
	}
}

// WithSessionStore sets the session store. The service closes it on Stop.
func WithSessionStore(store repository.SessionStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithMatcher sets the recommendation matcher.
func WithMatcher(m *matching.Matcher) Option {
	return func(s *Service) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithWorkerCount sets the number of notification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the notification queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSessionTTL sets the idle expiry of the default in-memory store.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithPartnerFormURL sets the partner registration form link.
func WithPartnerFormURL(url string) Option {
	return func(s *Service) {
		s.formURL = url
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}
