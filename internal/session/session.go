// Package session owns the process-wide entity cache: the store, its
// indices, the count aggregator and the sync coordinator that writes to
// them. A session is opened once, hydrated from the remote, used by the
// read views and command layer, and closed on teardown.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/randalmurphal/featureplus/internal/config"
	"github.com/randalmurphal/featureplus/internal/coordinator"
	"github.com/randalmurphal/featureplus/internal/counts"
	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/events"
	"github.com/randalmurphal/featureplus/internal/gateway"
	"github.com/randalmurphal/featureplus/internal/hierarchy"
	"github.com/randalmurphal/featureplus/internal/metrics"
	"github.com/randalmurphal/featureplus/internal/store"
	"github.com/randalmurphal/featureplus/internal/tags"
)

// Session bundles the cache components. The exported fields are read-only
// after Open; all writes go through Coordinator.
type Session struct {
	Store       *store.Store
	Hierarchy   *hierarchy.Index
	Tags        *tags.Index
	Counts      *counts.Aggregator
	Coordinator *coordinator.Coordinator
	Events      events.Publisher
	Metrics     *metrics.Metrics

	gw     gateway.Gateway
	closer io.Closer
	logger *slog.Logger
	group  singleflight.Group

	mu        sync.Mutex
	projectID string
	closed    bool
}

type options struct {
	registerer prometheus.Registerer
	publisher  events.Publisher
	closer     io.Closer
	now        func() time.Time
}

// Option configures Open.
type Option func(*options)

// WithRegisterer registers the coordinator metrics with reg instead of a
// private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithPublisher replaces the in-memory event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithCloser registers a resource, such as the gateway's database, to
// release when the session closes.
func WithCloser(c io.Closer) Option {
	return func(o *options) { o.closer = c }
}

// WithClock sets the clock used for optimistic timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Open builds an empty session talking to gw.
func Open(cfg *config.Config, gw gateway.Gateway, logger *slog.Logger, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if gw == nil {
		return nil, errors.ErrConfigInvalid("gateway", "no gateway configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}
	if o.publisher == nil {
		o.publisher = events.NewMemoryPublisher(events.WithBufferSize(cfg.Session.EventBuffer))
	}

	h := hierarchy.New(logger)
	ti := tags.New(logger, cfg.Session.AutocompleteMin)
	st := store.New(logger, h, ti, events.NewStoreHook(o.publisher))
	m := metrics.New(o.registerer)

	s := &Session{
		Store:     st,
		Hierarchy: h,
		Tags:      ti,
		Counts:    counts.New(st, h),
		Events:    o.publisher,
		Metrics:   m,
		gw:        gw,
		closer:    o.closer,
		logger:    logger,
		projectID: cfg.Session.ProjectID,
	}
	s.Coordinator = coordinator.New(st, h, gw,
		coordinator.WithPublisher(o.publisher),
		coordinator.WithMetrics(m),
		coordinator.WithLogger(logger),
		coordinator.WithClock(o.now),
	)
	return s, nil
}

// ProjectID returns the most recently hydrated project, or the configured
// default before the first hydration.
func (s *Session) ProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

// Gateway returns the remote the session talks to.
func (s *Session) Gateway() gateway.Gateway { return s.gw }

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Projects lists the projects known to the remote. Projects are not cached.
func (s *Session) Projects(ctx context.Context) ([]*entity.Project, error) {
	if s.isClosed() {
		return nil, errors.ErrSessionClosed()
	}
	return s.gw.ListProjects(ctx)
}

// Hydrate replaces the cache contents with projectID, its features and its
// tasks, fetched in parallel. Concurrent hydrations of the same project
// share one fetch. It fails while mutations are pending.
func (s *Session) Hydrate(ctx context.Context, projectID string) error {
	if s.isClosed() {
		return errors.ErrSessionClosed()
	}
	if projectID == "" {
		return errors.ErrValidation("project", "no project selected")
	}
	_, err, shared := s.group.Do(projectID, func() (any, error) {
		return nil, s.hydrate(ctx, projectID)
	})
	if shared {
		s.logger.Debug("joined in-flight hydration", "project", projectID)
	}
	return err
}

func (s *Session) hydrate(ctx context.Context, projectID string) error {
	var (
		project  entity.Entity
		features []*entity.Feature
		tasks    []*entity.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		project, err = s.gw.Get(gctx, entity.ProjectKey(projectID))
		return err
	})
	g.Go(func() error {
		var err error
		features, err = s.gw.ListFeatures(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = s.gw.ListTasks(gctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("hydrate project %s: %w", projectID, err)
	}

	err := s.Coordinator.Reload(func() {
		s.Store.Reset()
		s.load(project)
		for _, f := range features {
			s.load(f)
		}
		for _, t := range tasks {
			s.load(t)
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.projectID = projectID
	s.mu.Unlock()

	s.logger.Info("session hydrated", "project", projectID, "features", len(features), "tasks", len(tasks))
	return nil
}

func (s *Session) load(e entity.Entity) {
	if err := s.Store.Put(e); err != nil {
		s.logger.Warn("skipped record during hydration", "key", e.Key().String(), "error", err)
	}
}

// Wait blocks until every submitted mutation has resolved.
func (s *Session) Wait(ctx context.Context) error {
	return s.Coordinator.WaitIdle(ctx)
}

// Close rejects further commands, waits for pending mutations (bounded by
// ctx), then tears the cache down. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.Coordinator.Close(ctx)
	s.Events.Close()
	s.Store.Reset()
	if s.closer != nil {
		if cerr := s.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close gateway: %w", cerr)
		}
	}
	s.logger.Debug("session closed", "error", err)
	return err
}
