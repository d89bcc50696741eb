// Package coordinator applies mutations optimistically to the session cache
// and reconciles them with the remote.
//
// Every mutation targets one entity key. Mutations on the same key form a
// FIFO queue: the head is in flight, the rest wait. While a key has queued
// mutations the coordinator keeps the last committed record for it, and the
// cache shows that record with every queued mutation folded on top. A commit
// replaces the committed record with the server's answer; a failure drops
// the mutation. Either way the view is refolded, so the cache never keeps a
// change the remote refused.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/events"
	"github.com/randalmurphal/featureplus/internal/gateway"
	"github.com/randalmurphal/featureplus/internal/hierarchy"
	"github.com/randalmurphal/featureplus/internal/metrics"
	"github.com/randalmurphal/featureplus/internal/store"
)

// queue holds the pending mutations of one key. ops[0] is in flight.
type queue struct {
	key entity.Key
	ops []*op
}

// Coordinator is the single writer of the store and its indices.
type Coordinator struct {
	mu      sync.Mutex
	queues  map[entity.Key]*queue
	base    map[entity.Key]entity.Entity // committed record per queued key; nil if absent
	creates map[string]*op               // pending creates by temporary id
	aliases map[string]string            // resolved temporary id -> server id

	pending int
	idle    chan struct{}
	closed  bool

	store     *store.Store
	hierarchy *hierarchy.Index
	gw        gateway.Gateway
	pub       events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher sets the publisher for op_committed and op_rolled_back events.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.pub = p }
}

// WithMetrics sets the Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithClock sets the clock used for optimistic timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator writing to s (which must have h attached) and
// talking to gw.
func New(s *store.Store, h *hierarchy.Index, gw gateway.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		queues:    make(map[entity.Key]*queue),
		base:      make(map[entity.Key]entity.Entity),
		creates:   make(map[string]*op),
		aliases:   make(map[string]string),
		store:     s,
		hierarchy: h,
		gw:        gw,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.pub == nil {
		c.pub = events.NewNopPublisher()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Pending returns the number of unresolved mutations.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// IsPending reports whether key has unresolved mutations.
func (c *Coordinator) IsPending(key entity.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.queues[c.resolveKeyLocked(key)]
	return ok
}

// Resolve maps a temporary key to its server key once the create committed.
func (c *Coordinator) Resolve(key entity.Key) entity.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveKeyLocked(key)
}

// WaitIdle blocks until no mutation is pending.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further submissions and waits for pending mutations. If ctx
// ends first, in-flight remote calls are cancelled and their mutations roll
// back before Close returns ctx's error.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	err := c.WaitIdle(ctx)
	c.cancel()
	if err != nil {
		_ = c.WaitIdle(context.Background())
	}
	return err
}

// Reload replaces the cache contents through load and discards queue
// bookkeeping. It fails without calling load if mutations are pending.
// Submissions wait until load returns; load must not call back into the
// coordinator.
func (c *Coordinator) Reload(load func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending > 0 {
		return errors.ErrValidation("session", "cannot reload while mutations are pending")
	}
	c.aliases = make(map[string]string)
	if load != nil {
		load()
	}
	return nil
}

func (c *Coordinator) resolveKeyLocked(key entity.Key) entity.Key {
	if id, ok := c.aliases[key.ID]; ok {
		return entity.Key{Kind: key.Kind, ID: id}
	}
	return key
}

// showLocked makes the cache display e under key, or nothing for nil.
func (c *Coordinator) showLocked(key entity.Key, e entity.Entity) {
	if e == nil {
		c.store.Remove(key)
		return
	}
	if err := c.store.Put(e); err != nil {
		c.logger.Error("cache put failed", "key", key.String(), "error", err)
	}
}

// foldLocked returns base with ops applied in order. Ops that no longer
// apply are skipped in the view; the remote will refuse them.
func (c *Coordinator) foldLocked(base entity.Entity, ops []*op) entity.Entity {
	cur := base
	for _, o := range ops {
		next, err := o.project(cur, c.applyPatch)
		if err != nil {
			c.logger.Debug("queued mutation does not apply to view", "key", o.key.String(), "op", o.kind, "error", err)
			continue
		}
		cur = next
	}
	return cur
}

func (c *Coordinator) applyPatch(p entity.Patch, e entity.Entity) (entity.Entity, error) {
	return p.Apply(e, c.now())
}

func (c *Coordinator) incPendingLocked() {
	if c.pending == 0 {
		c.idle = make(chan struct{})
	}
	c.pending++
}

func (c *Coordinator) decPendingLocked() {
	c.pending--
	if c.pending == 0 {
		close(c.idle)
	}
}
