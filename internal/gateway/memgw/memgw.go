// Package memgw is an in-process remote store. It behaves like the HTTP
// backend (server ids, timestamps, validation, typed failures) and can hold
// each request until the caller releases it, so tests decide the order in
// which responses arrive.
package memgw

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/gateway"
)

// Method names a gateway call.
type Method string

const (
	MethodCreate Method = "create"
	MethodUpdate Method = "update"
	MethodPatch  Method = "patch"
	MethodDelete Method = "delete"
	MethodGet    Method = "get"
	MethodList   Method = "list"
)

// Record is one call observed by the remote.
type Record struct {
	Method Method
	Key    entity.Key
}

// Option configures a Remote.
type Option func(*Remote)

// WithHold makes every mutating call block until released through Held.
func WithHold() Option {
	return func(r *Remote) { r.hold = true }
}

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Remote) { r.now = now }
}

// WithLatency delays every call by d.
func WithLatency(d time.Duration) Option {
	return func(r *Remote) { r.latency = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Remote) { r.logger = l }
}

type record struct {
	e   entity.Entity
	seq int64
}

// Remote is a map-backed gateway.Gateway.
type Remote struct {
	mu       sync.Mutex
	records  map[entity.Key]record
	nextID   int64
	seq      int64
	failures map[Method][]error
	calls    []Record
	inFlight map[entity.Key]int
	maxIn    map[entity.Key]int

	hold    bool
	held    chan *Call
	latency time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

var _ gateway.Gateway = (*Remote)(nil)

// New creates an empty remote.
func New(opts ...Option) *Remote {
	r := &Remote{
		records:  make(map[entity.Key]record),
		failures: make(map[Method][]error),
		inFlight: make(map[entity.Key]int),
		maxIn:    make(map[entity.Key]int),
		held:     make(chan *Call, 1024),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// FailNext makes the next call of method fail with err. Calls queue up in
// order.
func (r *Remote) FailNext(method Method, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[method] = append(r.failures[method], err)
}

// Seed stores e directly, assigning an id when it has none. Returns the
// stored copy.
func (r *Remote) Seed(e entity.Entity) entity.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := e.Clone()
	if id := out.Key().ID; id == "" {
		out.SetID(r.newIDLocked())
	} else if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > r.nextID {
		r.nextID = n
	}
	gateway.Normalize(out)
	entity.Stamp(out, r.now(), true)
	r.storeLocked(out)
	return out.Clone()
}

// Calls returns every call observed so far.
func (r *Remote) Calls() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.calls...)
}

// MaxConcurrent returns the highest number of simultaneous calls seen for key.
func (r *Remote) MaxConcurrent(key entity.Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxIn[key]
}

// Len returns the number of stored records.
func (r *Remote) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Create implements gateway.Gateway.
func (r *Remote) Create(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	return r.do(ctx, &Call{Method: MethodCreate, Key: e.Key(), Entity: e.Clone()})
}

// Update implements gateway.Gateway.
func (r *Remote) Update(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	return r.do(ctx, &Call{Method: MethodUpdate, Key: e.Key(), Entity: e.Clone()})
}

// Patch implements gateway.Gateway.
func (r *Remote) Patch(ctx context.Context, key entity.Key, p entity.Patch) (entity.Entity, error) {
	return r.do(ctx, &Call{Method: MethodPatch, Key: key, Patch: p})
}

// Delete implements gateway.Gateway.
func (r *Remote) Delete(ctx context.Context, key entity.Key) error {
	_, err := r.do(ctx, &Call{Method: MethodDelete, Key: key})
	return err
}

// Get implements gateway.Gateway.
func (r *Remote) Get(ctx context.Context, key entity.Key) (entity.Entity, error) {
	if err := r.begin(ctx, MethodGet, key); err != nil {
		return nil, err
	}
	defer r.end(key)

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, errors.ErrNotFound(key.String())
	}
	return rec.e.Clone(), nil
}

// ListProjects implements gateway.Gateway.
func (r *Remote) ListProjects(ctx context.Context) ([]*entity.Project, error) {
	if err := r.begin(ctx, MethodList, entity.Key{Kind: entity.KindProject}); err != nil {
		return nil, err
	}
	defer r.end(entity.Key{Kind: entity.KindProject})

	var out []*entity.Project
	r.each(entity.KindProject, func(e entity.Entity) {
		out = append(out, e.(*entity.Project))
	})
	return out, nil
}

// ListFeatures implements gateway.Gateway.
func (r *Remote) ListFeatures(ctx context.Context, projectID string) ([]*entity.Feature, error) {
	key := entity.Key{Kind: entity.KindFeature}
	if err := r.begin(ctx, MethodList, key); err != nil {
		return nil, err
	}
	defer r.end(key)

	var out []*entity.Feature
	r.each(entity.KindFeature, func(e entity.Entity) {
		if f := e.(*entity.Feature); f.ProjectID == projectID {
			out = append(out, f)
		}
	})
	return out, nil
}

// ListTasks implements gateway.Gateway.
func (r *Remote) ListTasks(ctx context.Context, projectID string) ([]*entity.Task, error) {
	key := entity.Key{Kind: entity.KindTask}
	if err := r.begin(ctx, MethodList, key); err != nil {
		return nil, err
	}
	defer r.end(key)

	r.mu.Lock()
	lookup := func(id string) (*entity.Feature, bool) {
		rec, ok := r.records[entity.FeatureKey(id)]
		if !ok {
			return nil, false
		}
		return rec.e.(*entity.Feature), true
	}
	var tasks []*entity.Task
	for _, e := range r.sortedLocked(entity.KindTask) {
		t := e.(*entity.Task)
		if p, err := gateway.ProjectOf(t, lookup); err == nil && p == projectID {
			tasks = append(tasks, t.Clone().(*entity.Task))
		}
	}
	r.mu.Unlock()
	return tasks, nil
}

// do runs a mutating call, holding it first when configured to.
func (r *Remote) do(ctx context.Context, c *Call) (entity.Entity, error) {
	if err := r.begin(ctx, c.Method, c.Key); err != nil {
		return nil, err
	}
	defer r.end(c.Key)

	if r.hold {
		c.decision = make(chan error, 1)
		r.held <- c
		select {
		case err := <-c.decision:
			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, gateway.Classify(ctx.Err())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch c.Method {
	case MethodCreate:
		return r.createLocked(c.Entity)
	case MethodUpdate:
		return r.updateLocked(c.Entity)
	case MethodPatch:
		return r.patchLocked(c.Key, c.Patch)
	case MethodDelete:
		return nil, r.deleteLocked(c.Key)
	default:
		return nil, fmt.Errorf("unsupported method %s", c.Method)
	}
}

// begin records the call, applies latency and any injected failure.
func (r *Remote) begin(ctx context.Context, m Method, key entity.Key) error {
	r.mu.Lock()
	r.calls = append(r.calls, Record{Method: m, Key: key})
	r.inFlight[key]++
	if r.inFlight[key] > r.maxIn[key] {
		r.maxIn[key] = r.inFlight[key]
	}
	var injected error
	if q := r.failures[m]; len(q) > 0 {
		injected, r.failures[m] = q[0], q[1:]
	}
	r.mu.Unlock()

	if r.latency > 0 {
		t := time.NewTimer(r.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			r.end(key)
			return gateway.Classify(ctx.Err())
		}
	}
	if injected != nil {
		r.logger.Debug("memgw injected failure", "method", m, "key", key.String(), "error", injected)
		r.end(key)
		return injected
	}
	return nil
}

func (r *Remote) end(key entity.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight[key]--
}

func (r *Remote) each(kind entity.Kind, fn func(entity.Entity)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.sortedLocked(kind) {
		fn(e.Clone())
	}
}

func (r *Remote) newIDLocked() string {
	r.nextID++
	return strconv.FormatInt(r.nextID, 10)
}

func (r *Remote) storeLocked(e entity.Entity) {
	key := e.Key()
	seq := r.records[key].seq
	if seq == 0 {
		r.seq++
		seq = r.seq
	}
	r.records[key] = record{e: e, seq: seq}
}
