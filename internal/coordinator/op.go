package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
)

// OpKind is the kind of mutation.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpPatch  OpKind = "patch"
	OpDelete OpKind = "delete"
)

// State is the lifecycle of a submitted mutation.
type State int

const (
	StateIdle State = iota
	StatePending
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Op describes a mutation. Create and Update carry Entity; Patch carries
// Patch; Update, Patch and Delete address Key (Update may leave it zero).
type Op struct {
	Kind   OpKind
	Key    entity.Key
	Entity entity.Entity
	Patch  entity.Patch
}

// Result is delivered to the resolve callback.
type Result struct {
	Key    entity.Key
	Op     OpKind
	State  State
	Entity entity.Entity // canonical record after commit; nil for deletes and rollbacks
	Err    error         // *RecoverableError after a rollback
}

// RecoverableError reports a mutation the remote refused or never answered.
// The cache has already been restored; the caller may retry.
type RecoverableError struct {
	Key   entity.Key
	Op    OpKind
	Cause error
}

func (e *RecoverableError) Error() string {
	return fmt.Sprintf("%s %s rolled back: %v", e.Op, e.Key, e.Cause)
}

func (e *RecoverableError) Unwrap() error { return e.Cause }

// Retryable reports whether repeating the mutation may succeed.
func (e *RecoverableError) Retryable() bool { return errors.IsRetryable(e.Cause) }

// SubmitOption configures one submission.
type SubmitOption func(*op)

// OnResolve registers fn to run once the mutation commits or rolls back,
// unless the handle has been marked stale by then.
func OnResolve(fn func(Result)) SubmitOption {
	return func(o *op) { o.callback = fn }
}

// op is one queued mutation.
type op struct {
	kind    OpKind
	key     entity.Key    // current target key; follows rekeys
	payload entity.Entity // create/update body, ids rewritten as temp ids resolve
	patch   entity.Patch
	// build turns the committed record into a patch at dispatch time. Set for
	// tag and comment commands, which are not applied optimistically.
	build func(committed entity.Entity) (entity.Patch, error)

	callback func(Result)
	stale    atomic.Bool

	mu     sync.Mutex
	state  State
	result entity.Entity
	err    error
	done   chan struct{}
}

func newOp(kind OpKind, key entity.Key) *op {
	return &op{kind: kind, key: key, state: StateIdle, done: make(chan struct{})}
}

func (o *op) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// finish records the outcome and wakes waiters. Returns the callback to run,
// or nil when there is none or the op went stale.
func (o *op) finish(s State, result entity.Entity, err error) func() {
	o.mu.Lock()
	o.state = s
	o.result = result
	o.err = err
	key := o.key
	o.mu.Unlock()
	close(o.done)

	if o.callback == nil || o.stale.Load() {
		return nil
	}
	res := Result{Key: key, Op: o.kind, State: s, Entity: entity.CloneEntity(result), Err: err}
	cb := o.callback
	return func() { cb(res) }
}

// project folds the op onto cur, the record as it would look before it.
func (o *op) project(cur entity.Entity, apply func(entity.Patch, entity.Entity) (entity.Entity, error)) (entity.Entity, error) {
	switch o.kind {
	case OpCreate, OpUpdate:
		return o.payload.Clone(), nil
	case OpDelete:
		return nil, nil
	case OpPatch:
		if o.build != nil {
			return cur, nil
		}
		if cur == nil {
			return nil, errors.ErrNotFound(o.key.String())
		}
		return apply(o.patch, cur)
	default:
		return cur, nil
	}
}

// rewrite replaces references to old with newID in the op's target and body.
func (o *op) rewrite(old entity.Key, newID string) {
	o.mu.Lock()
	if o.key == old {
		o.key = entity.Key{Kind: old.Kind, ID: newID}
	}
	o.mu.Unlock()

	if o.payload != nil {
		if o.payload.Key() == old {
			o.payload.SetID(newID)
		}
		o.payload.RewriteRef(old, newID)
	}
	if old.Kind == entity.KindFeature {
		if v, ok := o.patch[entity.FieldParentFeatureID].(string); ok && v == old.ID {
			o.patch[entity.FieldParentFeatureID] = newID
		}
	}
}

// tempRefs lists temporary ids the op's body points at, excluding its own key.
func (o *op) tempRefs() []entity.Key {
	var out []entity.Key
	if o.payload != nil {
		self := o.payload.Key()
		for _, ref := range o.payload.Refs() {
			if ref != self && entity.IsTempID(ref.ID) {
				out = append(out, ref)
			}
		}
	}
	if v, ok := o.patch[entity.FieldParentFeatureID].(string); ok && entity.IsTempID(v) {
		out = append(out, entity.FeatureKey(v))
	}
	return out
}

// Handle tracks one submitted mutation.
type Handle struct {
	op *op
}

// Key returns the target key. After a create commits it is the server key.
func (h *Handle) Key() entity.Key {
	h.op.mu.Lock()
	defer h.op.mu.Unlock()
	return h.op.key
}

// Op returns the mutation kind.
func (h *Handle) Op() OpKind { return h.op.kind }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.op.mu.Lock()
	defer h.op.mu.Unlock()
	return h.op.state
}

// Done is closed once the mutation commits or rolls back.
func (h *Handle) Done() <-chan struct{} { return h.op.done }

// Err returns the rollback error, or nil.
func (h *Handle) Err() error {
	h.op.mu.Lock()
	defer h.op.mu.Unlock()
	return h.op.err
}

// Wait blocks until the mutation resolves and returns the canonical record
// (nil for deletes) or a *RecoverableError.
func (h *Handle) Wait(ctx context.Context) (entity.Entity, error) {
	select {
	case <-h.op.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	h.op.mu.Lock()
	defer h.op.mu.Unlock()
	return entity.CloneEntity(h.op.result), h.op.err
}

// MarkStale suppresses the resolve callback. The cache is still updated when
// the remote answers.
func (h *Handle) MarkStale() { h.op.stale.Store(true) }
