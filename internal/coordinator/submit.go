package coordinator

import (
	"fmt"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/gateway"
	"github.com/randalmurphal/featureplus/internal/tags"
)

// Submit validates o, applies it to the cache and queues it for the remote.
// Local rejections (VALIDATION, CYCLE, NOT_FOUND, SESSION_CLOSED) are
// returned directly and change nothing.
func (c *Coordinator) Submit(o Op, opts ...SubmitOption) (*Handle, error) {
	switch o.Kind {
	case OpCreate:
		return c.Create(o.Entity, opts...)
	case OpUpdate:
		return c.Update(o.Entity, opts...)
	case OpPatch:
		return c.Patch(o.Key, o.Patch, opts...)
	case OpDelete:
		return c.Delete(o.Key, opts...)
	default:
		return nil, errors.ErrValidation("op", fmt.Sprintf("unknown operation %q", o.Kind))
	}
}

// Create inserts e under a fresh temporary id. The handle's key switches to
// the server id when the remote confirms.
func (c *Coordinator) Create(e entity.Entity, opts ...SubmitOption) (*Handle, error) {
	if e == nil {
		return nil, errors.ErrValidation("entity", "nothing to create")
	}
	e = e.Clone()
	e.SetID(entity.NewTempID())
	gateway.Normalize(e)
	entity.Stamp(e, c.now(), true)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.ErrSessionClosed()
	}
	c.resolveRefsLocked(e)
	if err := e.Validate(); err != nil {
		return nil, c.reject(e.Key(), OpCreate, err)
	}
	if err := c.checkLocked(e, nil); err != nil {
		return nil, c.reject(e.Key(), OpCreate, err)
	}

	o := newOp(OpCreate, e.Key())
	o.payload = e
	for _, opt := range opts {
		opt(o)
	}
	c.creates[e.Key().ID] = o
	c.enqueueLocked(o)
	return &Handle{op: o}, nil
}

// Update replaces the record under e's key with e.
func (c *Coordinator) Update(e entity.Entity, opts ...SubmitOption) (*Handle, error) {
	if e == nil {
		return nil, errors.ErrValidation("entity", "nothing to update")
	}
	e = e.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.ErrSessionClosed()
	}
	key := c.resolveKeyLocked(e.Key())
	e.SetID(key.ID)
	cur, ok := c.store.Get(key)
	if !ok {
		return nil, c.reject(key, OpUpdate, errors.ErrNotFound(key.String()))
	}
	c.resolveRefsLocked(e)
	gateway.Normalize(e)
	entity.KeepCreated(e, cur)
	entity.Stamp(e, c.now(), false)
	if err := e.Validate(); err != nil {
		return nil, c.reject(key, OpUpdate, err)
	}
	if err := c.checkLocked(e, cur); err != nil {
		return nil, c.reject(key, OpUpdate, err)
	}

	o := newOp(OpUpdate, key)
	o.payload = e
	for _, opt := range opts {
		opt(o)
	}
	c.enqueueLocked(o)
	return &Handle{op: o}, nil
}

// Patch changes individual fields of the record under key.
func (c *Coordinator) Patch(key entity.Key, p entity.Patch, opts ...SubmitOption) (*Handle, error) {
	if len(p) == 0 {
		return nil, errors.ErrValidation("patch", "no fields to change")
	}
	patch := make(entity.Patch, len(p))
	for k, v := range p {
		patch[k] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.ErrSessionClosed()
	}
	key = c.resolveKeyLocked(key)
	cur, ok := c.store.Get(key)
	if !ok {
		return nil, c.reject(key, OpPatch, errors.ErrNotFound(key.String()))
	}
	if v, ok := patch[entity.FieldParentFeatureID].(string); ok {
		patch[entity.FieldParentFeatureID] = c.resolveKeyLocked(entity.FeatureKey(v)).ID
	}
	applied, err := patch.Apply(cur, c.now())
	if err != nil {
		return nil, c.reject(key, OpPatch, err)
	}
	if f, ok := applied.(*entity.Feature); ok && patch.Touches(entity.FieldTags) {
		f.Tags = tags.Merge(nil, f.Tags)
		patch[entity.FieldTags] = f.Tags
	}
	if err := c.checkLocked(applied, cur); err != nil {
		return nil, c.reject(key, OpPatch, err)
	}

	o := newOp(OpPatch, key)
	o.patch = patch
	for _, opt := range opts {
		opt(o)
	}
	c.enqueueLocked(o)
	return &Handle{op: o}, nil
}

// Move re-parents a feature; an empty parentID makes it a feature group.
func (c *Coordinator) Move(featureID, parentID string, opts ...SubmitOption) (*Handle, error) {
	var parent any
	if parentID != "" {
		parent = parentID
	}
	return c.Patch(entity.FeatureKey(featureID), entity.Patch{entity.FieldParentFeatureID: parent}, opts...)
}

// Delete removes the record under key. Deleting something that is not in
// the cache, including something already deleted, is a no-op that commits
// immediately.
func (c *Coordinator) Delete(key entity.Key, opts ...SubmitOption) (*Handle, error) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return nil, errors.ErrSessionClosed()
	}
	key = c.resolveKeyLocked(key)
	o := newOp(OpDelete, key)
	for _, opt := range opts {
		opt(o)
	}

	if !c.store.Has(key) {
		c.mu.Unlock()
		c.logger.Debug("delete of absent entity ignored", "key", key.String())
		if cb := o.finish(StateCommitted, nil, nil); cb != nil {
			cb()
		}
		return &Handle{op: o}, nil
	}

	switch key.Kind {
	case entity.KindFeature:
		if n := c.hierarchy.ChildCount(key.ID); n > 0 {
			c.mu.Unlock()
			return nil, c.reject(key, OpDelete, errors.ErrValidation("feature",
				fmt.Sprintf("feature %s still has %d sub-feature(s); move or delete them first", key.ID, n)))
		}
	case entity.KindProject:
		if n := len(c.store.Features(func(f *entity.Feature) bool { return f.ProjectID == key.ID })); n > 0 {
			c.mu.Unlock()
			return nil, c.reject(key, OpDelete, errors.ErrValidation("project",
				fmt.Sprintf("project %s still has %d feature(s)", key.ID, n)))
		}
	}

	c.enqueueLocked(o)
	c.mu.Unlock()
	return &Handle{op: o}, nil
}

// enqueueLocked appends o to its key's queue, refreshes the view and starts
// the dispatcher for a key that was idle.
func (c *Coordinator) enqueueLocked(o *op) {
	q, ok := c.queues[o.key]
	if !ok {
		q = &queue{key: o.key}
		c.queues[o.key] = q
		cur, _ := c.store.Get(o.key)
		c.base[o.key] = cur
	}
	q.ops = append(q.ops, o)
	o.setState(StatePending)
	c.incPendingLocked()
	c.metrics.Submitted(string(o.key.Kind), string(o.kind))
	c.logger.Debug("mutation submitted", "key", o.key.String(), "op", o.kind, "queued", len(q.ops))

	c.showLocked(q.key, c.foldLocked(c.base[q.key], q.ops))
	if !ok {
		go c.drain(q)
	}
}

// checkLocked applies cross-entity rules against the current view. prev is
// the record being replaced, nil for creates.
func (c *Coordinator) checkLocked(e, prev entity.Entity) error {
	switch v := e.(type) {
	case *entity.Feature:
		project, ok := c.store.Project(v.ProjectID)
		if !ok {
			return errors.ErrValidation("project_id", fmt.Sprintf("project %s is not loaded", v.ProjectID))
		}
		if p, ok := prev.(*entity.Feature); ok && p.ProjectID != v.ProjectID {
			return errors.ErrValidation("project_id", "features cannot move between projects")
		}
		if err := project.CheckFeature(v); err != nil {
			return err
		}
		parent := v.Parent()
		if p, ok := prev.(*entity.Feature); ok && p.Parent() == parent {
			return nil
		}
		return c.hierarchy.CheckParent(v.ID, v.ProjectID, parent)
	case *entity.Task:
		owner, ok := c.store.Feature(v.Owner())
		if !ok {
			return errors.ErrValidation("feature_id", fmt.Sprintf("feature %s not found", v.Owner()))
		}
		// feature groups own tasks through feature_id, sub-features through sub_feature_id
		v.SetOwner(owner.ID, !owner.IsRoot())
	}
	return nil
}

// resolveRefsLocked points references at server ids for temporary ids that
// have already been reconciled.
func (c *Coordinator) resolveRefsLocked(e entity.Entity) {
	for _, ref := range e.Refs() {
		if id, ok := c.aliases[ref.ID]; ok {
			e.RewriteRef(ref, id)
		}
	}
}

func (c *Coordinator) reject(key entity.Key, kind OpKind, err error) error {
	code := errors.CodeInternal
	if e := errors.AsError(err); e != nil {
		code = e.Code
	}
	c.metrics.Rejected(string(key.Kind), string(kind), string(code))
	c.logger.Debug("mutation rejected", "key", key.String(), "op", kind, "error", err)
	return err
}
