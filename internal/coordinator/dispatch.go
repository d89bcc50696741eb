package coordinator

import (
	"context"
	"time"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/events"
	"github.com/randalmurphal/featureplus/internal/gateway"
)

// drain sends the mutations of q to the remote one at a time until the
// queue is empty.
func (c *Coordinator) drain(q *queue) {
	for {
		c.mu.Lock()
		o := q.ops[0]
		c.mu.Unlock()

		res, err := c.send(o)
		if !c.settle(q, o, res, err) {
			return
		}
	}
}

// send waits for the creates o depends on, then performs the remote call.
func (c *Coordinator) send(o *op) (entity.Entity, error) {
	if err := c.awaitDeps(o); err != nil {
		return nil, err
	}

	c.mu.Lock()
	key := o.key
	var call func(context.Context) (entity.Entity, error)
	switch o.kind {
	case OpCreate:
		body := o.payload.Clone()
		call = func(ctx context.Context) (entity.Entity, error) { return c.gw.Create(ctx, body) }
	case OpUpdate:
		// carry the version the change applies to, so the remote refuses it
		// when someone else wrote the record since
		body := o.payload.Clone()
		entity.SetUpdatedAt(body, entity.UpdatedAt(c.base[key]))
		call = func(ctx context.Context) (entity.Entity, error) { return c.gw.Update(ctx, body) }
	case OpPatch:
		p := o.patch
		if o.build != nil {
			committed := c.base[key]
			if committed == nil {
				c.mu.Unlock()
				return nil, errors.ErrNotFound(key.String())
			}
			built, err := o.build(committed)
			if err != nil {
				c.mu.Unlock()
				return nil, err
			}
			p = built
		}
		call = func(ctx context.Context) (entity.Entity, error) { return c.gw.Patch(ctx, key, p) }
	case OpDelete:
		call = func(ctx context.Context) (entity.Entity, error) { return nil, c.gw.Delete(ctx, key) }
	}
	c.mu.Unlock()

	c.logger.Debug("dispatching mutation", "key", key.String(), "op", o.kind)
	start := time.Now()
	res, err := call(c.ctx)
	c.metrics.ObserveCall(string(o.kind), time.Since(start))
	if err != nil {
		err = gateway.Classify(err)
		if o.kind == OpDelete && errors.HasCode(err, errors.CodeNotFound) {
			// already gone remotely
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

// awaitDeps blocks until every temporary id o references has been resolved.
// It fails with NOT_FOUND if one of those creates rolled back.
func (c *Coordinator) awaitDeps(o *op) error {
	for {
		c.mu.Lock()
		var wait *op
		var missing entity.Key
		for _, ref := range o.tempRefs() {
			if id, ok := c.aliases[ref.ID]; ok {
				o.rewrite(ref, id)
				continue
			}
			if dep, ok := c.creates[ref.ID]; ok {
				wait = dep
			} else {
				missing = ref
			}
			break
		}
		c.mu.Unlock()

		if !missing.IsZero() {
			return errors.ErrNotFound(missing.String())
		}
		if wait == nil {
			return nil
		}
		select {
		case <-wait.done:
		case <-c.ctx.Done():
			return gateway.Classify(c.ctx.Err())
		}
	}
}

type resolved struct {
	cb func()
}

// settle pops o off q and folds its outcome into the cache. It reports
// whether q has more mutations to send.
func (c *Coordinator) settle(q *queue, o *op, res entity.Entity, err error) bool {
	c.mu.Lock()
	q.ops = q.ops[1:]
	var done []resolved
	if err == nil {
		done = c.commitLocked(q, o, res)
	} else {
		done = c.rollbackLocked(q, o, err)
	}
	more := len(q.ops) > 0
	if !more {
		delete(c.queues, q.key)
		delete(c.base, q.key)
	}
	c.mu.Unlock()

	for _, r := range done {
		if r.cb != nil {
			r.cb()
		}
	}

	c.mu.Lock()
	for range done {
		c.decPendingLocked()
	}
	c.mu.Unlock()
	return more
}

func (c *Coordinator) commitLocked(q *queue, o *op, res entity.Entity) []resolved {
	key := o.key
	switch o.kind {
	case OpCreate:
		delete(c.creates, key.ID)
		if serverKey := res.Key(); serverKey != key {
			c.rekeyLocked(q, o, serverKey.ID)
		}
		c.base[q.key] = res
	case OpUpdate, OpPatch:
		c.base[q.key] = res
	case OpDelete:
		c.base[q.key] = nil
		if key.Kind == entity.KindFeature {
			c.purgeTasksLocked(key.ID)
		}
	}
	c.showLocked(q.key, c.foldLocked(c.base[q.key], q.ops))

	c.metrics.Committed(string(q.key.Kind), string(o.kind))
	c.pub.Publish(events.NewEvent(events.EventOpCommitted, q.key.String(),
		events.OpData{Op: string(o.kind), Stale: o.stale.Load()}))
	c.logger.Info("mutation committed", "key", q.key.String(), "op", o.kind)
	return []resolved{{cb: o.finish(StateCommitted, res, nil)}}
}

// rekeyLocked moves everything held under a temporary key to the server id.
func (c *Coordinator) rekeyLocked(q *queue, o *op, serverID string) {
	old := q.key
	if err := c.store.Rekey(old, serverID); err != nil {
		// the server record is already cached; drop the temporary copy
		c.logger.Debug("rekey fell back to replace", "key", old.String(), "error", err)
		c.store.Remove(old)
	}
	c.aliases[old.ID] = serverID

	o.rewrite(old, serverID)
	for _, other := range c.queues {
		for _, queued := range other.ops {
			queued.rewrite(old, serverID)
		}
	}
	delete(c.queues, old)
	delete(c.base, old)
	q.key = entity.Key{Kind: old.Kind, ID: serverID}
	c.queues[q.key] = q

	c.metrics.Rekeyed()
	c.logger.Info("entity rekeyed", "from", old.String(), "to", q.key.String())
}

func (c *Coordinator) rollbackLocked(q *queue, o *op, cause error) []resolved {
	key := o.key
	done := []resolved{c.failLocked(o, cause)}

	switch {
	case o.kind == OpCreate:
		delete(c.creates, key.ID)
		// the record never existed remotely; nothing queued behind it can apply
		for _, rest := range q.ops {
			if rest.kind == OpCreate {
				delete(c.creates, rest.key.ID)
			}
			done = append(done, c.failLocked(rest, errors.ErrNotFound(key.String()).WithCause(cause)))
		}
		q.ops = nil
		c.base[key] = nil
	case errors.HasCode(cause, errors.CodeNotFound):
		c.base[key] = nil
	}
	c.showLocked(key, c.foldLocked(c.base[key], q.ops))
	return done
}

func (c *Coordinator) failLocked(o *op, cause error) resolved {
	code := errors.CodeInternal
	if e := errors.AsError(cause); e != nil {
		code = e.Code
	}
	rerr := &RecoverableError{Key: o.key, Op: o.kind, Cause: cause}

	c.metrics.RolledBack(string(o.key.Kind), string(o.kind), string(code))
	c.pub.Publish(events.NewEvent(events.EventOpRolledBack, o.key.String(),
		events.OpData{Op: string(o.kind), Error: cause.Error(), Stale: o.stale.Load()}))
	c.logger.Warn("mutation rolled back", "key", o.key.String(), "op", o.kind, "code", code, "error", cause)
	return resolved{cb: o.finish(StateRolledBack, nil, rerr)}
}

// purgeTasksLocked drops cached tasks owned by a deleted feature. The remote
// removes them with the feature.
func (c *Coordinator) purgeTasksLocked(featureID string) {
	for _, t := range c.store.Tasks(func(t *entity.Task) bool { return t.Owner() == featureID }) {
		if _, queued := c.queues[t.Key()]; queued {
			continue
		}
		c.store.Remove(t.Key())
	}
}
