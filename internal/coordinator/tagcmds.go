package coordinator

import (
	"strings"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/tags"
)

// Tag commands are not applied optimistically. Each one is turned into a
// tags patch against the committed record when it reaches the head of the
// feature's queue, so concurrent tag edits never overwrite each other with
// stale lists. The cache shows the change once the remote confirms it.

// AddTags parses raw (comma, semicolon or whitespace separated) and adds the
// tags the feature does not already carry.
func (c *Coordinator) AddTags(featureID, raw string, opts ...SubmitOption) (*Handle, error) {
	added := tags.Parse(raw)
	if len(added) == 0 {
		return nil, c.reject(entity.FeatureKey(featureID), OpPatch, errors.ErrValidation("tags", "no tags in input"))
	}
	return c.submitTags(featureID, func(f *entity.Feature) (entity.Patch, error) {
		return entity.Patch{entity.FieldTags: tags.Merge(f.Tags, added)}, nil
	}, opts)
}

// RemoveTag removes one tag from the feature. Removing a tag the feature
// does not carry commits without change.
func (c *Coordinator) RemoveTag(featureID, tag string, opts ...SubmitOption) (*Handle, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, c.reject(entity.FeatureKey(featureID), OpPatch, errors.ErrValidation("tag", "is required"))
	}
	return c.submitTags(featureID, func(f *entity.Feature) (entity.Patch, error) {
		return entity.Patch{entity.FieldTags: tags.Without(f.Tags, tag)}, nil
	}, opts)
}

// SetTags replaces the feature's tags with the parsed list. An empty input
// clears them.
func (c *Coordinator) SetTags(featureID, raw string, opts ...SubmitOption) (*Handle, error) {
	list := tags.Parse(raw)
	return c.submitTags(featureID, func(*entity.Feature) (entity.Patch, error) {
		return entity.Patch{entity.FieldTags: list}, nil
	}, opts)
}

func (c *Coordinator) submitTags(featureID string, build func(*entity.Feature) (entity.Patch, error), opts []SubmitOption) (*Handle, error) {
	return c.submitDeferred(entity.FeatureKey(featureID), func(e entity.Entity) (entity.Patch, error) {
		f, ok := e.(*entity.Feature)
		if !ok {
			return nil, errors.ErrNotFound(entity.FeatureKey(featureID).String())
		}
		return build(f)
	}, nil, opts)
}

// submitDeferred queues a patch that is built from the committed record when
// it reaches the head of key's queue. check, when set, vets the current view
// of the record before anything is queued.
func (c *Coordinator) submitDeferred(key entity.Key, build func(entity.Entity) (entity.Patch, error), check func(entity.Entity) error, opts []SubmitOption) (*Handle, error) {
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
	if check != nil {
		if err := check(cur); err != nil {
			return nil, c.reject(key, OpPatch, err)
		}
	}

	o := newOp(OpPatch, key)
	o.build = build
	for _, opt := range opts {
		opt(o)
	}
	c.enqueueLocked(o)
	return &Handle{op: o}, nil
}
