package memgw

import (
	"fmt"
	"sort"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/gateway"
)

func (r *Remote) createLocked(in entity.Entity) (entity.Entity, error) {
	e := in.Clone()
	e.SetID(r.newIDLocked())
	gateway.Normalize(e)
	entity.Stamp(e, r.now(), true)
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkRefsLocked(e); err != nil {
		return nil, err
	}
	r.storeLocked(e)
	return e.Clone(), nil
}

func (r *Remote) updateLocked(in entity.Entity) (entity.Entity, error) {
	key := in.Key()
	cur, ok := r.records[key]
	if !ok {
		return nil, errors.ErrNotFound(key.String())
	}
	if err := gateway.CheckVersion(in, cur.e); err != nil {
		return nil, err
	}
	e := in.Clone()
	gateway.Normalize(e)
	entity.KeepCreated(e, cur.e)
	entity.Stamp(e, r.now(), false)
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkRefsLocked(e); err != nil {
		return nil, err
	}
	r.storeLocked(e)
	return e.Clone(), nil
}

func (r *Remote) patchLocked(key entity.Key, p entity.Patch) (entity.Entity, error) {
	cur, ok := r.records[key]
	if !ok {
		return nil, errors.ErrNotFound(key.String())
	}
	e, err := p.Apply(cur.e, r.now())
	if err != nil {
		return nil, err
	}
	gateway.Normalize(e)
	if err := r.checkRefsLocked(e); err != nil {
		return nil, err
	}
	r.storeLocked(e)
	return e.Clone(), nil
}

func (r *Remote) deleteLocked(key entity.Key) error {
	if _, ok := r.records[key]; !ok {
		return errors.ErrNotFound(key.String())
	}
	switch key.Kind {
	case entity.KindFeature:
		for _, e := range r.sortedLocked(entity.KindFeature) {
			if e.(*entity.Feature).Parent() == key.ID {
				return errors.ErrValidation("feature", fmt.Sprintf("feature %s still has sub-features", key.ID))
			}
		}
		for _, e := range r.sortedLocked(entity.KindTask) {
			if e.(*entity.Task).Owner() == key.ID {
				delete(r.records, e.Key())
			}
		}
	case entity.KindProject:
		for _, e := range r.sortedLocked(entity.KindFeature) {
			if e.(*entity.Feature).ProjectID == key.ID {
				return errors.ErrValidation("project", fmt.Sprintf("project %s still has features", key.ID))
			}
		}
	}
	delete(r.records, key)
	return nil
}

// checkRefsLocked enforces referential integrity the way the backend does.
func (r *Remote) checkRefsLocked(e entity.Entity) error {
	switch v := e.(type) {
	case *entity.Feature:
		prj, ok := r.records[entity.ProjectKey(v.ProjectID)]
		if !ok {
			return errors.ErrValidation("project_id", fmt.Sprintf("project %s not found", v.ProjectID))
		}
		if err := prj.e.(*entity.Project).CheckFeature(v); err != nil {
			return err
		}
		parent := v.Parent()
		if parent == "" {
			return nil
		}
		prec, ok := r.records[entity.FeatureKey(parent)]
		if !ok {
			return errors.ErrValidation("parent_feature_id", fmt.Sprintf("parent feature %s not found", parent))
		}
		if prec.e.(*entity.Feature).ProjectID != v.ProjectID {
			return errors.ErrValidation("parent_feature_id", "parent feature belongs to another project")
		}
		path := []string{v.ID}
		for cur := parent; cur != ""; {
			path = append(path, cur)
			if cur == v.ID {
				return errors.ErrCycle(path)
			}
			rec, ok := r.records[entity.FeatureKey(cur)]
			if !ok {
				break
			}
			cur = rec.e.(*entity.Feature).Parent()
		}
	case *entity.Task:
		if _, ok := r.records[entity.FeatureKey(v.Owner())]; !ok {
			return errors.ErrValidation("feature_id", fmt.Sprintf("feature %s not found", v.Owner()))
		}
	}
	return nil
}

func (r *Remote) sortedLocked(kind entity.Kind) []entity.Entity {
	type item struct {
		e   entity.Entity
		seq int64
	}
	var items []item
	for key, rec := range r.records {
		if key.Kind == kind {
			items = append(items, item{rec.e, rec.seq})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })
	out := make([]entity.Entity, len(items))
	for i, it := range items {
		out[i] = it.e
	}
	return out
}
