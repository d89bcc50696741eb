// Package sqlgw is a gateway.Gateway backed by the SQL schema in
// internal/db. It enforces the same rules as the HTTP backend and rejects
// full updates based on a version other than the stored row.
package sqlgw

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/featureplus/internal/db"
	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/gateway"
)

// Gateway serves gateway.Gateway from a database.
type Gateway struct {
	db     *db.DB
	now    func() time.Time
	logger *slog.Logger
}

var _ gateway.Gateway = (*Gateway)(nil)

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New wraps a migrated database.
func New(d *db.DB, opts ...Option) *Gateway {
	g := &Gateway{db: d, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Create implements gateway.Gateway.
func (g *Gateway) Create(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	out := e.Clone()
	now := g.now()
	gateway.Normalize(out)
	entity.Stamp(out, now.UTC(), true)
	if err := out.Validate(); err != nil {
		return nil, err
	}

	err := g.db.RunInTx(ctx, func(tx *db.TxOps) error {
		if err := checkRefs(tx, out); err != nil {
			return err
		}
		switch v := out.(type) {
		case *entity.Project:
			return tx.InsertProject(v)
		case *entity.Feature:
			return tx.InsertFeature(v)
		case *entity.Task:
			return tx.InsertTask(v)
		}
		return fmt.Errorf("create: unsupported entity %T", out)
	})
	if err != nil {
		return nil, classify(err)
	}
	g.logger.Debug("sqlgw created", "key", out.Key().String())
	return out, nil
}

// Update implements gateway.Gateway. The record's updated_at names the
// version the update was based on: when it differs from the stored row the
// update fails with CONFLICT. A zero updated_at skips the check.
func (g *Gateway) Update(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	out := e.Clone()
	key := out.Key()

	err := g.db.RunInTx(ctx, func(tx *db.TxOps) error {
		cur, err := get(tx, key)
		if err != nil {
			return err
		}
		if err := gateway.CheckVersion(out, cur); err != nil {
			return err
		}
		gateway.Normalize(out)
		entity.KeepCreated(out, cur)
		entity.Stamp(out, g.now().UTC(), false)
		if err := out.Validate(); err != nil {
			return err
		}
		if err := checkRefs(tx, out); err != nil {
			return err
		}
		return put(tx, out)
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Patch implements gateway.Gateway.
func (g *Gateway) Patch(ctx context.Context, key entity.Key, p entity.Patch) (entity.Entity, error) {
	var out entity.Entity
	err := g.db.RunInTx(ctx, func(tx *db.TxOps) error {
		cur, err := get(tx, key)
		if err != nil {
			return err
		}
		next, err := p.Apply(cur, g.now())
		if err != nil {
			return err
		}
		gateway.Normalize(next)
		if err := checkRefs(tx, next); err != nil {
			return err
		}
		out = next
		return put(tx, next)
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Delete implements gateway.Gateway. Features with sub-features and
// projects with features cannot be deleted.
func (g *Gateway) Delete(ctx context.Context, key entity.Key) error {
	err := g.db.RunInTx(ctx, func(tx *db.TxOps) error {
		switch key.Kind {
		case entity.KindProject:
			n, err := tx.CountFeatures("project_id", key.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return errors.ErrValidation("project", fmt.Sprintf("project %s still has %d feature(s)", key.ID, n))
			}
			return tx.DeleteProject(key.ID)
		case entity.KindFeature:
			n, err := tx.CountFeatures("parent_feature_id", key.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return errors.ErrValidation("feature", fmt.Sprintf("feature %s still has %d sub-feature(s)", key.ID, n))
			}
			return tx.DeleteFeature(key.ID)
		default:
			return tx.DeleteTask(key.ID)
		}
	})
	return classify(err)
}

// Get implements gateway.Gateway.
func (g *Gateway) Get(ctx context.Context, key entity.Key) (entity.Entity, error) {
	var out entity.Entity
	err := g.db.RunInTx(ctx, func(tx *db.TxOps) error {
		var err error
		out, err = get(tx, key)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ListProjects implements gateway.Gateway.
func (g *Gateway) ListProjects(ctx context.Context) ([]*entity.Project, error) {
	var out []*entity.Project
	err := g.db.RunInTx(ctx, func(tx *db.TxOps) error {
		var err error
		out, err = tx.ListProjects()
		return err
	})
	return out, classify(err)
}

// ListFeatures implements gateway.Gateway.
func (g *Gateway) ListFeatures(ctx context.Context, projectID string) ([]*entity.Feature, error) {
	var out []*entity.Feature
	err := g.db.RunInTx(ctx, func(tx *db.TxOps) error {
		var err error
		out, err = tx.ListFeatures(projectID)
		return err
	})
	return out, classify(err)
}

// ListTasks implements gateway.Gateway.
func (g *Gateway) ListTasks(ctx context.Context, projectID string) ([]*entity.Task, error) {
	var out []*entity.Task
	err := g.db.RunInTx(ctx, func(tx *db.TxOps) error {
		var err error
		out, err = tx.ListTasks(projectID)
		return err
	})
	return out, classify(err)
}

// classify keeps coded errors and reports anything else (driver, context)
// through gateway.Classify.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.AsError(err) != nil {
		return err
	}
	return gateway.Classify(err)
}

func get(tx *db.TxOps, key entity.Key) (entity.Entity, error) {
	switch key.Kind {
	case entity.KindProject:
		return tx.GetProject(key.ID)
	case entity.KindFeature:
		return tx.GetFeature(key.ID)
	case entity.KindTask:
		return tx.GetTask(key.ID)
	}
	return nil, errors.ErrNotFound(key.String())
}

func put(tx *db.TxOps, e entity.Entity) error {
	switch v := e.(type) {
	case *entity.Project:
		return tx.UpdateProject(v)
	case *entity.Feature:
		return tx.UpdateFeature(v)
	case *entity.Task:
		return tx.UpdateTask(v)
	}
	return fmt.Errorf("update: unsupported entity %T", e)
}

// checkRefs enforces referential rules: the project exists and accepts the
// feature's category, the parent exists in the same project without
// forming a cycle, and a task's owner exists.
func checkRefs(tx *db.TxOps, e entity.Entity) error {
	switch v := e.(type) {
	case *entity.Feature:
		project, err := tx.GetProject(v.ProjectID)
		if err != nil {
			return errors.ErrValidation("project_id", fmt.Sprintf("project %s not found", v.ProjectID))
		}
		if err := project.CheckFeature(v); err != nil {
			return err
		}
		parent := v.Parent()
		if parent == "" {
			return nil
		}
		parents, err := tx.FeatureParents(v.ProjectID)
		if err != nil {
			return err
		}
		if _, ok := parents[parent]; !ok {
			return errors.ErrValidation("parent_feature_id",
				fmt.Sprintf("parent feature %s not found in project %s", parent, v.ProjectID))
		}
		path := []string{v.ID, parent}
		for cur := parents[parent]; cur != ""; cur = parents[cur] {
			path = append(path, cur)
			if cur == v.ID {
				return errors.ErrCycle(path)
			}
			if len(path) > len(parents)+2 {
				return errors.ErrCycle(path)
			}
		}
	case *entity.Task:
		if _, err := tx.GetFeature(v.Owner()); err != nil {
			return errors.ErrValidation("feature_id", fmt.Sprintf("feature %s not found", v.Owner()))
		}
	}
	return nil
}
