package memgw

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
)

func seedProject(t *testing.T, r *Remote) *entity.Project {
	t.Helper()
	return r.Seed(&entity.Project{Name: "Demo"}).(*entity.Project)
}

func TestCreateAssignsIDsAndDefaults(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := New(WithClock(func() time.Time { return fixed }))
	p := seedProject(t, r)
	assert.Equal(t, "1", p.ID)
	assert.NotEmpty(t, p.FeatureCategories())

	ctx := context.Background()
	in := entity.NewFeature(p.ID, "Group1")
	in.ID = "tmp-abc"
	in.Tags = []string{"api", "api", "ui"}

	out, err := r.Create(ctx, in)
	require.NoError(t, err)
	f := out.(*entity.Feature)
	assert.Equal(t, "2", f.ID)
	assert.Equal(t, entity.StatusTodo, f.Status)
	assert.Equal(t, []string{"api", "ui"}, f.Tags)
	assert.Equal(t, fixed, f.CreatedAt)
	assert.Equal(t, 2, r.Len())
}

func TestCreateValidation(t *testing.T) {
	r := New()
	p := seedProject(t, r)
	ctx := context.Background()

	_, err := r.Create(ctx, entity.NewFeature(p.ID, ""))
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	orphan := entity.NewFeature(p.ID, "x")
	orphan.SetParent("999")
	_, err = r.Create(ctx, orphan)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = r.Create(ctx, entity.NewFeature("404", "x"))
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	badCat := entity.NewFeature(p.ID, "x")
	badCat.Category = "Nope"
	_, err = r.Create(ctx, badCat)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = r.Create(ctx, &entity.Task{FeatureID: "404", TaskName: "t", TaskType: entity.TaskTypeUI})
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestUpdatePatchDelete(t *testing.T) {
	r := New()
	p := seedProject(t, r)
	ctx := context.Background()

	g, err := r.Create(ctx, entity.NewFeature(p.ID, "Group"))
	require.NoError(t, err)
	sub := entity.NewFeature(p.ID, "Sub")
	sub.SetParent(g.Key().ID)
	s, err := r.Create(ctx, sub)
	require.NoError(t, err)

	// moving the group under its own child is a cycle
	gf := g.(*entity.Feature)
	gf.SetParent(s.Key().ID)
	_, err = r.Update(ctx, gf)
	assert.True(t, errors.HasCode(err, errors.CodeCycle))

	out, err := r.Patch(ctx, s.Key(), entity.Patch{entity.FieldTitle: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", out.(*entity.Feature).Title)

	_, err = r.Patch(ctx, entity.FeatureKey("999"), entity.Patch{entity.FieldTitle: "x"})
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	task := &entity.Task{TaskName: "t", TaskType: entity.TaskTypeDB}
	task.SetOwner(s.Key().ID, true)
	_, err = r.Create(ctx, task)
	require.NoError(t, err)

	// parent with children cannot go
	err = r.Delete(ctx, g.Key())
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	require.NoError(t, r.Delete(ctx, s.Key()))
	tasks, err := r.ListTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks, "tasks cascade with their feature")

	err = r.Delete(ctx, s.Key())
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestUpdate_VersionCheck(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := New(WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))
	p := seedProject(t, r)
	ctx := context.Background()

	created, err := r.Create(ctx, entity.NewFeature(p.ID, "Orig"))
	require.NoError(t, err)
	base := created.(*entity.Feature)

	first := base.Clone().(*entity.Feature)
	first.Title = "First"
	out, err := r.Update(ctx, first)
	require.NoError(t, err)

	stale := base.Clone().(*entity.Feature)
	stale.Title = "Stale"
	_, err = r.Update(ctx, stale)
	assert.True(t, errors.HasCode(err, errors.CodeConflict), "got %v", err)

	next := out.Clone().(*entity.Feature)
	next.Title = "Second"
	_, err = r.Update(ctx, next)
	assert.NoError(t, err, "an update based on the stored version goes through")
}

func TestPatchComments(t *testing.T) {
	r := New()
	p := seedProject(t, r)
	ctx := context.Background()
	f, err := r.Create(ctx, entity.NewFeature(p.ID, "Owner"))
	require.NoError(t, err)
	task, err := r.Create(ctx, &entity.Task{TaskName: "t", TaskType: entity.TaskTypeUI, FeatureID: f.Key().ID})
	require.NoError(t, err)

	out, err := r.Patch(ctx, task.Key(), entity.Patch{entity.FieldComments: []entity.Comment{{Content: "hi"}}})
	require.NoError(t, err)
	require.Len(t, out.(*entity.Task).Comments, 1)
	assert.Equal(t, "1", out.(*entity.Task).Comments[0].ID)

	got, err := r.Get(ctx, task.Key())
	require.NoError(t, err)
	assert.Equal(t, "hi", got.(*entity.Task).Comments[0].Content)
}

func TestLists(t *testing.T) {
	r := New()
	p1 := seedProject(t, r)
	p2 := seedProject(t, r)
	ctx := context.Background()

	a, err := r.Create(ctx, entity.NewFeature(p1.ID, "a"))
	require.NoError(t, err)
	_, err = r.Create(ctx, entity.NewFeature(p2.ID, "b"))
	require.NoError(t, err)
	task := &entity.Task{TaskName: "t", TaskType: entity.TaskTypeUI}
	task.SetOwner(a.Key().ID, false)
	_, err = r.Create(ctx, task)
	require.NoError(t, err)

	projects, err := r.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 2)

	features, err := r.ListFeatures(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "a", features[0].Title)

	tasks, err := r.ListTasks(ctx, p2.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	got, err := r.Get(ctx, a.Key())
	require.NoError(t, err)
	assert.Equal(t, "a", got.(*entity.Feature).Title)
}

func TestFailNext(t *testing.T) {
	r := New()
	p := seedProject(t, r)
	r.FailNext(MethodCreate, errors.ErrNetwork(nil))

	_, err := r.Create(context.Background(), entity.NewFeature(p.ID, "x"))
	assert.True(t, errors.HasCode(err, errors.CodeNetwork))
	assert.Equal(t, 1, r.Len(), "failed create is not applied")

	_, err = r.Create(context.Background(), entity.NewFeature(p.ID, "x"))
	assert.NoError(t, err)
}

func TestHold(t *testing.T) {
	r := New(WithHold())
	p := seedProject(t, r)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		e   entity.Entity
		err error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)
	go func() {
		e, err := r.Create(ctx, entity.NewFeature(p.ID, "first"))
		first <- result{e, err}
	}()
	c1, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, MethodCreate, c1.Method)

	go func() {
		e, err := r.Create(ctx, entity.NewFeature(p.ID, "second"))
		second <- result{e, err}
	}()
	c2, err := r.Next(ctx)
	require.NoError(t, err)

	// answer out of order
	c2.Fail(errors.ErrConflict("feature", "stale"))
	res2 := <-second
	assert.True(t, errors.HasCode(res2.err, errors.CodeConflict))

	c1.Release()
	res1 := <-first
	require.NoError(t, res1.err)
	assert.Equal(t, "first", res1.e.(*entity.Feature).Title)
}

func TestHold_ContextCancelled(t *testing.T) {
	r := New(WithHold())
	p := seedProject(t, r)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := r.Create(ctx, entity.NewFeature(p.ID, "x"))
		done <- err
	}()
	_, err := r.Next(context.Background())
	require.NoError(t, err)
	cancel()
	assert.True(t, errors.HasCode(<-done, errors.CodeNetwork))
}

func TestMaxConcurrent(t *testing.T) {
	r := New()
	p := seedProject(t, r)
	_, err := r.Patch(context.Background(), p.Key(), entity.Patch{entity.FieldName: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, 1, r.MaxConcurrent(p.Key()))
	assert.Len(t, r.Calls(), 1)
}
