package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/featureplus/internal/entity"
)

// recorder captures indexer callbacks.
type recorder struct {
	puts    []string
	removes []string
	rekeys  []string
	resets  int
}

func (r *recorder) OnPut(prev, e entity.Entity) {
	tag := "new:"
	if prev != nil {
		tag = "replace:"
	}
	r.puts = append(r.puts, tag+e.Key().String())
}
func (r *recorder) OnRemove(prev entity.Entity) { r.removes = append(r.removes, prev.Key().String()) }
func (r *recorder) OnRekey(old entity.Key, newID string) {
	r.rekeys = append(r.rekeys, old.String()+"->"+newID)
}
func (r *recorder) OnReset() { r.resets++ }

func feature(id, parent string) *entity.Feature {
	f := entity.NewFeature("p1", "feature "+id)
	f.ID = id
	f.SetParent(parent)
	return f
}

func TestStore_PutGetIsolation(t *testing.T) {
	s := New(nil)
	f := feature("1", "")
	require.NoError(t, s.Put(f))

	f.Title = "mutated after put"
	got, ok := s.Feature("1")
	require.True(t, ok)
	assert.Equal(t, "feature 1", got.Title)

	got.Title = "mutated after get"
	again, _ := s.Feature("1")
	assert.Equal(t, "feature 1", again.Title)
}

func TestStore_OneEntityPerKey(t *testing.T) {
	rec := &recorder{}
	s := New(nil, rec)

	require.NoError(t, s.Put(feature("1", "")))
	updated := feature("1", "")
	updated.Title = "renamed"
	require.NoError(t, s.Put(updated))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"new:feature/1", "replace:feature/1"}, rec.puts)
}

func TestStore_PutRejectsEmptyID(t *testing.T) {
	s := New(nil)
	assert.Error(t, s.Put(entity.NewFeature("p1", "no id")))
}

func TestStore_RemoveUnknownIsNoop(t *testing.T) {
	rec := &recorder{}
	s := New(nil, rec)

	assert.False(t, s.Remove(entity.FeatureKey("missing")))
	assert.Empty(t, rec.removes)

	require.NoError(t, s.Put(feature("1", "")))
	assert.True(t, s.Remove(entity.FeatureKey("1")))
	assert.False(t, s.Remove(entity.FeatureKey("1")))
	assert.Equal(t, []string{"feature/1"}, rec.removes)
}

func TestStore_ListInsertionOrder(t *testing.T) {
	s := New(nil)
	for _, id := range []string{"3", "1", "2"} {
		require.NoError(t, s.Put(feature(id, "")))
	}
	require.NoError(t, s.Put(&entity.Task{ID: "t1", FeatureID: "1", TaskName: "x", TaskType: entity.TaskTypeUI}))

	var ids []string
	for _, f := range s.Features(nil) {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"3", "1", "2"}, ids)

	// replacing keeps the original position
	require.NoError(t, s.Put(feature("3", "")))
	assert.Equal(t, "3", s.Features(nil)[0].ID)

	assert.Len(t, s.Tasks(nil), 1)
	assert.Equal(t, 3, s.Count(entity.KindFeature, nil))
}

func TestStore_Each(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Put(feature("1", "")))
	require.NoError(t, s.Put(feature("2", "1")))
	require.NoError(t, s.Put(&entity.Task{ID: "t1", FeatureID: "1", TaskName: "x", TaskType: entity.TaskTypeUI}))

	var ids []string
	s.Each(entity.KindFeature, func(e entity.Entity) {
		ids = append(ids, e.Key().ID)
	})
	assert.ElementsMatch(t, []string{"1", "2"}, ids)

	n := 0
	s.Each(entity.KindProject, func(entity.Entity) { n++ })
	assert.Zero(t, n)
}

func TestStore_RekeyRewritesReferences(t *testing.T) {
	rec := &recorder{}
	s := New(nil, rec)

	tmp := entity.NewTempID()
	require.NoError(t, s.Put(feature(tmp, "")))
	require.NoError(t, s.Put(feature("child", tmp)))
	require.NoError(t, s.Put(&entity.Task{ID: "t1", FeatureID: tmp, TaskName: "x", TaskType: entity.TaskTypeUI}))

	require.NoError(t, s.Rekey(entity.FeatureKey(tmp), "42"))

	assert.False(t, s.Has(entity.FeatureKey(tmp)))
	got, ok := s.Feature("42")
	require.True(t, ok)
	assert.Equal(t, "42", got.ID)

	child, _ := s.Feature("child")
	assert.Equal(t, "42", child.Parent())
	task := s.Tasks(nil)[0]
	assert.Equal(t, "42", task.Owner())

	assert.Equal(t, []string{"feature/" + tmp + "->42"}, rec.rekeys)
	assert.Equal(t, "42", s.Features(nil)[0].ID, "rekey keeps insertion position")
}

func TestStore_RekeyErrors(t *testing.T) {
	s := New(nil)
	assert.Error(t, s.Rekey(entity.FeatureKey("nope"), "1"))

	require.NoError(t, s.Put(feature("a", "")))
	require.NoError(t, s.Put(feature("b", "")))
	assert.Error(t, s.Rekey(entity.FeatureKey("a"), "b"))
	assert.True(t, s.Has(entity.FeatureKey("a")))
}

func TestStore_AttachReplays(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.Put(feature("1", "")))
	require.NoError(t, s.Put(feature("2", "1")))

	rec := &recorder{}
	s.Attach(rec)
	assert.Equal(t, []string{"new:feature/1", "new:feature/2"}, rec.puts)
}

func TestStore_Reset(t *testing.T) {
	rec := &recorder{}
	s := New(nil, rec)
	require.NoError(t, s.Put(feature("1", "")))

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, rec.resets)
}
