package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/store"
)

func feature(id, project, parent string) *entity.Feature {
	f := entity.NewFeature(project, "feature "+id)
	f.ID = id
	f.SetParent(parent)
	return f
}

func newIndexed(t *testing.T) (*store.Store, *Index) {
	t.Helper()
	ix := New(nil)
	return store.New(nil, ix), ix
}

func TestChildrenOf_InsertionOrder(t *testing.T) {
	s, ix := newIndexed(t)
	require.NoError(t, s.Put(feature("g", "p1", "")))
	require.NoError(t, s.Put(feature("c", "p1", "g")))
	require.NoError(t, s.Put(feature("a", "p1", "g")))
	require.NoError(t, s.Put(feature("b", "p1", "g")))

	assert.Equal(t, []string{"c", "a", "b"}, ix.ChildrenOf("g"))
	assert.Equal(t, 3, ix.ChildCount("g"))
	assert.Equal(t, []string{"g"}, ix.Roots("p1"))

	parent, ok := ix.ParentOf("a")
	assert.True(t, ok)
	assert.Equal(t, "g", parent)

	_, ok = ix.ParentOf("g")
	assert.False(t, ok, "feature group has no parent")
	_, ok = ix.ParentOf("missing")
	assert.False(t, ok)
	assert.Empty(t, ix.ChildrenOf("missing"))
}

func TestCheckParent(t *testing.T) {
	s, ix := newIndexed(t)
	// g1 -> s1 -> s2 ; g2 in another project
	require.NoError(t, s.Put(feature("g1", "p1", "")))
	require.NoError(t, s.Put(feature("s1", "p1", "g1")))
	require.NoError(t, s.Put(feature("s2", "p1", "s1")))
	require.NoError(t, s.Put(feature("g2", "p2", "")))

	tests := []struct {
		name     string
		child    string
		project  string
		parent   string
		wantCode errors.Code
	}{
		{name: "root is always valid", child: "s2", project: "p1", parent: ""},
		{name: "new child under leaf", child: "new", project: "p1", parent: "s2"},
		{name: "move to sibling branch", child: "s2", project: "p1", parent: "g1"},
		{name: "self parent", child: "s1", project: "p1", parent: "s1", wantCode: errors.CodeCycle},
		{name: "under own child", child: "s1", project: "p1", parent: "s2", wantCode: errors.CodeCycle},
		{name: "under own grandchild", child: "g1", project: "p1", parent: "s2", wantCode: errors.CodeCycle},
		{name: "unknown parent", child: "s1", project: "p1", parent: "nope", wantCode: errors.CodeValidation},
		{name: "other project", child: "s1", project: "p1", parent: "g2", wantCode: errors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ix.CheckParent(tt.child, tt.project, tt.parent)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestCheckParent_CyclePath(t *testing.T) {
	s, ix := newIndexed(t)
	require.NoError(t, s.Put(feature("g1", "p1", "")))
	require.NoError(t, s.Put(feature("s1", "p1", "g1")))
	require.NoError(t, s.Put(feature("s2", "p1", "s1")))

	err := ix.CheckParent("g1", "p1", "s2")
	e := errors.AsError(err)
	require.NotNil(t, e)
	assert.Equal(t, "g1 -> s2 -> s1 -> g1", e.Why)
}

func TestAttach_RejectsCycleWithoutChange(t *testing.T) {
	s, ix := newIndexed(t)
	require.NoError(t, s.Put(feature("g1", "p1", "")))
	require.NoError(t, s.Put(feature("s1", "p1", "g1")))

	err := ix.Attach("g1", "p1", "s1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeCycle))

	assert.Equal(t, []string{"g1"}, ix.Roots("p1"))
	assert.Equal(t, []string{"s1"}, ix.ChildrenOf("g1"))
	_, ok := ix.ParentOf("g1")
	assert.False(t, ok)
}

func TestReparent_MovesBetweenChildSets(t *testing.T) {
	s, ix := newIndexed(t)
	require.NoError(t, s.Put(feature("g1", "p1", "")))
	require.NoError(t, s.Put(feature("g2", "p1", "")))
	require.NoError(t, s.Put(feature("s1", "p1", "g1")))

	require.NoError(t, s.Put(feature("s1", "p1", "g2")))
	assert.Empty(t, ix.ChildrenOf("g1"))
	assert.Equal(t, []string{"s1"}, ix.ChildrenOf("g2"))

	// promote to a feature group
	require.NoError(t, s.Put(feature("s1", "p1", "")))
	assert.Empty(t, ix.ChildrenOf("g2"))
	assert.Equal(t, []string{"g1", "g2", "s1"}, ix.Roots("p1"))

	// and back under g1
	require.NoError(t, s.Put(feature("s1", "p1", "g1")))
	assert.Equal(t, []string{"g1", "g2"}, ix.Roots("p1"))
	assert.Equal(t, []string{"s1"}, ix.ChildrenOf("g1"))
}

func TestAncestorsDescendantsDepth(t *testing.T) {
	s, ix := newIndexed(t)
	require.NoError(t, s.Put(feature("g", "p1", "")))
	require.NoError(t, s.Put(feature("a", "p1", "g")))
	require.NoError(t, s.Put(feature("a1", "p1", "a")))
	require.NoError(t, s.Put(feature("b", "p1", "g")))
	require.NoError(t, s.Put(feature("a2", "p1", "a")))

	assert.Equal(t, []string{"a", "g"}, ix.Ancestors("a1"))
	assert.Empty(t, ix.Ancestors("g"))
	assert.Equal(t, 0, ix.Depth("g"))
	assert.Equal(t, 2, ix.Depth("a2"))
	assert.Equal(t, []string{"a", "a1", "a2", "b"}, ix.Descendants("g"))
	assert.Empty(t, ix.Descendants("b"))
}

func TestRemove(t *testing.T) {
	s, ix := newIndexed(t)
	require.NoError(t, s.Put(feature("g", "p1", "")))
	require.NoError(t, s.Put(feature("s", "p1", "g")))

	s.Remove(entity.FeatureKey("s"))
	assert.Empty(t, ix.ChildrenOf("g"))
	assert.False(t, ix.Contains("s"))

	s.Remove(entity.FeatureKey("g"))
	assert.Empty(t, ix.Roots("p1"))

	// removing again is harmless
	s.Remove(entity.FeatureKey("g"))
	ix.Detach("g")
}

func TestRekey(t *testing.T) {
	s, ix := newIndexed(t)
	require.NoError(t, s.Put(feature("g", "p1", "")))
	require.NoError(t, s.Put(feature("first", "p1", "g")))
	require.NoError(t, s.Put(feature("tmp-1", "p1", "g")))
	require.NoError(t, s.Put(feature("last", "p1", "g")))
	require.NoError(t, s.Put(feature("kid", "p1", "tmp-1")))

	require.NoError(t, s.Rekey(entity.FeatureKey("tmp-1"), "42"))

	assert.Equal(t, []string{"first", "42", "last"}, ix.ChildrenOf("g"))
	assert.Equal(t, []string{"kid"}, ix.ChildrenOf("42"))
	assert.Empty(t, ix.ChildrenOf("tmp-1"))
	assert.False(t, ix.Contains("tmp-1"))

	parent, ok := ix.ParentOf("kid")
	require.True(t, ok)
	assert.Equal(t, "42", parent)

	// the store rewrote the child's reference too
	kid, ok := s.Feature("kid")
	require.True(t, ok)
	assert.Equal(t, "42", kid.Parent())
}

func TestRekey_Root(t *testing.T) {
	s, ix := newIndexed(t)
	require.NoError(t, s.Put(feature("a", "p1", "")))
	require.NoError(t, s.Put(feature("tmp-g", "p1", "")))
	require.NoError(t, s.Put(feature("z", "p1", "")))

	require.NoError(t, s.Rekey(entity.FeatureKey("tmp-g"), "7"))
	assert.Equal(t, []string{"a", "7", "z"}, ix.Roots("p1"))
}

func TestOnPut_ChildBeforeParent(t *testing.T) {
	s, ix := newIndexed(t)
	require.NoError(t, s.Put(feature("s", "p1", "g")))
	require.NoError(t, s.Put(feature("g", "p1", "")))

	assert.Equal(t, []string{"s"}, ix.ChildrenOf("g"))
	assert.Equal(t, []string{"g"}, ix.Roots("p1"))
}

func TestOnPut_CorruptCycleBecomesRoot(t *testing.T) {
	s, ix := newIndexed(t)
	require.NoError(t, s.Put(feature("a", "p1", "")))
	require.NoError(t, s.Put(feature("b", "p1", "a")))

	// remote data claims a's parent is b
	require.NoError(t, s.Put(feature("a", "p1", "b")))

	_, ok := ix.ParentOf("a")
	assert.False(t, ok)
	assert.Contains(t, ix.Roots("p1"), "a")
	assert.Equal(t, []string{"b"}, ix.ChildrenOf("a"))
}

func TestParentChainsTerminate(t *testing.T) {
	s, ix := newIndexed(t)
	ids := []string{"n0", "n1", "n2", "n3", "n4", "n5"}
	require.NoError(t, s.Put(feature(ids[0], "p1", "")))
	for i := 1; i < len(ids); i++ {
		require.NoError(t, s.Put(feature(ids[i], "p1", ids[i-1])))
	}
	// attempt every back edge; all must be refused
	for i := range ids {
		for j := i; j < len(ids); j++ {
			err := ix.Attach(ids[i], "p1", ids[j])
			assert.True(t, errors.HasCode(err, errors.CodeCycle), "%s under %s", ids[i], ids[j])
		}
	}
	for _, id := range ids {
		steps := 0
		for cur, ok := id, true; ok; cur, ok = ix.ParentOf(cur) {
			steps++
			require.LessOrEqual(t, steps, len(ids)+1)
		}
	}
}

func TestReset(t *testing.T) {
	s, ix := newIndexed(t)
	require.NoError(t, s.Put(feature("g", "p1", "")))
	require.NoError(t, s.Put(feature("s", "p1", "g")))

	s.Reset()
	assert.Empty(t, ix.Roots("p1"))
	assert.Empty(t, ix.ChildrenOf("g"))
	assert.False(t, ix.Contains("g"))
}

func TestIgnoresOtherKinds(t *testing.T) {
	s, ix := newIndexed(t)
	task := &entity.Task{ID: "t1", FeatureID: "g", TaskName: "x", TaskType: entity.TaskTypeUI}
	require.NoError(t, s.Put(task))
	assert.Empty(t, ix.ChildrenOf("g"))
}
