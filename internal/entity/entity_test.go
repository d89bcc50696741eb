package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/featureplus/internal/errors"
)

func TestTempID(t *testing.T) {
	a, b := NewTempID(), NewTempID()
	assert.True(t, IsTempID(a))
	assert.NotEqual(t, a, b)
	assert.False(t, IsTempID("42"))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "feature/7", FeatureKey("7").String())
	assert.True(t, Key{}.IsZero())
	assert.False(t, TaskKey("1").IsZero())
}

func TestFeature_CloneIsDeep(t *testing.T) {
	f := NewFeature("p1", "Checkout")
	f.ID = "1"
	f.SetParent("9")
	f.Tags = []string{"api"}

	c := f.Clone().(*Feature)
	c.Tags[0] = "ui"
	*c.ParentFeatureID = "10"

	assert.Equal(t, []string{"api"}, f.Tags)
	assert.Equal(t, "9", f.Parent())
}

func TestFeature_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(f *Feature)
		wantField string
	}{
		{name: "valid", mutate: func(*Feature) {}},
		{name: "blank title", mutate: func(f *Feature) { f.Title = "   " }, wantField: "title"},
		{name: "long title", mutate: func(f *Feature) {
			b := make([]byte, 256)
			for i := range b {
				b[i] = 'x'
			}
			f.Title = string(b)
		}, wantField: "title"},
		{name: "bad status", mutate: func(f *Feature) { f.Status = "blocked" }, wantField: "status"},
		{name: "bad priority", mutate: func(f *Feature) { f.Priority = "urgent" }, wantField: "priority"},
		{name: "missing project", mutate: func(f *Feature) { f.ProjectID = "" }, wantField: "project_id"},
		{name: "own parent", mutate: func(f *Feature) { f.SetParent(f.ID) }, wantField: "parent_feature_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFeature("p1", "Login")
			f.ID = "5"
			tt.mutate(f)
			err := f.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			e := errors.AsError(err)
			require.NotNil(t, e)
			assert.Equal(t, errors.CodeValidation, e.Code)
			assert.Contains(t, e.What, tt.wantField)
		})
	}
}

func TestTask_Owner(t *testing.T) {
	task := &Task{TaskName: "wire endpoint", TaskType: TaskTypeBackend}

	err := task.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	task.SetOwner("3", false)
	assert.Equal(t, "3", task.Owner())
	assert.NoError(t, task.Validate())

	task.SetOwner("4", true)
	assert.Equal(t, "4", task.Owner())
	assert.Empty(t, task.FeatureID)
	assert.NoError(t, task.Validate())

	task.FeatureID = "3"
	assert.Error(t, task.Validate(), "two owners must be rejected")
}

func TestTask_BadType(t *testing.T) {
	task := &Task{TaskName: "x", TaskType: "Dev", FeatureID: "1"}
	err := task.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task_type")
}

func TestRewriteRef(t *testing.T) {
	tmp := NewTempID()
	f := NewFeature("p1", "child")
	f.SetParent(tmp)
	task := &Task{FeatureID: tmp}

	assert.True(t, f.RewriteRef(FeatureKey(tmp), "12"))
	assert.Equal(t, "12", f.Parent())
	assert.True(t, task.RewriteRef(FeatureKey(tmp), "12"))
	assert.Equal(t, "12", task.Owner())
	assert.False(t, task.RewriteRef(ProjectKey("p1"), "p2"))
	assert.True(t, f.RewriteRef(ProjectKey("p1"), "p2"))
	assert.Equal(t, "p2", f.ProjectID)
}

func TestProject_Defaults(t *testing.T) {
	p := &Project{Name: "Shop"}
	p.SetDefaults()
	assert.Equal(t, []string{"UI", "Backend", "DB"}, p.TaskTypes())
	assert.Equal(t, DefaultFeatureCategories, p.FeatureCategories())

	// decoded JSON lists
	p.Config = map[string]any{ConfigFeatureCategory: []any{"Auth", "Search"}}
	assert.Equal(t, []string{"Auth", "Search"}, p.FeatureCategories())

	f := NewFeature("p1", "x")
	f.Category = "Search"
	assert.NoError(t, p.CheckFeature(f))
	f.Category = "Billing"
	assert.True(t, errors.HasCode(p.CheckFeature(f), errors.CodeValidation))
}

func TestPatch_ApplyFeature(t *testing.T) {
	f := NewFeature("p1", "Old")
	f.ID = "1"
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	out, err := Patch{
		FieldTitle:           "New",
		FieldStatus:          "in_progress",
		FieldAssigneeID:      float64(7),
		FieldParentFeatureID: "2",
		FieldTags:            []any{"api", "ui"},
	}.Apply(f, now)
	require.NoError(t, err)

	got := out.(*Feature)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, "7", got.AssigneeID)
	assert.Equal(t, "2", got.Parent())
	assert.Equal(t, []string{"api", "ui"}, got.Tags)
	assert.Equal(t, now, got.UpdatedAt)
	assert.Equal(t, "Old", f.Title, "source must not change")

	out, err = Patch{FieldParentFeatureID: nil}.Apply(got, now)
	require.NoError(t, err)
	assert.True(t, out.(*Feature).IsRoot())
}

func TestPatch_Rejections(t *testing.T) {
	f := NewFeature("p1", "x")
	f.ID = "1"
	now := time.Now()

	_, err := Patch{"owner": "me"}.Apply(f, now)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = Patch{FieldTitle: ""}.Apply(f, now)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = Patch{FieldStatus: "blocked"}.Apply(f, now)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = Patch{}.Apply(f, now)
	assert.Error(t, err)

	_, err = Patch{FieldTitle: "y"}.Apply(nil, now)
	assert.Error(t, err)
}

func TestPatch_TaskAndProject(t *testing.T) {
	task := &Task{ID: "1", FeatureID: "2", TaskName: "a", TaskType: TaskTypeUI}
	out, err := Patch{FieldTaskType: "DB", FieldTaskName: "b"}.Apply(task, time.Now())
	require.NoError(t, err)
	assert.Equal(t, TaskTypeDB, out.(*Task).TaskType)

	p := &Project{ID: "1", Name: "Shop"}
	out, err = Patch{FieldConfig: map[string]any{ConfigTaskTypes: []any{"UI"}}}.Apply(p, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"UI"}, out.(*Project).TaskTypes())
}

func TestPatch_TaskComments(t *testing.T) {
	task := &Task{ID: "1", FeatureID: "2", TaskName: "a", TaskType: TaskTypeUI,
		Attachments: []Attachment{{ID: "9", FileName: "mockup.pdf"}}}
	now := time.Now()

	out, err := Patch{FieldComments: []Comment{{ID: "1", UserID: "u", Content: "first"}}}.Apply(task, now)
	require.NoError(t, err)
	got := out.(*Task)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, 0, got.CommentIndex("1"))
	assert.Equal(t, -1, got.CommentIndex("2"))
	assert.Empty(t, task.Comments, "source must not change")
	assert.True(t, got.HasAttachment("9"))
	assert.False(t, got.HasAttachment("8"))

	// decoded JSON
	out, err = Patch{FieldComments: []any{
		map[string]any{"id": "1", "content": "first"},
		map[string]any{"id": "2", "content": "second", "attachment_id": "9"},
	}}.Apply(task, now)
	require.NoError(t, err)
	assert.Equal(t, "9", out.(*Task).Comments[1].AttachmentID)

	_, err = Patch{FieldComments: []Comment{{ID: "1", Content: "  "}}}.Apply(task, now)
	assert.True(t, errors.HasCode(err, errors.CodeValidation), "blank comments are refused")

	_, err = Patch{FieldComments: "nope"}.Apply(task, now)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	rest := Patch{FieldComments: nil, FieldTaskName: "b"}.Without(FieldComments)
	assert.Equal(t, Patch{FieldTaskName: "b"}, rest)
}

func TestNew(t *testing.T) {
	for _, k := range ValidKinds() {
		e, err := New(k)
		require.NoError(t, err)
		assert.Equal(t, k, e.Key().Kind)
	}
	_, err := New("user")
	assert.Error(t, err)
}
