package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/gateway/memgw"
)

func (f *fixture) task(t *testing.T, id string) *entity.Task {
	t.Helper()
	e, ok := f.store.Get(entity.TaskKey(id))
	require.True(t, ok, "task %s not cached", id)
	return e.(*entity.Task)
}

func TestCommentCommands(t *testing.T) {
	f := newFixture(t, memgw.WithHold())
	feat := f.seedFeature(t, "Owner", "")
	in := &entity.Task{TaskName: "Layout", TaskType: entity.TaskTypeUI, FeatureID: feat.ID,
		Attachments: []entity.Attachment{{ID: "a1", FileName: "mockup.pdf"}}}
	task := f.remote.Seed(in).(*entity.Task)
	require.NoError(t, f.store.Put(task))

	first, err := f.coord.AddComment(task.ID, entity.Comment{UserID: "7", Content: "  looks good "})
	require.NoError(t, err)
	second, err := f.coord.AddComment(task.ID, entity.Comment{UserID: "8", Content: "see mockup", AttachmentID: "a1"})
	require.NoError(t, err)
	assert.Empty(t, f.task(t, task.ID).Comments, "comment commands wait for the remote")

	call := f.next(t)
	assert.Len(t, call.Patch[entity.FieldComments], 1)
	call.Release()
	e, err := wait(t, first)
	require.NoError(t, err)
	require.Len(t, e.(*entity.Task).Comments, 1)
	assert.Equal(t, "1", e.(*entity.Task).Comments[0].ID, "the remote numbers new comments")
	assert.Equal(t, "looks good", e.(*entity.Task).Comments[0].Content)

	// the second command is built on the first one's committed result
	call = f.next(t)
	assert.Len(t, call.Patch[entity.FieldComments], 2)
	call.Release()
	_, err = wait(t, second)
	require.NoError(t, err)
	f.idle(t)

	got := f.task(t, task.ID).Comments
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[1].ID)
	assert.Equal(t, "a1", got[1].AttachmentID)
	assert.False(t, got[1].CreatedAt.IsZero())

	edit, err := f.coord.EditComment(task.ID, "1", "ship it")
	require.NoError(t, err)
	f.next(t).Release()
	_, err = wait(t, edit)
	require.NoError(t, err)
	assert.Equal(t, "ship it", f.task(t, task.ID).Comments[0].Content)

	rm, err := f.coord.RemoveComment(task.ID, "1")
	require.NoError(t, err)
	f.next(t).Release()
	_, err = wait(t, rm)
	require.NoError(t, err)
	f.idle(t)
	got = f.task(t, task.ID).Comments
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestCommentCommands_LocalRejections(t *testing.T) {
	f := newFixture(t, memgw.WithHold())
	feat := f.seedFeature(t, "Owner", "")
	task := f.seedTask(t, "Layout", feat.ID)

	tests := []struct {
		name string
		run  func() error
		code errors.Code
	}{
		{"blank content", func() error {
			_, err := f.coord.AddComment(task.ID, entity.Comment{Content: " "})
			return err
		}, errors.CodeValidation},
		{"foreign attachment", func() error {
			_, err := f.coord.AddComment(task.ID, entity.Comment{Content: "x", AttachmentID: "a9"})
			return err
		}, errors.CodeValidation},
		{"unknown task", func() error {
			_, err := f.coord.AddComment("999", entity.Comment{Content: "x"})
			return err
		}, errors.CodeNotFound},
		{"edit unknown comment", func() error {
			_, err := f.coord.EditComment(task.ID, "5", "x")
			return err
		}, errors.CodeNotFound},
		{"edit to blank", func() error {
			_, err := f.coord.EditComment(task.ID, "5", "")
			return err
		}, errors.CodeValidation},
		{"remove unknown comment", func() error {
			_, err := f.coord.RemoveComment(task.ID, "5")
			return err
		}, errors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
	assert.Zero(t, f.coord.Pending())
	f.noCall(t)
}

func TestCommentCommand_FailureLeavesComments(t *testing.T) {
	f := newFixture(t, memgw.WithHold())
	feat := f.seedFeature(t, "Owner", "")
	task := f.seedTask(t, "Layout", feat.ID)

	h, err := f.coord.AddComment(task.ID, entity.Comment{Content: "hello"})
	require.NoError(t, err)
	f.next(t).Fail(errors.ErrUnauthorized("token expired"))
	_, err = wait(t, h)
	assert.True(t, errors.HasCode(err, errors.CodeUnauthorized))
	f.idle(t)
	assert.Empty(t, f.task(t, task.ID).Comments)
}
