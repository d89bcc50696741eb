package coordinator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
)

// Comment commands follow the tag commands: each is turned into a comments
// patch against the committed task when it reaches the head of the task's
// queue, so comments posted from two places are both kept. The remote
// assigns ids to new comments.

// AddComment posts a comment on a task. AttachmentID, when set, must name
// one of the task's attachments.
func (c *Coordinator) AddComment(taskID string, comment entity.Comment, opts ...SubmitOption) (*Handle, error) {
	key := entity.TaskKey(taskID)
	comment.ID = ""
	comment.Content = strings.TrimSpace(comment.Content)
	if comment.Content == "" {
		return nil, c.reject(key, OpPatch, errors.ErrValidation("content", "is required"))
	}

	check := func(e entity.Entity) error {
		t, ok := e.(*entity.Task)
		if !ok {
			return errors.ErrNotFound(key.String())
		}
		if comment.AttachmentID != "" && !t.HasAttachment(comment.AttachmentID) {
			return errors.ErrValidation("attachment_id",
				fmt.Sprintf("attachment %s does not belong to task %s", comment.AttachmentID, t.ID))
		}
		return nil
	}
	return c.submitDeferred(key, func(e entity.Entity) (entity.Patch, error) {
		t, ok := e.(*entity.Task)
		if !ok {
			return nil, errors.ErrNotFound(key.String())
		}
		now := c.now()
		added := comment
		added.CreatedAt, added.UpdatedAt = now, now
		return entity.Patch{entity.FieldComments: append(slices.Clone(t.Comments), added)}, nil
	}, check, opts)
}

// EditComment replaces the content of a comment.
func (c *Coordinator) EditComment(taskID, commentID, content string, opts ...SubmitOption) (*Handle, error) {
	key := entity.TaskKey(taskID)
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, c.reject(key, OpPatch, errors.ErrValidation("content", "is required"))
	}
	return c.submitDeferred(key, func(e entity.Entity) (entity.Patch, error) {
		t, ok := e.(*entity.Task)
		if !ok {
			return nil, errors.ErrNotFound(key.String())
		}
		i := t.CommentIndex(commentID)
		if i < 0 {
			return nil, errors.ErrNotFound(commentTarget(t.Key(), commentID))
		}
		comments := slices.Clone(t.Comments)
		comments[i].Content = content
		comments[i].UpdatedAt = c.now()
		return entity.Patch{entity.FieldComments: comments}, nil
	}, hasComment(key, commentID), opts)
}

// RemoveComment deletes a comment. A comment already removed by the time
// the command is sent commits without change.
func (c *Coordinator) RemoveComment(taskID, commentID string, opts ...SubmitOption) (*Handle, error) {
	key := entity.TaskKey(taskID)
	return c.submitDeferred(key, func(e entity.Entity) (entity.Patch, error) {
		t, ok := e.(*entity.Task)
		if !ok {
			return nil, errors.ErrNotFound(key.String())
		}
		comments := slices.DeleteFunc(slices.Clone(t.Comments), func(cm entity.Comment) bool {
			return cm.ID == commentID
		})
		return entity.Patch{entity.FieldComments: comments}, nil
	}, hasComment(key, commentID), opts)
}

func hasComment(key entity.Key, commentID string) func(entity.Entity) error {
	return func(e entity.Entity) error {
		t, ok := e.(*entity.Task)
		if !ok {
			return errors.ErrNotFound(key.String())
		}
		if t.CommentIndex(commentID) < 0 {
			return errors.ErrNotFound(commentTarget(t.Key(), commentID))
		}
		return nil
	}
}

func commentTarget(task entity.Key, commentID string) string {
	return fmt.Sprintf("comment %s on %s", commentID, task)
}
