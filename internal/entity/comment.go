package entity

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/randalmurphal/featureplus/internal/errors"
)

// CommentIndex returns the position of comment id on the task, or -1.
func (t *Task) CommentIndex(id string) int {
	return slices.IndexFunc(t.Comments, func(c Comment) bool { return c.ID == id })
}

// HasAttachment reports whether attachment id belongs to the task.
func (t *Task) HasAttachment(id string) bool {
	return slices.ContainsFunc(t.Attachments, func(a Attachment) bool { return a.ID == id })
}

// ToComments converts a patch value into a comment list. Decoded JSON
// arrives as []any of objects and is re-decoded through encoding/json.
func ToComments(field string, value any) ([]Comment, error) {
	switch v := value.(type) {
	case []Comment:
		return slices.Clone(v), nil
	case nil:
		return []Comment{}, nil
	case []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.ErrValidation(field, err.Error())
		}
		var out []Comment
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, errors.ErrValidation(field, fmt.Sprintf("must be a list of comments: %v", err))
		}
		return out, nil
	default:
		return nil, errors.ErrValidation(field, fmt.Sprintf("must be a list of comments (got %T)", value))
	}
}
