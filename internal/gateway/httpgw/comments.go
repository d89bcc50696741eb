package httpgw

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
)

// patchRecord applies p to a task or project read from the API and writes
// the result back. A comments change on a task is carried out through the
// comment endpoints before the rest of the record is written.
func (c *Client) patchRecord(ctx context.Context, key entity.Key, p entity.Patch) (entity.Entity, error) {
	cur, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	next, err := p.Apply(cur, time.Now())
	if err != nil {
		return nil, err
	}
	entity.SetUpdatedAt(next, entity.UpdatedAt(cur))
	task, ok := next.(*entity.Task)
	if !ok || !p.Touches(entity.FieldComments) {
		return c.Update(ctx, next)
	}

	if err := c.syncComments(ctx, key, cur.(*entity.Task).Comments, task.Comments); err != nil {
		return nil, err
	}
	comments, err := c.listComments(ctx, key)
	if err != nil {
		return nil, err
	}
	task.Comments = comments
	if len(p.Without(entity.FieldComments)) == 0 {
		return task, nil
	}
	out, err := c.Update(ctx, task)
	if err != nil {
		return nil, err
	}
	if t, ok := out.(*entity.Task); ok && t.Comments == nil {
		t.Comments = comments
	}
	return out, nil
}

// syncComments posts comments without an id, updates those whose content
// changed and deletes those no longer wanted.
func (c *Client) syncComments(ctx context.Context, key entity.Key, have, want []entity.Comment) error {
	kept := make(map[string]bool, len(want))
	for _, w := range want {
		if w.ID == "" {
			if _, err := c.do(ctx, http.MethodPost, itemPath(key)+"/comments", newCommentBody(w), key); err != nil {
				return err
			}
			continue
		}
		kept[w.ID] = true
		i := slices.IndexFunc(have, func(h entity.Comment) bool { return h.ID == w.ID })
		if i < 0 {
			return errors.ErrNotFound(fmt.Sprintf("comment %s on %s", w.ID, key))
		}
		if have[i].Content == w.Content {
			continue
		}
		body := map[string]string{"content": w.Content}
		if _, err := c.do(ctx, http.MethodPut, "/comments/"+w.ID, body, key); err != nil {
			return err
		}
	}
	for _, h := range have {
		if kept[h.ID] {
			continue
		}
		if _, err := c.do(ctx, http.MethodDelete, "/comments/"+h.ID, nil, key); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) listComments(ctx context.Context, key entity.Key) ([]entity.Comment, error) {
	rows, err := list[entity.Comment](ctx, c, itemPath(key)+"/comments", "comments")
	if err != nil {
		return nil, err
	}
	out := make([]entity.Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	return out, nil
}

// newCommentBody is the create payload. The API expects numeric attachment
// ids; the author is taken from the credential.
func newCommentBody(cm entity.Comment) map[string]any {
	body := map[string]any{"content": cm.Content}
	if cm.AttachmentID == "" {
		return body
	}
	if n, err := strconv.ParseUint(cm.AttachmentID, 10, 64); err == nil {
		body["attachment_id"] = n
	} else {
		body["attachment_id"] = cm.AttachmentID
	}
	return body
}
