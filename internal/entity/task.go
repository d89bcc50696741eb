package entity

import (
	"slices"
	"time"
)

// Attachment is a file attached to a task. Only metadata is cached; the
// bytes live behind the remote.
type Attachment struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a note on a task, optionally about one attachment.
type Comment struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Content      string    `json:"content" validate:"notblank"`
	AttachmentID string    `json:"attachment_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Task is an atomic unit of work owned by exactly one feature, either
// through FeatureID (feature group) or SubFeatureID (sub-feature).
type Task struct {
	ID            string       `json:"id"`
	FeatureID     string       `json:"feature_id,omitempty"`
	SubFeatureID  string       `json:"sub_feature_id,omitempty"`
	TaskType      TaskType     `json:"task_type" validate:"tasktype"`
	TaskName      string       `json:"task_name" validate:"notblank,max=255"`
	Description   string       `json:"description"`
	Attachments   []Attachment `json:"attachments"`
	Comments      []Comment    `json:"comments" validate:"dive"`
	CreatedByUser string       `json:"created_by_user,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Owner returns the id of the feature that owns the task.
func (t *Task) Owner() string {
	if t.SubFeatureID != "" {
		return t.SubFeatureID
	}
	return t.FeatureID
}

// SetOwner assigns the task to a feature. Sub-features own their tasks via
// sub_feature_id; feature groups via feature_id.
func (t *Task) SetOwner(featureID string, isSubFeature bool) {
	if isSubFeature {
		t.FeatureID, t.SubFeatureID = "", featureID
		return
	}
	t.FeatureID, t.SubFeatureID = featureID, ""
}

// Key implements Entity.
func (t *Task) Key() Key { return TaskKey(t.ID) }

// SetID implements Entity.
func (t *Task) SetID(id string) { t.ID = id }

// Validate implements Entity.
func (t *Task) Validate() error { return validateStruct(t) }

// Clone implements Entity.
func (t *Task) Clone() Entity {
	c := *t
	c.Attachments = slices.Clone(t.Attachments)
	c.Comments = slices.Clone(t.Comments)
	return &c
}

// Refs implements Entity.
func (t *Task) Refs() []Key {
	if o := t.Owner(); o != "" {
		return []Key{FeatureKey(o)}
	}
	return nil
}

// RewriteRef implements Entity.
func (t *Task) RewriteRef(old Key, newID string) bool {
	if old.Kind != KindFeature {
		return false
	}
	changed := false
	if t.FeatureID == old.ID {
		t.FeatureID = newID
		changed = true
	}
	if t.SubFeatureID == old.ID {
		t.SubFeatureID = newID
		changed = true
	}
	return changed
}
