package entity

import (
	"slices"
	"time"

	"github.com/randalmurphal/featureplus/internal/errors"
)

// Feature is a unit of product work. A feature with no parent is a
// "feature group"; any other feature is a sub-feature.
type Feature struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id" validate:"required"`
	ParentFeatureID *string   `json:"parent_feature_id"`
	Title           string    `json:"title" validate:"notblank,max=255"`
	Description     string    `json:"description"`
	Status          Status    `json:"status" validate:"status"`
	Priority        Priority  `json:"priority" validate:"priority"`
	AssigneeID      string    `json:"assignee_id,omitempty"`
	Category        string    `json:"category,omitempty" validate:"max=100"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewFeature returns a feature with default status and priority.
func NewFeature(projectID, title string) *Feature {
	f := &Feature{ProjectID: projectID, Title: title}
	f.SetDefaults()
	return f
}

// SetDefaults applies default values for omitted fields.
func (f *Feature) SetDefaults() {
	if f.Status == "" {
		f.Status = StatusTodo
	}
	if f.Priority == "" {
		f.Priority = PriorityMedium
	}
	if f.Tags == nil {
		f.Tags = []string{}
	}
}

// Key implements Entity.
func (f *Feature) Key() Key { return FeatureKey(f.ID) }

// SetID implements Entity.
func (f *Feature) SetID(id string) { f.ID = id }

// Validate implements Entity.
func (f *Feature) Validate() error {
	if err := validateStruct(f); err != nil {
		return err
	}
	if p := f.Parent(); p != "" && p == f.ID {
		return errors.ErrValidation("parent_feature_id", "feature cannot be its own parent")
	}
	return nil
}

// Parent returns the parent feature id, or "" for a feature group.
func (f *Feature) Parent() string {
	if f.ParentFeatureID == nil {
		return ""
	}
	return *f.ParentFeatureID
}

// SetParent sets the parent feature id; "" makes the feature a root.
func (f *Feature) SetParent(id string) {
	if id == "" {
		f.ParentFeatureID = nil
		return
	}
	f.ParentFeatureID = &id
}

// IsRoot reports whether the feature is a feature group.
func (f *Feature) IsRoot() bool { return f.Parent() == "" }

// HasTag reports whether the feature carries tag exactly.
func (f *Feature) HasTag(tag string) bool {
	return slices.Contains(f.Tags, tag)
}

// Clone implements Entity.
func (f *Feature) Clone() Entity {
	c := *f
	if f.ParentFeatureID != nil {
		p := *f.ParentFeatureID
		c.ParentFeatureID = &p
	}
	c.Tags = slices.Clone(f.Tags)
	return &c
}

// Refs implements Entity.
func (f *Feature) Refs() []Key {
	refs := []Key{ProjectKey(f.ProjectID)}
	if p := f.Parent(); p != "" {
		refs = append(refs, FeatureKey(p))
	}
	return refs
}

// RewriteRef implements Entity.
func (f *Feature) RewriteRef(old Key, newID string) bool {
	switch old.Kind {
	case KindFeature:
		if f.Parent() == old.ID {
			f.SetParent(newID)
			return true
		}
	case KindProject:
		if f.ProjectID == old.ID {
			f.ProjectID = newID
			return true
		}
	}
	return false
}
