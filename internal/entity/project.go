package entity

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/randalmurphal/featureplus/internal/errors"
)

// Project config keys.
const (
	ConfigTaskTypes       = "task_types"
	ConfigFeatureCategory = "feature_category"
)

// DefaultFeatureCategories is applied to projects created without config.
var DefaultFeatureCategories = []string{"Auth", "Payment", "Tags", "Tasks", "Features"}

// Project groups features. Config holds free-form settings such as the
// category and task-type pick lists.
type Project struct {
	ID          string         `json:"id"`
	Name        string         `json:"name" validate:"notblank,max=255"`
	Description string         `json:"description"`
	Status      string         `json:"status,omitempty"`
	OwnerID     string         `json:"owner_id,omitempty"`
	Config      map[string]any `json:"config"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SetDefaults fills in the default config lists when config is empty.
func (p *Project) SetDefaults() {
	if len(p.Config) == 0 {
		types := make([]string, 0, len(ValidTaskTypes()))
		for _, tt := range ValidTaskTypes() {
			types = append(types, string(tt))
		}
		p.Config = map[string]any{
			ConfigTaskTypes:       types,
			ConfigFeatureCategory: append([]string(nil), DefaultFeatureCategories...),
		}
	}
}

// TaskTypes returns the project's task type pick list.
func (p *Project) TaskTypes() []string {
	return stringList(p.Config[ConfigTaskTypes])
}

// FeatureCategories returns the project's feature category pick list.
func (p *Project) FeatureCategories() []string {
	return stringList(p.Config[ConfigFeatureCategory])
}

// Key implements Entity.
func (p *Project) Key() Key { return ProjectKey(p.ID) }

// SetID implements Entity.
func (p *Project) SetID(id string) { p.ID = id }

// Validate implements Entity.
func (p *Project) Validate() error { return validateStruct(p) }

// Clone implements Entity. Config values are copied one level deep.
func (p *Project) Clone() Entity {
	c := *p
	if p.Config != nil {
		c.Config = maps.Clone(p.Config)
		for k, v := range c.Config {
			if list, ok := v.([]string); ok {
				c.Config[k] = append([]string(nil), list...)
			}
		}
	}
	return &c
}

// Refs implements Entity.
func (p *Project) Refs() []Key { return nil }

// RewriteRef implements Entity.
func (p *Project) RewriteRef(Key, string) bool { return false }

// stringList reads a config list that may have been decoded from JSON
// ([]any) or set in-process ([]string).
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// CheckFeature applies project-scoped rules to f: a non-empty category must
// appear in the project's category list when that list is configured.
func (p *Project) CheckFeature(f *Feature) error {
	if f.Category == "" {
		return nil
	}
	cats := p.FeatureCategories()
	if len(cats) == 0 || slices.Contains(cats, f.Category) {
		return nil
	}
	return errors.ErrValidation("category", fmt.Sprintf("must be one of %v (got %q)", cats, f.Category))
}
