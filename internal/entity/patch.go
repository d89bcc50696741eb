package entity

import (
	"fmt"
	"sort"
	"time"

	"github.com/randalmurphal/featureplus/internal/errors"
)

// Patch is a field-level change: JSON field name to new value. Values may
// come straight from a decoded JSON body, so numbers arrive as float64 and
// lists as []any.
type Patch map[string]any

// Feature patch fields.
const (
	FieldTitle           = "title"
	FieldDescription     = "description"
	FieldStatus          = "status"
	FieldPriority        = "priority"
	FieldAssigneeID      = "assignee_id"
	FieldCategory        = "category"
	FieldParentFeatureID = "parent_feature_id"
	FieldTags            = "tags"
)

// Task patch fields.
const (
	FieldTaskName = "task_name"
	FieldTaskType = "task_type"
	FieldComments = "comments"
)

// Project patch fields.
const (
	FieldName   = "name"
	FieldConfig = "config"
)

// Fields returns the patched field names in sorted order.
func (p Patch) Fields() []string {
	fields := make([]string, 0, len(p))
	for f := range p {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Touches reports whether the patch sets field.
func (p Patch) Touches(field string) bool {
	_, ok := p[field]
	return ok
}

// Without returns a copy of the patch minus field.
func (p Patch) Without(field string) Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		if k != field {
			out[k] = v
		}
	}
	return out
}

// Apply returns a clone of e with the patch applied and validated. e itself
// is never modified.
func (p Patch) Apply(e Entity, now time.Time) (Entity, error) {
	if e == nil {
		return nil, errors.ErrValidation("patch", "target does not exist")
	}
	if len(p) == 0 {
		return nil, errors.ErrValidation("patch", "no fields to change")
	}
	out := e.Clone()
	for _, field := range p.Fields() {
		var err error
		switch v := out.(type) {
		case *Feature:
			err = patchFeature(v, field, p[field])
		case *Task:
			err = patchTask(v, field, p[field])
		case *Project:
			err = patchProject(v, field, p[field])
		default:
			err = errors.ErrValidation("patch", fmt.Sprintf("unsupported entity %T", e))
		}
		if err != nil {
			return nil, err
		}
	}
	switch v := out.(type) {
	case *Feature:
		v.UpdatedAt = now
	case *Task:
		v.UpdatedAt = now
	case *Project:
		v.UpdatedAt = now
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func patchFeature(f *Feature, field string, value any) error {
	switch field {
	case FieldTitle:
		return setString(&f.Title, field, value)
	case FieldDescription:
		return setString(&f.Description, field, value)
	case FieldAssigneeID:
		return setString(&f.AssigneeID, field, value)
	case FieldCategory:
		return setString(&f.Category, field, value)
	case FieldStatus:
		var s string
		if err := setString(&s, field, value); err != nil {
			return err
		}
		f.Status = Status(s)
	case FieldPriority:
		var s string
		if err := setString(&s, field, value); err != nil {
			return err
		}
		f.Priority = Priority(s)
	case FieldParentFeatureID:
		if value == nil {
			f.SetParent("")
			return nil
		}
		var s string
		if err := setString(&s, field, value); err != nil {
			return err
		}
		f.SetParent(s)
	case FieldTags:
		tags, err := toStrings(field, value)
		if err != nil {
			return err
		}
		f.Tags = tags
	default:
		return errors.ErrValidation(field, "is not a patchable feature field")
	}
	return nil
}

func patchTask(t *Task, field string, value any) error {
	switch field {
	case FieldTaskName:
		return setString(&t.TaskName, field, value)
	case FieldDescription:
		return setString(&t.Description, field, value)
	case FieldTaskType:
		var s string
		if err := setString(&s, field, value); err != nil {
			return err
		}
		t.TaskType = TaskType(s)
	case FieldComments:
		comments, err := ToComments(field, value)
		if err != nil {
			return err
		}
		t.Comments = comments
	default:
		return errors.ErrValidation(field, "is not a patchable task field")
	}
	return nil
}

func patchProject(p *Project, field string, value any) error {
	switch field {
	case FieldName:
		return setString(&p.Name, field, value)
	case FieldDescription:
		return setString(&p.Description, field, value)
	case FieldStatus:
		return setString(&p.Status, field, value)
	case FieldConfig:
		cfg, ok := value.(map[string]any)
		if !ok {
			return errors.ErrValidation(field, fmt.Sprintf("must be an object (got %T)", value))
		}
		p.Config = cfg
	default:
		return errors.ErrValidation(field, "is not a patchable project field")
	}
	return nil
}

func setString(dst *string, field string, value any) error {
	switch v := value.(type) {
	case string:
		*dst = v
	case nil:
		*dst = ""
	case float64:
		// JSON numbers for id-like fields such as assignee_id
		*dst = fmt.Sprintf("%.0f", v)
	case int:
		*dst = fmt.Sprintf("%d", v)
	default:
		return errors.ErrValidation(field, fmt.Sprintf("must be a string (got %T)", value))
	}
	return nil
}

func toStrings(field string, value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string{}, v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.ErrValidation(field, fmt.Sprintf("must be a list of strings (got %T)", item))
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return []string{}, nil
	default:
		return nil, errors.ErrValidation(field, fmt.Sprintf("must be a list of strings (got %T)", value))
	}
}
