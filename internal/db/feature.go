package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/randalmurphal/featureplus/internal/entity"
)

const featureColumns = `id, project_id, parent_feature_id, title, description, status, priority,
	assignee_id, category, created_at, updated_at`

// InsertFeature stores f with its tags and assigns its id.
func (t *TxOps) InsertFeature(f *entity.Feature) error {
	projectID, parentID, err := featureRefs(f)
	if err != nil {
		return err
	}
	var id int64
	err = t.QueryRow(`
		INSERT INTO features (project_id, parent_feature_id, title, description, status, priority,
			assignee_id, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		projectID, parentID, f.Title, f.Description, string(f.Status), string(f.Priority),
		f.AssigneeID, f.Category, formatTime(f.CreatedAt), formatTime(f.UpdatedAt),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert feature: %w", err)
	}
	f.ID = formatID(id)
	return t.SetFeatureTags(f.ID, f.Tags)
}

// UpdateFeature overwrites the stored row and tags of f.
func (t *TxOps) UpdateFeature(f *entity.Feature) error {
	id, err := rowID(f.Key())
	if err != nil {
		return err
	}
	projectID, parentID, err := featureRefs(f)
	if err != nil {
		return err
	}
	res, err := t.Exec(`
		UPDATE features SET project_id = ?, parent_feature_id = ?, title = ?, description = ?,
			status = ?, priority = ?, assignee_id = ?, category = ?, updated_at = ?
		WHERE id = ?`,
		projectID, parentID, f.Title, f.Description, string(f.Status), string(f.Priority),
		f.AssigneeID, f.Category, formatTime(f.UpdatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("update feature: %w", err)
	}
	if err := affected(res, f.Key()); err != nil {
		return err
	}
	return t.SetFeatureTags(f.ID, f.Tags)
}

func featureRefs(f *entity.Feature) (projectID int64, parentID any, err error) {
	if projectID, err = rowID(entity.ProjectKey(f.ProjectID)); err != nil {
		return 0, nil, err
	}
	if parentID, err = nullableID(entity.KindFeature, f.Parent()); err != nil {
		return 0, nil, err
	}
	return projectID, parentID, nil
}

// SetFeatureTags replaces the tags of a feature, keeping their order.
func (t *TxOps) SetFeatureTags(featureID string, tags []string) error {
	id, err := rowID(entity.FeatureKey(featureID))
	if err != nil {
		return err
	}
	if _, err := t.Exec(`DELETE FROM feature_tags WHERE feature_id = ?`, id); err != nil {
		return fmt.Errorf("clear feature tags: %w", err)
	}
	for i, tag := range tags {
		if _, err := t.Exec(`INSERT INTO feature_tags (feature_id, tag_name, position) VALUES (?, ?, ?)`,
			id, tag, i); err != nil {
			return fmt.Errorf("insert feature tag %q: %w", tag, err)
		}
	}
	return nil
}

// GetFeature reads one feature with its tags.
func (t *TxOps) GetFeature(featureID string) (*entity.Feature, error) {
	key := entity.FeatureKey(featureID)
	id, err := rowID(key)
	if err != nil {
		return nil, err
	}
	f, err := scanFeature(t.QueryRow(`SELECT `+featureColumns+` FROM features WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, key)
	}
	tags, err := t.tagsWhere(`ft.feature_id = ?`, id)
	if err != nil {
		return nil, err
	}
	f.Tags = append(f.Tags, tags[f.ID]...)
	return f, nil
}

// ListFeatures returns the features of a project ordered by id, with tags
// loaded in one extra query.
func (t *TxOps) ListFeatures(projectID string) ([]*entity.Feature, error) {
	pid, err := rowID(entity.ProjectKey(projectID))
	if err != nil {
		return nil, nil
	}
	rows, err := t.Query(`SELECT `+featureColumns+` FROM features WHERE project_id = ? ORDER BY id`, pid)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	var out []*entity.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := t.tagsWhere(`f.project_id = ?`, pid)
	if err != nil {
		return nil, err
	}
	for _, f := range out {
		f.Tags = append(f.Tags, tags[f.ID]...)
	}
	return out, nil
}

// tagsWhere loads tags grouped by feature id for features matching cond.
func (t *TxOps) tagsWhere(cond string, args ...any) (map[string][]string, error) {
	rows, err := t.Query(`
		SELECT ft.feature_id, ft.tag_name
		FROM feature_tags ft JOIN features f ON f.id = ft.feature_id
		WHERE `+cond+`
		ORDER BY ft.feature_id, ft.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("load feature tags: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var id int64
		var tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		out[formatID(id)] = append(out[formatID(id)], tag)
	}
	return out, rows.Err()
}

// DeleteFeature removes a feature row. Its tags and tasks go with it.
func (t *TxOps) DeleteFeature(featureID string) error {
	key := entity.FeatureKey(featureID)
	id, err := rowID(key)
	if err != nil {
		return err
	}
	// explicit so the cascade does not depend on foreign key enforcement
	if _, err := t.Exec(`DELETE FROM tasks WHERE feature_id = ? OR sub_feature_id = ?`, id, id); err != nil {
		return fmt.Errorf("delete feature tasks: %w", err)
	}
	if _, err := t.Exec(`DELETE FROM feature_tags WHERE feature_id = ?`, id); err != nil {
		return fmt.Errorf("delete feature tags: %w", err)
	}
	res, err := t.Exec(`DELETE FROM features WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete feature: %w", err)
	}
	return affected(res, key)
}

// CountFeatures counts features matching the column filter: "project_id"
// or "parent_feature_id".
func (t *TxOps) CountFeatures(column, id string) (int, error) {
	switch column {
	case "project_id", "parent_feature_id":
	default:
		return 0, fmt.Errorf("count features: unsupported column %q", column)
	}
	n, err := rowID(entity.Key{ID: id})
	if err != nil {
		return 0, nil
	}
	var count int
	if err := t.QueryRow(`SELECT COUNT(*) FROM features WHERE `+column+` = ?`, n).Scan(&count); err != nil {
		return 0, fmt.Errorf("count features: %w", err)
	}
	return count, nil
}

// FeatureParents returns the parent id of every feature in a project, for
// cycle checks. Groups map to "".
func (t *TxOps) FeatureParents(projectID string) (map[string]string, error) {
	pid, err := rowID(entity.ProjectKey(projectID))
	if err != nil {
		return nil, err
	}
	rows, err := t.Query(`SELECT id, parent_feature_id FROM features WHERE project_id = ?`, pid)
	if err != nil {
		return nil, fmt.Errorf("load feature parents: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id int64
		var parent sql.NullInt64
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, err
		}
		out[formatID(id)] = formatNullID(parent)
	}
	return out, rows.Err()
}

func scanFeature(s scanner) (*entity.Feature, error) {
	var (
		f                  entity.Feature
		id, projectID      int64
		parent             sql.NullInt64
		status, priority   string
		created, updatedAt string
	)
	if err := s.Scan(&id, &projectID, &parent, &f.Title, &f.Description, &status, &priority,
		&f.AssigneeID, &f.Category, &created, &updatedAt); err != nil {
		return nil, err
	}
	f.ID = formatID(id)
	f.ProjectID = formatID(projectID)
	f.SetParent(formatNullID(parent))
	f.Status = entity.Status(strings.TrimSpace(status))
	f.Priority = entity.Priority(strings.TrimSpace(priority))
	f.Tags = []string{}
	var err error
	if f.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}
