package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/featureplus/internal/entity"
)

const taskColumns = `t.id, t.feature_id, t.sub_feature_id, t.task_type, t.task_name, t.description,
	t.attachments, t.comments, t.created_by_user, t.created_at, t.updated_at`

// InsertTask stores task and assigns its id.
func (t *TxOps) InsertTask(task *entity.Task) error {
	args, err := taskArgs(task)
	if err != nil {
		return err
	}
	var id int64
	err = t.QueryRow(`
		INSERT INTO tasks (feature_id, sub_feature_id, task_type, task_name, description,
			attachments, comments, created_by_user, updated_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		append(args, formatTime(task.CreatedAt))...,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	task.ID = formatID(id)
	return nil
}

// UpdateTask overwrites the stored row of task.
func (t *TxOps) UpdateTask(task *entity.Task) error {
	id, err := rowID(task.Key())
	if err != nil {
		return err
	}
	args, err := taskArgs(task)
	if err != nil {
		return err
	}
	res, err := t.Exec(`
		UPDATE tasks SET feature_id = ?, sub_feature_id = ?, task_type = ?, task_name = ?,
			description = ?, attachments = ?, comments = ?, created_by_user = ?, updated_at = ?
		WHERE id = ?`,
		append(args, id)...,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return affected(res, task.Key())
}

// taskArgs returns the column values shared by insert and update, ending
// with updated_at.
func taskArgs(task *entity.Task) ([]any, error) {
	featureID, err := nullableID(entity.KindFeature, task.FeatureID)
	if err != nil {
		return nil, err
	}
	subFeatureID, err := nullableID(entity.KindFeature, task.SubFeatureID)
	if err != nil {
		return nil, err
	}
	attachments, err := encodeJSON(task.Attachments, "[]")
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}
	comments, err := encodeJSON(task.Comments, "[]")
	if err != nil {
		return nil, fmt.Errorf("encode comments: %w", err)
	}
	return []any{
		featureID, subFeatureID, string(task.TaskType), task.TaskName, task.Description,
		attachments, comments, task.CreatedByUser, formatTime(task.UpdatedAt),
	}, nil
}

// GetTask reads one task.
func (t *TxOps) GetTask(taskID string) (*entity.Task, error) {
	key := entity.TaskKey(taskID)
	id, err := rowID(key)
	if err != nil {
		return nil, err
	}
	task, err := scanTask(t.QueryRow(`SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id))
	if err != nil {
		return nil, notFound(err, key)
	}
	return task, nil
}

// ListTasks returns the tasks owned by features of a project, ordered by id.
func (t *TxOps) ListTasks(projectID string) ([]*entity.Task, error) {
	pid, err := rowID(entity.ProjectKey(projectID))
	if err != nil {
		return nil, nil
	}
	rows, err := t.Query(`
		SELECT `+taskColumns+`
		FROM tasks t JOIN features f ON f.id = COALESCE(t.sub_feature_id, t.feature_id)
		WHERE f.project_id = ?
		ORDER BY t.id`, pid)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*entity.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// DeleteTask removes a task row.
func (t *TxOps) DeleteTask(taskID string) error {
	key := entity.TaskKey(taskID)
	id, err := rowID(key)
	if err != nil {
		return err
	}
	res, err := t.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return affected(res, key)
}

func scanTask(s scanner) (*entity.Task, error) {
	var (
		task                  entity.Task
		id                    int64
		featureID, subFeature sql.NullInt64
		taskType              string
		attachments, comments string
		created, updatedAt    string
	)
	if err := s.Scan(&id, &featureID, &subFeature, &taskType, &task.TaskName, &task.Description,
		&attachments, &comments, &task.CreatedByUser, &created, &updatedAt); err != nil {
		return nil, err
	}
	task.ID = formatID(id)
	task.FeatureID = formatNullID(featureID)
	task.SubFeatureID = formatNullID(subFeature)
	task.TaskType = entity.TaskType(taskType)
	if err := json.Unmarshal([]byte(attachments), &task.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments of task %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(comments), &task.Comments); err != nil {
		return nil, fmt.Errorf("decode comments of task %d: %w", id, err)
	}
	var err error
	if task.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &task, nil
}
