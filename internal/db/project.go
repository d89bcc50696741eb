package db

import (
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/featureplus/internal/entity"
)

const projectColumns = `id, name, description, status, owner_id, config, created_at, updated_at`

// InsertProject stores p and assigns its id.
func (t *TxOps) InsertProject(p *entity.Project) error {
	cfg, err := encodeJSON(p.Config, "{}")
	if err != nil {
		return fmt.Errorf("encode project config: %w", err)
	}
	var id int64
	err = t.QueryRow(`
		INSERT INTO projects (name, description, status, owner_id, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		p.Name, p.Description, p.Status, p.OwnerID, cfg,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	p.ID = formatID(id)
	return nil
}

// UpdateProject overwrites the stored row of p.
func (t *TxOps) UpdateProject(p *entity.Project) error {
	id, err := rowID(p.Key())
	if err != nil {
		return err
	}
	cfg, err := encodeJSON(p.Config, "{}")
	if err != nil {
		return fmt.Errorf("encode project config: %w", err)
	}
	res, err := t.Exec(`
		UPDATE projects SET name = ?, description = ?, status = ?, owner_id = ?, config = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Status, p.OwnerID, cfg, formatTime(p.UpdatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return affected(res, p.Key())
}

// GetProject reads one project.
func (t *TxOps) GetProject(projectID string) (*entity.Project, error) {
	key := entity.ProjectKey(projectID)
	id, err := rowID(key)
	if err != nil {
		return nil, err
	}
	p, err := scanProject(t.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, key)
	}
	return p, nil
}

// ListProjects returns every project ordered by id.
func (t *TxOps) ListProjects() ([]*entity.Project, error) {
	rows, err := t.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*entity.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProject removes a project row.
func (t *TxOps) DeleteProject(projectID string) error {
	key := entity.ProjectKey(projectID)
	id, err := rowID(key)
	if err != nil {
		return err
	}
	res, err := t.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return affected(res, key)
}

func scanProject(s scanner) (*entity.Project, error) {
	var (
		p                  entity.Project
		id                 int64
		cfg                string
		created, updatedAt string
	)
	if err := s.Scan(&id, &p.Name, &p.Description, &p.Status, &p.OwnerID, &cfg, &created, &updatedAt); err != nil {
		return nil, err
	}
	p.ID = formatID(id)
	if cfg != "" {
		if err := json.Unmarshal([]byte(cfg), &p.Config); err != nil {
			return nil, fmt.Errorf("decode config of project %d: %w", id, err)
		}
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
