package store

import (
	"context"
	"database/sql"

	"countyportal/internal/models"
)

func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	var p models.Project
	err := s.queryRow(ctx,
		`SELECT id,project_name,status,progress_percentage,visibility,created_at FROM projects WHERE id=?`, id,
	).Scan(&p.ID, &p.Name, &p.Status, &p.ProgressPercentage, &p.Visibility, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Project{}, ErrNotFound
	}
	if err != nil {
		return models.Project{}, err
	}
	return p, nil
}
