package store

import (
	"context"
	"database/sql"
	"strings"

	"countyportal/internal/models"
)

func (s *Store) InsertActivity(ctx context.Context, e models.ActivityEntry) error {
	_, err := s.insert(ctx,
		`INSERT INTO admin_activity_log(activity_type,activity_description,admin_id,target_type,target_id,additional_data,created_at) VALUES(?,?,?,?,?,?,?)`,
		e.ActivityType, e.Description, nullInt(e.AdminID), e.TargetType, nullInt(e.TargetID), e.AdditionalData, dbTime(e.CreatedAt),
	)
	return err
}

func (s *Store) ListActivity(ctx context.Context, q models.ActivityQuery) ([]models.ActivityEntry, int, error) {
	cond := ""
	var args []any
	if t := strings.TrimSpace(q.Type); t != "" {
		cond = " WHERE activity_type=?"
		args = append(args, t)
	}
	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(1) FROM admin_activity_log`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := s.query(ctx,
		`SELECT id,activity_type,activity_description,admin_id,target_type,target_id,additional_data,created_at FROM admin_activity_log`+cond+
			` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]models.ActivityEntry, 0, limit)
	for rows.Next() {
		var e models.ActivityEntry
		var adminID, targetID sql.NullInt64
		var targetType, data sql.NullString
		if err := rows.Scan(&e.ID, &e.ActivityType, &e.Description, &adminID, &targetType, &targetID, &data, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.AdminID = intPtr(adminID)
		e.TargetID = intPtr(targetID)
		e.TargetType = targetType.String
		e.AdditionalData = data.String
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, total, rows.Err()
}
