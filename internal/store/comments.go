package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"countyportal/internal/models"
)

const commentColumns = `c.id,c.project_id,c.parent_comment_id,c.citizen_name,c.citizen_email,c.message,c.status,c.filter_reason,c.filtering_metadata,c.admin_response,c.responded_by,c.responded_at,c.user_ip,c.user_agent,c.created_at,c.updated_at`

// visibleClause selects what the public sees: published comments plus the
// viewer's own comments still waiting for review.
const visibleClause = `(c.status IN ('approved','responded') OR (c.status='pending' AND c.user_ip=?))`

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(row scanner, extra ...any) (models.Comment, error) {
	var c models.Comment
	var parent, respondedBy sql.NullInt64
	var email, metadata, response, ip, ua sql.NullString
	var respondedAt sql.NullTime
	dest := []any{&c.ID, &c.ProjectID, &parent, &c.CitizenName, &email, &c.Message, &c.Status, &c.FilterReason,
		&metadata, &response, &respondedBy, &respondedAt, &ip, &ua, &c.CreatedAt, &c.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return models.Comment{}, err
	}
	if parent.Valid && parent.Int64 > 0 {
		c.ParentID = &parent.Int64
	}
	c.CitizenEmail = strPtr(email)
	c.FilteringMetadata = metadata.String
	c.AdminResponse = strPtr(response)
	c.RespondedBy = intPtr(respondedBy)
	c.RespondedAt = timePtr(respondedAt)
	c.UserIP = ip.String
	c.UserAgent = ua.String
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func (s *Store) CreateComment(ctx context.Context, c models.Comment) (int64, error) {
	created := dbTime(c.CreatedAt)
	return s.insert(ctx,
		`INSERT INTO comments(project_id,parent_comment_id,citizen_name,citizen_email,message,status,filter_reason,filtering_metadata,user_ip,user_agent,created_at,updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ProjectID, nullInt(c.ParentID), c.CitizenName, nullString(c.CitizenEmail), c.Message, string(c.Status),
		c.FilterReason, c.FilteringMetadata, c.UserIP, c.UserAgent, created, created,
	)
}

func (s *Store) GetComment(ctx context.Context, id int64) (models.Comment, error) {
	c, err := scanComment(s.queryRow(ctx, `SELECT `+commentColumns+` FROM comments c WHERE c.id=?`, id))
	if err == sql.ErrNoRows {
		return models.Comment{}, ErrNotFound
	}
	return c, err
}

// CountRecentDuplicates counts comments with the same project, author name
// and message created at or after since.
func (s *Store) CountRecentDuplicates(ctx context.Context, projectID int64, name, message string, since time.Time) (int, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(1) FROM comments WHERE project_id=? AND citizen_name=? AND message=? AND created_at >= ?`,
		projectID, name, message, dbTime(since),
	).Scan(&n)
	return n, err
}

func (s *Store) UpdateCommentStatus(ctx context.Context, id int64, status models.CommentStatus, at time.Time) error {
	return s.execOne(ctx, `UPDATE comments SET status=?, updated_at=? WHERE id=?`, string(status), dbTime(at), id)
}

func (s *Store) RespondToComment(ctx context.Context, id, adminID int64, response string, at time.Time) error {
	at = dbTime(at)
	return s.execOne(ctx,
		`UPDATE comments SET admin_response=?, status=?, responded_by=?, responded_at=?, updated_at=? WHERE id=?`,
		response, string(models.CommentResponded), adminID, at, at, id,
	)
}

// DeleteComment removes the comment and its direct replies.
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM comments WHERE parent_comment_id=?`), id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM comments WHERE id=?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// ListComments is the moderation listing, newest first.
func (s *Store) ListComments(ctx context.Context, q models.CommentQuery) ([]models.Comment, int, error) {
	var where []string
	var args []any
	if q.Status != "" {
		where = append(where, "c.status=?")
		args = append(args, q.Status)
	}
	if q.ProjectID > 0 {
		where = append(where, "c.project_id=?")
		args = append(args, q.ProjectID)
	}
	if strings.TrimSpace(q.Q) != "" {
		like := likePattern(strings.ToLower(q.Q))
		where = append(where, "(LOWER(c.citizen_name) LIKE ? OR LOWER(c.message) LIKE ? OR LOWER(COALESCE(c.citizen_email,'')) LIKE ?)")
		args = append(args, like, like, like)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(1) FROM comments c`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := q.Limit, q.Offset
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.query(ctx,
		`SELECT `+commentColumns+`, COALESCE(p.project_name,'') FROM comments c LEFT JOIN projects p ON p.id=c.project_id`+cond+
			` ORDER BY c.created_at DESC, c.id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]models.Comment, 0, limit)
	for rows.Next() {
		var projectName string
		c, err := scanComment(rows, &projectName)
		if err != nil {
			return nil, 0, err
		}
		c.ProjectName = projectName
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *Store) collect(ctx context.Context, query string, args ...any) ([]models.Comment, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListVisibleTopLevel returns root comments of a project, newest first.
func (s *Store) ListVisibleTopLevel(ctx context.Context, projectID int64, viewerIP string) ([]models.Comment, error) {
	return s.collect(ctx,
		`SELECT `+commentColumns+` FROM comments c WHERE c.project_id=? AND (c.parent_comment_id IS NULL OR c.parent_comment_id=0) AND `+visibleClause+
			` ORDER BY c.created_at DESC, c.id DESC`,
		projectID, viewerIP,
	)
}

// ListVisibleReplies returns the first limit replies, oldest first.
func (s *Store) ListVisibleReplies(ctx context.Context, parentID int64, viewerIP string, limit int) ([]models.Comment, error) {
	return s.collect(ctx,
		`SELECT `+commentColumns+` FROM comments c WHERE c.parent_comment_id=? AND `+visibleClause+
			` ORDER BY c.created_at ASC, c.id ASC LIMIT ?`,
		parentID, viewerIP, limit,
	)
}

func (s *Store) CountVisibleReplies(ctx context.Context, parentID int64, viewerIP string) (int, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(1) FROM comments c WHERE c.parent_comment_id=? AND `+visibleClause,
		parentID, viewerIP,
	).Scan(&n)
	return n, err
}

// FilterStats groups comments created since the given time by the
// filter reason recorded at submission.
func (s *Store) FilterStats(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.query(ctx,
		`SELECT filter_reason, COUNT(1) FROM comments WHERE created_at >= ? AND filter_reason <> '' GROUP BY filter_reason`,
		dbTime(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}
