package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"countyportal/internal/db"
)

var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("conflict")

type Store struct {
	db      *sql.DB
	dialect db.Dialect
}

// New wraps conn for the given driver name ("sqlite", "mysql" or "pgx").
func New(conn *sql.DB, driver string) *Store {
	return &Store{db: conn, dialect: db.Dialect(driver)}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

// insert runs an INSERT and returns the new row id.
func (s *Store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if s.dialect.ReturnsID() {
		var id int64
		err := s.queryRow(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, mapWriteErr(err)
	}
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, mapWriteErr(err)
	}
	return res.LastInsertId()
}

// execOne fails with ErrNotFound when no row matched.
func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return mapWriteErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "duplicate key") {
		return ErrConflict
	}
	return err
}

// dbTime stores instants in UTC at second precision so that text-backed
// SQLite timestamps compare in order.
func dbTime(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func likePattern(q string) string {
	return "%" + strings.TrimSpace(q) + "%"
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.queryRow(ctx, `SELECT setting_value FROM settings WHERE setting_key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) UpsertSetting(ctx context.Context, key, value string) error {
	q := s.dialect.Upsert("settings",
		[]string{"setting_key", "setting_value", "updated_at"}, "setting_key",
		[]string{"setting_value", "updated_at"})
	_, err := s.exec(ctx, q, key, value, dbTime(time.Now()))
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
