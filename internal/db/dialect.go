package db

import (
	"strconv"
	"strings"
)

// Dialect names the SQL flavour behind a driver name from config.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "pgx"
)

// Rebind rewrites ? placeholders into $1..$n for Postgres. Queries in this
// module never carry a literal question mark.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ReturnsID reports whether inserts should use RETURNING id instead of
// sql.Result.LastInsertId.
func (d Dialect) ReturnsID() bool { return d == Postgres }

// Upsert builds an insert that overwrites the listed columns when the
// conflict key already exists.
func (d Dialect) Upsert(table string, cols []string, key string, update []string) string {
	ph := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	q := "INSERT INTO " + table + "(" + strings.Join(cols, ",") + ") VALUES(" + ph + ")"
	sets := make([]string, 0, len(update))
	switch d {
	case MySQL:
		for _, c := range update {
			sets = append(sets, c+"=VALUES("+c+")")
		}
		return q + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	default:
		for _, c := range update {
			sets = append(sets, c+"=excluded."+c)
		}
		return q + " ON CONFLICT(" + key + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}
}
