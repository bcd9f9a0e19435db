// Package warehouse uploads captured events to a SQL sink table.
//
// Rows are keyed by the event's dedup fingerprint and inserted with
// ON CONFLICT DO NOTHING, so delivering a batch twice leaves one copy of
// each row. Both SQLite (mattn/go-sqlite3) and PostgreSQL (pgx stdlib)
// are supported through database/sql.
package warehouse
