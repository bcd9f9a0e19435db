package warehouse

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/faults"
)

//go:embed schema.sql
var schemaSQL string

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DefaultTable is the sink table name used when none is configured.
const DefaultTable = "agent_activity_log"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures an Uploader.
type Options struct {
	Driver string
	DSN    string
	Table  string
	Logger *slog.Logger
}

// Uploader delivers batches of events to the sink table.
//
// The connection is opened lazily on the first WriteBatch and reused.
// Each batch is one transaction: either every row becomes visible or none
// does. The Uploader never retries; retry policy belongs to the caller.
type Uploader struct {
	driver string
	dsn    string
	table  string
	logger *slog.Logger

	insertSQL string

	mu sync.Mutex
	db *sql.DB
}

// New validates opts and returns an Uploader. No connection is made.
func New(opts Options) (*Uploader, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.Driver != DriverSQLite && opts.Driver != DriverPostgres {
		return nil, fmt.Errorf("warehouse: unsupported driver %q", opts.Driver)
	}
	if opts.DSN == "" {
		return nil, faults.ConfigMissing("sink.dsn")
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("warehouse: invalid table name %q", opts.Table)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Uploader{
		driver:    opts.Driver,
		dsn:       opts.DSN,
		table:     opts.Table,
		logger:    opts.Logger.With("component", "warehouse"),
		insertSQL: insertStatement(opts.Driver, opts.Table),
	}, nil
}

// WriteBatch inserts events as one transaction and returns the number of
// events submitted. Rows whose (source_file, source_line) already exists
// are skipped by the sink, so redelivering a batch is harmless. Any failure rolls the whole
// batch back and is returned as a faults.KindTransientRemote error.
func (u *Uploader) WriteBatch(ctx context.Context, events []eventlog.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	rows := make([]Row, len(events))
	for i, ev := range events {
		row, err := MapRecord(ev)
		if err != nil {
			return 0, fmt.Errorf("write batch: %w", err)
		}
		rows[i] = row
	}

	db, err := u.conn(ctx)
	if err != nil {
		return 0, faults.Transient("write batch", err)
	}

	inserted, err := u.insert(ctx, db, rows)
	if err != nil {
		return 0, faults.Transient("write batch", err)
	}

	u.logger.Info("batch written", "rows", len(rows), "inserted", inserted, "duplicates", int64(len(rows))-inserted)
	return len(rows), nil
}

func (u *Uploader) insert(ctx context.Context, db *sql.DB, rows []Row) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, u.insertSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for i, row := range rows {
		res, err := stmt.ExecContext(ctx, row.values()...)
		if err != nil {
			return 0, fmt.Errorf("insert row %d (%s:%d): %w", i, row.SourceFile, row.SourceLine, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// conn returns the shared connection, opening it and applying the schema
// on first use. A failed open is not cached; the next call tries again.
func (u *Uploader) conn(ctx context.Context) (*sql.DB, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.db != nil {
		return u.db, nil
	}

	db, err := sql.Open(u.driver, u.dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", u.driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", u.driver, err)
	}

	if u.driver == DriverSQLite {
		// SQLite allows one writer at a time.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := u.applySchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	u.logger.Info("connected to sink", "driver", u.driver, "table", u.table)
	u.db = db
	return db, nil
}

// Close releases the connection. It is safe to call more than once.
func (u *Uploader) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.db == nil {
		return nil
	}
	err := u.db.Close()
	u.db = nil
	if err != nil {
		return fmt.Errorf("close sink: %w", err)
	}
	u.logger.Info("disconnected from sink")
	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates the sink table if it does not exist. Statements are
// executed one at a time since not every driver accepts several per Exec.
func (u *Uploader) applySchema(ctx context.Context, db *sql.DB) error {
	ddl := strings.ReplaceAll(schemaSQL, "{{table}}", u.table)
	for _, stmt := range splitStatements(ddl) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func insertStatement(driver, table string) string {
	placeholders := make([]string, len(Columns))
	for i := range Columns {
		if driver == DriverPostgres {
			placeholders[i] = "$" + strconv.Itoa(i+1)
		} else {
			placeholders[i] = "?"
		}
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (source_file, source_line) DO NOTHING",
		table, strings.Join(Columns, ", "), strings.Join(placeholders, ", "),
	)
}
