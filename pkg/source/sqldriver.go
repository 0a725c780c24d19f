package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

// commandTimeout bounds every statement issued against an external relational
// source.
const commandTimeout = 30 * time.Second

const pingTimeout = 10 * time.Second

// sqlDialect captures the per-backend SQL differences. All queries use "?"
// placeholders; rebind converts them to the backend's positional style.
type sqlDialect struct {
	driverName   string
	versionQuery string
	tablesQuery  string
	columnsQuery string
	previewQuery func(table string, limit int) string
	rebind       func(query string) string
	upsertSuffix func(table string, columns, keyColumns []string) (string, error)
}

// sqlDriver implements Driver for relational sources on top of database/sql.
type sqlDriver struct {
	dialect sqlDialect
	logger  *logrus.Logger
}

func newSQLDriver(dialect sqlDialect, logger *logrus.Logger) *sqlDriver {
	return &sqlDriver{dialect: dialect, logger: logger}
}

func (d *sqlDriver) open(src *model.DataSource) (*sql.DB, error) {
	db, err := sql.Open(d.dialect.driverName, src.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.dialect.driverName, err)
	}

	return db, nil
}

// TestConnection opens a connection, issues the dialect's version query and
// always closes before returning. Failures become a result, never an error.
func (d *sqlDriver) TestConnection(ctx context.Context, src *model.DataSource) *TestResult {
	start := time.Now()

	fail := func(err error) *TestResult {
		d.logger.WithError(err).Warnf("Connection test failed for %q", src.Name)

		return &TestResult{
			Success:   false,
			Message:   err.Error(),
			ElapsedMs: time.Since(start).Milliseconds(),
		}
	}

	db, err := d.open(src)
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fail(err)
	}

	var version string
	if err := db.QueryRowContext(pingCtx, d.dialect.versionQuery).Scan(&version); err != nil {
		return fail(err)
	}

	return &TestResult{
		Success:   true,
		Message:   "connection successful",
		Details:   version,
		ElapsedMs: time.Since(start).Milliseconds(),
	}
}

func (d *sqlDriver) DiscoverTables(ctx context.Context, src *model.DataSource) ([]string, error) {
	db, err := d.open(src)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	queryCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, d.dialect.tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}

	return tables, rows.Err()
}

func (d *sqlDriver) DiscoverSchema(
	ctx context.Context, src *model.DataSource, table string,
) ([]model.DatasetColumn, error) {
	db, err := d.open(src)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	queryCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, d.dialect.rebind(d.dialect.columnsQuery), table)
	if err != nil {
		return nil, fmt.Errorf("discover schema of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []model.DatasetColumn
	for rows.Next() {
		var (
			name, dataType, nullable string
			isPrimaryKey             bool
		)
		if err := rows.Scan(&name, &dataType, &nullable, &isPrimaryKey); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, model.DatasetColumn{
			Name:         name,
			DataType:     dataType,
			IsNullable:   strings.EqualFold(nullable, "YES"),
			IsPrimaryKey: isPrimaryKey,
		})
	}

	return columns, rows.Err()
}

func (d *sqlDriver) Open(ctx context.Context, src *model.DataSource) (Conn, error) {
	db, err := d.open(src)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", d.dialect.driverName, err)
	}

	return &sqlConn{db: db, dialect: d.dialect}, nil
}

// sqlConn is a live relational connection.
type sqlConn struct {
	db      *sql.DB
	dialect sqlDialect
}

func (c *sqlConn) Query(ctx context.Context, _, query string, args ...any) (*Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(queryCtx, c.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}

	return result, rows.Err()
}

func (c *sqlConn) Preview(ctx context.Context, table string, limit int) (*Result, error) {
	return c.Query(ctx, table, c.dialect.previewQuery(table, limit))
}

func (c *sqlConn) Count(ctx context.Context, table string) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var count int64
	err := c.db.QueryRowContext(queryCtx, "SELECT COUNT(*) FROM "+table).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}

	return count, nil
}

const writeBatchSize = 500

func (c *sqlConn) Write(
	ctx context.Context, table string, columns []string, rows []map[string]any,
	keyColumns []string, mode WriteMode,
) (int64, error) {
	if len(rows) == 0 || len(columns) == 0 {
		return 0, nil
	}

	var suffix string
	if mode == WriteModeUpsert {
		if c.dialect.upsertSuffix == nil {
			return 0, contract.NewError(
				contract.ErrorCodeNotImplemented,
				fmt.Sprintf("upsert writes not implemented for driver %s", c.dialect.driverName),
			)
		}
		var err error
		suffix, err = c.dialect.upsertSuffix(table, columns, keyColumns)
		if err != nil {
			return 0, err
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(writeCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var written int64
	for start := 0; start < len(rows); start += writeBatchSize {
		end := start + writeBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		stmt, args := buildInsert(table, columns, rows[start:end], suffix)
		result, err := tx.ExecContext(writeCtx, c.dialect.rebind(stmt), args...)
		if err != nil {
			return written, fmt.Errorf("write batch: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil {
			written += affected
		} else {
			written += int64(end - start)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return written, nil
}

func buildInsert(table string, columns []string, rows []map[string]any, suffix string) (string, []any) {
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	tuples := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		tuples[i] = placeholders
		for _, column := range columns {
			args = append(args, row[column])
		}
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(tuples, ", "))
	if suffix != "" {
		stmt += " " + suffix
	}

	return stmt, args
}

func (c *sqlConn) Close() error {
	return c.db.Close()
}

// normalizeValue converts driver-native values into a uniform null-safe
// representation.
func normalizeValue(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(value)
	default:
		return value
	}
}

// rebindPositional rewrites "?" placeholders into prefix-numbered ones
// ($1, @p1, ...). Quoted text is left untouched.
func rebindPositional(prefix string) func(string) string {
	return func(query string) string {
		var b strings.Builder
		b.Grow(len(query) + 8)

		n := 0
		inQuote := false
		for _, r := range query {
			switch {
			case r == '\'':
				inQuote = !inQuote
				b.WriteRune(r)
			case r == '?' && !inQuote:
				n++
				fmt.Fprintf(&b, "%s%d", prefix, n)
			default:
				b.WriteRune(r)
			}
		}

		return b.String()
	}
}

func rebindNone(query string) string {
	return query
}
