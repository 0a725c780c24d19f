package query

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/source"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

// QueryResult is the outcome of an ad-hoc or pipeline query.
type QueryResult struct {
	Columns     []string         `json:"columns"`
	Rows        []map[string]any `json:"rows"`
	TotalRows   int64            `json:"total_rows"`
	ExecutionMs int64            `json:"execution_ms"`
}

// PreviewResult pairs a page of rows with the discovered schema.
type PreviewResult struct {
	Rows      []map[string]any      `json:"rows"`
	Schema    []model.DatasetColumn `json:"schema"`
	RowsShown int                   `json:"rows_shown"`
	TotalRows int64                 `json:"total_rows"`
}

// Engine executes queries against external sources through the driver
// registry. It opens a fresh connection per call and always closes it.
type Engine struct {
	registry *source.Registry
	logger   *logrus.Logger
}

func NewEngine(registry *source.Registry, logger *logrus.Logger) *Engine {
	return &Engine{registry: registry, logger: logger}
}

// ExecuteQuery runs query against the source and reports wall-clock execution
// time in milliseconds.
func (e *Engine) ExecuteQuery(
	ctx context.Context, src *model.DataSource, table, query string, args ...any,
) (*QueryResult, *contract.Error) {
	conn, cErr := e.open(ctx, src)
	if cErr != nil {
		return nil, cErr
	}
	defer conn.Close()

	start := time.Now()
	result, err := conn.Query(ctx, table, query, args...)
	if err != nil {
		return nil, contract.NewErrorWith(
			contract.ErrorCodeExecutionFailure,
			fmt.Sprintf("query against %q failed", src.Name),
			err,
		)
	}

	return &QueryResult{
		Columns:     result.Columns,
		Rows:        result.Rows,
		TotalRows:   int64(len(result.Rows)),
		ExecutionMs: time.Since(start).Milliseconds(),
	}, nil
}

// GetPreview fetches up to limit rows together with the table schema and the
// total row count.
func (e *Engine) GetPreview(
	ctx context.Context, src *model.DataSource, table string, limit int,
) (*PreviewResult, *contract.Error) {
	driver, cErr := e.registry.Get(src.Type)
	if cErr != nil {
		return nil, cErr
	}

	schema, err := driver.DiscoverSchema(ctx, src, table)
	if err != nil {
		return nil, contract.NewErrorWith(
			contract.ErrorCodeExecutionFailure,
			fmt.Sprintf("schema discovery for %s failed", table),
			err,
		)
	}

	conn, cErr := e.open(ctx, src)
	if cErr != nil {
		return nil, cErr
	}
	defer conn.Close()

	result, err := conn.Preview(ctx, table, limit)
	if err != nil {
		return nil, contract.NewErrorWith(
			contract.ErrorCodeExecutionFailure,
			fmt.Sprintf("preview of %s failed", table),
			err,
		)
	}

	return &PreviewResult{
		Rows:      result.Rows,
		Schema:    schema,
		RowsShown: len(result.Rows),
		TotalRows: e.GetRowCount(ctx, src, table),
	}, nil
}

// GetRowCount returns the table row count, or zero when the count cannot be
// obtained. Counting is advisory and never fails a caller.
func (e *Engine) GetRowCount(ctx context.Context, src *model.DataSource, table string) int64 {
	conn, cErr := e.open(ctx, src)
	if cErr != nil {
		e.logger.WithError(cErr).Warnf("Row count for %s unavailable", table)
		return 0
	}
	defer conn.Close()

	count, err := conn.Count(ctx, table)
	if err != nil {
		e.logger.WithError(err).Warnf("Row count for %s unavailable", table)
		return 0
	}

	return count
}

func (e *Engine) open(ctx context.Context, src *model.DataSource) (source.Conn, *contract.Error) {
	driver, cErr := e.registry.Get(src.Type)
	if cErr != nil {
		return nil, cErr
	}

	conn, err := driver.Open(ctx, src)
	if err != nil {
		return nil, contract.NewErrorWith(
			contract.ErrorCodeConnectivityFailure,
			fmt.Sprintf("could not connect to %q", src.Name),
			err,
		)
	}

	return conn, nil
}
