package source

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

// TestResult is the outcome of a connectivity test. Tests never fail with an
// error; failures are captured in the result.
type TestResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// WriteMode selects how rows are written to a target table.
type WriteMode string

const (
	WriteModeAppend WriteMode = "APPEND"
	WriteModeUpsert WriteMode = "UPSERT"
)

// Result is the normalized shape of heterogeneous query output: ordered
// field→value maps plus the column order they share.
type Result struct {
	Columns []string
	Rows    []map[string]any
}

// Conn is a live handle to an external source. The caller owns closing it.
// Query takes the table being read alongside the query text; relational
// backends ignore it, document backends use it as the collection to scan.
type Conn interface {
	Query(ctx context.Context, table, query string, args ...any) (*Result, error)
	Preview(ctx context.Context, table string, limit int) (*Result, error)
	Count(ctx context.Context, table string) (int64, error)
	Write(ctx context.Context, table string, columns []string, rows []map[string]any,
		keyColumns []string, mode WriteMode) (int64, error)
	Close() error
}

// Driver is the uniform capability surface implemented per source type.
type Driver interface {
	TestConnection(ctx context.Context, src *model.DataSource) *TestResult
	DiscoverTables(ctx context.Context, src *model.DataSource) ([]string, error)
	DiscoverSchema(ctx context.Context, src *model.DataSource, table string) ([]model.DatasetColumn, error)
	Open(ctx context.Context, src *model.DataSource) (Conn, error)
}

// declaredTypes are the source types the platform knows about, with or
// without a working driver.
var declaredTypes = map[model.DataSourceType]struct{}{
	model.DataSourceTypePostgreSQL: {},
	model.DataSourceTypeMySQL:      {},
	model.DataSourceTypeSQLServer:  {},
	model.DataSourceTypeMongoDB:    {},
	model.DataSourceTypeRestAPI:    {},
	model.DataSourceTypeS3Bucket:   {},
	model.DataSourceTypeAzureBlob:  {},
	model.DataSourceTypeKafka:      {},
	model.DataSourceTypeCSV:        {},
	model.DataSourceTypeSalesforce: {},
}

// Registry is the lookup table of drivers by source type.
type Registry struct {
	drivers map[model.DataSourceType]Driver
}

// NewRegistry returns a registry with the four working drivers registered.
func NewRegistry(logger *logrus.Logger) *Registry {
	r := &Registry{drivers: map[model.DataSourceType]Driver{}}
	r.Register(model.DataSourceTypePostgreSQL, newSQLDriver(postgresDialect, logger))
	r.Register(model.DataSourceTypeMySQL, newSQLDriver(mysqlDialect, logger))
	r.Register(model.DataSourceTypeSQLServer, newSQLDriver(sqlserverDialect, logger))
	r.Register(model.DataSourceTypeMongoDB, newMongoDriver(logger))

	return r
}

func (r *Registry) Register(t model.DataSourceType, d Driver) {
	r.drivers[t] = d
}

// Get resolves the driver for a source type. Declared types without a driver
// fail with NOT_IMPLEMENTED; unknown types fail with UNSUPPORTED_SOURCE_TYPE.
func (r *Registry) Get(t model.DataSourceType) (Driver, *contract.Error) {
	if d, ok := r.drivers[t]; ok {
		return d, nil
	}

	if _, declared := declaredTypes[t]; declared {
		return nil, contract.NewError(
			contract.ErrorCodeNotImplemented,
			fmt.Sprintf("no driver implemented for source type %s", t),
		)
	}

	return nil, contract.NewError(
		contract.ErrorCodeUnsupportedSourceType,
		fmt.Sprintf("unsupported source type %s", t),
	)
}
