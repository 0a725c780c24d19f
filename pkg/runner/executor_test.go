package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/query"
	"github.com/dataplatform/dataplatform/pkg/source"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
	"github.com/dataplatform/dataplatform/pkg/utils"
)

type fakeStore struct {
	run        *model.PipelineRun
	getRunErr  *contract.Error
	lastRun    *model.PipelineRun
	lastRunErr *contract.Error

	lastSucceededCalls [][2]string
	updatedRun         *model.PipelineRun
	updateCalls        int
}

func (s *fakeStore) CreateRun(*model.PipelineRun) *contract.Error { return nil }

func (s *fakeStore) UpdateRun(run *model.PipelineRun) *contract.Error {
	s.updatedRun = run
	s.updateCalls++
	return nil
}

func (s *fakeStore) GetRunForExecution(string) (*model.PipelineRun, *contract.Error) {
	return s.run, s.getRunErr
}

func (s *fakeStore) LastSucceededRun(pipelineID, excludeRunID string) (*model.PipelineRun, *contract.Error) {
	s.lastSucceededCalls = append(s.lastSucceededCalls, [2]string{pipelineID, excludeRunID})
	return s.lastRun, s.lastRunErr
}

func (s *fakeStore) ListRuns(string, int) ([]model.PipelineRun, *contract.Error) {
	return nil, nil
}

func (s *fakeStore) GetPipeline(string) (*model.Pipeline, *contract.Error) { return nil, nil }

func (s *fakeStore) ListScheduledPipelines() ([]model.Pipeline, *contract.Error) {
	return nil, nil
}

func (s *fakeStore) SetPipelineLastRun(string, time.Time) *contract.Error { return nil }

func (s *fakeStore) GetDataSource(string) (*model.DataSource, *contract.Error) {
	return nil, nil
}

func (s *fakeStore) SetDataSourceStatus(string, model.DataSourceStatus, time.Time) *contract.Error {
	return nil
}

func (s *fakeStore) GetDataset(string) (*model.Dataset, *contract.Error) { return nil, nil }

func (s *fakeStore) SyncDataset(string, []model.DatasetColumn, int64, time.Time) *contract.Error {
	return nil
}

func (s *fakeStore) CreateLineage(*model.DataLineage) *contract.Error { return nil }

func (s *fakeStore) GetLineageForDataset(string) ([]model.DataLineage, []model.DataLineage, *contract.Error) {
	return nil, nil, nil
}

type fakeConn struct {
	result   *source.Result
	queryErr error

	lastTable string
	lastQuery string
	lastArgs  []any

	writeMode    source.WriteMode
	writeKeys    []string
	writeRows    []map[string]any
	writtenCount int64
	writeErr     error
}

func (c *fakeConn) Query(_ context.Context, table, q string, args ...any) (*source.Result, error) {
	c.lastTable, c.lastQuery, c.lastArgs = table, q, args
	return c.result, c.queryErr
}

func (c *fakeConn) Preview(context.Context, string, int) (*source.Result, error) {
	return c.result, c.queryErr
}

func (c *fakeConn) Count(context.Context, string) (int64, error) { return 0, nil }

func (c *fakeConn) Write(
	_ context.Context, _ string, _ []string, rows []map[string]any,
	keyColumns []string, mode source.WriteMode,
) (int64, error) {
	c.writeMode, c.writeKeys, c.writeRows = mode, keyColumns, rows
	if c.writeErr != nil {
		return c.writtenCount, c.writeErr
	}
	return int64(len(rows)), nil
}

func (c *fakeConn) Close() error { return nil }

type fakeDriver struct {
	conn *fakeConn
}

func (d *fakeDriver) TestConnection(context.Context, *model.DataSource) *source.TestResult {
	return &source.TestResult{Success: true}
}

func (d *fakeDriver) DiscoverTables(context.Context, *model.DataSource) ([]string, error) {
	return nil, nil
}

func (d *fakeDriver) DiscoverSchema(
	context.Context, *model.DataSource, string,
) ([]model.DatasetColumn, error) {
	return nil, nil
}

func (d *fakeDriver) Open(context.Context, *model.DataSource) (source.Conn, error) {
	return d.conn, nil
}

func newRun(pipelineType model.PipelineType) *model.PipelineRun {
	src := &model.DataSource{
		ID:   "ds-1",
		Name: "orders-db",
		Type: model.DataSourceTypePostgreSQL,
	}

	return &model.PipelineRun{
		ID:         "run-1",
		PipelineID: "pipe-1",
		StartedAt:  time.Now().UTC(),
		Status:     model.RunStatusRunning,
		Pipeline: &model.Pipeline{
			ID:              "pipe-1",
			Name:            "orders-load",
			Type:            pipelineType,
			SourceDatasetID: "set-1",
			SourceDataset: &model.Dataset{
				ID:         "set-1",
				Name:       "orders",
				TableName:  "orders",
				DataSource: src,
			},
		},
	}
}

func newExecutor(store *fakeStore, conn *fakeConn) *Executor {
	logger := logrus.New()
	registry := source.NewRegistry(logger)
	registry.Register(model.DataSourceTypePostgreSQL, &fakeDriver{conn: conn})

	engine := query.NewEngine(registry, logger)
	writer := NewTargetWriter(registry, logger)

	return NewExecutor(store, engine, writer, logger)
}

func TestExecuteBatchRun(t *testing.T) {
	conn := &fakeConn{result: &source.Result{
		Columns: []string{"id", "total"},
		Rows:    []map[string]any{{"id": 1, "total": 10.0}, {"id": 2, "total": 20.0}},
	}}
	store := &fakeStore{run: newRun(model.PipelineTypeBatch)}

	newExecutor(store, conn).Execute(context.Background(), "run-1")

	require.Equal(t, 1, store.updateCalls)
	run := store.updatedRun
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.Equal(t, int64(2), run.RowsProcessed)
	assert.NotNil(t, run.CompletedAt)
	assert.Nil(t, run.ErrorMessage)
	assert.Equal(t, 2, run.Metrics[model.MetricColumnsCount])
	assert.Contains(t, run.Metrics, model.MetricQueryExecutionTimeMs)
	assert.Equal(t, "SELECT * FROM orders", conn.lastQuery)
	assert.Empty(t, store.lastSucceededCalls)
}

func TestExecuteFullRefreshUsesConfiguredQuery(t *testing.T) {
	conn := &fakeConn{result: &source.Result{Columns: []string{"id"}}}
	store := &fakeStore{run: newRun(model.PipelineTypeFullRefresh)}
	store.run.Pipeline.SourceQuery = "SELECT id FROM orders WHERE region = 'EU'"

	newExecutor(store, conn).Execute(context.Background(), "run-1")

	assert.Equal(t, "SELECT id FROM orders WHERE region = 'EU'", conn.lastQuery)
	assert.Equal(t, model.RunStatusSucceeded, store.updatedRun.Status)
}

func TestExecuteIncrementalFirstLoad(t *testing.T) {
	conn := &fakeConn{result: &source.Result{Columns: []string{"id"}}}
	store := &fakeStore{run: newRun(model.PipelineTypeIncremental)}

	newExecutor(store, conn).Execute(context.Background(), "run-1")

	require.Equal(t, [][2]string{{"pipe-1", "run-1"}}, store.lastSucceededCalls)
	assert.Equal(t, "SELECT * FROM orders WHERE updated_at > ?", conn.lastQuery)
	require.Len(t, conn.lastArgs, 1)
	assert.Equal(t, time.Time{}, conn.lastArgs[0])

	run := store.updatedRun
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.Equal(t, true, run.Metrics[model.MetricIncremental])
	assert.Equal(t, time.Time{}.UTC().Format(time.RFC3339), run.Metrics[model.MetricWatermark])
}

func TestExecuteIncrementalUsesLastSucceededRun(t *testing.T) {
	watermark := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	conn := &fakeConn{result: &source.Result{Columns: []string{"id"}}}
	store := &fakeStore{
		run:     newRun(model.PipelineTypeIncremental),
		lastRun: &model.PipelineRun{ID: "run-0", CompletedAt: &watermark},
	}
	store.run.Pipeline.SourceQuery = "SELECT * FROM orders WHERE region = 'EU'"

	newExecutor(store, conn).Execute(context.Background(), "run-1")

	assert.Equal(t, "SELECT * FROM orders WHERE region = 'EU' AND updated_at > ?", conn.lastQuery)
	assert.Equal(t, []any{watermark}, conn.lastArgs)
	assert.Equal(t, "2024-05-01T10:00:00Z", store.updatedRun.Metrics[model.MetricWatermark])
}

func TestExecuteStreamingNotImplemented(t *testing.T) {
	store := &fakeStore{run: newRun(model.PipelineTypeStreaming)}

	newExecutor(store, &fakeConn{}).Execute(context.Background(), "run-1")

	require.Equal(t, 1, store.updateCalls)
	run := store.updatedRun
	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorMessage)
	assert.Contains(t, *run.ErrorMessage, "not implemented")
}

func TestExecuteUnknownPipelineType(t *testing.T) {
	store := &fakeStore{run: newRun(model.PipelineType("REVERSE_ETL"))}

	newExecutor(store, &fakeConn{}).Execute(context.Background(), "run-1")

	run := store.updatedRun
	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorMessage)
	assert.Contains(t, *run.ErrorMessage, "REVERSE_ETL")
}

func TestExecuteUnknownRunIsDropped(t *testing.T) {
	store := &fakeStore{
		getRunErr: contract.NewError(contract.ErrorCodeNotFound, "run not found"),
	}

	newExecutor(store, &fakeConn{}).Execute(context.Background(), "missing")

	assert.Equal(t, 0, store.updateCalls)
}

func TestExecuteQueryFailure(t *testing.T) {
	conn := &fakeConn{queryErr: errors.New("relation does not exist")}
	store := &fakeStore{run: newRun(model.PipelineTypeBatch)}

	newExecutor(store, conn).Execute(context.Background(), "run-1")

	require.Equal(t, 1, store.updateCalls)
	run := store.updatedRun
	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorMessage)
	assert.Contains(t, *run.ErrorMessage, "relation does not exist")
	assert.NotNil(t, run.CompletedAt)
}

func withTarget(run *model.PipelineRun, schema []model.DatasetColumn) {
	run.Pipeline.TargetDatasetID = utils.PtrTo("set-2")
	run.Pipeline.TargetDataset = &model.Dataset{
		ID:        "set-2",
		Name:      "orders_staging",
		TableName: "stg_orders",
		Schema:    schema,
		DataSource: &model.DataSource{
			ID:   "ds-2",
			Name: "warehouse",
			Type: model.DataSourceTypePostgreSQL,
		},
	}
}

func TestExecuteWritesTargetAppend(t *testing.T) {
	conn := &fakeConn{result: &source.Result{
		Columns: []string{"id"},
		Rows:    []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}},
	}}
	store := &fakeStore{run: newRun(model.PipelineTypeBatch)}
	withTarget(store.run, nil)

	newExecutor(store, conn).Execute(context.Background(), "run-1")

	run := store.updatedRun
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.Equal(t, source.WriteModeAppend, conn.writeMode)
	assert.Equal(t, int64(3), run.Metrics[model.MetricRowsWritten])
	assert.Equal(t, "orders_staging", run.Metrics[model.MetricTargetDataset])
}

func TestExecuteWritesTargetUpsertOnIncremental(t *testing.T) {
	conn := &fakeConn{result: &source.Result{
		Columns: []string{"id"},
		Rows:    []map[string]any{{"id": 1}},
	}}
	store := &fakeStore{run: newRun(model.PipelineTypeIncremental)}
	withTarget(store.run, []model.DatasetColumn{{Name: "id", IsPrimaryKey: true}})

	newExecutor(store, conn).Execute(context.Background(), "run-1")

	assert.Equal(t, source.WriteModeUpsert, conn.writeMode)
	assert.Equal(t, []string{"id"}, conn.writeKeys)
	assert.Equal(t, model.RunStatusSucceeded, store.updatedRun.Status)
}

func TestExecuteTargetWriteFailure(t *testing.T) {
	conn := &fakeConn{
		result: &source.Result{
			Columns: []string{"id"},
			Rows:    []map[string]any{{"id": 1}, {"id": 2}},
		},
		writeErr:     errors.New("disk full"),
		writtenCount: 1,
	}
	store := &fakeStore{run: newRun(model.PipelineTypeBatch)}
	withTarget(store.run, nil)

	newExecutor(store, conn).Execute(context.Background(), "run-1")

	run := store.updatedRun
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, int64(1), run.RowsFailed)
	require.NotNil(t, run.ErrorMessage)
	assert.Contains(t, *run.ErrorMessage, "disk full")
}
