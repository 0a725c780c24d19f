package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataplatform/dataplatform/pkg/config"
	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/query"
	"github.com/dataplatform/dataplatform/pkg/queue"
	"github.com/dataplatform/dataplatform/pkg/service"
	"github.com/dataplatform/dataplatform/pkg/source"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

type fakeStore struct {
	pipeline   *model.Pipeline
	dataSource *model.DataSource
	dataset    *model.Dataset
}

func (s *fakeStore) CreateRun(*model.PipelineRun) *contract.Error { return nil }

func (s *fakeStore) UpdateRun(*model.PipelineRun) *contract.Error { return nil }

func (s *fakeStore) GetRunForExecution(string) (*model.PipelineRun, *contract.Error) {
	return nil, nil
}

func (s *fakeStore) LastSucceededRun(string, string) (*model.PipelineRun, *contract.Error) {
	return nil, nil
}

func (s *fakeStore) ListRuns(string, int) ([]model.PipelineRun, *contract.Error) {
	return []model.PipelineRun{{ID: "run-1", Status: model.RunStatusSucceeded}}, nil
}

func (s *fakeStore) GetPipeline(id string) (*model.Pipeline, *contract.Error) {
	if s.pipeline == nil || s.pipeline.ID != id {
		return nil, contract.NewError(contract.ErrorCodeNotFound, "pipeline not found")
	}
	return s.pipeline, nil
}

func (s *fakeStore) ListScheduledPipelines() ([]model.Pipeline, *contract.Error) {
	return nil, nil
}

func (s *fakeStore) SetPipelineLastRun(string, time.Time) *contract.Error { return nil }

func (s *fakeStore) GetDataSource(id string) (*model.DataSource, *contract.Error) {
	if s.dataSource == nil || s.dataSource.ID != id {
		return nil, contract.NewError(contract.ErrorCodeNotFound, "data source not found")
	}
	return s.dataSource, nil
}

func (s *fakeStore) SetDataSourceStatus(string, model.DataSourceStatus, time.Time) *contract.Error {
	return nil
}

func (s *fakeStore) GetDataset(id string) (*model.Dataset, *contract.Error) {
	if s.dataset == nil || s.dataset.ID != id {
		return nil, contract.NewError(contract.ErrorCodeNotFound, "dataset not found")
	}
	return s.dataset, nil
}

func (s *fakeStore) SyncDataset(string, []model.DatasetColumn, int64, time.Time) *contract.Error {
	return nil
}

func (s *fakeStore) CreateLineage(*model.DataLineage) *contract.Error { return nil }

func (s *fakeStore) GetLineageForDataset(string) ([]model.DataLineage, []model.DataLineage, *contract.Error) {
	return nil, nil, nil
}

type fakePublisher struct {
	messages []queue.ExecutionMessage
}

func (p *fakePublisher) Publish(msg queue.ExecutionMessage) *contract.Error {
	p.messages = append(p.messages, msg)
	return nil
}

type fakeDriver struct{}

func (d *fakeDriver) TestConnection(context.Context, *model.DataSource) *source.TestResult {
	return &source.TestResult{Success: true, Message: "connection successful"}
}

func (d *fakeDriver) DiscoverTables(context.Context, *model.DataSource) ([]string, error) {
	return []string{"orders"}, nil
}

func (d *fakeDriver) DiscoverSchema(
	context.Context, *model.DataSource, string,
) ([]model.DatasetColumn, error) {
	return []model.DatasetColumn{{Name: "id", DataType: "integer"}}, nil
}

func (d *fakeDriver) Open(context.Context, *model.DataSource) (source.Conn, error) {
	return nil, nil
}

func newTestServer(store *fakeStore, publisher *fakePublisher) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry := source.NewRegistry(logger)
	registry.Register(model.DataSourceTypePostgreSQL, &fakeDriver{})
	engine := query.NewEngine(registry, logger)
	svc := service.NewPlatformService(store, registry, engine, publisher, logger)

	cfg := &config.Config{Address: "localhost:0", Version: "test"}

	return NewServer(cfg, svc, logger)
}

func doRequest(t *testing.T, srv *Server, method, target string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	resp.Body.Close()
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakePublisher{})

	resp := doRequest(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var version map[string]string
	decodeBody(t, resp, &version)
	assert.Equal(t, "test", version["version"])
}

func TestTriggerPipelineRoute(t *testing.T) {
	store := &fakeStore{pipeline: &model.Pipeline{ID: "pipe-1", Name: "orders-load"}}
	publisher := &fakePublisher{}
	srv := newTestServer(store, publisher)

	resp := doRequest(t, srv, http.MethodPost, "/api/pipelines/pipe-1/run", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var run model.PipelineRun
	decodeBody(t, resp, &run)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, "manual", publisher.messages[0].TriggeredBy)
}

func TestTriggerPipelineNotFound(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakePublisher{})

	resp := doRequest(t, srv, http.MethodPost, "/api/pipelines/missing/run", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, string(contract.ErrorCodeNotFound), body["error_code"])
}

func TestListRunsRoute(t *testing.T) {
	store := &fakeStore{pipeline: &model.Pipeline{ID: "pipe-1"}}
	srv := newTestServer(store, &fakePublisher{})

	resp := doRequest(t, srv, http.MethodGet, "/api/pipelines/pipe-1/runs?limit=5", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string][]model.PipelineRun
	decodeBody(t, resp, &body)
	require.Len(t, body["runs"], 1)
}

func TestDataSourceTestRoute(t *testing.T) {
	store := &fakeStore{dataSource: &model.DataSource{
		ID: "ds-1", Type: model.DataSourceTypePostgreSQL,
	}}
	srv := newTestServer(store, &fakePublisher{})

	resp := doRequest(t, srv, http.MethodPost, "/api/datasources/ds-1/test", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result source.TestResult
	decodeBody(t, resp, &result)
	assert.True(t, result.Success)
}

func TestDataSourceTestUnimplementedType(t *testing.T) {
	store := &fakeStore{dataSource: &model.DataSource{
		ID: "ds-1", Type: model.DataSourceTypeKafka,
	}}
	srv := newTestServer(store, &fakePublisher{})

	resp := doRequest(t, srv, http.MethodPost, "/api/datasources/ds-1/test", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestDiscoverTablesRoute(t *testing.T) {
	store := &fakeStore{dataSource: &model.DataSource{
		ID: "ds-1", Type: model.DataSourceTypePostgreSQL,
	}}
	srv := newTestServer(store, &fakePublisher{})

	resp := doRequest(t, srv, http.MethodGet, "/api/datasources/ds-1/tables", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string][]string
	decodeBody(t, resp, &body)
	assert.Equal(t, []string{"orders"}, body["tables"])
}

func TestQueryRouteValidation(t *testing.T) {
	store := &fakeStore{dataSource: &model.DataSource{
		ID: "ds-1", Type: model.DataSourceTypePostgreSQL,
	}}
	srv := newTestServer(store, &fakePublisher{})

	resp := doRequest(t, srv, http.MethodPost, "/api/datasources/ds-1/query",
		map[string]string{"query": "SELECT 1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, string(contract.ErrorCodeInvalidParameterValue), body["error_code"])
	assert.Contains(t, body["message"], "Table")
}

func TestPreviewLimitValidation(t *testing.T) {
	store := &fakeStore{dataset: &model.Dataset{
		ID: "set-1", TableName: "orders",
		DataSource: &model.DataSource{ID: "ds-1", Type: model.DataSourceTypePostgreSQL},
	}}
	srv := newTestServer(store, &fakePublisher{})

	resp := doRequest(t, srv, http.MethodGet, "/api/datasets/set-1/preview?limit=5000", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateLineageValidation(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakePublisher{})

	resp := doRequest(t, srv, http.MethodPost, "/api/lineage",
		map[string]string{"source_dataset_id": "set-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
