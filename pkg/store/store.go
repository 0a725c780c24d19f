package store

import (
	"time"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

// PlatformStore is the single source of truth for pipeline, run and catalog
// state.
type PlatformStore interface {
	// CreateRun persists a new run record, already in RUNNING state.
	CreateRun(run *model.PipelineRun) *contract.Error

	// UpdateRun persists the terminal state of a run. Called exactly once
	// per execution.
	UpdateRun(run *model.PipelineRun) *contract.Error

	// GetRunForExecution loads a run together with its pipeline, the
	// pipeline's source/target datasets and their owning data sources.
	GetRunForExecution(id string) (*model.PipelineRun, *contract.Error)

	// LastSucceededRun returns the most recent SUCCEEDED run of a pipeline,
	// excluding excludeRunID. Returns (nil, nil) when no such run exists.
	LastSucceededRun(pipelineID, excludeRunID string) (*model.PipelineRun, *contract.Error)

	ListRuns(pipelineID string, limit int) ([]model.PipelineRun, *contract.Error)

	GetPipeline(id string) (*model.Pipeline, *contract.Error)

	// ListScheduledPipelines returns pipelines with Status=ACTIVE and a
	// non-empty schedule.
	ListScheduledPipelines() ([]model.Pipeline, *contract.Error)

	SetPipelineLastRun(pipelineID string, at time.Time) *contract.Error

	GetDataSource(id string) (*model.DataSource, *contract.Error)

	SetDataSourceStatus(id string, status model.DataSourceStatus, testedAt time.Time) *contract.Error

	// GetDataset loads a dataset together with its owning data source.
	GetDataset(id string) (*model.Dataset, *contract.Error)

	SyncDataset(id string, schema []model.DatasetColumn, rowCount int64, syncedAt time.Time) *contract.Error

	// CreateLineage persists a lineage edge. Edges where the target layer is
	// below the source layer are rejected before persistence.
	CreateLineage(lineage *model.DataLineage) *contract.Error

	GetLineageForDataset(datasetID string) (upstream, downstream []model.DataLineage, cErr *contract.Error)
}
