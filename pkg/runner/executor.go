package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/query"
	"github.com/dataplatform/dataplatform/pkg/source"
	"github.com/dataplatform/dataplatform/pkg/store"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
	"github.com/dataplatform/dataplatform/pkg/utils"
)

// Executor drives a single pipeline run from RUNNING to its terminal state.
// The terminal state is persisted exactly once; a run never re-executes.
type Executor struct {
	store  store.PlatformStore
	engine *query.Engine
	writer *TargetWriter
	logger *logrus.Logger
}

func NewExecutor(
	platformStore store.PlatformStore, engine *query.Engine, writer *TargetWriter,
	logger *logrus.Logger,
) *Executor {
	return &Executor{store: platformStore, engine: engine, writer: writer, logger: logger}
}

// Execute processes one run to completion. A run that cannot be loaded is
// logged and dropped; every loaded run ends SUCCEEDED or FAILED.
func (e *Executor) Execute(ctx context.Context, runID string) {
	run, cErr := e.store.GetRunForExecution(runID)
	if cErr != nil {
		if cErr.Code == contract.ErrorCodeNotFound {
			e.logger.Warnf("Dropping execution for unknown run %s", runID)
		} else {
			e.logger.WithError(cErr).Errorf("Could not load run %s", runID)
		}

		return
	}

	logger := e.logger.WithFields(logrus.Fields{
		"run_id":      run.ID,
		"pipeline_id": run.PipelineID,
	})
	logger.Info("Pipeline run started")

	e.execute(ctx, run)

	now := time.Now().UTC()
	run.CompletedAt = &now
	if cErr := e.store.UpdateRun(run); cErr != nil {
		logger.WithError(cErr).Error("Could not persist run result")
		return
	}

	logger.WithFields(logrus.Fields{
		"status":         run.Status,
		"rows_processed": run.RowsProcessed,
	}).Info("Pipeline run finished")
}

func (e *Executor) execute(ctx context.Context, run *model.PipelineRun) {
	pipeline := run.Pipeline
	if pipeline == nil {
		failRun(run, "run has no pipeline attached")
		return
	}
	if pipeline.SourceDataset == nil || pipeline.SourceDataset.DataSource == nil {
		failRun(run, "pipeline source dataset or its data source is missing")
		return
	}

	sourceDataset := pipeline.SourceDataset

	sourceQuery, args, prepErr := e.prepareQuery(run, pipeline, sourceDataset)
	if prepErr != nil {
		failRun(run, prepErr.Error())
		return
	}

	result, cErr := e.engine.ExecuteQuery(
		ctx, sourceDataset.DataSource, sourceDataset.TableName, sourceQuery, args...,
	)
	if cErr != nil {
		failRun(run, cErr.Error())
		return
	}

	run.RowsProcessed = result.TotalRows
	run.SetMetric(model.MetricQueryExecutionTimeMs, result.ExecutionMs)
	run.SetMetric(model.MetricColumnsCount, len(result.Columns))

	if pipeline.TargetDataset != nil {
		if err := e.writeTarget(ctx, run, pipeline, result); err != nil {
			return
		}
	}

	run.Status = model.RunStatusSucceeded
}

// prepareQuery resolves the query text and bind arguments for the run
// according to the pipeline type.
func (e *Executor) prepareQuery(
	run *model.PipelineRun, pipeline *model.Pipeline, sourceDataset *model.Dataset,
) (string, []any, error) {
	baseQuery := pipeline.SourceQuery
	isDocumentSource := sourceDataset.DataSource.Type == model.DataSourceTypeMongoDB
	if baseQuery == "" && !isDocumentSource {
		baseQuery = "SELECT * FROM " + sourceDataset.TableName
	}

	switch pipeline.Type {
	case model.PipelineTypeBatch, model.PipelineTypeFullRefresh:
		return baseQuery, nil, nil

	case model.PipelineTypeIncremental:
		watermark, err := e.resolveWatermark(run)
		if err != nil {
			return "", nil, err
		}

		run.SetMetric(model.MetricWatermark, watermark.UTC().Format(time.RFC3339))
		run.SetMetric(model.MetricIncremental, true)

		if isDocumentSource {
			filter, err := InjectWatermarkFilter(baseQuery, watermark)
			return filter, nil, err
		}

		injected, args := InjectWatermark(baseQuery, watermark)
		return injected, args, nil

	case model.PipelineTypeStreaming:
		return "", nil, contract.NewError(
			contract.ErrorCodeNotImplemented,
			"streaming pipelines are not implemented",
		)

	default:
		return "", nil, contract.NewError(
			contract.ErrorCodeInvalidParameterValue,
			fmt.Sprintf("unknown pipeline type %s", pipeline.Type),
		)
	}
}

// resolveWatermark is the completion time of the latest other succeeded run,
// or the zero time for a first load.
func (e *Executor) resolveWatermark(run *model.PipelineRun) (time.Time, error) {
	last, cErr := e.store.LastSucceededRun(run.PipelineID, run.ID)
	if cErr != nil {
		return time.Time{}, cErr
	}
	if last == nil || last.CompletedAt == nil {
		return time.Time{}, nil
	}

	return *last.CompletedAt, nil
}

func (e *Executor) writeTarget(
	ctx context.Context, run *model.PipelineRun, pipeline *model.Pipeline,
	result *query.QueryResult,
) error {
	mode := source.WriteModeAppend
	if pipeline.Type == model.PipelineTypeIncremental {
		mode = source.WriteModeUpsert
	}

	written, err := e.writer.Write(
		ctx, pipeline.TargetDataset, result.Columns, result.Rows, mode,
	)
	run.SetMetric(model.MetricRowsWritten, written)
	run.SetMetric(model.MetricTargetDataset, pipeline.TargetDataset.Name)

	if err != nil {
		run.RowsFailed = result.TotalRows - written
		failRun(run, err.Error())
		return err
	}

	return nil
}

func failRun(run *model.PipelineRun, message string) {
	run.Status = model.RunStatusFailed
	run.ErrorMessage = utils.PtrTo(message)
}
