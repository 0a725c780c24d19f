package sql

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

func (s *Store) CreateRun(run *model.PipelineRun) *contract.Error {
	if err := s.db.Create(run).Error; err != nil {
		return contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to create run for pipeline %q", run.PipelineID),
			err,
		)
	}

	return nil
}

func (s *Store) UpdateRun(run *model.PipelineRun) *contract.Error {
	// Detach preloaded associations so the single commit touches only the
	// run row.
	run.Pipeline = nil

	if err := s.db.Save(run).Error; err != nil {
		return contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to update run %q", run.ID),
			err,
		)
	}

	return nil
}

func (s *Store) GetRunForExecution(id string) (*model.PipelineRun, *contract.Error) {
	var run model.PipelineRun

	err := s.db.
		Preload("Pipeline").
		Preload("Pipeline.SourceDataset").
		Preload("Pipeline.SourceDataset.DataSource").
		Preload("Pipeline.TargetDataset").
		Preload("Pipeline.TargetDataset.DataSource").
		First(&run, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.NewError(
				contract.ErrorCodeNotFound,
				fmt.Sprintf("no pipeline run with id=%s exists", id),
			)
		}

		return nil, contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to load run %q", id),
			err,
		)
	}

	return &run, nil
}

// LastSucceededRun orders by completion time descending, then by id, so ties
// resolve deterministically. The current run excludes itself: an in-flight run
// must never be its own watermark source.
func (s *Store) LastSucceededRun(pipelineID, excludeRunID string) (*model.PipelineRun, *contract.Error) {
	var run model.PipelineRun

	err := s.db.
		Where("pipeline_id = ? AND status = ? AND id <> ?", pipelineID, model.RunStatusSucceeded, excludeRunID).
		Order("completed_at DESC").
		Order("id DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to find last succeeded run for pipeline %q", pipelineID),
			err,
		)
	}

	return &run, nil
}

func (s *Store) ListRuns(pipelineID string, limit int) ([]model.PipelineRun, *contract.Error) {
	var runs []model.PipelineRun

	err := s.db.
		Where("pipeline_id = ?", pipelineID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to list runs for pipeline %q", pipelineID),
			err,
		)
	}

	return runs, nil
}

func (s *Store) GetPipeline(id string) (*model.Pipeline, *contract.Error) {
	var pipeline model.Pipeline

	err := s.db.
		Preload("SourceDataset").
		Preload("TargetDataset").
		First(&pipeline, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.NewError(
				contract.ErrorCodeNotFound,
				fmt.Sprintf("no pipeline with id=%s exists", id),
			)
		}

		return nil, contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to load pipeline %q", id),
			err,
		)
	}

	return &pipeline, nil
}

func (s *Store) ListScheduledPipelines() ([]model.Pipeline, *contract.Error) {
	var pipelines []model.Pipeline

	err := s.db.
		Where("status = ? AND schedule <> ''", model.PipelineStatusActive).
		Find(&pipelines).Error
	if err != nil {
		return nil, contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			"failed to list scheduled pipelines",
			err,
		)
	}

	return pipelines, nil
}

func (s *Store) SetPipelineLastRun(pipelineID string, at time.Time) *contract.Error {
	err := s.db.
		Model(&model.Pipeline{}).
		Where("id = ?", pipelineID).
		UpdateColumn("last_run_at", at).Error
	if err != nil {
		return contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to update last run time for pipeline %q", pipelineID),
			err,
		)
	}

	return nil
}
