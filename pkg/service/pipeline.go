package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/queue"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

const defaultRunHistoryLimit = 20

// TriggerPipeline creates a RUNNING run and hands it to the execution queue.
// The run record exists before the message is published, so a worker can
// always load it.
func (s *PlatformService) TriggerPipeline(
	pipelineID, triggeredBy string,
) (*model.PipelineRun, *contract.Error) {
	pipeline, cErr := s.store.GetPipeline(pipelineID)
	if cErr != nil {
		return nil, cErr
	}

	now := time.Now().UTC()
	run := &model.PipelineRun{
		ID:         uuid.NewString(),
		PipelineID: pipeline.ID,
		StartedAt:  now,
		Status:     model.RunStatusRunning,
	}
	if cErr := s.store.CreateRun(run); cErr != nil {
		return nil, cErr
	}

	if cErr := s.publisher.Publish(queue.ExecutionMessage{
		PipelineID:  pipeline.ID,
		RunID:       run.ID,
		TriggeredBy: triggeredBy,
	}); cErr != nil {
		run.Status = model.RunStatusFailed
		run.CompletedAt = &now
		message := cErr.Message
		run.ErrorMessage = &message
		if updateErr := s.store.UpdateRun(run); updateErr != nil {
			s.logger.WithError(updateErr).Errorf("Could not fail unqueued run %s", run.ID)
		}

		return nil, cErr
	}

	if cErr := s.store.SetPipelineLastRun(pipeline.ID, now); cErr != nil {
		s.logger.WithError(cErr).Warnf("Could not stamp last run on pipeline %s", pipeline.ID)
	}

	return run, nil
}

func (s *PlatformService) GetPipeline(id string) (*model.Pipeline, *contract.Error) {
	return s.store.GetPipeline(id)
}

// ListRuns returns the newest runs of a pipeline, most recent first.
func (s *PlatformService) ListRuns(
	pipelineID string, limit int,
) ([]model.PipelineRun, *contract.Error) {
	if _, cErr := s.store.GetPipeline(pipelineID); cErr != nil {
		return nil, cErr
	}
	if limit <= 0 {
		limit = defaultRunHistoryLimit
	}

	return s.store.ListRuns(pipelineID, limit)
}
