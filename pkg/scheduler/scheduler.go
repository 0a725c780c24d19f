package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/dataplatform/dataplatform/pkg/queue"
	"github.com/dataplatform/dataplatform/pkg/store"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

// scheduleIntervals maps schedule tokens to the minimum gap between runs.
var scheduleIntervals = map[string]time.Duration{
	"hourly": time.Hour,
	"daily":  24 * time.Hour,
	"weekly": 7 * 24 * time.Hour,
}

// Scheduler periodically scans active scheduled pipelines and enqueues runs
// for the due ones. It is the only component that triggers scheduled runs, so
// two runs of the same pipeline are never enqueued in the same scan.
type Scheduler struct {
	store     store.PlatformStore
	publisher queue.Publisher
	tick      time.Duration
	logger    *logrus.Logger
	cron      *cron.Cron
	now       func() time.Time
}

func NewScheduler(
	platformStore store.PlatformStore, publisher queue.Publisher, tick time.Duration,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		store:     platformStore,
		publisher: publisher,
		tick:      tick,
		logger:    logger,
		cron:      cron.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.tick), s.scan); err != nil {
		return fmt.Errorf("register scheduler tick: %w", err)
	}
	s.cron.Start()
	s.logger.Infof("Scheduler started, scanning every %s", s.tick)

	return nil
}

// Stop halts the tick and waits for an in-flight scan, up to the context
// deadline.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop interrupted: %w", ctx.Err())
	}
}

// scan triggers every due pipeline. A failure on one pipeline never blocks
// the others.
func (s *Scheduler) scan() {
	pipelines, cErr := s.store.ListScheduledPipelines()
	if cErr != nil {
		s.logger.WithError(cErr).Error("Could not list scheduled pipelines")
		return
	}

	now := s.now()
	for i := range pipelines {
		pipeline := &pipelines[i]
		if !shouldRun(pipeline, now) {
			continue
		}

		if err := s.trigger(pipeline, now); err != nil {
			s.logger.WithError(err).Errorf("Could not trigger pipeline %s", pipeline.ID)
		}
	}
}

func (s *Scheduler) trigger(pipeline *model.Pipeline, now time.Time) error {
	run := &model.PipelineRun{
		ID:         uuid.NewString(),
		PipelineID: pipeline.ID,
		StartedAt:  now,
		Status:     model.RunStatusRunning,
	}
	if cErr := s.store.CreateRun(run); cErr != nil {
		return cErr
	}

	if cErr := s.publisher.Publish(queue.ExecutionMessage{
		PipelineID:  pipeline.ID,
		RunID:       run.ID,
		TriggeredBy: "scheduler",
	}); cErr != nil {
		run.Status = model.RunStatusFailed
		run.CompletedAt = &now
		message := cErr.Message
		run.ErrorMessage = &message
		if updateErr := s.store.UpdateRun(run); updateErr != nil {
			s.logger.WithError(updateErr).Errorf("Could not fail unscheduled run %s", run.ID)
		}

		return cErr
	}

	if cErr := s.store.SetPipelineLastRun(pipeline.ID, now); cErr != nil {
		return cErr
	}

	s.logger.WithFields(logrus.Fields{
		"pipeline_id": pipeline.ID,
		"run_id":      run.ID,
	}).Info("Scheduled pipeline triggered")

	return nil
}

// shouldRun decides whether a pipeline is due at now. A scheduled pipeline
// that never ran is always due, whatever its schedule token; once it has run,
// unknown tokens never fire again.
func shouldRun(pipeline *model.Pipeline, now time.Time) bool {
	if pipeline.Schedule == "" {
		return false
	}

	if pipeline.LastRunAt == nil {
		return true
	}

	interval, ok := scheduleIntervals[strings.ToLower(pipeline.Schedule)]
	if !ok {
		return false
	}

	return now.Sub(*pipeline.LastRunAt) >= interval
}
