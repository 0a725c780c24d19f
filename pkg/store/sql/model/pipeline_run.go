package model

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Metric keys persisted on pipeline runs.
const (
	MetricQueryExecutionTimeMs = "query_execution_time_ms"
	MetricColumnsCount         = "columns_count"
	MetricWatermark            = "watermark"
	MetricIncremental          = "incremental"
	MetricRowsWritten          = "rows_written"
	MetricTargetDataset        = "target_dataset"
)

// PipelineRun mapped from table <pipeline_runs>. Created in RUNNING state by
// the trigger source; transitions exactly once to SUCCEEDED or FAILED and is
// never re-run.
type PipelineRun struct {
	ID            string         `gorm:"column:id;primaryKey"            json:"id"`
	PipelineID    string         `gorm:"column:pipeline_id"              json:"pipeline_id"`
	StartedAt     time.Time      `gorm:"column:started_at"               json:"started_at"`
	CompletedAt   *time.Time     `gorm:"column:completed_at"             json:"completed_at,omitempty"`
	Status        RunStatus      `gorm:"column:status"                   json:"status"`
	RowsProcessed int64          `gorm:"column:rows_processed"           json:"rows_processed"`
	RowsFailed    int64          `gorm:"column:rows_failed"              json:"rows_failed"`
	ErrorMessage  *string        `gorm:"column:error_message"            json:"error_message,omitempty"`
	Metrics       map[string]any `gorm:"column:metrics;serializer:json"  json:"metrics"`

	Pipeline *Pipeline `gorm:"foreignKey:PipelineID;constraint:OnDelete:CASCADE" json:"-"`
}

// SetMetric lazily initializes the metrics map.
func (r *PipelineRun) SetMetric(key string, value any) {
	if r.Metrics == nil {
		r.Metrics = map[string]any{}
	}
	r.Metrics[key] = value
}
