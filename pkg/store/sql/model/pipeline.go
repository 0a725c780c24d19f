package model

import "time"

type PipelineType string

const (
	PipelineTypeBatch       PipelineType = "BATCH"
	PipelineTypeIncremental PipelineType = "INCREMENTAL"
	PipelineTypeFullRefresh PipelineType = "FULL_REFRESH"
	PipelineTypeStreaming   PipelineType = "STREAMING"
)

type PipelineStatus string

const (
	PipelineStatusDraft  PipelineStatus = "DRAFT"
	PipelineStatusActive PipelineStatus = "ACTIVE"
	PipelineStatusPaused PipelineStatus = "PAUSED"
)

// Pipeline mapped from table <pipelines>.
type Pipeline struct {
	ID              string         `gorm:"column:id;primaryKey"      json:"id"`
	Name            string         `gorm:"column:name"               json:"name"`
	Description     string         `gorm:"column:description"        json:"description"`
	Type            PipelineType   `gorm:"column:type"               json:"type"`
	SourceQuery     string         `gorm:"column:source_query"       json:"source_query"`
	SourceDatasetID string         `gorm:"column:source_dataset_id"  json:"source_dataset_id"`
	TargetDatasetID *string        `gorm:"column:target_dataset_id"  json:"target_dataset_id,omitempty"`
	Schedule        string         `gorm:"column:schedule"           json:"schedule"`
	Status          PipelineStatus `gorm:"column:status"             json:"status"`
	CreatedAt       time.Time      `gorm:"column:created_at"         json:"created_at"`
	LastRunAt       *time.Time     `gorm:"column:last_run_at"        json:"last_run_at,omitempty"`
	CreatedBy       string         `gorm:"column:created_by"         json:"created_by"`

	SourceDataset *Dataset      `gorm:"foreignKey:SourceDatasetID" json:"source_dataset,omitempty"`
	TargetDataset *Dataset      `gorm:"foreignKey:TargetDatasetID" json:"target_dataset,omitempty"`
	Runs          []PipelineRun `gorm:"foreignKey:PipelineID"      json:"-"`
}
