package model

import "time"

// DataLineage mapped from table <data_lineages>: a directed edge recording
// that one dataset's data flows into another, optionally via a pipeline.
type DataLineage struct {
	ID                        string    `gorm:"column:id;primaryKey"               json:"id"`
	SourceDatasetID           string    `gorm:"column:source_dataset_id"           json:"source_dataset_id"`
	TargetDatasetID           string    `gorm:"column:target_dataset_id"           json:"target_dataset_id"`
	PipelineID                *string   `gorm:"column:pipeline_id"                 json:"pipeline_id,omitempty"`
	TransformationDescription string    `gorm:"column:transformation_description"  json:"transformation_description"`
	CreatedAt                 time.Time `gorm:"column:created_at"                  json:"created_at"`

	SourceDataset *Dataset  `gorm:"foreignKey:SourceDatasetID" json:"source_dataset,omitempty"`
	TargetDataset *Dataset  `gorm:"foreignKey:TargetDatasetID" json:"target_dataset,omitempty"`
	Pipeline      *Pipeline `gorm:"foreignKey:PipelineID"      json:"-"`
}
