package model

import "time"

type RuleType string

const (
	RuleTypeCompleteness RuleType = "COMPLETENESS"
	RuleTypeUniqueness   RuleType = "UNIQUENESS"
	RuleTypeValidity     RuleType = "VALIDITY"
	RuleTypeFreshness    RuleType = "FRESHNESS"
)

// DataQualityRule mapped from table <data_quality_rules>. Rule definitions are
// persisted here; scoring lives outside this service.
type DataQualityRule struct {
	ID              string    `gorm:"column:id;primaryKey"      json:"id"`
	DatasetID       string    `gorm:"column:dataset_id"         json:"dataset_id"`
	Name            string    `gorm:"column:name"               json:"name"`
	Type            RuleType  `gorm:"column:type"               json:"type"`
	ValidationQuery string    `gorm:"column:validation_query"   json:"validation_query"`
	Threshold       float64   `gorm:"column:threshold"          json:"threshold"`
	Enabled         bool      `gorm:"column:enabled"            json:"enabled"`
	CreatedAt       time.Time `gorm:"column:created_at"         json:"created_at"`

	Dataset *Dataset `gorm:"foreignKey:DatasetID" json:"-"`
}

// DataQualityCheck mapped from table <data_quality_checks>.
type DataQualityCheck struct {
	ID          string    `gorm:"column:id;primaryKey"  json:"id"`
	RuleID      string    `gorm:"column:rule_id"        json:"rule_id"`
	CheckedAt   time.Time `gorm:"column:checked_at"     json:"checked_at"`
	Score       float64   `gorm:"column:score"          json:"score"`
	Passed      bool      `gorm:"column:passed"         json:"passed"`
	RowsChecked int64     `gorm:"column:rows_checked"   json:"rows_checked"`
	RowsFailed  int64     `gorm:"column:rows_failed"    json:"rows_failed"`

	Rule *DataQualityRule `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"-"`
}
