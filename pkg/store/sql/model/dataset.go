package model

import "time"

// WarehouseLayer is the dimensional-modeling stage a dataset belongs to.
// Lineage edges must not decrease the layer.
type WarehouseLayer int

const (
	LayerSource WarehouseLayer = iota
	LayerOperational
	LayerStaging
	LayerWarehouse
	LayerMart
)

func (l WarehouseLayer) String() string {
	switch l {
	case LayerSource:
		return "SOURCE"
	case LayerOperational:
		return "OPERATIONAL"
	case LayerStaging:
		return "STAGING"
	case LayerWarehouse:
		return "WAREHOUSE"
	case LayerMart:
		return "MART"
	default:
		return "UNKNOWN"
	}
}

type TableType string

const (
	TableTypeOperational TableType = "OPERATIONAL"
	TableTypeStaging     TableType = "STAGING"
	TableTypeFact        TableType = "FACT"
	TableTypeDimension   TableType = "DIMENSION"
	TableTypeAggregate   TableType = "AGGREGATE"
)

// DatasetColumn describes one column of a dataset's schema.
type DatasetColumn struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"`
	IsNullable   bool    `json:"is_nullable"`
	IsPrimaryKey bool    `json:"is_primary_key"`
	Description  *string `json:"description,omitempty"`
}

// Dataset mapped from table <datasets>. Created by discovery against a
// DataSource; mutated by sync (schema refresh + row count).
type Dataset struct {
	ID           string          `gorm:"column:id;primaryKey"          json:"id"`
	DataSourceID string          `gorm:"column:data_source_id"         json:"data_source_id"`
	Name         string          `gorm:"column:name"                   json:"name"`
	Description  string          `gorm:"column:description"            json:"description"`
	TableName    string          `gorm:"column:table_name"             json:"table_name"`
	Schema       []DatasetColumn `gorm:"column:schema;serializer:json" json:"schema"`
	RowCount     *int64          `gorm:"column:row_count"              json:"row_count,omitempty"`
	SizeBytes    *int64          `gorm:"column:size_bytes"             json:"size_bytes,omitempty"`
	Layer        WarehouseLayer  `gorm:"column:layer"                  json:"layer"`
	TableType    TableType       `gorm:"column:table_type"             json:"table_type"`
	CreatedAt    time.Time       `gorm:"column:created_at"             json:"created_at"`
	LastSyncedAt *time.Time      `gorm:"column:last_synced_at"         json:"last_synced_at,omitempty"`
	CreatedBy    string          `gorm:"column:created_by"             json:"created_by"`

	DataSource *DataSource `gorm:"foreignKey:DataSourceID;constraint:OnDelete:RESTRICT" json:"data_source,omitempty"`
}
