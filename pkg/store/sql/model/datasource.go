package model

import "time"

type DataSourceType string

const (
	DataSourceTypePostgreSQL DataSourceType = "POSTGRESQL"
	DataSourceTypeMySQL      DataSourceType = "MYSQL"
	DataSourceTypeSQLServer  DataSourceType = "SQLSERVER"
	DataSourceTypeMongoDB    DataSourceType = "MONGODB"
	DataSourceTypeRestAPI    DataSourceType = "REST_API"
	DataSourceTypeS3Bucket   DataSourceType = "S3_BUCKET"
	DataSourceTypeAzureBlob  DataSourceType = "AZURE_BLOB"
	DataSourceTypeKafka      DataSourceType = "KAFKA"
	DataSourceTypeCSV        DataSourceType = "CSV"
	DataSourceTypeSalesforce DataSourceType = "SALESFORCE"
)

type DataSourceStatus string

const (
	DataSourceStatusTesting DataSourceStatus = "TESTING"
	DataSourceStatusActive  DataSourceStatus = "ACTIVE"
	DataSourceStatusFailed  DataSourceStatus = "FAILED"
)

// DataSource mapped from table <data_sources>.
// Status reflects the most recent connectivity test outcome only; it is not a
// liveness guarantee.
type DataSource struct {
	ID               string            `gorm:"column:id;primaryKey"                json:"id"`
	Name             string            `gorm:"column:name"                         json:"name"`
	Description      string            `gorm:"column:description"                  json:"description"`
	Type             DataSourceType    `gorm:"column:type"                         json:"type"`
	ConnectionString string            `gorm:"column:connection_string"            json:"-"`
	Configuration    map[string]string `gorm:"column:configuration;serializer:json" json:"configuration"`
	Status           DataSourceStatus  `gorm:"column:status"                       json:"status"`
	CreatedAt        time.Time         `gorm:"column:created_at"                   json:"created_at"`
	LastTestedAt     *time.Time        `gorm:"column:last_tested_at"               json:"last_tested_at,omitempty"`
	CreatedBy        string            `gorm:"column:created_by"                   json:"created_by"`
}
