package source

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = sqlDialect{
	driverName:   "mysql",
	versionQuery: "SELECT VERSION()",
	tablesQuery:  "SHOW TABLES",
	columnsQuery: `SELECT
			COLUMN_NAME,
			DATA_TYPE,
			IS_NULLABLE,
			COLUMN_KEY = 'PRI'
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_NAME = ? AND TABLE_SCHEMA = DATABASE()
		ORDER BY ORDINAL_POSITION`,
	previewQuery: func(table string, limit int) string {
		return fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, limit)
	},
	rebind:       rebindNone,
	upsertSuffix: mysqlUpsert,
}

func mysqlUpsert(_ string, columns, keyColumns []string) (string, error) {
	if len(keyColumns) == 0 {
		return "", fmt.Errorf("upsert requires at least one key column")
	}

	assignments := make([]string, 0, len(columns))
	for _, column := range columns {
		if contains(keyColumns, column) {
			continue
		}
		assignments = append(assignments, fmt.Sprintf("%s = VALUES(%s)", column, column))
	}
	if len(assignments) == 0 {
		assignments = append(assignments,
			fmt.Sprintf("%s = %s", keyColumns[0], keyColumns[0]))
	}

	return "ON DUPLICATE KEY UPDATE " + strings.Join(assignments, ", "), nil
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}

	return false
}
