package source

import (
	"fmt"

	_ "github.com/microsoft/go-mssqldb"
)

var sqlserverDialect = sqlDialect{
	driverName:   "sqlserver",
	versionQuery: "SELECT @@VERSION",
	tablesQuery: `SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`,
	columnsQuery: `SELECT
			c.COLUMN_NAME,
			c.DATA_TYPE,
			c.IS_NULLABLE,
			CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 1 ELSE 0 END AS IS_PRIMARY_KEY
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT ku.TABLE_NAME, ku.COLUMN_NAME
			FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
			JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			  ON ku.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		) pk ON c.TABLE_NAME = pk.TABLE_NAME AND c.COLUMN_NAME = pk.COLUMN_NAME
		WHERE c.TABLE_NAME = ?
		ORDER BY c.ORDINAL_POSITION`,
	previewQuery: func(table string, limit int) string {
		return fmt.Sprintf("SELECT TOP %d * FROM %s", limit, table)
	},
	rebind: rebindPositional("@p"),
	// MERGE-based upserts are not wired up yet; writes are append-only for
	// SQL Server targets.
	upsertSuffix: nil,
}
