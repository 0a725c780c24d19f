package source

import (
	"fmt"

	_ "github.com/lib/pq"
)

var postgresDialect = sqlDialect{
	driverName:   "postgres",
	versionQuery: "SELECT version()",
	tablesQuery: `SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`,
	columnsQuery: `SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			(SELECT COUNT(*) > 0
			 FROM information_schema.key_column_usage kcu
			 JOIN information_schema.table_constraints tc
			   ON kcu.constraint_name = tc.constraint_name
			 WHERE tc.constraint_type = 'PRIMARY KEY'
			   AND kcu.table_name = c.table_name
			   AND kcu.column_name = c.column_name) AS is_primary_key
		FROM information_schema.columns c
		WHERE c.table_name = ? AND c.table_schema = 'public'
		ORDER BY c.ordinal_position`,
	previewQuery: func(table string, limit int) string {
		return fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, limit)
	},
	rebind:       rebindPositional("$"),
	upsertSuffix: postgresUpsert,
}

func postgresUpsert(_ string, columns, keyColumns []string) (string, error) {
	if len(keyColumns) == 0 {
		return "", fmt.Errorf("upsert requires at least one key column")
	}

	suffix := "ON CONFLICT (" + joinColumns(keyColumns) + ") DO UPDATE SET "
	first := true
	for _, column := range columns {
		if contains(keyColumns, column) {
			continue
		}
		if !first {
			suffix += ", "
		}
		suffix += fmt.Sprintf("%s = EXCLUDED.%s", column, column)
		first = false
	}
	if first {
		// Every column is part of the key; nothing to update on conflict.
		return "ON CONFLICT (" + joinColumns(keyColumns) + ") DO NOTHING", nil
	}

	return suffix, nil
}
