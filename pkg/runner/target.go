package runner

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dataplatform/dataplatform/pkg/source"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

// TargetWriter lands extracted rows into a target dataset through the same
// driver registry used for reads.
type TargetWriter struct {
	registry *source.Registry
	logger   *logrus.Logger
}

func NewTargetWriter(registry *source.Registry, logger *logrus.Logger) *TargetWriter {
	return &TargetWriter{registry: registry, logger: logger}
}

// Write lands rows into the target table. Upsert mode keys on the target
// schema's primary key columns and falls back to append when the schema
// declares none.
func (w *TargetWriter) Write(
	ctx context.Context, target *model.Dataset, columns []string, rows []map[string]any,
	mode source.WriteMode,
) (int64, error) {
	if target.DataSource == nil {
		return 0, fmt.Errorf("target dataset %q has no data source loaded", target.Name)
	}

	keyColumns := primaryKeyColumns(target.Schema)
	if mode == source.WriteModeUpsert && len(keyColumns) == 0 {
		w.logger.Warnf("Target %q has no primary key columns, falling back to append", target.Name)
		mode = source.WriteModeAppend
	}

	driver, cErr := w.registry.Get(target.DataSource.Type)
	if cErr != nil {
		return 0, cErr
	}

	conn, err := driver.Open(ctx, target.DataSource)
	if err != nil {
		return 0, fmt.Errorf("connect to target %q: %w", target.DataSource.Name, err)
	}
	defer conn.Close()

	written, err := conn.Write(ctx, target.TableName, columns, rows, keyColumns, mode)
	if err != nil {
		return written, fmt.Errorf("write to %s: %w", target.TableName, err)
	}

	return written, nil
}

func primaryKeyColumns(schema []model.DatasetColumn) []string {
	var keys []string
	for _, column := range schema {
		if column.IsPrimaryKey {
			keys = append(keys, column.Name)
		}
	}

	return keys
}
