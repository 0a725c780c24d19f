package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/query"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
	"github.com/dataplatform/dataplatform/pkg/utils"
)

const defaultPreviewLimit = 100

// SyncDataset refreshes a dataset's schema and row count from its source and
// returns the updated record.
func (s *PlatformService) SyncDataset(
	ctx context.Context, id string,
) (*model.Dataset, *contract.Error) {
	dataset, cErr := s.store.GetDataset(id)
	if cErr != nil {
		return nil, cErr
	}
	if dataset.DataSource == nil {
		return nil, contract.NewError(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("dataset %q has no data source", dataset.Name),
		)
	}

	driver, cErr := s.registry.Get(dataset.DataSource.Type)
	if cErr != nil {
		return nil, cErr
	}

	schema, err := driver.DiscoverSchema(ctx, dataset.DataSource, dataset.TableName)
	if err != nil {
		return nil, contract.NewErrorWith(
			contract.ErrorCodeExecutionFailure,
			fmt.Sprintf("schema refresh of %s failed", dataset.TableName),
			err,
		)
	}

	rowCount := s.engine.GetRowCount(ctx, dataset.DataSource, dataset.TableName)

	now := time.Now().UTC()
	if cErr := s.store.SyncDataset(id, schema, rowCount, now); cErr != nil {
		return nil, cErr
	}

	dataset.Schema = schema
	dataset.RowCount = &rowCount
	dataset.LastSyncedAt = utils.PtrTo(now)

	return dataset, nil
}

// PreviewDataset returns a page of the dataset's rows with its live schema.
func (s *PlatformService) PreviewDataset(
	ctx context.Context, id string, limit int,
) (*query.PreviewResult, *contract.Error) {
	dataset, cErr := s.store.GetDataset(id)
	if cErr != nil {
		return nil, cErr
	}
	if dataset.DataSource == nil {
		return nil, contract.NewError(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("dataset %q has no data source", dataset.Name),
		)
	}
	if limit <= 0 {
		limit = defaultPreviewLimit
	}

	return s.engine.GetPreview(ctx, dataset.DataSource, dataset.TableName, limit)
}
