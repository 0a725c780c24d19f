package sql

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

func (s *Store) GetDataSource(id string) (*model.DataSource, *contract.Error) {
	var source model.DataSource

	if err := s.db.First(&source, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.NewError(
				contract.ErrorCodeNotFound,
				fmt.Sprintf("no data source with id=%s exists", id),
			)
		}

		return nil, contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to load data source %q", id),
			err,
		)
	}

	return &source, nil
}

func (s *Store) SetDataSourceStatus(
	id string, status model.DataSourceStatus, testedAt time.Time,
) *contract.Error {
	err := s.db.
		Model(&model.DataSource{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "last_tested_at": testedAt}).Error
	if err != nil {
		return contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to update status of data source %q", id),
			err,
		)
	}

	return nil
}

func (s *Store) GetDataset(id string) (*model.Dataset, *contract.Error) {
	var dataset model.Dataset

	if err := s.db.Preload("DataSource").First(&dataset, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.NewError(
				contract.ErrorCodeNotFound,
				fmt.Sprintf("no dataset with id=%s exists", id),
			)
		}

		return nil, contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to load dataset %q", id),
			err,
		)
	}

	return &dataset, nil
}

func (s *Store) SyncDataset(
	id string, schema []model.DatasetColumn, rowCount int64, syncedAt time.Time,
) *contract.Error {
	// Struct-based update so the JSON serializer applies to the schema column.
	err := s.db.
		Model(&model.Dataset{ID: id}).
		Updates(model.Dataset{
			Schema:       schema,
			RowCount:     &rowCount,
			LastSyncedAt: &syncedAt,
		}).Error
	if err != nil {
		return contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to sync dataset %q", id),
			err,
		)
	}

	return nil
}

// CreateLineage enforces the layer-progression invariant: a lineage edge may
// never flow from a higher layer to a lower one.
func (s *Store) CreateLineage(lineage *model.DataLineage) *contract.Error {
	var source, target model.Dataset

	if err := s.db.First(&source, "id = ?", lineage.SourceDatasetID).Error; err != nil {
		return lineageDatasetError("source", lineage.SourceDatasetID, err)
	}
	if err := s.db.First(&target, "id = ?", lineage.TargetDatasetID).Error; err != nil {
		return lineageDatasetError("target", lineage.TargetDatasetID, err)
	}

	if target.Layer < source.Layer {
		return contract.NewError(
			contract.ErrorCodeInvalidParameterValue,
			fmt.Sprintf("invalid layer progression: cannot move from %s to %s",
				source.Layer, target.Layer),
		)
	}

	if err := s.db.Create(lineage).Error; err != nil {
		return contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			"failed to create lineage edge",
			err,
		)
	}

	return nil
}

func lineageDatasetError(role, id string, err error) *contract.Error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return contract.NewError(
			contract.ErrorCodeNotFound,
			fmt.Sprintf("%s dataset %s not found", role, id),
		)
	}

	return contract.NewErrorWith(
		contract.ErrorCodeInternalError,
		fmt.Sprintf("failed to load %s dataset %q", role, id),
		err,
	)
}

func (s *Store) GetLineageForDataset(
	datasetID string,
) (upstream, downstream []model.DataLineage, cErr *contract.Error) {
	err := s.db.
		Preload("SourceDataset").
		Where("target_dataset_id = ?", datasetID).
		Find(&upstream).Error
	if err != nil {
		return nil, nil, contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to load upstream lineage for dataset %q", datasetID),
			err,
		)
	}

	err = s.db.
		Preload("TargetDataset").
		Where("source_dataset_id = ?", datasetID).
		Find(&downstream).Error
	if err != nil {
		return nil, nil, contract.NewErrorWith(
			contract.ErrorCodeInternalError,
			fmt.Sprintf("failed to load downstream lineage for dataset %q", datasetID),
			err,
		)
	}

	return upstream, downstream, nil
}
