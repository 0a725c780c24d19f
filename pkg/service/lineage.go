package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

// LineageGraph is the upstream and downstream edges around one dataset.
type LineageGraph struct {
	Upstream   []model.DataLineage `json:"upstream"`
	Downstream []model.DataLineage `json:"downstream"`
}

// CreateLineage records a data-flow edge between two datasets.
func (s *PlatformService) CreateLineage(
	sourceDatasetID, targetDatasetID string, pipelineID *string, description string,
) (*model.DataLineage, *contract.Error) {
	lineage := &model.DataLineage{
		ID:                        uuid.NewString(),
		SourceDatasetID:           sourceDatasetID,
		TargetDatasetID:           targetDatasetID,
		PipelineID:                pipelineID,
		TransformationDescription: description,
		CreatedAt:                 time.Now().UTC(),
	}
	if cErr := s.store.CreateLineage(lineage); cErr != nil {
		return nil, cErr
	}

	return lineage, nil
}

func (s *PlatformService) GetLineage(datasetID string) (*LineageGraph, *contract.Error) {
	if _, cErr := s.store.GetDataset(datasetID); cErr != nil {
		return nil, cErr
	}

	upstream, downstream, cErr := s.store.GetLineageForDataset(datasetID)
	if cErr != nil {
		return nil, cErr
	}

	return &LineageGraph{Upstream: upstream, Downstream: downstream}, nil
}
