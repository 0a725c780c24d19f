package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dataplatform/dataplatform/pkg/contract"
	"github.com/dataplatform/dataplatform/pkg/query"
	"github.com/dataplatform/dataplatform/pkg/source"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"
)

// TestDataSource probes connectivity and persists the outcome on the source
// record. The probe itself never fails; only unknown sources or missing
// drivers produce an error.
func (s *PlatformService) TestDataSource(
	ctx context.Context, id string,
) (*source.TestResult, *contract.Error) {
	src, cErr := s.store.GetDataSource(id)
	if cErr != nil {
		return nil, cErr
	}

	driver, cErr := s.registry.Get(src.Type)
	if cErr != nil {
		return nil, cErr
	}

	result := driver.TestConnection(ctx, src)

	status := model.DataSourceStatusFailed
	if result.Success {
		status = model.DataSourceStatusActive
	}
	if cErr := s.store.SetDataSourceStatus(id, status, time.Now().UTC()); cErr != nil {
		s.logger.WithError(cErr).Warnf("Could not persist test outcome for source %s", id)
	}

	return result, nil
}

// DiscoverTables lists the tables or collections reachable through a source.
func (s *PlatformService) DiscoverTables(
	ctx context.Context, id string,
) ([]string, *contract.Error) {
	src, cErr := s.store.GetDataSource(id)
	if cErr != nil {
		return nil, cErr
	}

	driver, cErr := s.registry.Get(src.Type)
	if cErr != nil {
		return nil, cErr
	}

	tables, err := driver.DiscoverTables(ctx, src)
	if err != nil {
		return nil, contract.NewErrorWith(
			contract.ErrorCodeExecutionFailure,
			fmt.Sprintf("table discovery on %q failed", src.Name),
			err,
		)
	}

	return tables, nil
}

// DiscoverSchema introspects one table of a source.
func (s *PlatformService) DiscoverSchema(
	ctx context.Context, id, table string,
) ([]model.DatasetColumn, *contract.Error) {
	src, cErr := s.store.GetDataSource(id)
	if cErr != nil {
		return nil, cErr
	}

	driver, cErr := s.registry.Get(src.Type)
	if cErr != nil {
		return nil, cErr
	}

	columns, err := driver.DiscoverSchema(ctx, src, table)
	if err != nil {
		return nil, contract.NewErrorWith(
			contract.ErrorCodeExecutionFailure,
			fmt.Sprintf("schema discovery of %s on %q failed", table, src.Name),
			err,
		)
	}

	return columns, nil
}

// ExecuteQuery runs an ad-hoc query against a source.
func (s *PlatformService) ExecuteQuery(
	ctx context.Context, dataSourceID, table, queryText string,
) (*query.QueryResult, *contract.Error) {
	src, cErr := s.store.GetDataSource(dataSourceID)
	if cErr != nil {
		return nil, cErr
	}

	return s.engine.ExecuteQuery(ctx, src, table, queryText)
}
