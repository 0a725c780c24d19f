package sql

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-sqlite3/gormlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"

	"github.com/dataplatform/dataplatform/pkg/config"
	"github.com/dataplatform/dataplatform/pkg/store/sql/model"

	_ "github.com/ncruces/go-sqlite3/embed"
)

type Store struct {
	config *config.Config
	db     *gorm.DB
}

// NewStore opens the metadata database named by cfg.StoreURL and migrates the
// schema. The dialect is selected from the URL scheme.
func NewStore(logger *logrus.Logger, cfg *config.Config) (*Store, error) {
	dialector, err := dialectorFor(cfg.StoreURL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewLoggerAdaptor(logger, LoggerAdaptorConfig{
			SlowThreshold:             500 * time.Millisecond,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %q: %w", cfg.StoreURL, err)
	}

	if err := db.AutoMigrate(
		&model.DataSource{},
		&model.Dataset{},
		&model.Pipeline{},
		&model.PipelineRun{},
		&model.DataLineage{},
		&model.DataQualityRule{},
		&model.DataQualityCheck{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate metadata schema: %w", err)
	}

	return &Store{config: cfg, db: db}, nil
}

func dialectorFor(storeURL string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(storeURL, "postgres://"), strings.HasPrefix(storeURL, "postgresql://"):
		return postgres.Open(storeURL), nil
	case strings.HasPrefix(storeURL, "mysql://"):
		return mysql.Open(strings.TrimPrefix(storeURL, "mysql://")), nil
	case strings.HasPrefix(storeURL, "sqlserver://"):
		return sqlserver.Open(storeURL), nil
	case strings.HasPrefix(storeURL, "sqlite://"):
		return gormlite.Open(strings.TrimPrefix(storeURL, "sqlite://")), nil
	default:
		return nil, fmt.Errorf("unsupported store URL %q", storeURL)
	}
}
