package service

import (
	"github.com/sirupsen/logrus"

	"github.com/dataplatform/dataplatform/pkg/query"
	"github.com/dataplatform/dataplatform/pkg/queue"
	"github.com/dataplatform/dataplatform/pkg/source"
	"github.com/dataplatform/dataplatform/pkg/store"
)

// PlatformService implements the platform's API operations on top of the
// store, the driver registry and the execution queue.
type PlatformService struct {
	store     store.PlatformStore
	registry  *source.Registry
	engine    *query.Engine
	publisher queue.Publisher
	logger    *logrus.Logger
}

func NewPlatformService(
	platformStore store.PlatformStore, registry *source.Registry, engine *query.Engine,
	publisher queue.Publisher, logger *logrus.Logger,
) *PlatformService {
	return &PlatformService{
		store:     platformStore,
		registry:  registry,
		engine:    engine,
		publisher: publisher,
		logger:    logger,
	}
}
