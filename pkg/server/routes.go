package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dataplatform/dataplatform/pkg/config"
	"github.com/dataplatform/dataplatform/pkg/service"
	"github.com/dataplatform/dataplatform/pkg/utils"
)

type executeQueryRequest struct {
	Table string `json:"table" validate:"required"`
	Query string `json:"query"`
}

type triggerRunRequest struct {
	TriggeredBy string `json:"triggered_by"`
}

type createLineageRequest struct {
	SourceDatasetID           string  `json:"source_dataset_id" validate:"required"`
	TargetDatasetID           string  `json:"target_dataset_id" validate:"required"`
	PipelineID                *string `json:"pipeline_id"`
	TransformationDescription string  `json:"transformation_description"`
}

type limitQuery struct {
	Limit int `query:"limit" validate:"omitempty,gte=0,lte=1000"`
}

func registerRoutes(
	app *fiber.App, svc *service.PlatformService, cfg *config.Config, parser *HTTPRequestParser,
) {
	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.SendString("OK")
	})
	app.Get("/version", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"version": cfg.Version})
	})

	api := app.Group("/api")

	api.Post("/datasources/:id/test", func(ctx *fiber.Ctx) error {
		result, cErr := svc.TestDataSource(ctx.Context(), ctx.Params("id"))
		if cErr != nil {
			return cErr
		}

		return ctx.JSON(result)
	})

	api.Get("/datasources/:id/tables", func(ctx *fiber.Ctx) error {
		tables, cErr := svc.DiscoverTables(ctx.Context(), ctx.Params("id"))
		if cErr != nil {
			return cErr
		}

		return ctx.JSON(fiber.Map{"tables": tables})
	})

	api.Get("/datasources/:id/tables/:table/schema", func(ctx *fiber.Ctx) error {
		columns, cErr := svc.DiscoverSchema(ctx.Context(), ctx.Params("id"), ctx.Params("table"))
		if cErr != nil {
			return cErr
		}

		return ctx.JSON(fiber.Map{"columns": columns})
	})

	api.Post("/datasources/:id/query", func(ctx *fiber.Ctx) error {
		var req executeQueryRequest
		if cErr := parser.ParseBody(ctx, &req); cErr != nil {
			return cErr
		}

		result, cErr := svc.ExecuteQuery(ctx.Context(), ctx.Params("id"), req.Table, req.Query)
		if cErr != nil {
			return cErr
		}

		return ctx.JSON(result)
	})

	api.Post("/datasets/:id/sync", func(ctx *fiber.Ctx) error {
		dataset, cErr := svc.SyncDataset(ctx.Context(), ctx.Params("id"))
		if cErr != nil {
			return cErr
		}

		return ctx.JSON(dataset)
	})

	api.Get("/datasets/:id/preview", func(ctx *fiber.Ctx) error {
		var q limitQuery
		if cErr := parser.ParseQuery(ctx, &q); cErr != nil {
			return cErr
		}

		preview, cErr := svc.PreviewDataset(ctx.Context(), ctx.Params("id"), q.Limit)
		if cErr != nil {
			return cErr
		}

		return ctx.JSON(preview)
	})

	api.Get("/datasets/:id/lineage", func(ctx *fiber.Ctx) error {
		graph, cErr := svc.GetLineage(ctx.Params("id"))
		if cErr != nil {
			return cErr
		}

		return ctx.JSON(graph)
	})

	api.Post("/lineage", func(ctx *fiber.Ctx) error {
		var req createLineageRequest
		if cErr := parser.ParseBody(ctx, &req); cErr != nil {
			return cErr
		}

		// Normalize a blank pipeline id to an absent one.
		var pipelineID *string
		if utils.IsNotNilOrEmptyString(req.PipelineID) {
			pipelineID = req.PipelineID
		}

		lineage, cErr := svc.CreateLineage(
			req.SourceDatasetID, req.TargetDatasetID, pipelineID,
			req.TransformationDescription,
		)
		if cErr != nil {
			return cErr
		}

		return ctx.Status(fiber.StatusCreated).JSON(lineage)
	})

	api.Get("/pipelines/:id", func(ctx *fiber.Ctx) error {
		pipeline, cErr := svc.GetPipeline(ctx.Params("id"))
		if cErr != nil {
			return cErr
		}

		return ctx.JSON(pipeline)
	})

	api.Post("/pipelines/:id/run", func(ctx *fiber.Ctx) error {
		req := triggerRunRequest{TriggeredBy: "manual"}
		if len(ctx.Body()) > 0 {
			if cErr := parser.ParseBody(ctx, &req); cErr != nil {
				return cErr
			}
			if req.TriggeredBy == "" {
				req.TriggeredBy = "manual"
			}
		}

		run, cErr := svc.TriggerPipeline(ctx.Params("id"), req.TriggeredBy)
		if cErr != nil {
			return cErr
		}

		return ctx.Status(fiber.StatusAccepted).JSON(run)
	})

	api.Get("/pipelines/:id/runs", func(ctx *fiber.Ctx) error {
		var q limitQuery
		if cErr := parser.ParseQuery(ctx, &q); cErr != nil {
			return cErr
		}

		runs, cErr := svc.ListRuns(ctx.Params("id"), q.Limit)
		if cErr != nil {
			return cErr
		}

		return ctx.JSON(fiber.Map{"runs": runs})
	})
}
