package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"cloutgraph/internal/runlog"
	"cloutgraph/internal/server/middleware"
	"cloutgraph/pkg/logger"
)

// GetBatchHandler returns the ledger record for one ingestion batch.
func GetBatchHandler(c echo.Context) error {
	type getBatchParams struct {
		ID string `param:"id" validate:"required"`
	}

	type getBatchResponse struct {
		Message string              `json:"message,omitempty"`
		Batch   *runlog.BatchRecord `json:"batch,omitempty"`
	}

	params := new(getBatchParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getBatchResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getBatchResponse{
			Message: "Invalid request",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	rec, err := app.Ledger.GetBatch(ctx, params.ID)
	if errors.Is(err, runlog.ErrNotFound) {
		return c.JSON(http.StatusNotFound, getBatchResponse{
			Message: "Batch not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get batch record", "batch_id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, getBatchResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getBatchResponse{Batch: rec})
}
