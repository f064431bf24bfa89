package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"cloutgraph/internal/runlog"
	"cloutgraph/internal/server/middleware"
	"cloutgraph/pkg/logger"
)

// GetScoreRunHandler returns the ledger record for one scoring run.
func GetScoreRunHandler(c echo.Context) error {
	type getScoreRunParams struct {
		ID string `param:"id" validate:"required"`
	}

	type getScoreRunResponse struct {
		Message string                 `json:"message,omitempty"`
		Run     *runlog.ScoreRunRecord `json:"run,omitempty"`
	}

	params := new(getScoreRunParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, getScoreRunResponse{
			Message: "Invalid request",
		})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, getScoreRunResponse{
			Message: "Invalid request",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	rec, err := app.Ledger.GetScoreRun(ctx, params.ID)
	if errors.Is(err, runlog.ErrNotFound) {
		return c.JSON(http.StatusNotFound, getScoreRunResponse{
			Message: "Score run not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get score run record", "run_id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, getScoreRunResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, getScoreRunResponse{Run: rec})
}
