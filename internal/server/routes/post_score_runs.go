package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"cloutgraph/internal/queue"
	"cloutgraph/internal/runlog"
	"cloutgraph/internal/server/middleware"
	"cloutgraph/pkg/logger"
)

// CreateScoreRunHandler enqueues a whole-graph scoring pass. Scoring always
// runs through the worker; a run can take minutes on a large graph.
func CreateScoreRunHandler(c echo.Context) error {
	type createScoreRunResponse struct {
		Message string `json:"message"`
		RunID   string `json:"run_id,omitempty"`
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	runID := runlog.NewID()
	if err := app.Ledger.CreateScoreRun(ctx, runID); err != nil {
		logger.Error("Failed to create score run record", "err", err)
		return c.JSON(http.StatusInternalServerError, createScoreRunResponse{
			Message: "Internal server error",
		})
	}

	msgBytes, err := json.Marshal(queue.QueueScoreMsg{RunID: runID})
	if err != nil {
		logger.Error("Failed to marshal score message", "err", err)
		return c.JSON(http.StatusInternalServerError, createScoreRunResponse{
			Message: "Internal server error",
		})
	}
	if err := queue.PublishFIFO(app.Queue, queue.ScoreQueue, msgBytes); err != nil {
		logger.Error("Failed to publish to score_queue", "err", err)
		return c.JSON(http.StatusInternalServerError, createScoreRunResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, createScoreRunResponse{
		Message: "Score run accepted",
		RunID:   runID,
	})
}
