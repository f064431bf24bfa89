package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"cloutgraph/internal/queue"
	"cloutgraph/internal/runlog"
	"cloutgraph/internal/server/middleware"
	"cloutgraph/pkg/common"
	"cloutgraph/pkg/logger"
)

// CreateBatchHandler accepts one ingestion batch. The synchronous path runs
// the batch inline and returns the full report; the async path enqueues it
// and returns the ledger id to poll.
func CreateBatchHandler(c echo.Context) error {
	type createBatchBody struct {
		UploaderRawID   string              `json:"uploader_raw_id" validate:"required"`
		UploaderProfile *common.Profile     `json:"uploader_profile"`
		Connections     []common.Connection `json:"connections" validate:"required"`
		Async           bool                `json:"async"`
	}

	type createBatchResponse struct {
		Message string              `json:"message"`
		BatchID string              `json:"batch_id,omitempty"`
		Report  *common.BatchReport `json:"report,omitempty"`
	}

	data := new(createBatchBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createBatchResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createBatchResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	batch := common.IngestBatch{
		UploaderRawID:   data.UploaderRawID,
		UploaderProfile: data.UploaderProfile,
		Connections:     data.Connections,
	}

	batchID := runlog.NewID()
	if err := app.Ledger.CreateBatch(ctx, batchID, data.UploaderRawID); err != nil {
		logger.Error("Failed to create batch record", "err", err)
		return c.JSON(http.StatusInternalServerError, createBatchResponse{
			Message: "Internal server error",
		})
	}

	if data.Async {
		msg := queue.QueueIngestMsg{
			BatchID: batchID,
			Batch:   batch,
		}
		msgBytes, err := json.Marshal(msg)
		if err != nil {
			logger.Error("Failed to marshal ingest message", "err", err)
			return c.JSON(http.StatusInternalServerError, createBatchResponse{
				Message: "Internal server error",
			})
		}
		if err := queue.PublishFIFO(app.Queue, queue.IngestQueue, msgBytes); err != nil {
			logger.Error("Failed to publish to ingest_queue", "err", err)
			return c.JSON(http.StatusInternalServerError, createBatchResponse{
				Message: "Internal server error",
			})
		}
		return c.JSON(http.StatusAccepted, createBatchResponse{
			Message: "Batch accepted",
			BatchID: batchID,
		})
	}

	report, err := app.Graph.IngestBatch(ctx, batch, app.Fetcher, app.Store)
	if err != nil {
		logger.Error("Failed to ingest batch", "batch_id", batchID, "err", err)
		if ferr := app.Ledger.FailBatch(ctx, batchID, err); ferr != nil {
			logger.Error("Failed to record batch failure", "batch_id", batchID, "err", ferr)
		}
		return c.JSON(http.StatusInternalServerError, createBatchResponse{
			Message: "Failed to process batch",
			BatchID: batchID,
		})
	}

	if err := app.Ledger.FinishBatch(ctx, batchID, report); err != nil {
		logger.Error("Failed to record batch report", "batch_id", batchID, "err", err)
	}

	return c.JSON(http.StatusOK, createBatchResponse{
		Message: "Batch processed",
		BatchID: batchID,
		Report:  report,
	})
}
