package handlers

import (
	"net/http"

	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/services"
	"github.com/epeers/nexus/internal/stream"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RunHandler handles execution runs
type RunHandler struct {
	coordinator *services.Coordinator
}

// NewRunHandler creates a new RunHandler
func NewRunHandler(coordinator *services.Coordinator) *RunHandler {
	return &RunHandler{
		coordinator: coordinator,
	}
}

func runIDFromPath(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid run ID")
		return uuid.Nil, false
	}
	return id, true
}

// Start handles POST /runs
// @Summary Start a run
// @Description Resolve, allocate and diff a definition. Streams NDJSON events: progress lines, then one result or error line.
// @Description With confirm=true the trades are dispatched immediately and a final dispatch line follows the result; read until the stream closes.
// @Description Auto-confirmed runs submit brokerage orders only when submitOrders is true.
// @Tags runs
// @Accept json
// @Produce application/x-ndjson
// @Param request body models.RunRequest true "Run request"
// @Success 200 {object} models.RunEvent
// @Failure 400 {object} models.ErrorResponse
// @Router /runs [post]
func (h *RunHandler) Start(c *gin.Context) {
	var req models.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	runID, events, err := h.coordinator.Start(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", stream.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Run-ID", runID.String())
	c.Status(http.StatusOK)

	w := stream.NewWriter(c.Writer)
	for ev := range events {
		if err := w.Write(ev); err != nil {
			// Client went away; the request context cancels the run.
			log.Warnf("run %s: stream write failed: %v", runID, err)
			return
		}
	}
}

// Confirm handles POST /runs/:id/confirm
// @Summary Confirm a run
// @Description Dispatch all or a subset of the trades computed by a run awaiting confirmation.
// @Description Orders reach the brokerage only when submitOrders is true; notifyEmail alone sends the summary email.
// @Tags runs
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Param request body models.ConfirmRequest false "Trades to confirm (empty = all)"
// @Success 200 {object} models.ConfirmResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /runs/{id}/confirm [post]
func (h *RunHandler) Confirm(c *gin.Context) {
	runID, ok := runIDFromPath(c)
	if !ok {
		return
	}

	var req models.ConfirmRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	resp, err := h.coordinator.Confirm(c.Request.Context(), runID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Cancel handles DELETE /runs/:id
// @Summary Cancel a run
// @Description Abort a run that has not started dispatching
// @Tags runs
// @Param id path string true "Run ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /runs/{id} [delete]
func (h *RunHandler) Cancel(c *gin.Context) {
	runID, ok := runIDFromPath(c)
	if !ok {
		return
	}

	if err := h.coordinator.Cancel(runID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Status handles GET /runs/:id
// @Summary Get run status
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} models.RunStatus
// @Failure 404 {object} models.ErrorResponse
// @Router /runs/{id} [get]
func (h *RunHandler) Status(c *gin.Context) {
	runID, ok := runIDFromPath(c)
	if !ok {
		return
	}

	status, err := h.coordinator.Status(runID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// ImportHoldingsCSV handles POST /holdings/csv
// @Summary Parse current holdings from CSV
// @Description Upload a CSV with ticker,shares columns; the result can be sent as currentHoldings of a run
// @Tags runs
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Holdings CSV"
// @Success 200 {object} models.HoldingsCSVResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /holdings/csv [post]
func (h *RunHandler) ImportHoldingsCSV(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	f, err := file.Open()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	defer f.Close()

	holdings, err := ParseHoldingsCSV(f)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if holdings == nil {
		holdings = []models.Holding{}
	}

	c.JSON(http.StatusOK, models.HoldingsCSVResponse{Holdings: holdings})
}
