package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/scribelab/scribe/internal/helpers"
	"github.com/scribelab/scribe/internal/report"
	"github.com/scribelab/scribe/internal/runtime"
	"github.com/scribelab/scribe/internal/workflow"
)

// ReportStore is the slice of the store the reports handler needs.
type ReportStore interface {
	CreateRunWithDebit(ctx context.Context, userID, topic string) (string, error)
	GetRun(ctx context.Context, runID, userID string) (report.Run, error)
	ListRuns(ctx context.Context, userID string, limit int) ([]report.Summary, error)
	CancelOwnedRun(ctx context.Context, runID, userID, message string) error
	DeleteRun(ctx context.Context, runID, userID string) error
}

// Runner executes one report run to a terminal status.
type Runner interface {
	Execute(ctx context.Context, runID, topic string) error
}

type ReportsHandler struct {
	Store      ReportStore
	Engine     Runner
	Cancels    workflow.CancelRegistry
	RunTimeout time.Duration
	Logger     *log.Logger
}

func (h *ReportsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("", h.start)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/cancel", h.cancel)
	g.DELETE("/:id", h.delete)
}

func (h *ReportsHandler) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}

// Start run
//
//	@Summary		Start a report run
//	@Description	Debits one credit and starts the research pipeline
//	@Tags			reports
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateReportRequest	true	"Report topic"
//	@Success		202		{object}	CreateReportResponse
//	@Failure		400		{object}	HTTPError
//	@Failure		402		{object}	HTTPError
//	@Failure		500		{object}	HTTPError
//	@Router			/api/reports [post]
func (h *ReportsHandler) start(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	topic := helpers.SanitizeTopic(req.Topic)
	if !helpers.ValidTopic(topic) {
		return echo.NewHTTPError(http.StatusBadRequest, "topic must be 3-500 characters after sanitization")
	}

	runID, err := h.Store.CreateRunWithDebit(c.Request().Context(), userID, topic)
	if err != nil {
		if errors.Is(err, report.ErrInsufficientCredits) {
			return echo.NewHTTPError(http.StatusPaymentRequired, "insufficient credits")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	timeout := h.RunTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := h.Engine.Execute(ctx, runID, topic); err != nil {
			h.logger().Printf("run %s: %v", runID, err)
		}
	}()

	return c.JSON(http.StatusAccepted, CreateReportResponse{
		ID:     runID,
		Status: string(report.StatusPending),
	})
}

// Get run
//
//	@Summary	Get one report run with all artifacts
//	@Tags		reports
//	@Produce	json
//	@Param		id	path		string	true	"Run id"
//	@Success	200	{object}	report.Run
//	@Failure	404	{object}	HTTPError
//	@Router		/api/reports/{id} [get]
func (h *ReportsHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	run, err := h.Store.GetRun(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, report.ErrRunNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, run)
}

// List runs
//
//	@Summary	List the caller's report runs, newest first
//	@Tags		reports
//	@Produce	json
//	@Success	200	{array}	report.Summary
//	@Router		/api/reports [get]
func (h *ReportsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	items, err := h.Store.ListRuns(c.Request().Context(), userID, 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

// Cancel run
//
//	@Summary		Cancel an in-progress report run
//	@Description	Marks the run cancelled immediately and signals the engine
//	@Tags			reports
//	@Produce		json
//	@Param			id	path		string	true	"Run id"
//	@Success		200	{string}	string	"OK"
//	@Failure		404	{object}	HTTPError
//	@Failure		409	{object}	HTTPError
//	@Router			/api/reports/{id}/cancel [post]
func (h *ReportsHandler) cancel(c echo.Context) error {
	userID := c.Get("user_id").(string)
	runID := c.Param("id")

	// The record is updated synchronously; the engine's between-phase check
	// is a safety net, not the enforcement point.
	err := h.Store.CancelOwnedRun(c.Request().Context(), runID, userID, "cancelled by user")
	if err != nil {
		if errors.Is(err, report.ErrRunNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		if errors.Is(err, report.ErrRunTerminal) {
			return echo.NewHTTPError(http.StatusConflict, "cannot cancel a finished run")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Cancels.Signal(c.Request().Context(), runID); err != nil {
		h.logger().Printf("run %s: cancel signal failed: %v", runID, err)
	}
	return c.NoContent(http.StatusOK)
}

// Delete run
//
//	@Summary	Delete a report run
//	@Tags		reports
//	@Produce	json
//	@Param		id	path		string	true	"Run id"
//	@Success	204	{string}	string	"No Content"
//	@Failure	404	{object}	HTTPError
//	@Router		/api/reports/{id} [delete]
func (h *ReportsHandler) delete(c echo.Context) error {
	userID := c.Get("user_id").(string)
	err := h.Store.DeleteRun(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, report.ErrRunNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
