// Package server exposes a run over HTTP: one endpoint starts it, the others
// read the finished report and the archive of past reports.
package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pevans/deskstats/report"
	"github.com/pevans/deskstats/scheduler"
)

// APIServer represents the HTTP API server for runs and reports.
type APIServer struct {
	sched *scheduler.Scheduler
	store *report.Store
}

// RunStatusResponse is the body of GET /api/v1/runs/status.
type RunStatusResponse struct {
	Status string `json:"status"`
}

// NewAPIServer creates a new API server. store may be nil, in which case the
// archive endpoints answer 404.
func NewAPIServer(sched *scheduler.Scheduler, store *report.Store) *APIServer {
	return &APIServer{
		sched: sched,
		store: store,
	}
}

// SetupRouter configures the Gin router with the run and report routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.Default()

	api := router.Group("/api/v1")
	api.POST("/runs", s.HandleBeginRun)
	api.GET("/runs/status", s.HandleRunStatus)
	api.GET("/report", s.HandleLatestReport)
	api.GET("/reports", s.HandleListReports)
	api.GET("/reports/:id", s.HandleGetReport)
	api.GET("/reports/:id/chart", s.HandleReportChart)

	return router
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// HandleBeginRun handles POST /api/v1/runs. The mode comes from the "mode"
// query or form value. A new run answers 202 with the wait estimate as
// plain text once the first page is in; the run itself continues in the
// background. A finished run answers 200 with the report.
func (s *APIServer) HandleBeginRun(ctx *gin.Context) {
	selection := ctx.Query("mode")
	if selection == "" {
		selection = ctx.PostForm("mode")
	}
	mode, err := report.ParseMode(selection)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_mode", err.Error()))
		return
	}

	estimates := make(chan scheduler.Estimate, 1)
	done := make(chan error, 1)

	go func() {
		// The run outlives this request
		done <- s.sched.Begin(context.WithoutCancel(ctx.Request.Context()), mode, func(e scheduler.Estimate) {
			estimates <- e
		})
	}()

	select {
	case e := <-estimates:
		ctx.String(http.StatusAccepted, e.String())
	case err := <-done:
		switch {
		case errors.Is(err, scheduler.ErrRunInProgress):
			ctx.JSON(http.StatusConflict, errorResponse("run_in_progress", err.Error()))
		case err != nil:
			ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", err.Error()))
		default:
			s.HandleLatestReport(ctx)
		}
	case <-ctx.Request.Context().Done():
	}
}

// HandleRunStatus handles GET /api/v1/runs/status.
func (s *APIServer) HandleRunStatus(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, RunStatusResponse{Status: s.sched.Status().String()})
}

// HandleLatestReport handles GET /api/v1/report.
func (s *APIServer) HandleLatestReport(ctx *gin.Context) {
	r, ok := s.sched.Latest()
	if !ok {
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", "No finished run yet"))
		return
	}
	ctx.JSON(http.StatusOK, r)
}

// HandleListReports handles GET /api/v1/reports.
func (s *APIServer) HandleListReports(ctx *gin.Context) {
	if s.store == nil {
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", "Report archive is disabled"))
		return
	}

	summaries, err := s.store.List()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to list reports"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"reports": summaries, "total": len(summaries)})
}

// HandleGetReport handles GET /api/v1/reports/:id.
func (s *APIServer) HandleGetReport(ctx *gin.Context) {
	r, ok := s.archivedReport(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, r)
}

// HandleReportChart handles GET /api/v1/reports/:id/chart.
func (s *APIServer) HandleReportChart(ctx *gin.Context) {
	r, ok := s.archivedReport(ctx)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.RenderChart(&buf, r); err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to render chart"))
		return
	}
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// archivedReport looks up the report named by the :id parameter, writing the
// error response itself when it cannot.
func (s *APIServer) archivedReport(ctx *gin.Context) (*report.Report, bool) {
	if s.store == nil {
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", "Report archive is disabled"))
		return nil, false
	}

	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_id", "Invalid run ID: "+err.Error()))
		return nil, false
	}

	r, err := s.store.Get(id)
	if errors.Is(err, report.ErrReportNotFound) {
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", "Report with ID "+id.String()+" not found"))
		return nil, false
	}
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to get report: "+err.Error()))
		return nil, false
	}
	return r, true
}
