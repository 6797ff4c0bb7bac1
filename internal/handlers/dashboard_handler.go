package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/cfa-prep/study-service/internal/services"
	"github.com/cfa-prep/study-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type DashboardHandler struct {
	BaseHandler
	dashboardService    services.DashboardService
	importExportService services.ImportExportService
}

func NewDashboardHandler(
	dashboardService services.DashboardService,
	importExportService services.ImportExportService,
	logger utils.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		BaseHandler:         NewBaseHandler(logger),
		dashboardService:    dashboardService,
		importExportService: importExportService,
	}
}

// GetOverview returns the caller's dashboard
// @Summary Dashboard overview
// @Description Totals, study streak, milestones, per-module progress, score trend and exam countdown, recomputed from stored sessions.
// @Tags dashboard
// @Produce json
// @Success 200 {object} services.DashboardOverview
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /dashboard [get]
func (h *DashboardHandler) GetOverview(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	overview, err := h.dashboardService.Overview(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

// ListSessions returns the caller's test history, newest first
// @Summary Test history
// @Tags sessions
// @Produce json
// @Success 200 {array} services.HistoryEntry
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions [get]
func (h *DashboardHandler) ListSessions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	entries, err := h.dashboardService.History(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// ExportSessions downloads the caller's test history as an Excel workbook
// @Summary Export test history
// @Tags sessions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions/export [get]
func (h *DashboardHandler) ExportSessions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.importExportService.ExportHistory(c.Request.Context(), userID, &buf); err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("test-history-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// DeleteSession removes one of the caller's test sessions with its answers
// @Summary Delete test session
// @Tags sessions
// @Param id path uint true "Session ID"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [delete]
func (h *DashboardHandler) DeleteSession(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id := ParseUintParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting test session", "session_id", id)

	if err := h.dashboardService.DeleteSession(c.Request.Context(), userID, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
