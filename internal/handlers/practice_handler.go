package handlers

import (
	"net/http"

	"github.com/cfa-prep/study-service/internal/services"
	"github.com/cfa-prep/study-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type PracticeHandler struct {
	BaseHandler
	practiceService services.PracticeService
}

func NewPracticeHandler(practiceService services.PracticeService, logger utils.Logger) *PracticeHandler {
	return &PracticeHandler{
		BaseHandler:     NewBaseHandler(logger),
		practiceService: practiceService,
	}
}

// SelectChoiceRequest carries the label of the chosen answer
type SelectChoiceRequest struct {
	Choice string `json:"choice" binding:"required"`
}

// StartRun starts a practice run over a module's questions
// @Summary Start practice run
// @Description Loads the module's questions and starts a run on the first one. Any earlier run of the caller is abandoned.
// @Tags practice
// @Produce json
// @Param slug path string true "Module slug"
// @Success 201 {object} services.RunView
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /practice/{slug}/runs [post]
func (h *PracticeHandler) StartRun(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	slug := ParseStringIDParam(c, "slug")
	if slug == "" {
		return
	}

	h.LogRequest(c, "Starting practice run", "module_slug", slug)

	view, err := h.practiceService.Start(c.Request.Context(), userID, slug)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// GetRun returns the current state of a practice run
// @Summary Get practice run
// @Tags practice
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} services.RunView
// @Failure 404 {object} ErrorResponse
// @Router /practice/runs/{run_id} [get]
func (h *PracticeHandler) GetRun(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	runID := ParseStringIDParam(c, "run_id")
	if runID == "" {
		return
	}

	view, err := h.practiceService.Get(c.Request.Context(), userID, runID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SelectChoice records the pending choice for the current question
// @Summary Select answer
// @Tags practice
// @Accept json
// @Produce json
// @Param run_id path string true "Run ID"
// @Param selection body SelectChoiceRequest true "Chosen label"
// @Success 200 {object} services.RunView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /practice/runs/{run_id}/selection [put]
func (h *PracticeHandler) SelectChoice(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	runID := ParseStringIDParam(c, "run_id")
	if runID == "" {
		return
	}

	var req SelectChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	view, err := h.practiceService.Select(c.Request.Context(), userID, runID, req.Choice)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitAnswer records the selected answer. Submitting the last question
// finalizes the test session.
// @Summary Submit answer
// @Tags practice
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} services.RunView
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /practice/runs/{run_id}/submit [post]
func (h *PracticeHandler) SubmitAnswer(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	runID := ParseStringIDParam(c, "run_id")
	if runID == "" {
		return
	}

	view, err := h.practiceService.Submit(c.Request.Context(), userID, runID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	if view.Result != nil {
		h.LogInfo(c, "Practice run completed",
			"run_id", runID,
			"session_id", view.Result.SessionID,
			"score", view.Result.Score)
	}
	c.JSON(http.StatusOK, view)
}

// NextQuestion moves a reviewed run to its next question
// @Summary Next question
// @Tags practice
// @Produce json
// @Param run_id path string true "Run ID"
// @Success 200 {object} services.RunView
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /practice/runs/{run_id}/advance [post]
func (h *PracticeHandler) NextQuestion(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	runID := ParseStringIDParam(c, "run_id")
	if runID == "" {
		return
	}

	view, err := h.practiceService.Advance(c.Request.Context(), userID, runID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// AbandonRun drops a practice run. Answers already submitted stay recorded.
// @Summary Abandon practice run
// @Tags practice
// @Param run_id path string true "Run ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /practice/runs/{run_id} [delete]
func (h *PracticeHandler) AbandonRun(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	runID := ParseStringIDParam(c, "run_id")
	if runID == "" {
		return
	}

	if err := h.practiceService.Abandon(c.Request.Context(), userID, runID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
