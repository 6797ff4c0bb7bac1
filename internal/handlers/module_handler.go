package handlers

import (
	"net/http"

	"github.com/cfa-prep/study-service/internal/services"
	"github.com/cfa-prep/study-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// maxImportSize bounds uploaded question sheets
const maxImportSize = 10 << 20

type ModuleHandler struct {
	BaseHandler
	contentService      services.ContentService
	importExportService services.ImportExportService
}

func NewModuleHandler(
	contentService services.ContentService,
	importExportService services.ImportExportService,
	logger utils.Logger,
) *ModuleHandler {
	return &ModuleHandler{
		BaseHandler:         NewBaseHandler(logger),
		contentService:      contentService,
		importExportService: importExportService,
	}
}

// ListModules lists every module with its question count
// @Summary List modules
// @Tags modules
// @Produce json
// @Success 200 {array} models.Module
// @Failure 502 {object} ErrorResponse
// @Router /modules [get]
func (h *ModuleHandler) ListModules(c *gin.Context) {
	modules, err := h.contentService.ListModules(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, modules)
}

// ImportQuestions loads questions from an uploaded CSV or XLSX sheet
// @Summary Import questions
// @Description Columns: module, question_text, answer_a, answer_b[, answer_c...], correct_answer, explanation. Unknown modules are created; invalid rows are reported and skipped.
// @Tags modules
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} SuccessResponse{data=services.ImportResult}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /modules/import [post]
func (h *ModuleHandler) ImportQuestions(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "A file upload named \"file\" is required", err, err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Unable to read uploaded file", err)
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing questions", "filename", fileHeader.Filename, "size", fileHeader.Size)

	result, err := h.importExportService.ImportQuestions(c.Request.Context(), file, fileHeader.Filename)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Questions imported", result,
		"questions", result.QuestionsImported,
		"row_errors", len(result.Errors))
}
