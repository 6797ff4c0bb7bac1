package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
	"github.com/cfa-prep/study-service/internal/validator"
	"github.com/xuri/excelize/v2"
)

const answerColumnPrefix = "answer_"

var requiredImportColumns = []string{"module", "question_text", "correct_answer"}

type importExportService struct {
	repo      repositories.Repository
	dashboard DashboardService
	logger    *ServiceLogger
}

func NewImportExportService(repo repositories.Repository, dashboard DashboardService, logger *ServiceLogger) ImportExportService {
	return &importExportService{
		repo:      repo,
		dashboard: dashboard,
		logger:    logger,
	}
}

// ===== IMPORT OPERATIONS =====

// ImportQuestions reads a CSV or XLSX question sheet. Rows with problems are
// reported and skipped; the remaining rows are stored in one batch.
func (s *importExportService) ImportQuestions(ctx context.Context, r io.Reader, filename string) (result *ImportResult, err error) {
	op := s.logger.WithOperation(ctx, "content.import", "")
	defer func() { op.LogResult("file:"+filename, err) }()

	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSVRows(r)
	case ".xlsx":
		rows, err = readExcelRows(r)
	default:
		return nil, NewValidationError("file", "must be a .csv or .xlsx file", filename)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, NewValidationError("file", "must have a header row and at least one data row", len(rows))
	}

	header := make(map[string]int)
	var answerColumns []string
	for i, name := range rows[0] {
		name = strings.ToLower(strings.TrimSpace(name))
		header[name] = i
		if strings.HasPrefix(name, answerColumnPrefix) && len(name) > len(answerColumnPrefix) {
			answerColumns = append(answerColumns, name)
		}
	}
	for _, col := range requiredImportColumns {
		if _, ok := header[col]; !ok {
			return nil, NewValidationError("headers", fmt.Sprintf("missing required column: %s", col), col)
		}
	}
	if len(answerColumns) < 2 {
		return nil, NewValidationError("headers", "at least two answer_<label> columns are required", len(answerColumns))
	}
	sort.Strings(answerColumns)

	result = &ImportResult{}
	modules := make(map[string]*models.Module)
	var questions []*models.Question

	for i, record := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(record) {
			continue
		}

		question, msg := parseQuestionRow(record, header, answerColumns)
		if msg != "" {
			result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Message: msg})
			continue
		}

		moduleName := cell(record, header, "module")
		module, created, err := s.resolveModule(ctx, modules, moduleName)
		if err != nil {
			return nil, err
		}
		if created {
			result.ModulesCreated++
		}
		question.ModuleID = module.ID
		questions = append(questions, question)
	}

	if len(questions) > 0 {
		if err := s.repo.Content().CreateQuestions(ctx, questions); err != nil {
			return nil, NewPersistenceError("store imported questions", err)
		}
	}
	result.QuestionsImported = len(questions)

	s.logger.Logger().Info("Question import completed",
		"file", filename,
		"questions", result.QuestionsImported,
		"modules_created", result.ModulesCreated,
		"row_errors", len(result.Errors))

	return result, nil
}

func (s *importExportService) resolveModule(ctx context.Context, cache map[string]*models.Module, name string) (*models.Module, bool, error) {
	key := strings.ToLower(name)
	if m, ok := cache[key]; ok {
		return m, false, nil
	}

	m, err := s.repo.Content().GetModuleByName(ctx, name)
	if err == nil {
		cache[key] = m
		return m, false, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, false, NewPersistenceError("load module", err)
	}

	m = &models.Module{Name: name, Slug: Slugify(name)}
	if err := s.repo.Content().CreateModule(ctx, m); err != nil {
		return nil, false, NewPersistenceError("create module", err)
	}
	cache[key] = m
	return m, true, nil
}

func parseQuestionRow(record []string, header map[string]int, answerColumns []string) (*models.Question, string) {
	if cell(record, header, "module") == "" {
		return nil, "module is required"
	}
	text := cell(record, header, "question_text")
	if text == "" {
		return nil, "question_text is required"
	}

	question := &models.Question{
		Text:        text,
		Explanation: cell(record, header, "explanation"),
	}
	for _, col := range answerColumns {
		value := cell(record, header, col)
		if value == "" {
			continue
		}
		label := strings.ToUpper(strings.TrimPrefix(col, answerColumnPrefix))
		if !validator.IsChoiceLabel(label) {
			return nil, fmt.Sprintf("column %s does not name a valid choice label", col)
		}
		question.Choices = append(question.Choices, models.QuestionChoice{Label: label, Text: value})
	}
	if len(question.Choices) < 2 {
		return nil, "at least two answers are required"
	}

	correct := strings.ToUpper(cell(record, header, "correct_answer"))
	if correct == "" {
		return nil, "correct_answer is required"
	}
	if !question.HasChoice(correct) {
		return nil, fmt.Sprintf("correct_answer %q is not one of the row's answers", correct)
	}
	question.CorrectAnswer = correct
	return question, ""
}

func cell(record []string, header map[string]int, column string) string {
	i, ok := header[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func isBlankRow(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func readCSVRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, NewValidationError("file", fmt.Sprintf("unreadable CSV: %v", err), nil)
	}
	return rows, nil
}

func readExcelRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, NewValidationError("file", fmt.Sprintf("unreadable Excel file: %v", err), nil)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "Excel file has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	return rows, nil
}

// ===== EXPORT OPERATIONS =====

var historyHeaders = []string{
	"Started", "Completed", "Module", "Score", "Correct", "Questions", "Time Spent",
}

// ExportHistory writes the user's test history as an XLSX workbook
func (s *importExportService) ExportHistory(ctx context.Context, userID string, w io.Writer) error {
	entries, err := s.dashboard.History(ctx, userID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "History"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name Excel sheet: %w", err)
	}

	for i, header := range historyHeaders {
		cellName, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cellName, header)
	}

	for rowIndex, entry := range entries {
		completed := ""
		if entry.EndTime != nil {
			completed = entry.EndTime.UTC().Format("2006-01-02 15:04")
		}
		score := ""
		if entry.Score != nil {
			score = fmt.Sprintf("%d%%", *entry.Score)
		}
		row := []interface{}{
			entry.StartTime.UTC().Format("2006-01-02 15:04"),
			completed,
			entry.ModuleName,
			score,
			entry.CorrectCount,
			entry.QuestionCount,
			entry.TimeSpentText,
		}
		for colIndex, value := range row {
			cellName, _ := excelize.CoordinatesToCellName(colIndex+1, rowIndex+2)
			f.SetCellValue(sheetName, cellName, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}
