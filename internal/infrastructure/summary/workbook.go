// Package summary renders an application record into an xlsx workbook that
// accompanies the generated application document.
package summary

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/visaflow/internal/application/bypass"
	"github.com/garyjia/visaflow/internal/application/checklist"
	"github.com/garyjia/visaflow/internal/domain/entity"
)

// Sheet names
const (
	SheetApplication = "Application"
	SheetDocuments   = "Documents"
	SheetValidation  = "Validation"
)

const timestampLayout = "2006-01-02 15:04"

// WorkbookRenderer implements port.SummaryRenderer with excelize
type WorkbookRenderer struct {
	logger *zap.Logger
}

// NewWorkbookRenderer creates a workbook renderer
func NewWorkbookRenderer(logger *zap.Logger) *WorkbookRenderer {
	return &WorkbookRenderer{logger: logger}
}

// Extension returns the file extension of rendered summaries
func (r *WorkbookRenderer) Extension() string {
	return ".xlsx"
}

// Render builds the workbook and returns its bytes
func (r *WorkbookRenderer) Render(rec entity.ApplicationRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with Sheet1
	if err := f.SetSheetName("Sheet1", SheetApplication); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetDocuments, SheetValidation} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	r.fillApplication(f, rec, headerStyle)
	r.fillDocuments(f, rec.Documents, headerStyle)
	r.fillValidation(f, rec, headerStyle)

	if err := f.SetColWidth(SheetApplication, "A", "A", 24); err != nil {
		r.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetColWidth(SheetApplication, "B", "B", 40); err != nil {
		r.logger.Warn("Failed to set column width", zap.Error(err))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	r.logger.Debug("Application summary rendered",
		zap.String("status", rec.Status.String()),
		zap.Int("documents", len(rec.Documents)),
		zap.Int("size", buf.Len()))

	return buf.Bytes(), nil
}

func (r *WorkbookRenderer) fillApplication(f *excelize.File, rec entity.ApplicationRecord, headerStyle int) {
	rows := [][2]string{
		{"Visa type", rec.VisaType},
		{"Status", rec.Status.String()},
		{"Reference number", rec.ReferenceNumber},
		{"", ""},
		{"Applicant", ""},
		{"Full name", rec.FullName},
		{"Date of birth", rec.DateOfBirth},
		{"Nationality", rec.Nationality},
		{"Passport number", rec.PassportNumber},
		{"Email", rec.Email},
		{"Phone", rec.Phone},
		{"Street", rec.Address.Street},
		{"City", rec.Address.City},
		{"State", rec.Address.State},
		{"Postcode", rec.Address.Postcode},
		{"Country", rec.Address.Country},
		{"", ""},
		{"Employment", ""},
		{"Employer", rec.EmployerName},
		{"Job title", rec.JobTitle},
		{"Start date", rec.EmploymentStartDate},
		{"Annual salary", rec.FormatSalary()},
		{"", ""},
		{"Created", formatTime(&rec.CreatedAt)},
		{"Submitted", formatTime(rec.SubmittedAt)},
		{"Approved", formatTime(rec.ApprovedAt)},
	}

	for i, row := range rows {
		rowNum := i + 1
		r.setCell(f, SheetApplication, cell(1, rowNum), row[0])
		r.setCell(f, SheetApplication, cell(2, rowNum), row[1])
		if row[1] == "" && (row[0] == "Applicant" || row[0] == "Employment") {
			r.setStyle(f, SheetApplication, cell(1, rowNum), cell(1, rowNum), headerStyle)
		}
	}
}

func (r *WorkbookRenderer) fillDocuments(f *excelize.File, docs []entity.DocumentRef, headerStyle int) {
	r.setRow(f, SheetDocuments, 1, []interface{}{"Type", "File name", "Size (bytes)", "Uploaded"})
	r.setStyle(f, SheetDocuments, "A1", "D1", headerStyle)

	for i, doc := range docs {
		r.setRow(f, SheetDocuments, i+2, []interface{}{
			string(doc.Type), doc.FileName, doc.FileSizeBytes, doc.UploadedAt.Format(timestampLayout),
		})
	}

	// Checklist below the list, one row per document type
	start := len(docs) + 3
	r.setRow(f, SheetDocuments, start, []interface{}{"Checklist", "Count", "Required"})
	r.setStyle(f, SheetDocuments, cell(1, start), cell(3, start), headerStyle)
	for i, entry := range checklist.Summary(docs) {
		r.setRow(f, SheetDocuments, start+i+1, []interface{}{string(entry.Type), entry.Count, yesNo(entry.Required)})
	}
}

func (r *WorkbookRenderer) fillValidation(f *excelize.File, rec entity.ApplicationRecord, headerStyle int) {
	r.setRow(f, SheetValidation, 1, []interface{}{"Field", "Severity", "Message", "Bypassed"})
	r.setStyle(f, SheetValidation, "A1", "D1", headerStyle)

	ledger := bypass.NewLedger(rec.ValidationBypass)
	for i, finding := range rec.ValidationErrors {
		r.setRow(f, SheetValidation, i+2, []interface{}{
			finding.Field, string(finding.Severity), finding.Message, yesNo(finding.AllowBypass && ledger.Contains(finding.Field)),
		})
	}
}

// setCell sets a cell value, logging instead of failing
func (r *WorkbookRenderer) setCell(f *excelize.File, sheet, axis string, value interface{}) {
	if err := f.SetCellValue(sheet, axis, value); err != nil {
		r.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", axis),
			zap.Error(err))
	}
}

func (r *WorkbookRenderer) setRow(f *excelize.File, sheet string, row int, values []interface{}) {
	if err := f.SetSheetRow(sheet, cell(1, row), &values); err != nil {
		r.logger.Warn("Failed to set row",
			zap.String("sheet", sheet),
			zap.Int("row", row),
			zap.Error(err))
	}
}

func (r *WorkbookRenderer) setStyle(f *excelize.File, sheet, from, to string, style int) {
	if err := f.SetCellStyle(sheet, from, to, style); err != nil {
		r.logger.Warn("Failed to set cell style", zap.String("sheet", sheet), zap.Error(err))
	}
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
