// Package export renders workflow audit trails as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

// ContentType is the MIME type of the generated workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const timeLayout = "2006-01-02 15:04:05"

var historyHeader = []interface{}{"#", "Time (UTC)", "Step", "Action", "Actor ID", "Actor Name", "Actor Role", "Comment"}

// HistoryExporter writes an instance's approval history to an XLSX workbook
type HistoryExporter struct {
	sheetName string
	logger    *zap.Logger
}

// NewHistoryExporter creates an exporter writing to a sheet with the given name
func NewHistoryExporter(sheetName string, logger *zap.Logger) *HistoryExporter {
	if sheetName == "" {
		sheetName = "Approval History"
	}
	return &HistoryExporter{
		sheetName: sheetName,
		logger:    logger,
	}
}

// Write renders a summary block for the instance followed by one row per history entry
func (e *HistoryExporter) Write(w io.Writer, instance *entity.WorkflowInstance, history []*entity.ApprovalHistory) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), e.sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	completedAt := ""
	if instance.CompletedAt != nil {
		completedAt = instance.CompletedAt.UTC().Format(timeLayout)
	}

	summary := [][]interface{}{
		{"Instance", instance.ID},
		{"Record", fmt.Sprintf("%s/%s", instance.RecordTable, instance.RecordID)},
		{"Status", string(instance.Status)},
		{"Started By", instance.StartedBy},
		{"Started At", instance.StartedAt.UTC().Format(timeLayout)},
		{"Completed At", completedAt},
	}

	row := 1
	for _, values := range summary {
		if err := e.setRow(f, row, values); err != nil {
			return err
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		e.setStyle(f, cell, cell, bold)
		row++
	}

	row++
	if err := e.setRow(f, row, historyHeader); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(historyHeader), row)
	e.setStyle(f, first, last, bold)
	row++

	for _, entry := range history {
		values := []interface{}{
			entry.Sequence,
			entry.CreatedAt.UTC().Format(timeLayout),
			entry.StepCode,
			string(entry.Action),
			entry.ActorID,
			entry.ActorName,
			entry.ActorRole,
			entry.Comment,
		}
		if err := e.setRow(f, row, values); err != nil {
			return err
		}
		row++
	}

	if err := f.SetColWidth(e.sheetName, "A", "H", 20); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Approval history exported",
		zap.String("instance_id", instance.ID),
		zap.Int("entries", len(history)))
	return nil
}

func (e *HistoryExporter) setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(e.sheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func (e *HistoryExporter) setStyle(f *excelize.File, from, to string, style int) {
	if err := f.SetCellStyle(e.sheetName, from, to, style); err != nil {
		e.logger.Warn("Failed to set cell style",
			zap.String("sheet", e.sheetName),
			zap.String("range", from+":"+to),
			zap.Error(err))
	}
}
