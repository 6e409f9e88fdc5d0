// Package report exports scan history to spreadsheets.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/domain/entity"
)

const (
	historySheet = "History"
	summarySheet = "Summary"
	dateLayout   = "2006-01-02 15:04:05"
)

var historyHeaders = []string{
	"ID", "Date (UTC)", "Crop", "Diagnosis", "Confidence (%)", "Band", "Healthy",
	"Description", "Symptoms", "Treatment", "Prevention", "Message", "Image",
}

// HistoryExporter writes scans into an .xlsx workbook with a detail sheet
// and a per-crop summary sheet
type HistoryExporter struct {
	logger *zap.Logger
}

// NewHistoryExporter creates a new exporter
func NewHistoryExporter(logger *zap.Logger) *HistoryExporter {
	return &HistoryExporter{logger: logger}
}

// Export writes the workbook to w
func (e *HistoryExporter) Export(items []entity.ScanResult, w io.Writer) error {
	f, err := e.build(items)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ExportFile writes the workbook to path
func (e *HistoryExporter) ExportFile(items []entity.ScanResult, path string) error {
	f, err := e.build(items)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	e.logger.Info("History exported", zap.String("path", path), zap.Int("scans", len(items)))
	return nil
}

func (e *HistoryExporter) build(items []entity.ScanResult) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to add summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9EAD3"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	e.writeHistory(f, items, headerStyle)
	e.writeSummary(f, items, headerStyle)
	return f, nil
}

func (e *HistoryExporter) writeHistory(f *excelize.File, items []entity.ScanResult, headerStyle int) {
	for i, h := range historyHeaders {
		e.setCell(f, historySheet, cellName(i+1, 1), h)
	}
	last := cellName(len(historyHeaders), 1)
	if err := f.SetCellStyle(historySheet, "A1", last, headerStyle); err != nil {
		e.logger.Warn("Failed to style header row", zap.Error(err))
	}

	for r, s := range items {
		row := r + 2
		healthy := "No"
		if s.IsHealthy() {
			healthy = "Yes"
		}
		values := []interface{}{
			s.ID,
			s.Date.UTC().Format(dateLayout),
			s.CropType.String(),
			s.Diagnosis,
			s.Confidence,
			s.ConfidenceBand(),
			healthy,
			s.Recommendation.Description,
			strings.Join(s.Recommendation.Symptoms, "; "),
			s.Recommendation.Treatment,
			s.Recommendation.Prevention,
			s.Recommendation.Message,
			s.ImageURI,
		}
		for c, v := range values {
			e.setCell(f, historySheet, cellName(c+1, row), v)
		}
	}

	_ = f.SetColWidth(historySheet, "A", "A", 38)
	_ = f.SetColWidth(historySheet, "B", "G", 16)
	_ = f.SetColWidth(historySheet, "H", "M", 40)
	if err := f.SetPanes(historySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		e.logger.Warn("Failed to freeze header row", zap.Error(err))
	}
}

type cropSummary struct {
	scans   int
	healthy int
	failed  int
	top     map[string]int
}

func (e *HistoryExporter) writeSummary(f *excelize.File, items []entity.ScanResult, headerStyle int) {
	headers := []string{"Crop", "Scans", "Healthy", "Failed", "Most common diagnosis"}
	for i, h := range headers {
		e.setCell(f, summarySheet, cellName(i+1, 1), h)
	}
	if err := f.SetCellStyle(summarySheet, "A1", cellName(len(headers), 1), headerStyle); err != nil {
		e.logger.Warn("Failed to style summary header", zap.Error(err))
	}

	byCrop := make(map[entity.CropType]*cropSummary)
	for _, s := range items {
		cs, ok := byCrop[s.CropType]
		if !ok {
			cs = &cropSummary{top: make(map[string]int)}
			byCrop[s.CropType] = cs
		}
		cs.scans++
		switch {
		case s.Failed():
			cs.failed++
		case s.IsHealthy():
			cs.healthy++
		default:
			cs.top[strings.ToLower(s.Diagnosis)]++
		}
	}

	crops := make([]string, 0, len(byCrop))
	for c := range byCrop {
		crops = append(crops, string(c))
	}
	sort.Strings(crops)

	for i, c := range crops {
		cs := byCrop[entity.CropType(c)]
		row := i + 2
		e.setCell(f, summarySheet, cellName(1, row), c)
		e.setCell(f, summarySheet, cellName(2, row), cs.scans)
		e.setCell(f, summarySheet, cellName(3, row), cs.healthy)
		e.setCell(f, summarySheet, cellName(4, row), cs.failed)
		e.setCell(f, summarySheet, cellName(5, row), mostCommon(cs.top))
	}
	_ = f.SetColWidth(summarySheet, "A", "D", 12)
	_ = f.SetColWidth(summarySheet, "E", "E", 28)
}

// mostCommon picks the highest count, ties broken alphabetically
func mostCommon(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

// setCell sets a cell value in the workbook
func (e *HistoryExporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
