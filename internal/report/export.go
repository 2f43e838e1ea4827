package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the media type of the exported workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var columnWidths = []float64{15, 20, 12, 14, 10, 24, 28, 18}

// ExportHours renders a fleet operating-hours report as a workbook.
func (s *Service) ExportHours(title string, rows []PumpHours) ([]byte, error) {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{r.PumpNumber, r.Name, r.Hours})
	}
	return writeWorkbook("Operating hours", title, []string{"Pump", "Name", "Hours"}, data)
}

// ExportStatus renders a status-at-time report as a workbook.
func (s *Service) ExportStatus(title string, rows []PumpStatus) ([]byte, error) {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		lastChange := ""
		if r.LastChange != nil {
			lastChange = s.cal.ToLocal(*r.LastChange, true)
		}
		data = append(data, []any{r.PumpNumber, r.Name, string(r.Status), lastChange, r.Reason, r.Notes})
	}
	return writeWorkbook("Status", title, []string{"Pump", "Name", "Status", "Last change", "Reason", "Notes"}, data)
}

// ExportHistory renders a history report as a workbook with local dates.
func (s *Service) ExportHistory(title string, rows []HistoryRow) ([]byte, error) {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		local := s.cal.ToLocal(r.EventTime, true)
		date, clock := local, ""
		if len(local) > 11 {
			date, clock = local[:10], local[11:16]
		}
		data = append(data, []any{r.PumpNumber, r.Name, string(r.Action), date, clock, r.Reason, r.Notes, r.UserName})
	}
	return writeWorkbook("History", title,
		[]string{"Pump", "Name", "Action", "Date", "Time", "Reason", "Notes", "User"}, data)
}

// writeWorkbook lays out one sheet: a merged title row, a bold header row
// and the data rows below it.
func writeWorkbook(sheet, title string, header []string, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("report.writeWorkbook: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return nil, fmt.Errorf("report.writeWorkbook: %w", err)
	}

	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return nil, fmt.Errorf("report.writeWorkbook: title: %w", err)
	}
	if len(header) > 1 {
		if err := f.MergeCell(sheet, "A1", lastCol+"1"); err != nil {
			return nil, fmt.Errorf("report.writeWorkbook: merge: %w", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("report.writeWorkbook: style: %w", err)
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A2", &headerRow); err != nil {
		return nil, fmt.Errorf("report.writeWorkbook: header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"2", bold); err != nil {
		return nil, fmt.Errorf("report.writeWorkbook: header style: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return nil, fmt.Errorf("report.writeWorkbook: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("report.writeWorkbook: row %d: %w", i+1, err)
		}
	}

	for i := range header {
		if i >= len(columnWidths) {
			break
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, columnWidths[i]); err != nil {
			return nil, fmt.Errorf("report.writeWorkbook: width: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("report.writeWorkbook: write: %w", err)
	}
	return buf.Bytes(), nil
}
