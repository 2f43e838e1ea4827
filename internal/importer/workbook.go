package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/gosuda/pumpwatch/internal/domain"
)

// TemplateColumns is the header row of an import workbook.
var TemplateColumns = []string{"Pump_Number", "Action", "Date", "Time", "Reason", "Notes"}

// columnAliases maps accepted header spellings to RawRow fields.
var columnAliases = map[string]string{
	"pump_number": "pump_number",
	"pump":        "pump_number",
	"action":      "action",
	"date":        "date",
	"date_jalali": "date",
	"time":        "time",
	"time_jalali": "time",
	"reason":      "reason",
	"notes":       "notes",
}

var requiredColumns = []string{"pump_number", "action", "date", "reason"}

// ParseWorkbook reads the first sheet of an xlsx workbook. The first row is
// the header; Ref of each returned row is its spreadsheet row number.
func ParseWorkbook(r io.Reader) ([]RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("importer.ParseWorkbook: %w", domain.Validationf("not a readable xlsx workbook: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("importer.ParseWorkbook: %w", domain.Validationf("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("importer.ParseWorkbook: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("importer.ParseWorkbook: %w", domain.Validationf("sheet %q is empty", sheets[0]))
	}

	index := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := columnAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := index[field]; !dup {
				index[field] = i
			}
		}
	}
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("importer.ParseWorkbook: %w", domain.Validationf("missing column %q", c))
		}
	}

	cell := func(row []string, field string) string {
		i, ok := index[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []RawRow
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		out = append(out, RawRow{
			Ref:        i + 2,
			PumpNumber: cell(row, "pump_number"),
			Action:     cell(row, "action"),
			Date:       cell(row, "date"),
			Time:       cell(row, "time"),
			Reason:     cell(row, "reason"),
			Notes:      cell(row, "notes"),
		})
	}

	return out, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ImportWorkbook parses an uploaded workbook and imports its rows.
func (s *Service) ImportWorkbook(ctx context.Context, actor domain.Actor, r io.Reader) (*Report, error) {
	raw, err := ParseWorkbook(r)
	if err != nil {
		return nil, err
	}
	return s.ImportBatch(ctx, actor, raw)
}

// Template returns a workbook with the import header and a few example rows
// dated in the configured calendar.
func (s *Service) Template() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Import"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("importer.Template: %w", err)
	}

	header := make([]any, len(TemplateColumns))
	for i, c := range TemplateColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("importer.Template: header: %w", err)
	}

	base := s.now().Truncate(24 * time.Hour)
	samples := []struct {
		pump   int
		action domain.Action
		at     time.Time
		reason string
		notes  string
	}{
		{1, domain.ActionOn, base.Add(8 * time.Hour), "Scheduled start", ""},
		{1, domain.ActionOff, base.Add(12*time.Hour + 30*time.Minute), "Power cut", "Two hour outage"},
		{2, domain.ActionOn, base.Add(33*time.Hour + 15*time.Minute), "Repair finished", "Part replaced"},
		{3, domain.ActionOff, base.Add(41*time.Hour + 45*time.Minute), "End of shift", ""},
	}
	for i, smp := range samples {
		local := s.cal.ToLocal(smp.at, true)
		row := []any{smp.pump, string(smp.action), local[:10], local[11:16], smp.reason, smp.notes}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("importer.Template: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("importer.Template: row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("importer.Template: write: %w", err)
	}
	return buf.Bytes(), nil
}
