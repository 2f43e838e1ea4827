package wellaudit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/gosuda/pumpwatch/internal/domain"
)

// registryAliases maps registry header spellings to well attributes.
var registryAliases = map[string]string{
	"well_name":     "name",
	"well_location": "location",
}

// RegistryReport summarizes a registry import.
type RegistryReport struct {
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportRegistry creates the wells listed in the first sheet of an xlsx
// workbook, each with a pump of the same number. The sheet needs a
// well_number column; other columns are matched against the editable well
// attributes. Wells that already exist are skipped.
func (s *Service) ImportRegistry(ctx context.Context, actor domain.Actor, r io.Reader) (*RegistryReport, error) {
	if !actor.Role.Can(domain.CapImportHistory) {
		return nil, fmt.Errorf("wellaudit.ImportRegistry: %w", domain.ErrPermission)
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("wellaudit.ImportRegistry: %w", domain.Validationf("not a readable xlsx workbook: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("wellaudit.ImportRegistry: %w", domain.Validationf("workbook has no sheets"))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("wellaudit.ImportRegistry: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("wellaudit.ImportRegistry: %w", domain.Validationf("sheet %q is empty", sheets[0]))
	}

	numberCol := -1
	attrCols := make(map[int]string)
	for i, h := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(h))
		if alias, ok := registryAliases[name]; ok {
			name = alias
		}
		switch {
		case name == "well_number":
			numberCol = i
		case domain.IsEditableWellField(name):
			attrCols[i] = name
		}
	}
	if numberCol < 0 {
		return nil, fmt.Errorf("wellaudit.ImportRegistry: %w", domain.Validationf("missing column %q", "well_number"))
	}

	report := &RegistryReport{}
	now := s.now()
	for i, row := range rows[1:] {
		ref := i + 2
		if numberCol >= len(row) || strings.TrimSpace(row[numberCol]) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(row[numberCol]))
		if err != nil || n <= 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: invalid well number %q", ref, row[numberCol]))
			continue
		}

		attrs := make(map[string]*string, len(attrCols))
		for col, name := range attrCols {
			if col < len(row) {
				if v := strings.TrimSpace(row[col]); v != "" {
					attrs[name] = &v
				}
			}
		}

		err = s.store.RunInTx(ctx, func(ctx context.Context) error {
			if _, err := s.store.Wells().GetByID(ctx, int64(n)); err == nil {
				return errExists
			} else if !errors.Is(err, domain.ErrNotFound) {
				return err
			}

			pumpID := int64(n)
			if _, err := s.store.Pumps().GetByID(ctx, pumpID); errors.Is(err, domain.ErrNotFound) {
				p := &domain.Pump{ID: pumpID, Number: n, Name: fmt.Sprintf("Pump %d", n), Status: domain.ActionOff}
				if attrs["name"] != nil {
					p.Name = *attrs["name"]
				}
				if attrs["location"] != nil {
					p.Location = *attrs["location"]
				}
				if err := s.store.Pumps().Create(ctx, p); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			return s.store.Wells().Create(ctx, &domain.Well{
				ID:        int64(n),
				Number:    n,
				PumpID:    &pumpID,
				Attrs:     attrs,
				CreatedAt: now,
				UpdatedAt: now,
			})
		})
		switch {
		case err == nil:
			report.Inserted++
		case errors.Is(err, errExists):
			report.Skipped++
		default:
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: well %d: %v", ref, n, err))
		}
	}

	log.Info().
		Int("inserted", report.Inserted).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Msg("wellaudit.ImportRegistry: registry imported")

	return report, nil
}

var errExists = errors.New("wellaudit: well exists")
