package v1

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/report"
)

type PumpDailyHoursInput struct {
	Number int    `path:"number" minimum:"1" doc:"Pump number"`
	Date   string `query:"date" doc:"Local date; today when omitted"`
}

type PumpMonthlyHoursInput struct {
	Number int    `path:"number" minimum:"1" doc:"Pump number"`
	Month  string `query:"month" doc:"Local year and month; the current month when omitted"`
}

type PumpHoursOutput struct {
	Body struct {
		PumpNumber int     `json:"pump_number"`
		Period     string  `json:"period"`
		Hours      float64 `json:"hours"`
	}
}

type DailyReportInput struct {
	Date string `query:"date" doc:"Local date; today when omitted"`
}

type MonthlyReportInput struct {
	Month string `query:"month" doc:"Local year and month; the current month when omitted"`
}

type FleetHoursOutput struct {
	Body struct {
		Period string      `json:"period"`
		Pumps  []HoursView `json:"pumps"`
	}
}

type StatusReportInput struct {
	At     string `query:"at" doc:"Local date-time; now when omitted"`
	Filter string `query:"filter" enum:"all,on,off" default:"all"`
}

type StatusReportOutput struct {
	Body struct {
		At    string       `json:"at"`
		Pumps []StatusView `json:"pumps"`
	}
}

type HistoryReportInput struct {
	From string `query:"from" required:"true" doc:"First local date"`
	To   string `query:"to" required:"true" doc:"Last local date"`
	Pump int    `query:"pump" minimum:"0" doc:"Pump number; 0 for every pump"`
}

type HistoryReportOutput struct {
	Body struct {
		From   string        `json:"from"`
		To     string        `json:"to"`
		Events []HistoryView `json:"events"`
	}
}

// reportQueries resolves the optional period parameters shared by the JSON
// and the workbook variants of a report.
type reportQueries struct {
	cal calendar.Converter
}

func (q reportQueries) day(local string) (calendar.Date, error) {
	if strings.TrimSpace(local) == "" {
		return today(q.cal)
	}
	return q.cal.ParseDate(local)
}

func (q reportQueries) month(local string) (int, int, error) {
	if strings.TrimSpace(local) == "" {
		d, err := today(q.cal)
		return d.Year, d.Month, err
	}
	return q.cal.ParseMonth(local)
}

func (q reportQueries) instant(local string) (time.Time, error) {
	if strings.TrimSpace(local) == "" {
		return time.Now(), nil
	}
	return q.cal.ToCanonical(local)
}

func (q reportQueries) monthLabel(year, month int) string {
	// FormatDate pads to Y-M-D; keep the year and month.
	s := q.cal.FormatDate(calendar.Date{Year: year, Month: month, Day: 1})
	return s[:len(s)-3]
}

// RegisterReportRoutes registers operating-hours, status and history reports
// and their workbook exports.
func RegisterReportRoutes(api huma.API, svc ReportService, pumps PumpLookup) {
	cal := svc.Calendar()
	q := reportQueries{cal: cal}

	huma.Register(api, huma.Operation{
		OperationID: "get-pump-daily-hours",
		Method:      http.MethodGet,
		Path:        "/pumps/{number}/hours/daily",
		Summary:     "Operating hours of one pump on a local day",
		Tags:        []string{"Reports"},
	}, func(ctx context.Context, input *PumpDailyHoursInput) (*PumpHoursOutput, error) {
		day, err := q.day(input.Date)
		if err != nil {
			return nil, fail("get-pump-daily-hours", err, cal)
		}
		p, err := pumps.GetPump(ctx, input.Number)
		if err != nil {
			return nil, fail("get-pump-daily-hours", err, cal)
		}

		hours, err := svc.DailyHours(ctx, p.ID, day)
		if err != nil {
			return nil, fail("get-pump-daily-hours", err, cal)
		}

		out := &PumpHoursOutput{}
		out.Body.PumpNumber = p.Number
		out.Body.Period = cal.FormatDate(day)
		out.Body.Hours = hours
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-pump-monthly-hours",
		Method:      http.MethodGet,
		Path:        "/pumps/{number}/hours/monthly",
		Summary:     "Operating hours of one pump in a local month",
		Tags:        []string{"Reports"},
	}, func(ctx context.Context, input *PumpMonthlyHoursInput) (*PumpHoursOutput, error) {
		year, month, err := q.month(input.Month)
		if err != nil {
			return nil, fail("get-pump-monthly-hours", err, cal)
		}
		p, err := pumps.GetPump(ctx, input.Number)
		if err != nil {
			return nil, fail("get-pump-monthly-hours", err, cal)
		}

		hours, err := svc.MonthlyHours(ctx, p.ID, year, month)
		if err != nil {
			return nil, fail("get-pump-monthly-hours", err, cal)
		}

		out := &PumpHoursOutput{}
		out.Body.PumpNumber = p.Number
		out.Body.Period = q.monthLabel(year, month)
		out.Body.Hours = hours
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-daily-hours-report",
		Method:      http.MethodGet,
		Path:        "/reports/hours/daily",
		Summary:     "Operating hours of every pump on a local day",
		Tags:        []string{"Reports"},
	}, func(ctx context.Context, input *DailyReportInput) (*FleetHoursOutput, error) {
		day, err := q.day(input.Date)
		if err != nil {
			return nil, fail("get-daily-hours-report", err, cal)
		}
		rows, err := svc.DailyFleetHours(ctx, day)
		if err != nil {
			return nil, fail("get-daily-hours-report", err, cal)
		}

		out := &FleetHoursOutput{}
		out.Body.Period = cal.FormatDate(day)
		out.Body.Pumps = hoursViews(rows)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-monthly-hours-report",
		Method:      http.MethodGet,
		Path:        "/reports/hours/monthly",
		Summary:     "Operating hours of every pump in a local month",
		Tags:        []string{"Reports"},
	}, func(ctx context.Context, input *MonthlyReportInput) (*FleetHoursOutput, error) {
		year, month, err := q.month(input.Month)
		if err != nil {
			return nil, fail("get-monthly-hours-report", err, cal)
		}
		rows, err := svc.MonthlyFleetHours(ctx, year, month)
		if err != nil {
			return nil, fail("get-monthly-hours-report", err, cal)
		}

		out := &FleetHoursOutput{}
		out.Body.Period = q.monthLabel(year, month)
		out.Body.Pumps = hoursViews(rows)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-status-report",
		Method:      http.MethodGet,
		Path:        "/reports/status",
		Summary:     "State of every pump at a local time",
		Tags:        []string{"Reports"},
	}, func(ctx context.Context, input *StatusReportInput) (*StatusReportOutput, error) {
		at, err := q.instant(input.At)
		if err != nil {
			return nil, fail("get-status-report", err, cal)
		}
		filter, err := report.ParseFilter(input.Filter)
		if err != nil {
			return nil, fail("get-status-report", err, cal)
		}

		rows, err := svc.StatusAt(ctx, at, filter)
		if err != nil {
			return nil, fail("get-status-report", err, cal)
		}

		out := &StatusReportOutput{}
		out.Body.At = cal.ToLocal(at, true)
		out.Body.Pumps = statusViews(rows, cal)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-history-report",
		Method:      http.MethodGet,
		Path:        "/reports/history",
		Summary:     "Events between two local dates, newest first",
		Tags:        []string{"Reports"},
	}, func(ctx context.Context, input *HistoryReportInput) (*HistoryReportOutput, error) {
		from, to, err := historyRange(cal, input.From, input.To)
		if err != nil {
			return nil, fail("get-history-report", err, cal)
		}

		rows, err := svc.FullHistory(ctx, from, to, input.Pump)
		if err != nil {
			return nil, fail("get-history-report", err, cal)
		}

		out := &HistoryReportOutput{}
		out.Body.From = cal.FormatDate(from)
		out.Body.To = cal.FormatDate(to)
		out.Body.Events = historyViews(rows, cal)
		return out, nil
	})

	registerExportRoutes(api, svc, q)
}

func registerExportRoutes(api huma.API, svc ReportService, q reportQueries) {
	cal := q.cal

	huma.Register(api, huma.Operation{
		OperationID: "export-daily-hours",
		Method:      http.MethodGet,
		Path:        "/exports/hours/daily",
		Summary:     "Download the daily operating-hours report",
		Tags:        []string{"Exports"},
	}, func(ctx context.Context, input *DailyReportInput) (*FileOutput, error) {
		day, err := q.day(input.Date)
		if err != nil {
			return nil, fail("export-daily-hours", err, cal)
		}
		rows, err := svc.DailyFleetHours(ctx, day)
		if err != nil {
			return nil, fail("export-daily-hours", err, cal)
		}

		label := cal.FormatDate(day)
		data, err := svc.ExportHours("Operating hours "+label, rows)
		if err != nil {
			return nil, fail("export-daily-hours", err, cal)
		}
		return xlsxFile(fileName("hours", label), data), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-monthly-hours",
		Method:      http.MethodGet,
		Path:        "/exports/hours/monthly",
		Summary:     "Download the monthly operating-hours report",
		Tags:        []string{"Exports"},
	}, func(ctx context.Context, input *MonthlyReportInput) (*FileOutput, error) {
		year, month, err := q.month(input.Month)
		if err != nil {
			return nil, fail("export-monthly-hours", err, cal)
		}
		rows, err := svc.MonthlyFleetHours(ctx, year, month)
		if err != nil {
			return nil, fail("export-monthly-hours", err, cal)
		}

		label := q.monthLabel(year, month)
		data, err := svc.ExportHours("Operating hours "+label, rows)
		if err != nil {
			return nil, fail("export-monthly-hours", err, cal)
		}
		return xlsxFile(fileName("hours", label), data), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-status",
		Method:      http.MethodGet,
		Path:        "/exports/status",
		Summary:     "Download the status-at-time report",
		Tags:        []string{"Exports"},
	}, func(ctx context.Context, input *StatusReportInput) (*FileOutput, error) {
		at, err := q.instant(input.At)
		if err != nil {
			return nil, fail("export-status", err, cal)
		}
		filter, err := report.ParseFilter(input.Filter)
		if err != nil {
			return nil, fail("export-status", err, cal)
		}
		rows, err := svc.StatusAt(ctx, at, filter)
		if err != nil {
			return nil, fail("export-status", err, cal)
		}

		label := cal.ToLocal(at, true)
		data, err := svc.ExportStatus("Pump status at "+label, rows)
		if err != nil {
			return nil, fail("export-status", err, cal)
		}
		return xlsxFile(fileName("status", cal.ToLocal(at, false)), data), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-history",
		Method:      http.MethodGet,
		Path:        "/exports/history",
		Summary:     "Download the event history report",
		Tags:        []string{"Exports"},
	}, func(ctx context.Context, input *HistoryReportInput) (*FileOutput, error) {
		from, to, err := historyRange(cal, input.From, input.To)
		if err != nil {
			return nil, fail("export-history", err, cal)
		}
		rows, err := svc.FullHistory(ctx, from, to, input.Pump)
		if err != nil {
			return nil, fail("export-history", err, cal)
		}

		label := cal.FormatDate(from) + " to " + cal.FormatDate(to)
		data, err := svc.ExportHistory("Event history "+label, rows)
		if err != nil {
			return nil, fail("export-history", err, cal)
		}
		return xlsxFile(fileName("history", cal.FormatDate(from)+"_"+cal.FormatDate(to)), data), nil
	})
}

func historyRange(cal calendar.Converter, from, to string) (calendar.Date, calendar.Date, error) {
	start, err := cal.ParseDate(from)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	end, err := cal.ParseDate(to)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, err
	}
	return start, end, nil
}

// fileName builds a download name without path separators.
func fileName(kind, label string) string {
	label = strings.NewReplacer("/", "-", " ", "_", ":", "").Replace(label)
	return fmt.Sprintf("pumpwatch_%s_%s.xlsx", kind, label)
}
