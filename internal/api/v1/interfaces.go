package v1

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/importer"
	"github.com/gosuda/pumpwatch/internal/report"
	"github.com/gosuda/pumpwatch/internal/status"
	"github.com/gosuda/pumpwatch/internal/wellaudit"
)

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// PumpLookup resolves a pump by its operator-facing number.
type PumpLookup interface {
	GetPump(ctx context.Context, number int) (*domain.Pump, error)
}

// StatusService abstracts the live event path. *status.Service satisfies
// this interface.
type StatusService interface {
	PumpLookup
	ListPumps(ctx context.Context) ([]*domain.Pump, error)
	ApplyEvent(ctx context.Context, req status.ApplyRequest) (*domain.Event, error)
	StateAt(ctx context.Context, pumpID int64, t time.Time) (domain.Action, error)
	Records(ctx context.Context, pumpID int64, page int, actor domain.Actor) (*status.RecordsPage, error)
	CheckDeletable(ctx context.Context, eventID int64, actor domain.Actor) error
	DeleteLatestEvent(ctx context.Context, req status.DeleteRequest) (*domain.DeletionLog, error)
	DeletionLogs(ctx context.Context, actor domain.Actor, limit int) ([]*domain.DeletionLog, error)
}

// ReportService abstracts read-side reports. *report.Service satisfies this
// interface.
type ReportService interface {
	Calendar() calendar.Converter
	DailyHours(ctx context.Context, pumpID int64, day calendar.Date) (float64, error)
	MonthlyHours(ctx context.Context, pumpID int64, year, month int) (float64, error)
	DailyFleetHours(ctx context.Context, day calendar.Date) ([]report.PumpHours, error)
	MonthlyFleetHours(ctx context.Context, year, month int) ([]report.PumpHours, error)
	StatusAt(ctx context.Context, t time.Time, filter report.Filter) ([]report.PumpStatus, error)
	FullHistory(ctx context.Context, from, to calendar.Date, pumpNumber int) ([]report.HistoryRow, error)
	ExportHours(title string, rows []report.PumpHours) ([]byte, error)
	ExportStatus(title string, rows []report.PumpStatus) ([]byte, error)
	ExportHistory(title string, rows []report.HistoryRow) ([]byte, error)
}

// ImportService abstracts bulk history import. *importer.Service satisfies
// this interface.
type ImportService interface {
	ImportBatch(ctx context.Context, actor domain.Actor, raw []importer.RawRow) (*importer.Report, error)
	ImportWorkbook(ctx context.Context, actor domain.Actor, r io.Reader) (*importer.Report, error)
	Template() ([]byte, error)
}

// WellService abstracts well metadata and its audit trail.
// *wellaudit.Service satisfies this interface.
type WellService interface {
	ListWells(ctx context.Context) ([]*domain.Well, error)
	GetWell(ctx context.Context, id int64) (*domain.Well, error)
	RecordChange(ctx context.Context, req wellaudit.ChangeRequest) (*domain.AuditRecord, error)
	History(ctx context.Context, wellID int64, limit int) ([]*domain.AuditRecord, error)
	ImportRegistry(ctx context.Context, actor domain.Actor, r io.Reader) (*wellaudit.RegistryReport, error)
}
