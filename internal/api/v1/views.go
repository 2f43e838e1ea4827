package v1

import (
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/importer"
	"github.com/gosuda/pumpwatch/internal/report"
)

// Times are rendered twice: in the operators' local calendar and as an
// RFC 3339 instant.

type PumpView struct {
	ID            int64      `json:"id"`
	Number        int        `json:"number"`
	Name          string     `json:"name"`
	Location      string     `json:"location,omitempty"`
	Status        string     `json:"status" enum:"ON,OFF"`
	LastChange    string     `json:"last_change,omitempty" doc:"Local time of the latest event"`
	LastChangeUTC *time.Time `json:"last_change_utc,omitempty"`
	HasHistory    bool       `json:"has_history"`
}

func pumpView(p *domain.Pump, cal calendar.Converter) PumpView {
	v := PumpView{
		ID:         p.ID,
		Number:     p.Number,
		Name:       p.Name,
		Location:   p.Location,
		Status:     string(p.Status),
		HasHistory: p.HasHistory,
	}
	if p.LastChange != nil {
		v.LastChange = cal.ToLocal(*p.LastChange, true)
		v.LastChangeUTC = p.LastChange
		v.HasHistory = true
	}
	return v
}

type EventView struct {
	ID           int64     `json:"id"`
	PumpID       int64     `json:"pump_id"`
	Action       string    `json:"action" enum:"ON,OFF"`
	EventTime    string    `json:"event_time" doc:"Local time"`
	EventTimeUTC time.Time `json:"event_time_utc"`
	RecordedTime string    `json:"recorded_time" doc:"Local time"`
	Reason       string    `json:"reason"`
	Notes        string    `json:"notes,omitempty"`
	Manual       bool      `json:"manual"`
	ActorID      uuid.UUID `json:"actor_id"`
}

func eventView(ev *domain.Event, cal calendar.Converter) EventView {
	return EventView{
		ID:           ev.ID,
		PumpID:       ev.PumpID,
		Action:       string(ev.Action),
		EventTime:    cal.ToLocal(ev.EventTime, true),
		EventTimeUTC: ev.EventTime.UTC(),
		RecordedTime: cal.ToLocal(ev.RecordedTime, true),
		Reason:       ev.Reason,
		Notes:        ev.Notes,
		Manual:       ev.Manual,
		ActorID:      ev.ActorID,
	}
}

type RecordView struct {
	EventView
	Deletable bool `json:"deletable"`
}

type DeletionLogView struct {
	ID              uuid.UUID `json:"id"`
	EventID         int64     `json:"event_id"`
	PumpNumber      int       `json:"pump_number"`
	Action          string    `json:"action"`
	EventTime       string    `json:"event_time"`
	RecordedTime    string    `json:"recorded_time"`
	Reason          string    `json:"reason"`
	Notes           string    `json:"notes,omitempty"`
	Manual          bool      `json:"manual"`
	OriginalActorID uuid.UUID `json:"original_actor_id"`
	DeletedByID     uuid.UUID `json:"deleted_by_id"`
	DeletionReason  string    `json:"deletion_reason"`
	DeletedAt       string    `json:"deleted_at"`
}

func deletionLogView(l *domain.DeletionLog, cal calendar.Converter) DeletionLogView {
	return DeletionLogView{
		ID:              l.ID,
		EventID:         l.EventID,
		PumpNumber:      l.PumpNumber,
		Action:          string(l.Action),
		EventTime:       cal.ToLocal(l.EventTime, true),
		RecordedTime:    cal.ToLocal(l.RecordedTime, true),
		Reason:          l.Reason,
		Notes:           l.Notes,
		Manual:          l.Manual,
		OriginalActorID: l.OriginalActorID,
		DeletedByID:     l.DeletedByID,
		DeletionReason:  l.DeletionReason,
		DeletedAt:       cal.ToLocal(l.DeletedAt, true),
	}
}

type HoursView struct {
	PumpNumber int     `json:"pump_number"`
	Name       string  `json:"name"`
	Hours      float64 `json:"hours"`
}

func hoursViews(rows []report.PumpHours) []HoursView {
	out := make([]HoursView, len(rows))
	for i, r := range rows {
		out[i] = HoursView{PumpNumber: r.PumpNumber, Name: r.Name, Hours: r.Hours}
	}
	return out
}

type StatusView struct {
	PumpNumber int    `json:"pump_number"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	LastChange string `json:"last_change,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func statusViews(rows []report.PumpStatus, cal calendar.Converter) []StatusView {
	out := make([]StatusView, len(rows))
	for i, r := range rows {
		out[i] = StatusView{
			PumpNumber: r.PumpNumber,
			Name:       r.Name,
			Status:     string(r.Status),
			Reason:     r.Reason,
			Notes:      r.Notes,
		}
		if r.LastChange != nil {
			out[i].LastChange = cal.ToLocal(*r.LastChange, true)
		}
	}
	return out
}

type HistoryView struct {
	EventID    int64  `json:"event_id"`
	PumpNumber int    `json:"pump_number"`
	Name       string `json:"name"`
	Action     string `json:"action"`
	EventTime  string `json:"event_time"`
	Reason     string `json:"reason"`
	Notes      string `json:"notes,omitempty"`
	Manual     bool   `json:"manual"`
	UserName   string `json:"user_name,omitempty"`
}

func historyViews(rows []report.HistoryRow, cal calendar.Converter) []HistoryView {
	out := make([]HistoryView, len(rows))
	for i, r := range rows {
		out[i] = HistoryView{
			EventID:    r.EventID,
			PumpNumber: r.PumpNumber,
			Name:       r.Name,
			Action:     string(r.Action),
			EventTime:  cal.ToLocal(r.EventTime, true),
			Reason:     r.Reason,
			Notes:      r.Notes,
			Manual:     r.Manual,
			UserName:   r.UserName,
		}
	}
	return out
}

type RowErrorView struct {
	Ref        int    `json:"row_ref,omitempty"`
	PumpNumber int    `json:"pump_number,omitempty"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

type ImportReportView struct {
	OK            bool           `json:"ok"`
	BatchID       uuid.UUID      `json:"batch_id"`
	InsertedCount int            `json:"inserted_count"`
	ErrorCount    int            `json:"error_count"`
	Errors        []RowErrorView `json:"errors"`
}

func importReportView(r *importer.Report) ImportReportView {
	v := ImportReportView{
		OK:            true,
		BatchID:       r.BatchID,
		InsertedCount: r.InsertedCount,
		ErrorCount:    r.ErrorCount,
		Errors:        make([]RowErrorView, len(r.Errors)),
	}
	for i, e := range r.Errors {
		v.Errors[i] = RowErrorView{Ref: e.Ref, PumpNumber: e.PumpNumber, Kind: e.Kind, Message: e.Message}
	}
	return v
}

type WellView struct {
	ID        int64              `json:"id"`
	Number    int                `json:"well_number"`
	PumpID    *int64             `json:"pump_id"`
	Attrs     map[string]*string `json:"attributes"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func wellView(w *domain.Well) WellView {
	return WellView{
		ID:        w.ID,
		Number:    w.Number,
		PumpID:    w.PumpID,
		Attrs:     w.Attrs,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

type AuditRecordView struct {
	ID            uuid.UUID                     `json:"id"`
	WellID        int64                         `json:"well_id"`
	ActorID       uuid.UUID                     `json:"actor_id"`
	OperationType string                        `json:"operation_type"`
	OperationDate string                        `json:"operation_date"`
	PerformedBy   string                        `json:"performed_by,omitempty"`
	ChangedFields []string                      `json:"changed_fields"`
	ChangedValues map[string]domain.FieldChange `json:"changed_values"`
	FullSnapshot  map[string]any                `json:"full_snapshot"`
	Reason        string                        `json:"reason,omitempty"`
	RecordedAt    string                        `json:"recorded_at"`
}

func auditRecordView(r *domain.AuditRecord, cal calendar.Converter) AuditRecordView {
	return AuditRecordView{
		ID:            r.ID,
		WellID:        r.WellID,
		ActorID:       r.ActorID,
		OperationType: r.OperationType,
		OperationDate: cal.ToLocal(r.OperationDate, false),
		PerformedBy:   r.PerformedBy,
		ChangedFields: r.ChangedFields,
		ChangedValues: r.ChangedValues,
		FullSnapshot:  r.FullSnapshot,
		Reason:        r.Reason,
		RecordedAt:    cal.ToLocal(r.RecordedAt, true),
	}
}

type UserView struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name,omitempty"`
	Role     string    `json:"role"`
}

func userView(u *domain.User) UserView {
	return UserView{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: string(u.Role)}
}

// FileOutput is a downloadable workbook.
type FileOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func xlsxFile(name string, data []byte) *FileOutput {
	return &FileOutput{
		ContentType:        report.XLSXContentType,
		ContentDisposition: `attachment; filename="` + name + `"`,
		Body:               data,
	}
}
