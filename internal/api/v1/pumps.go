package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/status"
)

type PumpNumberInput struct {
	Number int `path:"number" minimum:"1" doc:"Pump number"`
}

type ListPumpsOutput struct {
	Body []PumpView
}

type GetPumpOutput struct {
	Body PumpView
}

type RecordEventInput struct {
	Number int `path:"number" minimum:"1" doc:"Pump number"`
	Body   struct {
		Action    string `json:"action" doc:"ON or OFF"`
		Reason    string `json:"reason" minLength:"1" maxLength:"500" doc:"Why the state changed"`
		Notes     string `json:"notes,omitempty" maxLength:"2000"`
		EventTime string `json:"event_time,omitempty" doc:"Local date-time for a manual entry; omitted means now"`
	}
}

type RecordEventOutput struct {
	Body struct {
		OK    bool      `json:"ok"`
		Event EventView `json:"event"`
		Pump  PumpView  `json:"pump"`
	}
}

type StateAtInput struct {
	Number int    `path:"number" minimum:"1" doc:"Pump number"`
	At     string `query:"at" required:"true" doc:"Local date-time"`
}

type StateAtOutput struct {
	Body struct {
		PumpNumber int    `json:"pump_number"`
		At         string `json:"at"`
		Status     string `json:"status"`
	}
}

type RecordsInput struct {
	Number int `path:"number" minimum:"1" doc:"Pump number"`
	Page   int `query:"page" minimum:"1" default:"1" doc:"1-based page"`
}

type RecordsOutput struct {
	Body struct {
		PumpNumber int          `json:"pump_number"`
		Records    []RecordView `json:"records"`
		Page       int          `json:"page"`
		PerPage    int          `json:"per_page"`
		Total      int          `json:"total"`
		TotalPages int          `json:"total_pages"`
	}
}

type EventIDInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Event ID"`
}

type DeletableOutput struct {
	Body struct {
		Deletable bool   `json:"deletable"`
		Kind      string `json:"kind,omitempty"`
		Reason    string `json:"reason,omitempty"`
	}
}

type DeleteEventInput struct {
	ID   int64 `path:"id" minimum:"1" doc:"Event ID"`
	Body struct {
		Reason string `json:"reason" maxLength:"500" doc:"Why the event is deleted"`
	}
}

type DeleteEventOutput struct {
	Body struct {
		OK          bool            `json:"ok"`
		DeletionLog DeletionLogView `json:"deletion_log"`
		Pump        PumpView        `json:"pump"`
	}
}

type DeletionLogsInput struct {
	Limit int `query:"limit" minimum:"1" maximum:"1000" default:"100"`
}

type DeletionLogsOutput struct {
	Body []DeletionLogView
}

// RegisterPumpRoutes registers pump status, event recording and deletion
// endpoints. Local times are read and written with cal.
func RegisterPumpRoutes(api huma.API, svc StatusService, cal calendar.Converter) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pumps",
		Method:      http.MethodGet,
		Path:        "/pumps",
		Summary:     "List pumps with their current status",
		Tags:        []string{"Pumps"},
	}, func(ctx context.Context, _ *struct{}) (*ListPumpsOutput, error) {
		pumps, err := svc.ListPumps(ctx)
		if err != nil {
			return nil, fail("list-pumps", err, cal)
		}

		out := &ListPumpsOutput{Body: make([]PumpView, len(pumps))}
		for i, p := range pumps {
			out.Body[i] = pumpView(p, cal)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-pump",
		Method:      http.MethodGet,
		Path:        "/pumps/{number}",
		Summary:     "Get a pump by number",
		Tags:        []string{"Pumps"},
	}, func(ctx context.Context, input *PumpNumberInput) (*GetPumpOutput, error) {
		p, err := svc.GetPump(ctx, input.Number)
		if err != nil {
			return nil, fail("get-pump", err, cal)
		}
		return &GetPumpOutput{Body: pumpView(p, cal)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-event",
		Method:        http.MethodPost,
		Path:          "/pumps/{number}/events",
		Summary:       "Record an ON/OFF event",
		Tags:          []string{"Pumps"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *RecordEventInput) (*RecordEventOutput, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		if !actor.Role.Can(domain.CapRecordEvent) {
			return nil, forbidden("role may not record events")
		}

		p, err := svc.GetPump(ctx, input.Number)
		if err != nil {
			return nil, fail("record-event", err, cal)
		}

		req := status.ApplyRequest{
			PumpID:  p.ID,
			ActorID: actor.ID,
			Action:  domain.Action(input.Body.Action),
			Reason:  input.Body.Reason,
			Notes:   input.Body.Notes,
		}
		if local := strings.TrimSpace(input.Body.EventTime); local != "" {
			at, err := cal.ToCanonical(local)
			if err != nil {
				return nil, fail("record-event", err, cal)
			}
			req.EventTime = &at
		}

		ev, err := svc.ApplyEvent(ctx, req)
		if err != nil {
			return nil, fail("record-event", err, cal)
		}

		// Refetch for the status written in the same transaction.
		if p, err = svc.GetPump(ctx, input.Number); err != nil {
			return nil, fail("record-event", err, cal)
		}

		out := &RecordEventOutput{}
		out.Body.OK = true
		out.Body.Event = eventView(ev, cal)
		out.Body.Pump = pumpView(p, cal)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-pump-state",
		Method:      http.MethodGet,
		Path:        "/pumps/{number}/state",
		Summary:     "Reconstruct a pump's state at a past time",
		Tags:        []string{"Pumps"},
	}, func(ctx context.Context, input *StateAtInput) (*StateAtOutput, error) {
		at, err := cal.ToCanonical(input.At)
		if err != nil {
			return nil, fail("get-pump-state", err, cal)
		}
		p, err := svc.GetPump(ctx, input.Number)
		if err != nil {
			return nil, fail("get-pump-state", err, cal)
		}

		state, err := svc.StateAt(ctx, p.ID, at)
		if err != nil {
			return nil, fail("get-pump-state", err, cal)
		}

		out := &StateAtOutput{}
		out.Body.PumpNumber = p.Number
		out.Body.At = cal.ToLocal(at, true)
		out.Body.Status = string(state)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pump-records",
		Method:      http.MethodGet,
		Path:        "/pumps/{number}/records",
		Summary:     "List a pump's events, newest first",
		Tags:        []string{"Pumps"},
	}, func(ctx context.Context, input *RecordsInput) (*RecordsOutput, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		p, err := svc.GetPump(ctx, input.Number)
		if err != nil {
			return nil, fail("list-pump-records", err, cal)
		}

		page, err := svc.Records(ctx, p.ID, input.Page, actor)
		if err != nil {
			return nil, fail("list-pump-records", err, cal)
		}

		out := &RecordsOutput{}
		out.Body.PumpNumber = p.Number
		out.Body.Records = make([]RecordView, len(page.Records))
		for i, r := range page.Records {
			out.Body.Records[i] = RecordView{EventView: eventView(r.Event, cal), Deletable: r.Deletable}
		}
		out.Body.Page = page.Page
		out.Body.PerPage = page.PerPage
		out.Body.Total = page.Total
		out.Body.TotalPages = page.TotalPages
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-event-deletable",
		Method:      http.MethodGet,
		Path:        "/events/{id}/deletable",
		Summary:     "Report whether the caller may delete an event",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *EventIDInput) (*DeletableOutput, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}

		out := &DeletableOutput{}
		err = svc.CheckDeletable(ctx, input.ID, actor)
		switch kind := domain.KindOf(err); {
		case err == nil:
			out.Body.Deletable = true
		case errors.Is(err, domain.ErrNotFound), kind == domain.KindPersistence:
			return nil, fail("check-event-deletable", err, cal)
		default:
			out.Body.Kind = kind
			out.Body.Reason = err.Error()
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-event",
		Method:      http.MethodPost,
		Path:        "/events/{id}/delete",
		Summary:     "Delete the latest event of a pump",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *DeleteEventInput) (*DeleteEventOutput, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}

		entry, err := svc.DeleteLatestEvent(ctx, status.DeleteRequest{
			EventID: input.ID,
			Actor:   actor,
			Reason:  input.Body.Reason,
		})
		if err != nil {
			return nil, fail("delete-event", err, cal)
		}

		p, err := svc.GetPump(ctx, entry.PumpNumber)
		if err != nil {
			return nil, fail("delete-event", err, cal)
		}

		out := &DeleteEventOutput{}
		out.Body.OK = true
		out.Body.DeletionLog = deletionLogView(entry, cal)
		out.Body.Pump = pumpView(p, cal)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-deletion-logs",
		Method:      http.MethodGet,
		Path:        "/deletion-logs",
		Summary:     "List deleted events, newest first",
		Tags:        []string{"Events"},
	}, func(ctx context.Context, input *DeletionLogsInput) (*DeletionLogsOutput, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}

		logs, err := svc.DeletionLogs(ctx, actor, input.Limit)
		if err != nil {
			return nil, fail("list-deletion-logs", err, cal)
		}

		out := &DeletionLogsOutput{Body: make([]DeletionLogView, len(logs))}
		for i, l := range logs {
			out.Body[i] = deletionLogView(l, cal)
		}
		return out, nil
	})
}

// today returns the current local date.
func today(cal calendar.Converter) (calendar.Date, error) {
	return cal.ParseDate(cal.ToLocal(time.Now(), false))
}
