package v1

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/wellaudit"
)

type ListWellsOutput struct {
	Body []WellView
}

type WellIDInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Well ID"`
}

type GetWellOutput struct {
	Body WellView
}

type RecordWellChangeInput struct {
	ID   int64 `path:"id" minimum:"1" doc:"Well ID"`
	Body struct {
		OperationType string            `json:"operation_type" minLength:"1" maxLength:"100"`
		OperationDate string            `json:"operation_date,omitempty" doc:"Local date; today when omitted"`
		PerformedBy   string            `json:"performed_by,omitempty" maxLength:"200"`
		Updates       map[string]string `json:"updates,omitempty" doc:"Proposed attribute values; an empty string clears the attribute"`
		Reason        string            `json:"reason,omitempty" maxLength:"1000"`
	}
}

type RecordWellChangeOutput struct {
	Body struct {
		OK     bool            `json:"ok"`
		Record AuditRecordView `json:"record"`
		Well   WellView        `json:"well"`
	}
}

type WellHistoryInput struct {
	ID    int64 `path:"id" minimum:"1" doc:"Well ID"`
	Limit int   `query:"limit" minimum:"1" maximum:"1000" default:"100"`
}

type WellHistoryOutput struct {
	Body []AuditRecordView
}

type RegistryInput struct {
	RawBody []byte `contentType:"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"`
}

type RegistryOutput struct {
	Body struct {
		OK       bool     `json:"ok"`
		Inserted int      `json:"inserted"`
		Skipped  int      `json:"skipped"`
		Errors   []string `json:"errors"`
	}
}

// RegisterWellRoutes registers well metadata and change history endpoints.
func RegisterWellRoutes(api huma.API, svc WellService, cal calendar.Converter) {
	huma.Register(api, huma.Operation{
		OperationID: "list-wells",
		Method:      http.MethodGet,
		Path:        "/wells",
		Summary:     "List wells",
		Tags:        []string{"Wells"},
	}, func(ctx context.Context, _ *struct{}) (*ListWellsOutput, error) {
		wells, err := svc.ListWells(ctx)
		if err != nil {
			return nil, fail("list-wells", err, cal)
		}

		out := &ListWellsOutput{Body: make([]WellView, len(wells))}
		for i, w := range wells {
			out.Body[i] = wellView(w)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-well",
		Method:      http.MethodGet,
		Path:        "/wells/{id}",
		Summary:     "Get a well",
		Tags:        []string{"Wells"},
	}, func(ctx context.Context, input *WellIDInput) (*GetWellOutput, error) {
		w, err := svc.GetWell(ctx, input.ID)
		if err != nil {
			return nil, fail("get-well", err, cal)
		}
		return &GetWellOutput{Body: wellView(w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-well-change",
		Method:        http.MethodPost,
		Path:          "/wells/{id}/changes",
		Summary:       "Record a change to a well's equipment",
		Tags:          []string{"Wells"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *RecordWellChangeInput) (*RecordWellChangeOutput, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}

		var opDate time.Time
		if local := strings.TrimSpace(input.Body.OperationDate); local != "" {
			if opDate, err = cal.ToCanonical(local); err != nil {
				return nil, fail("record-well-change", err, cal)
			}
		}

		updates := make(map[string]*string, len(input.Body.Updates))
		for k, v := range input.Body.Updates {
			if v == "" {
				updates[k] = nil
				continue
			}
			updates[k] = &v
		}

		rec, err := svc.RecordChange(ctx, wellaudit.ChangeRequest{
			WellID:        input.ID,
			Actor:         actor,
			OperationType: input.Body.OperationType,
			OperationDate: opDate,
			PerformedBy:   input.Body.PerformedBy,
			Updates:       updates,
			Reason:        input.Body.Reason,
		})
		if err != nil {
			return nil, fail("record-well-change", err, cal)
		}

		w, err := svc.GetWell(ctx, input.ID)
		if err != nil {
			return nil, fail("record-well-change", err, cal)
		}

		out := &RecordWellChangeOutput{}
		out.Body.OK = true
		out.Body.Record = auditRecordView(rec, cal)
		out.Body.Well = wellView(w)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-well-history",
		Method:      http.MethodGet,
		Path:        "/wells/{id}/history",
		Summary:     "List a well's change history, newest first",
		Tags:        []string{"Wells"},
	}, func(ctx context.Context, input *WellHistoryInput) (*WellHistoryOutput, error) {
		recs, err := svc.History(ctx, input.ID, input.Limit)
		if err != nil {
			return nil, fail("list-well-history", err, cal)
		}

		out := &WellHistoryOutput{Body: make([]AuditRecordView, len(recs))}
		for i, r := range recs {
			out.Body[i] = auditRecordView(r, cal)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-well-registry",
		Method:      http.MethodPost,
		Path:        "/wells/registry",
		Summary:     "Create wells and their pumps from an xlsx registry",
		Tags:        []string{"Wells"},
	}, func(ctx context.Context, input *RegistryInput) (*RegistryOutput, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}

		rep, err := svc.ImportRegistry(ctx, actor, bytes.NewReader(input.RawBody))
		if err != nil {
			return nil, fail("import-well-registry", err, cal)
		}

		out := &RegistryOutput{}
		out.Body.OK = true
		out.Body.Inserted = rep.Inserted
		out.Body.Skipped = rep.Skipped
		out.Body.Errors = rep.Errors
		return out, nil
	})
}
