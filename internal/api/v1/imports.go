package v1

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/pumpwatch/internal/importer"
)

type ImportRowsInput struct {
	Body struct {
		Rows []importer.RawRow `json:"rows" minItems:"1" doc:"Rows with local dates and times"`
	}
}

type ImportWorkbookInput struct {
	RawBody []byte `contentType:"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"`
}

type ImportOutput struct {
	Body ImportReportView
}

// RegisterImportRoutes registers the bulk history import endpoints.
func RegisterImportRoutes(api huma.API, svc ImportService) {
	huma.Register(api, huma.Operation{
		OperationID: "import-rows",
		Method:      http.MethodPost,
		Path:        "/imports",
		Summary:     "Import historical events",
		Description: "Rows are grouped by pump; a group with any conflict is not imported at all.",
		Tags:        []string{"Imports"},
	}, func(ctx context.Context, input *ImportRowsInput) (*ImportOutput, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}

		rep, err := svc.ImportBatch(ctx, actor, input.Body.Rows)
		if err != nil {
			return nil, fail("import-rows", err, nil)
		}
		return &ImportOutput{Body: importReportView(rep)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-workbook",
		Method:      http.MethodPost,
		Path:        "/imports/workbook",
		Summary:     "Import historical events from an xlsx workbook",
		Tags:        []string{"Imports"},
	}, func(ctx context.Context, input *ImportWorkbookInput) (*ImportOutput, error) {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}

		rep, err := svc.ImportWorkbook(ctx, actor, bytes.NewReader(input.RawBody))
		if err != nil {
			return nil, fail("import-workbook", err, nil)
		}
		return &ImportOutput{Body: importReportView(rep)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-import-template",
		Method:      http.MethodGet,
		Path:        "/imports/template",
		Summary:     "Download the import workbook template",
		Tags:        []string{"Imports"},
	}, func(_ context.Context, _ *struct{}) (*FileOutput, error) {
		data, err := svc.Template()
		if err != nil {
			return nil, fail("get-import-template", err, nil)
		}
		return xlsxFile("pumpwatch_import_template.xlsx", data), nil
	})
}
