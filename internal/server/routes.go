package server

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/pumpwatch/internal/api/v1"
)

func registerAuthRoutes(api huma.API, svc Services) {
	v1.RegisterAuthRoutes(api, svc.Auth)
}

func registerAPIRoutes(api huma.API, svc Services) {
	v1.RegisterAccountRoutes(api, svc.Auth)
	v1.RegisterPumpRoutes(api, svc.Status, svc.Calendar)
	v1.RegisterReportRoutes(api, svc.Reports, svc.Status)
	v1.RegisterImportRoutes(api, svc.Imports)
	v1.RegisterWellRoutes(api, svc.Wells, svc.Calendar)
}

// requestLogger writes one zerolog line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("server: request")
	})
}
