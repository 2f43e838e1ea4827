package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/pumpwatch/internal/calendar"
	"github.com/gosuda/pumpwatch/internal/domain"
	"github.com/gosuda/pumpwatch/internal/server/middleware"
)

// Kinds that only exist at the HTTP boundary.
const (
	KindUnauthorized = "unauthorized"
	KindInternal     = "internal"
)

// Error is the body of every failed response. It implements
// huma.StatusError so handlers can return it directly.
type Error struct {
	Status  int    `json:"-"`
	OK      bool   `json:"ok"`
	Kind    string `json:"kind" doc:"Error kind"`
	Message string `json:"message"`
	// Latest is the local time of the pump's latest event on ordering
	// errors.
	Latest string `json:"latest,omitempty"`
}

func (e *Error) Error() string  { return e.Message }
func (e *Error) GetStatus() int { return e.Status }

var kindStatus = map[string]int{
	domain.KindValidation:     http.StatusBadRequest,
	domain.KindDuplicateState: http.StatusConflict,
	domain.KindOrdering:       http.StatusConflict,
	domain.KindNotLatest:      http.StatusConflict,
	domain.KindPermission:     http.StatusForbidden,
	domain.KindTooOld:         http.StatusForbidden,
	domain.KindNotFound:       http.StatusNotFound,
	domain.KindPersistence:    http.StatusInternalServerError,
}

// NewError builds the error envelope for huma's own failures (request
// validation, unknown routes). Install it with huma.NewError = v1.NewError.
func NewError(status int, msg string, errs ...error) huma.StatusError {
	kind := KindInternal
	switch {
	case status == http.StatusUnauthorized:
		kind = KindUnauthorized
	case status == http.StatusForbidden:
		kind = domain.KindPermission
	case status == http.StatusNotFound:
		kind = domain.KindNotFound
	case status >= 400 && status < 500:
		kind = domain.KindValidation
	}
	for _, err := range errs {
		if err != nil {
			msg += ": " + err.Error()
		}
	}
	return &Error{Status: status, Kind: kind, Message: msg}
}

// fail converts a service error into the response envelope. Persistence
// failures are logged and their details withheld from the client.
func fail(op string, err error, cal calendar.Converter) error {
	kind := domain.KindOf(err)
	e := &Error{Status: kindStatus[kind], Kind: kind, Message: err.Error()}

	var oe *domain.OrderingError
	if errors.As(err, &oe) && cal != nil {
		e.Latest = cal.ToLocal(oe.Latest, true)
	}
	if e.Status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("op", op).Msg("v1: request failed")
		e.Message = "internal error"
	}
	return e
}

func unauthorized() error {
	return &Error{Status: http.StatusUnauthorized, Kind: KindUnauthorized, Message: "authentication required"}
}

func forbidden(msg string) error {
	return &Error{Status: http.StatusForbidden, Kind: domain.KindPermission, Message: msg}
}

func badRequest(err error) error {
	return &Error{Status: http.StatusBadRequest, Kind: domain.KindValidation, Message: err.Error()}
}

// actorFrom returns the authenticated caller placed in ctx by middleware.Auth.
func actorFrom(ctx context.Context) (domain.Actor, error) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, unauthorized()
	}
	return actor, nil
}
