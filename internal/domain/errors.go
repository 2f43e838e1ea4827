package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the domain layer. Every error returned by a service
// operation wraps exactly one of these.
var (
	ErrValidation     = errors.New("domain: validation failed")
	ErrDuplicateState = errors.New("domain: pump already in that state")
	ErrOrdering       = errors.New("domain: event time violates timeline order")
	ErrPermission     = errors.New("domain: permission denied")
	ErrNotFound       = errors.New("domain: not found")
	ErrNotLatest      = errors.New("domain: only the latest event can be deleted")
	ErrTooOld         = errors.New("domain: event is too old to delete")
	ErrPersistence    = errors.New("domain: persistence failure")
)

// Error kinds as exposed to callers of the HTTP API.
const (
	KindValidation     = "validation"
	KindDuplicateState = "duplicate_state"
	KindOrdering       = "ordering"
	KindPermission     = "permission"
	KindNotFound       = "not_found"
	KindNotLatest      = "not_latest"
	KindTooOld         = "too_old"
	KindPersistence    = "persistence"
)

var kinds = []struct {
	sentinel error
	kind     string
}{
	{ErrValidation, KindValidation},
	{ErrDuplicateState, KindDuplicateState},
	{ErrOrdering, KindOrdering},
	{ErrPermission, KindPermission},
	{ErrNotFound, KindNotFound},
	{ErrNotLatest, KindNotLatest},
	{ErrTooOld, KindTooOld},
	{ErrPersistence, KindPersistence},
}

// KindOf reports the error kind of err. Errors that wrap none of the domain
// sentinels are storage or programming failures and map to KindPersistence.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindPersistence
}

// IsDomainError reports whether err already carries a domain kind.
func IsDomainError(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return true
		}
	}
	return false
}

// Persistence wraps a storage failure so that it carries ErrPersistence.
// Errors that already carry a domain kind are returned unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// Validationf builds an ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// OrderingError rejects an event whose time does not come strictly after
// the latest event already recorded for the pump.
type OrderingError struct {
	Latest time.Time
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("event time must be after the latest recorded event (%s)", e.Latest.Format(time.DateTime))
}

func (e *OrderingError) Unwrap() error { return ErrOrdering }
