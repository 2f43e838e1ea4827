package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action is the state a pump enters with an event.
type Action string

const (
	ActionOn  Action = "ON"
	ActionOff Action = "OFF"
)

// ParseAction accepts "on"/"off" in any case.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionOn:
		return ActionOn, nil
	case ActionOff:
		return ActionOff, nil
	default:
		return "", Validationf("unknown action %q", s)
	}
}

// Pump is a numbered physical unit whose ON/OFF state is tracked. Status and
// LastChange are derived from the latest event and rewritten by every write
// that touches this pump's events.
type Pump struct {
	ID         int64
	Number     int
	Name       string
	Location   string
	Status     Action
	LastChange *time.Time // nil when the pump has no events
	HasHistory bool       // populated by List
}

// Event is one recorded ON/OFF transition. For a fixed pump, events ordered
// by (EventTime, ID) strictly alternate Action.
type Event struct {
	ID           int64
	PumpID       int64
	ActorID      uuid.UUID
	Action       Action
	EventTime    time.Time
	RecordedTime time.Time
	Reason       string
	Notes        string
	Manual       bool
}

// EventFilter selects events for history listings. Zero values disable a
// criterion.
type EventFilter struct {
	PumpID int64
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
	Desc   bool
}

type PumpRepository interface {
	Create(ctx context.Context, p *Pump) error
	GetByID(ctx context.Context, id int64) (*Pump, error)
	GetByNumber(ctx context.Context, number int) (*Pump, error)
	// GetForUpdate locks the pump row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id int64) (*Pump, error)
	List(ctx context.Context) ([]*Pump, error)
	UpdateStatus(ctx context.Context, id int64, status Action, lastChange *time.Time) error
}

type EventRepository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id int64) (*Event, error)
	// Latest returns the last event by (event_time, id), or ErrNotFound.
	Latest(ctx context.Context, pumpID int64) (*Event, error)
	// LatestBefore returns the last event with event_time < t, or ErrNotFound.
	LatestBefore(ctx context.Context, pumpID int64, t time.Time) (*Event, error)
	// LatestAtOrBefore returns the last event with event_time <= t, or ErrNotFound.
	LatestAtOrBefore(ctx context.Context, pumpID int64, t time.Time) (*Event, error)
	// ListRange returns events with from <= event_time <= to in ascending order.
	ListRange(ctx context.Context, pumpID int64, from, to time.Time) ([]*Event, error)
	// ListByPump returns the pump's full timeline in ascending order.
	ListByPump(ctx context.Context, pumpID int64) ([]*Event, error)
	List(ctx context.Context, f EventFilter) ([]*Event, error)
	Count(ctx context.Context, f EventFilter) (int, error)
	Delete(ctx context.Context, id int64) error
}
