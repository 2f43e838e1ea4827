// Package timeline holds the pure algorithms over a pump's event sequence:
// state reconstruction, alternation checking and ON-duration accounting.
// Nothing here touches storage.
package timeline

import (
	"math"
	"sort"
	"time"

	"github.com/gosuda/pumpwatch/internal/domain"
)

// DefaultState is the state of a pump before its first event.
const DefaultState = domain.ActionOff

// StateAt returns the action of the last event with EventTime <= t.
// events must be in ascending (EventTime, ID) order.
func StateAt(events []*domain.Event, t time.Time) domain.Action {
	state := DefaultState
	for _, e := range events {
		if e.EventTime.After(t) {
			break
		}
		state = e.Action
	}
	return state
}

// Entry is one element of a candidate timeline. Stored events carry their
// EventID; new rows carry zero there, their position in the batch in Index
// and a row number for messages in Ref.
type Entry struct {
	Action  domain.Action
	Time    time.Time
	EventID int64
	Index   int
	Ref     int
}

// Stored reports whether the entry is an already persisted event.
func (e Entry) Stored() bool { return e.EventID != 0 }

// FromEvents converts stored events to entries.
func FromEvents(events []*domain.Event) []Entry {
	out := make([]Entry, 0, len(events))
	for _, e := range events {
		out = append(out, Entry{Action: e.Action, Time: e.EventTime, EventID: e.ID})
	}
	return out
}

// Sort orders entries by time. Stored events keep their (EventTime, ID)
// order and precede new rows at the same instant; new rows keep input order.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if a.Stored() != b.Stored() {
			return a.Stored()
		}
		if a.Stored() {
			return a.EventID < b.EventID
		}
		return false
	})
}

// Conflict is a pair of adjacent entries that breaks alternation.
type Conflict struct {
	Prev     Entry
	Next     Entry
	SameTime bool // two new rows share an instant
}

// Validate scans adjacent pairs of a sorted timeline and returns one
// Conflict per pair that repeats an action. Two new rows sharing an instant
// are also a conflict. A new row at the instant of a stored event sorts
// after it, as its id will.
func Validate(entries []Entry) []Conflict {
	var conflicts []Conflict
	for i := 1; i < len(entries); i++ {
		prev, next := entries[i-1], entries[i]
		sameTime := prev.Time.Equal(next.Time) && !prev.Stored() && !next.Stored()
		if prev.Action == next.Action || sameTime {
			conflicts = append(conflicts, Conflict{Prev: prev, Next: next, SameTime: sameTime})
		}
	}
	return conflicts
}

// OnDuration returns how long the pump was ON within [start, end].
// carryIn is the state just before start and events are the events inside
// the window in ascending order.
func OnDuration(carryIn domain.Action, events []*domain.Event, start, end time.Time) time.Duration {
	if len(events) == 0 {
		if carryIn == domain.ActionOn {
			return end.Sub(start)
		}
		return 0
	}

	var total time.Duration
	state := carryIn
	cursor := start
	for _, e := range events {
		if state == domain.ActionOn {
			total += e.EventTime.Sub(cursor)
		}
		state = e.Action
		cursor = e.EventTime
	}
	if state == domain.ActionOn {
		total += end.Sub(cursor)
	}
	return total
}

// Hours converts d to hours rounded to two decimals.
func Hours(d time.Duration) float64 {
	return Round2(d.Seconds() / 3600)
}

// Round2 rounds v to two decimals, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
