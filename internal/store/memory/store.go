// Package memory is an in-process implementation of domain.Store. A
// transaction takes an exclusive lock, works on a copy of every table and
// publishes the copy on commit.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/pumpwatch/internal/domain"
)

type txCtxKey struct{}

type tables struct {
	pumps       map[int64]*domain.Pump
	events      map[int64]*domain.Event
	nextEventID int64
	deletions   []*domain.DeletionLog
	wells       map[int64]*domain.Well
	wellHistory []*domain.AuditRecord
	users       map[uuid.UUID]*domain.User
}

func (t *tables) clone() *tables {
	c := &tables{
		pumps:       make(map[int64]*domain.Pump, len(t.pumps)),
		events:      make(map[int64]*domain.Event, len(t.events)),
		nextEventID: t.nextEventID,
		deletions:   append([]*domain.DeletionLog(nil), t.deletions...),
		wells:       make(map[int64]*domain.Well, len(t.wells)),
		wellHistory: append([]*domain.AuditRecord(nil), t.wellHistory...),
		users:       maps.Clone(t.users),
	}
	for id, p := range t.pumps {
		cp := *p
		c.pumps[id] = &cp
	}
	for id, e := range t.events {
		ce := *e
		c.events[id] = &ce
	}
	for id, w := range t.wells {
		c.wells[id] = cloneWell(w)
	}
	return c
}

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	t    *tables

	pumps        *PumpRepo
	events       *EventRepo
	deletionLogs *DeletionLogRepo
	wells        *WellRepo
	wellHistory  *WellHistoryRepo
	users        *UserRepo
}

func New() *Store {
	s := &Store{t: &tables{
		pumps:  make(map[int64]*domain.Pump),
		events: make(map[int64]*domain.Event),
		wells:  make(map[int64]*domain.Well),
		users:  make(map[uuid.UUID]*domain.User),
	}}
	s.pumps = &PumpRepo{s: s}
	s.events = &EventRepo{s: s}
	s.deletionLogs = &DeletionLogRepo{s: s}
	s.wells = &WellRepo{s: s}
	s.wellHistory = &WellHistoryRepo{s: s}
	s.users = &UserRepo{s: s}
	return s
}

// RunInTx serializes transactions. fn works on a private copy of the
// tables that replaces the committed state only when fn succeeds. Nested
// calls join the outer one.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txCtxKey{}).(*tables); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.t.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txCtxKey{}, work)); err != nil {
		return err
	}

	s.mu.Lock()
	s.t = work
	s.mu.Unlock()
	return nil
}

func (s *Store) Pumps() domain.PumpRepository               { return s.pumps }
func (s *Store) Events() domain.EventRepository             { return s.events }
func (s *Store) DeletionLogs() domain.DeletionLogRepository { return s.deletionLogs }
func (s *Store) Wells() domain.WellRepository               { return s.wells }
func (s *Store) WellHistory() domain.WellHistoryRepository  { return s.wellHistory }
func (s *Store) Users() domain.UserRepository               { return s.users }

// read runs fn on the transaction's tables when ctx carries one and on the
// committed tables otherwise.
func (s *Store) read(ctx context.Context, fn func(t *tables) error) error {
	if t, ok := ctx.Value(txCtxKey{}).(*tables); ok {
		return fn(t)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.t)
}

// write outside a transaction waits for any open one so that its commit
// cannot overwrite the change.
func (s *Store) write(ctx context.Context, fn func(t *tables) error) error {
	if t, ok := ctx.Value(txCtxKey{}).(*tables); ok {
		return fn(t)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.t)
}

// --- Pumps ---

type PumpRepo struct{ s *Store }

func (r *PumpRepo) Create(ctx context.Context, p *domain.Pump) error {
	return r.s.write(ctx, func(t *tables) error {
		if _, ok := t.pumps[p.ID]; ok {
			return fmt.Errorf("pumpRepo.Create: pump %d already exists", p.ID)
		}
		for _, other := range t.pumps {
			if other.Number == p.Number {
				return fmt.Errorf("pumpRepo.Create: pump number %d already exists", p.Number)
			}
		}
		if p.Status == "" {
			p.Status = domain.ActionOff
		}
		cp := *p
		cp.HasHistory = false
		t.pumps[p.ID] = &cp
		return nil
	})
}

func (r *PumpRepo) GetByID(ctx context.Context, id int64) (*domain.Pump, error) {
	var out *domain.Pump
	err := r.s.read(ctx, func(t *tables) error {
		p, ok := t.pumps[id]
		if !ok {
			return fmt.Errorf("pumpRepo.GetByID: %w", domain.ErrNotFound)
		}
		cp := *p
		out = &cp
		return nil
	})
	return out, err
}

func (r *PumpRepo) GetByNumber(ctx context.Context, number int) (*domain.Pump, error) {
	var out *domain.Pump
	err := r.s.read(ctx, func(t *tables) error {
		for _, p := range t.pumps {
			if p.Number == number {
				cp := *p
				out = &cp
				return nil
			}
		}
		return fmt.Errorf("pumpRepo.GetByNumber: %w", domain.ErrNotFound)
	})
	return out, err
}

// GetForUpdate needs no row lock: transactions are already exclusive.
func (r *PumpRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Pump, error) {
	return r.GetByID(ctx, id)
}

func (r *PumpRepo) List(ctx context.Context) ([]*domain.Pump, error) {
	var out []*domain.Pump
	err := r.s.read(ctx, func(t *tables) error {
		withHistory := make(map[int64]bool)
		for _, e := range t.events {
			withHistory[e.PumpID] = true
		}
		for _, p := range t.pumps {
			cp := *p
			cp.HasHistory = withHistory[p.ID]
			out = append(out, &cp)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, err
}

func (r *PumpRepo) UpdateStatus(ctx context.Context, id int64, status domain.Action, lastChange *time.Time) error {
	return r.s.write(ctx, func(t *tables) error {
		p, ok := t.pumps[id]
		if !ok {
			return fmt.Errorf("pumpRepo.UpdateStatus: %w", domain.ErrNotFound)
		}
		p.Status = status
		if lastChange != nil {
			lc := *lastChange
			p.LastChange = &lc
		} else {
			p.LastChange = nil
		}
		return nil
	})
}

// --- Users ---

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	return r.s.write(ctx, func(t *tables) error {
		for _, other := range t.users {
			if other.Username == u.Username {
				return fmt.Errorf("userRepo.Create: username %q already exists", u.Username)
			}
		}
		cu := *u
		t.users[u.ID] = &cu
		return nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var out *domain.User
	err := r.s.read(ctx, func(t *tables) error {
		u, ok := t.users[id]
		if !ok {
			return fmt.Errorf("userRepo.GetByID: %w", domain.ErrNotFound)
		}
		cu := *u
		out = &cu
		return nil
	})
	return out, err
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var out *domain.User
	err := r.s.read(ctx, func(t *tables) error {
		for _, u := range t.users {
			if u.Username == username {
				cu := *u
				out = &cu
				return nil
			}
		}
		return fmt.Errorf("userRepo.GetByUsername: %w", domain.ErrNotFound)
	})
	return out, err
}
