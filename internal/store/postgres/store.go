package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/pumpwatch/internal/domain"
)

// psql builds PostgreSQL placeholders ($1, $2, ...).
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type Store struct {
	pool         *pgxpool.Pool
	tx           *TxManager
	pumps        *PumpRepo
	events       *EventRepo
	deletionLogs *DeletionLogRepo
	wells        *WellRepo
	wellHistory  *WellHistoryRepo
	users        *UserRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	s := newStore(pool)
	s.pool = pool
	return s, nil
}

func newStore(db DB) *Store {
	return &Store{
		tx:           NewTxManager(db),
		pumps:        NewPumpRepo(db),
		events:       NewEventRepo(db),
		deletionLogs: NewDeletionLogRepo(db),
		wells:        NewWellRepo(db),
		wellHistory:  NewWellHistoryRepo(db),
		users:        NewUserRepo(db),
	}
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ConnString returns the DSN the pool was opened with.
func (s *Store) ConnString() string {
	return s.pool.Config().ConnString()
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.RunInTx(ctx, fn)
}

func (s *Store) Pumps() domain.PumpRepository               { return s.pumps }
func (s *Store) Events() domain.EventRepository             { return s.events }
func (s *Store) DeletionLogs() domain.DeletionLogRepository { return s.deletionLogs }
func (s *Store) Wells() domain.WellRepository               { return s.wells }
func (s *Store) WellHistory() domain.WellHistoryRepository  { return s.wellHistory }
func (s *Store) Users() domain.UserRepository               { return s.users }
