package domain

import "context"

// TxRunner executes fn inside one all-or-nothing transaction. Repositories
// called with the context passed to fn take part in that transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store groups the repositories of one backing store with its transaction
// runner.
type Store interface {
	TxRunner
	Pumps() PumpRepository
	Events() EventRepository
	DeletionLogs() DeletionLogRepository
	Wells() WellRepository
	WellHistory() WellHistoryRepository
	Users() UserRepository
}
