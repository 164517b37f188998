package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/slotta-engine/internal/model"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same query helpers
// serve plain reads and locked reads inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Reader exposes the non-locking reads the engine needs.
type Reader interface {
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	GetBookingByAuthorization(ctx context.Context, ref string) (model.Booking, error)
	ListBookings(ctx context.Context, providerID uint64, status model.BookingStatus, limit int) ([]model.Booking, error)
	ListBookingEvents(ctx context.Context, bookingID string) ([]model.BookingEvent, error)
	BookingStats(ctx context.Context, providerID uint64) (model.BookingStats, error)

	GetService(ctx context.Context, id uint64) (model.Service, error)
	GetProvider(ctx context.Context, id uint64) (model.Provider, error)
	GetClient(ctx context.Context, id uint64) (model.Client, error)
	GetClientByEmail(ctx context.Context, email string) (model.Client, error)
	ListClients(ctx context.Context, providerID uint64) ([]model.ClientSummary, error)

	Balance(ctx context.Context, owner model.Owner) (int64, error)
	SumTransactions(ctx context.Context, owner model.Owner, types ...model.TransactionType) (int64, error)
	ListTransactions(ctx context.Context, owner model.Owner, limit int) ([]model.LedgerTransaction, error)

	GetPayoutByKey(ctx context.Context, providerID uint64, key string) (model.PayoutRequest, error)
	ListPayouts(ctx context.Context, providerID uint64, limit int) ([]model.PayoutRequest, error)
	SumPayouts(ctx context.Context, providerID uint64, status model.PayoutStatus) (int64, error)
}

// Tx is one database transaction.  Every write of the engine goes through
// it so a transition and its ledger rows commit or roll back together.
type Tx interface {
	GetBookingForUpdate(ctx context.Context, id string) (model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	// UpdateBookingStatus is a compare-and-swap: it fails with ErrConflict
	// unless the stored status equals from.
	UpdateBookingStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) error
	UpdateBookingSchedule(ctx context.Context, id string, scheduledAt, deadline, at time.Time) error
	InsertBookingEvent(ctx context.Context, ev *model.BookingEvent) error

	FindClientByEmailForUpdate(ctx context.Context, email string) (model.Client, error)
	GetClientForUpdate(ctx context.Context, id uint64) (model.Client, error)
	InsertClient(ctx context.Context, c *model.Client) error
	AddClientCounters(ctx context.Context, id uint64, d model.CounterDelta) error

	// LockBalance returns the cached balance of owner and holds a row lock
	// on it until the transaction ends.  Missing rows read as zero.
	LockBalance(ctx context.Context, owner model.Owner) (int64, error)
	SetBalance(ctx context.Context, owner model.Owner, balance int64) error
	InsertTransaction(ctx context.Context, t *model.LedgerTransaction) error

	GetPayoutByKeyForUpdate(ctx context.Context, providerID uint64, key string) (model.PayoutRequest, error)
	GetPayoutForUpdate(ctx context.Context, id string) (model.PayoutRequest, error)
	InsertPayout(ctx context.Context, p *model.PayoutRequest) error
	UpdatePayout(ctx context.Context, p *model.PayoutRequest) error
}

// Store is the persistence boundary of the engine.
type Store interface {
	Reader
	// WithinTx runs fn in a transaction.  The transaction commits only when
	// fn returns nil and ctx is still live; otherwise it rolls back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// SQLStore implements Store on MySQL.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// DB exposes the handle for repositories that do not need the engine's
// transaction boundary.
func (s *SQLStore) DB() *sql.DB { return s.db }

type sqlTx struct {
	tx *sql.Tx
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
