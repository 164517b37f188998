package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/repository"
)

// Entry is one ledger movement to apply.
type Entry struct {
	Owner       model.Owner
	Type        model.TransactionType
	AmountCents int64
	BookingID   string
	PayoutID    string
	Description string
}

// Ledger is the settlement ledger.  Rows are append only and the cached
// balance of an owner is written in the same transaction as the row.
type Ledger struct {
	Deps
}

func NewLedger(d Deps) *Ledger { return &Ledger{Deps: d} }

func checkEntry(e Entry) error {
	switch e.Type {
	case model.TxRelease:
		if e.AmountCents != 0 {
			return fmt.Errorf("release marker carries no amount: %w", ErrInvalidInput)
		}
	case model.TxWalletCredit:
		if e.Owner.Kind != model.OwnerClient || e.AmountCents < 0 {
			return fmt.Errorf("wallet credit must be a non-negative client row: %w", ErrInvalidInput)
		}
	case model.TxCaptureCompensation:
		if e.Owner.Kind != model.OwnerProvider || e.AmountCents < 0 {
			return fmt.Errorf("compensation must be a non-negative provider row: %w", ErrInvalidInput)
		}
	case model.TxPayout, model.TxFee:
		// Negative when drawn, positive when a failed payout is reversed.
		if e.Owner.Kind != model.OwnerProvider {
			return fmt.Errorf("%s rows belong to providers: %w", e.Type, ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown transaction type %q: %w", e.Type, ErrInvalidInput)
	}
	if e.Owner.ID == 0 {
		return fmt.Errorf("ledger owner missing: %w", ErrInvalidInput)
	}
	return nil
}

// Apply writes e inside tx.  It locks the owner's balance row, so two
// settlements for the same owner serialize.  Client rows are credit only,
// so a wallet never goes below zero; a provider balance only moves down
// through payout and fee rows.
func (l *Ledger) Apply(ctx context.Context, tx repository.Tx, e Entry) (model.LedgerTransaction, error) {
	if err := checkEntry(e); err != nil {
		return model.LedgerTransaction{}, err
	}
	bal, err := tx.LockBalance(ctx, e.Owner)
	if err != nil {
		return model.LedgerTransaction{}, err
	}
	next := bal + e.AmountCents

	lt := model.LedgerTransaction{
		ID:          uuid.NewString(),
		Owner:       e.Owner,
		Type:        e.Type,
		AmountCents: e.AmountCents,
		Currency:    l.Policy.Currency,
		BookingID:   e.BookingID,
		PayoutID:    e.PayoutID,
		Description: e.Description,
		CreatedAt:   l.now(),
	}
	if err := tx.InsertTransaction(ctx, &lt); err != nil {
		return model.LedgerTransaction{}, err
	}
	if err := tx.SetBalance(ctx, e.Owner, next); err != nil {
		return model.LedgerTransaction{}, err
	}
	return lt, nil
}

// Reconciliation compares an owner's cached balance with the sum of its
// ledger rows.
type Reconciliation struct {
	Owner        model.Owner `json:"owner"`
	BalanceCents int64       `json:"balance_cents"`
	LedgerCents  int64       `json:"ledger_cents"`
	OK           bool        `json:"ok"`
}

func (l *Ledger) Reconcile(ctx context.Context, owner model.Owner) (Reconciliation, error) {
	bal, err := l.Store.Balance(ctx, owner)
	if err != nil {
		return Reconciliation{}, err
	}
	sum, err := l.Store.SumTransactions(ctx, owner)
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{Owner: owner, BalanceCents: bal, LedgerCents: sum, OK: bal == sum}, nil
}

// WalletSummary is a provider's money page.
type WalletSummary struct {
	BalanceCents          int64                     `json:"balance_cents"`
	PendingPayoutCents    int64                     `json:"pending_payout_cents"`
	LifetimeEarningsCents int64                     `json:"lifetime_earnings_cents"`
	Currency              string                    `json:"currency"`
	Reconciled            bool                      `json:"reconciled"`
	Transactions          []model.LedgerTransaction `json:"transactions"`
}

// Wallet reads the provider's balance, in-flight payouts, lifetime
// compensation and most recent ledger rows.
func (l *Ledger) Wallet(ctx context.Context, providerID uint64, limit int) (WalletSummary, error) {
	owner := model.ProviderOwner(providerID)
	rec, err := l.Reconcile(ctx, owner)
	if err != nil {
		return WalletSummary{}, err
	}
	pending, err := l.Store.SumPayouts(ctx, providerID, model.PayoutRequested)
	if err != nil {
		return WalletSummary{}, err
	}
	earned, err := l.Store.SumTransactions(ctx, owner, model.TxCaptureCompensation)
	if err != nil {
		return WalletSummary{}, err
	}
	txs, err := l.Store.ListTransactions(ctx, owner, limit)
	if err != nil {
		return WalletSummary{}, err
	}
	if !rec.OK {
		l.logger().WithFields(logrus.Fields{
			"provider_id": providerID,
			"balance":     rec.BalanceCents,
			"ledger":      rec.LedgerCents,
		}).Error("ledger reconciliation mismatch")
	}
	return WalletSummary{
		BalanceCents:          rec.LedgerCents,
		PendingPayoutCents:    pending,
		LifetimeEarningsCents: earned,
		Currency:              l.Policy.Currency,
		Reconciled:            rec.OK,
		Transactions:          txs,
	}, nil
}
