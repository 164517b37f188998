package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/slotta-engine/internal/model"
)

// Ledger rows are append only.  ledger_balances caches the running sum per
// owner and is only written in the same transaction as the rows it sums.

func (s *SQLStore) Balance(ctx context.Context, owner model.Owner) (int64, error) {
	var bal int64
	err := s.db.QueryRowContext(ctx,
		"SELECT balance_cents FROM ledger_balances WHERE owner_kind = ? AND owner_id = ?",
		string(owner.Kind), owner.ID).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return bal, err
}

// SumTransactions adds up an owner's rows, optionally restricted to types.
func (s *SQLStore) SumTransactions(ctx context.Context, owner model.Owner, types ...model.TransactionType) (int64, error) {
	query := "SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_transactions WHERE owner_kind = ? AND owner_id = ?"
	args := []any{string(owner.Kind), owner.ID}
	if len(types) > 0 {
		query += " AND type IN (?" + strings.Repeat(",?", len(types)-1) + ")"
		for _, t := range types {
			args = append(args, string(t))
		}
	}
	var sum int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&sum)
	return sum, err
}

func (s *SQLStore) ListTransactions(ctx context.Context, owner model.Owner, limit int) ([]model.LedgerTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	const q = `SELECT id, owner_kind, owner_id, type, amount_cents, currency, booking_id, payout_id, description, created_at
		FROM ledger_transactions WHERE owner_kind = ? AND owner_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, string(owner.Kind), owner.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.LedgerTransaction, 0)
	for rows.Next() {
		var (
			lt                         model.LedgerTransaction
			kind, typ                  string
			bookingID, payoutID, descr sql.NullString
		)
		if err := rows.Scan(&lt.ID, &kind, &lt.Owner.ID, &typ, &lt.AmountCents, &lt.Currency, &bookingID, &payoutID, &descr, &lt.CreatedAt); err != nil {
			return nil, err
		}
		lt.Owner.Kind = model.OwnerKind(kind)
		lt.Type = model.TransactionType(typ)
		lt.BookingID = bookingID.String
		lt.PayoutID = payoutID.String
		lt.Description = descr.String
		out = append(out, lt)
	}
	return out, rows.Err()
}

// LockBalance makes sure the balance row exists, then locks it.
func (t *sqlTx) LockBalance(ctx context.Context, owner model.Owner) (int64, error) {
	if _, err := t.tx.ExecContext(ctx,
		"INSERT IGNORE INTO ledger_balances (owner_kind, owner_id, balance_cents, updated_at) VALUES (?, ?, 0, UTC_TIMESTAMP())",
		string(owner.Kind), owner.ID); err != nil {
		return 0, err
	}
	var bal int64
	err := t.tx.QueryRowContext(ctx,
		"SELECT balance_cents FROM ledger_balances WHERE owner_kind = ? AND owner_id = ? FOR UPDATE",
		string(owner.Kind), owner.ID).Scan(&bal)
	return bal, mapErr(err)
}

func (t *sqlTx) SetBalance(ctx context.Context, owner model.Owner, balance int64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE ledger_balances SET balance_cents = ?, updated_at = UTC_TIMESTAMP() WHERE owner_kind = ? AND owner_id = ?",
		balance, string(owner.Kind), owner.ID)
	return err
}

func (t *sqlTx) InsertTransaction(ctx context.Context, lt *model.LedgerTransaction) error {
	const q = `INSERT INTO ledger_transactions (id, owner_kind, owner_id, type, amount_cents, currency, booking_id, payout_id, description, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`
	_, err := t.tx.ExecContext(ctx, q, lt.ID, string(lt.Owner.Kind), lt.Owner.ID, string(lt.Type), lt.AmountCents, lt.Currency,
		nullString(lt.BookingID), nullString(lt.PayoutID), nullString(lt.Description), lt.CreatedAt)
	return mapErr(err)
}
