package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/slotta-engine/internal/model"
)

const payoutColumns = `id, provider_id, amount_cents, fee_cents, currency, status, idempotency_key, external_ref, failure_reason, created_at, updated_at`

func scanPayout(rs rowScanner) (model.PayoutRequest, error) {
	var (
		p              model.PayoutRequest
		status         string
		extRef, reason sql.NullString
	)
	err := rs.Scan(&p.ID, &p.ProviderID, &p.AmountCents, &p.FeeCents, &p.Currency, &status, &p.IdempotencyKey, &extRef, &reason, &p.CreatedAt, &p.UpdatedAt)
	p.Status = model.PayoutStatus(status)
	p.ExternalRef = extRef.String
	p.FailureReason = reason.String
	return p, err
}

func getPayout(ctx context.Context, q DBTX, where string, lock bool, args ...any) (model.PayoutRequest, error) {
	query := "SELECT " + payoutColumns + " FROM payout_requests WHERE " + where + " LIMIT 1"
	if lock {
		query += " FOR UPDATE"
	}
	p, err := scanPayout(q.QueryRowContext(ctx, query, args...))
	return p, mapErr(err)
}

func (s *SQLStore) GetPayoutByKey(ctx context.Context, providerID uint64, key string) (model.PayoutRequest, error) {
	return getPayout(ctx, s.db, "provider_id = ? AND idempotency_key = ?", false, providerID, key)
}

func (s *SQLStore) ListPayouts(ctx context.Context, providerID uint64, limit int) ([]model.PayoutRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+payoutColumns+" FROM payout_requests WHERE provider_id = ? ORDER BY created_at DESC LIMIT ?",
		providerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PayoutRequest, 0)
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) SumPayouts(ctx context.Context, providerID uint64, status model.PayoutStatus) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM payout_requests WHERE provider_id = ? AND status = ?",
		providerID, string(status)).Scan(&sum)
	return sum, err
}

func (t *sqlTx) GetPayoutByKeyForUpdate(ctx context.Context, providerID uint64, key string) (model.PayoutRequest, error) {
	return getPayout(ctx, t.tx, "provider_id = ? AND idempotency_key = ?", true, providerID, key)
}

func (t *sqlTx) GetPayoutForUpdate(ctx context.Context, id string) (model.PayoutRequest, error) {
	return getPayout(ctx, t.tx, "id = ?", true, id)
}

func (t *sqlTx) InsertPayout(ctx context.Context, p *model.PayoutRequest) error {
	const q = `INSERT INTO payout_requests (id, provider_id, amount_cents, fee_cents, currency, status, idempotency_key, external_ref, failure_reason, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`
	_, err := t.tx.ExecContext(ctx, q, p.ID, p.ProviderID, p.AmountCents, p.FeeCents, p.Currency, string(p.Status), p.IdempotencyKey,
		nullString(p.ExternalRef), nullString(p.FailureReason), p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (t *sqlTx) UpdatePayout(ctx context.Context, p *model.PayoutRequest) error {
	const q = `UPDATE payout_requests SET status = ?, external_ref = ?, failure_reason = ?, updated_at = ? WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, q, string(p.Status), nullString(p.ExternalRef), nullString(p.FailureReason), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}
