package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/slotta-engine/internal/model"
)

const clientColumns = `id, email, name, phone, total_bookings, completed_bookings, no_shows, cancellations, created_at, updated_at`

func scanClient(rs rowScanner) (model.Client, error) {
	var (
		c     model.Client
		phone sql.NullString
	)
	err := rs.Scan(&c.ID, &c.Email, &c.Name, &phone, &c.TotalBookings, &c.CompletedBookings, &c.NoShows, &c.Cancellations, &c.CreatedAt, &c.UpdatedAt)
	c.Phone = phone.String
	return c, err
}

func getClient(ctx context.Context, q DBTX, where string, arg any, lock bool) (model.Client, error) {
	query := "SELECT " + clientColumns + " FROM clients WHERE " + where + " LIMIT 1"
	if lock {
		query += " FOR UPDATE"
	}
	c, err := scanClient(q.QueryRowContext(ctx, query, arg))
	return c, mapErr(err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *SQLStore) GetClient(ctx context.Context, id uint64) (model.Client, error) {
	return getClient(ctx, s.db, "id = ?", id, false)
}

func (s *SQLStore) GetClientByEmail(ctx context.Context, email string) (model.Client, error) {
	return getClient(ctx, s.db, "email = ?", normalizeEmail(email), false)
}

// ListClients returns every client who booked with the provider, with the
// wallet balance joined from the ledger cache.  Tier is left for the caller
// to derive.
func (s *SQLStore) ListClients(ctx context.Context, providerID uint64) ([]model.ClientSummary, error) {
	const q = `SELECT c.id, c.email, c.name, c.phone, c.total_bookings, c.completed_bookings, c.no_shows, c.cancellations,
		c.created_at, c.updated_at, COALESCE(lb.balance_cents, 0), COUNT(b.id)
		FROM clients c
		JOIN bookings b ON b.client_id = c.id AND b.provider_id = ?
		LEFT JOIN ledger_balances lb ON lb.owner_kind = 'client' AND lb.owner_id = c.id
		GROUP BY c.id, lb.balance_cents
		ORDER BY c.name`
	rows, err := s.db.QueryContext(ctx, q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ClientSummary, 0)
	for rows.Next() {
		var (
			cs    model.ClientSummary
			phone sql.NullString
		)
		if err := rows.Scan(&cs.ID, &cs.Email, &cs.Name, &phone, &cs.TotalBookings, &cs.CompletedBookings, &cs.NoShows,
			&cs.Cancellations, &cs.CreatedAt, &cs.UpdatedAt, &cs.WalletCents, &cs.BookingsCount); err != nil {
			return nil, err
		}
		cs.Phone = phone.String
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (t *sqlTx) FindClientByEmailForUpdate(ctx context.Context, email string) (model.Client, error) {
	return getClient(ctx, t.tx, "email = ?", normalizeEmail(email), true)
}

func (t *sqlTx) GetClientForUpdate(ctx context.Context, id uint64) (model.Client, error) {
	return getClient(ctx, t.tx, "id = ?", id, true)
}

// InsertClient creates a client with zero counters and fills in ID.
func (t *sqlTx) InsertClient(ctx context.Context, c *model.Client) error {
	c.Email = normalizeEmail(c.Email)
	const q = `INSERT INTO clients (email, name, phone, created_at, updated_at) VALUES (?,?,?,?,?)`
	res, err := t.tx.ExecContext(ctx, q, c.Email, c.Name, nullString(c.Phone), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// AddClientCounters adds d to the lifetime counters.  The schema keeps
// no_shows <= total_bookings.
func (t *sqlTx) AddClientCounters(ctx context.Context, id uint64, d model.CounterDelta) error {
	const q = `UPDATE clients SET total_bookings = total_bookings + ?, completed_bookings = completed_bookings + ?,
		no_shows = no_shows + ?, cancellations = cancellations + ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, q, d.Total, d.Completed, d.NoShows, d.Cancellations, id)
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
