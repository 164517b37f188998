package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/slotta-engine/internal/model"
)

const bookingColumns = `id, provider_id, service_id, client_id, scheduled_at, duration_minutes, status,
	price_cents, hold_cents, currency, client_tier, risk_score, reschedule_deadline,
	authorization_ref, notes, created_at, status_changed_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(rs rowScanner) (model.Booking, error) {
	var (
		b      model.Booking
		status string
		notes  sql.NullString
	)
	err := rs.Scan(&b.ID, &b.ProviderID, &b.ServiceID, &b.ClientID, &b.ScheduledAt, &b.DurationMinutes, &status,
		&b.PriceCents, &b.HoldCents, &b.Currency, &b.ClientTier, &b.RiskScore, &b.RescheduleDeadline,
		&b.AuthorizationRef, &notes, &b.CreatedAt, &b.StatusChangedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.Notes = notes.String
	return b, nil
}

func getBooking(ctx context.Context, q DBTX, where string, arg any, lock bool) (model.Booking, error) {
	query := "SELECT " + bookingColumns + " FROM bookings WHERE " + where + " LIMIT 1"
	if lock {
		query += " FOR UPDATE"
	}
	b, err := scanBooking(q.QueryRowContext(ctx, query, arg))
	return b, mapErr(err)
}

// GetBooking fetches a booking by id.
func (s *SQLStore) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	return getBooking(ctx, s.db, "id = ?", id, false)
}

// GetBookingByAuthorization resolves a processor webhook to its booking.
func (s *SQLStore) GetBookingByAuthorization(ctx context.Context, ref string) (model.Booking, error) {
	return getBooking(ctx, s.db, "authorization_ref = ?", ref, false)
}

// ListBookings returns a provider's bookings, newest appointment first.  An
// empty status returns all of them.
func (s *SQLStore) ListBookings(ctx context.Context, providerID uint64, status model.BookingStatus, limit int) ([]model.Booking, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := "SELECT " + bookingColumns + " FROM bookings WHERE provider_id = ?"
	args := []any{providerID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY scheduled_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBookingEvents returns the status history of one booking, oldest first.
func (s *SQLStore) ListBookingEvents(ctx context.Context, bookingID string) ([]model.BookingEvent, error) {
	const q = `SELECT id, booking_id, from_status, to_status, event, settlement, scheduled_at, created_at
		FROM booking_events WHERE booking_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.BookingEvent, 0)
	for rows.Next() {
		var (
			ev       model.BookingEvent
			from, to string
		)
		if err := rows.Scan(&ev.ID, &ev.BookingID, &from, &to, &ev.Event, &ev.Settlement, &ev.ScheduledAt, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.FromStatus = model.BookingStatus(from)
		ev.ToStatus = model.BookingStatus(to)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// BookingStats aggregates a provider's bookings in one pass.
func (s *SQLStore) BookingStats(ctx context.Context, providerID uint64) (model.BookingStats, error) {
	const q = `SELECT
		COUNT(*),
		COALESCE(SUM(status = 'completed'), 0),
		COALESCE(SUM(status = 'no-show'), 0),
		COALESCE(SUM(status = 'cancelled'), 0),
		COALESCE(SUM(status IN ('pending','confirmed')), 0),
		COALESCE(SUM(hold_cents), 0),
		COALESCE(SUM(CASE WHEN status IN ('pending','confirmed','completed') THEN hold_cents ELSE 0 END), 0)
		FROM bookings WHERE provider_id = ?`
	var st model.BookingStats
	err := s.db.QueryRowContext(ctx, q, providerID).Scan(
		&st.Total, &st.Completed, &st.NoShows, &st.Cancelled, &st.Active, &st.HoldSumCents, &st.ProtectedHoldCents)
	return st, err
}

// GetBookingForUpdate reads and row-locks a booking.
func (t *sqlTx) GetBookingForUpdate(ctx context.Context, id string) (model.Booking, error) {
	return getBooking(ctx, t.tx, "id = ?", id, true)
}

func (t *sqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (id, provider_id, service_id, client_id, scheduled_at, duration_minutes, status,
		price_cents, hold_cents, currency, client_tier, risk_score, reschedule_deadline,
		authorization_ref, notes, created_at, status_changed_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := t.tx.ExecContext(ctx, q, b.ID, b.ProviderID, b.ServiceID, b.ClientID, b.ScheduledAt, b.DurationMinutes,
		string(b.Status), b.PriceCents, b.HoldCents, b.Currency, b.ClientTier, b.RiskScore, b.RescheduleDeadline,
		b.AuthorizationRef, nullString(b.Notes), b.CreatedAt, b.StatusChangedAt, b.UpdatedAt)
	return mapErr(err)
}

func (t *sqlTx) UpdateBookingStatus(ctx context.Context, id string, from, to model.BookingStatus, at time.Time) error {
	const q = `UPDATE bookings SET status = ?, status_changed_at = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := t.tx.ExecContext(ctx, q, string(to), at, at, id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("booking %s not in status %s: %w", id, from, ErrConflict)
	}
	return nil
}

func (t *sqlTx) UpdateBookingSchedule(ctx context.Context, id string, scheduledAt, deadline, at time.Time) error {
	const q = `UPDATE bookings SET scheduled_at = ?, reschedule_deadline = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending','confirmed')`
	res, err := t.tx.ExecContext(ctx, q, scheduledAt, deadline, at, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("booking %s not active: %w", id, ErrConflict)
	}
	return nil
}

func (t *sqlTx) InsertBookingEvent(ctx context.Context, ev *model.BookingEvent) error {
	const q = `INSERT INTO booking_events (booking_id, from_status, to_status, event, settlement, scheduled_at, created_at)
		VALUES (?,?,?,?,?,?,?)`
	res, err := t.tx.ExecContext(ctx, q, ev.BookingID, string(ev.FromStatus), string(ev.ToStatus), ev.Event, ev.Settlement, ev.ScheduledAt, ev.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
