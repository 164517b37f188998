package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/slotta-engine/internal/model"
)

// ErrNoChange indicates the UPDATE attempted to set fields equal to current values.
var ErrNoChange = errors.New("no change")

// ServiceRepo manages a provider's service catalog.  Bookings snapshot the
// price and duration, so edits here never reach existing bookings.
type ServiceRepo struct {
	db *sql.DB
}

func NewServiceRepo(db *sql.DB) *ServiceRepo { return &ServiceRepo{db: db} }

const serviceColumns = "id, provider_id, name, description, price_cents, duration_minutes, base_hold_cents, is_peak, is_active, created_at, updated_at"

func scanService(rs rowScanner) (model.Service, error) {
	var (
		s     model.Service
		descr sql.NullString
	)
	err := rs.Scan(&s.ID, &s.ProviderID, &s.Name, &descr, &s.PriceCents, &s.DurationMinutes, &s.BaseHoldCents, &s.IsPeak, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	s.Description = descr.String
	return s, err
}

func getService(ctx context.Context, q DBTX, id uint64) (model.Service, error) {
	s, err := scanService(q.QueryRowContext(ctx, "SELECT "+serviceColumns+" FROM services WHERE id = ? LIMIT 1", id))
	return s, mapErr(err)
}

// GetService is the engine's read of a service at checkout.
func (s *SQLStore) GetService(ctx context.Context, id uint64) (model.Service, error) {
	return getService(ctx, s.db, id)
}

// GetByID fetches a service by id.
func (r *ServiceRepo) GetByID(ctx context.Context, id uint64) (model.Service, error) {
	return getService(ctx, r.db, id)
}

// ListByProvider returns a provider's services.  activeOnly hides
// deactivated ones for the public page.
func (r *ServiceRepo) ListByProvider(ctx context.Context, providerID uint64, activeOnly bool) ([]model.Service, error) {
	query := "SELECT " + serviceColumns + " FROM services WHERE provider_id = ?"
	if activeOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY name, id"
	rows, err := r.db.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Service, 0)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a service and fills in ID.
func (r *ServiceRepo) Create(ctx context.Context, s *model.Service) error {
	const q = `INSERT INTO services (provider_id, name, description, price_cents, duration_minutes, base_hold_cents, is_peak, is_active)
		VALUES (?,?,?,?,?,?,?,?)`
	res, err := r.db.ExecContext(ctx, q, s.ProviderID, s.Name, nullString(s.Description), s.PriceCents, s.DurationMinutes,
		s.BaseHoldCents, s.IsPeak, s.IsActive)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// Update overwrites the editable fields.  It returns ErrNotFound for an
// unknown id and ErrForbidden when the service belongs to someone else.
func (r *ServiceRepo) Update(ctx context.Context, providerID uint64, s *model.Service) error {
	current, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	if current.ProviderID != providerID {
		return ErrForbidden
	}
	const q = `UPDATE services SET name = ?, description = ?, price_cents = ?, duration_minutes = ?, base_hold_cents = ?,
		is_peak = ?, is_active = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND provider_id = ?`
	_, err = r.db.ExecContext(ctx, q, s.Name, nullString(s.Description), s.PriceCents, s.DurationMinutes, s.BaseHoldCents,
		s.IsPeak, s.IsActive, s.ID, providerID)
	return err
}

// Deactivate hides a service from new bookings.  Services are never
// deleted because bookings reference them.
func (r *ServiceRepo) Deactivate(ctx context.Context, providerID, id uint64) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.ProviderID != providerID {
		return ErrForbidden
	}
	if !current.IsActive {
		return ErrNoChange
	}
	_, err = r.db.ExecContext(ctx, "UPDATE services SET is_active = 0, updated_at = UTC_TIMESTAMP() WHERE id = ?", id)
	return err
}
