package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/utils"
)

// ProviderRepo persists provider accounts for authentication and the public
// booking page.
type ProviderRepo struct{ DB *sql.DB }

func NewProviderRepo(db *sql.DB) *ProviderRepo { return &ProviderRepo{DB: db} }

const providerColumns = "id, email, password_hash, name, slug, payout_account_ref, role, is_active, created_at, updated_at"

func scanProvider(rs rowScanner) (model.Provider, error) {
	var (
		p       model.Provider
		account sql.NullString
	)
	err := rs.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Name, &p.Slug, &account, &p.Role, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	p.PayoutAccountRef = account.String
	return p, err
}

func getProvider(ctx context.Context, q DBTX, where string, arg any) (model.Provider, error) {
	p, err := scanProvider(q.QueryRowContext(ctx, "SELECT "+providerColumns+" FROM providers WHERE "+where+" LIMIT 1", arg))
	return p, mapErr(err)
}

// Create hashes the password and inserts the provider.  A taken email or
// slug yields ErrDuplicate.
func (r *ProviderRepo) Create(ctx context.Context, email, password, name, slug string, cost int) (uint64, error) {
	email = normalizeEmail(email)
	slug = strings.ToLower(strings.TrimSpace(slug))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO providers (email, password_hash, name, slug, role) VALUES (?,?,?,?,?)",
		email, hash, name, slug, model.RoleProvider)
	if err != nil {
		return 0, mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a provider by normalized email.
func (r *ProviderRepo) GetByEmail(ctx context.Context, email string) (model.Provider, error) {
	return getProvider(ctx, r.DB, "email = ?", normalizeEmail(email))
}

// GetByID fetches a provider by id.
func (r *ProviderRepo) GetByID(ctx context.Context, id uint64) (model.Provider, error) {
	return getProvider(ctx, r.DB, "id = ?", id)
}

// GetBySlug resolves the public booking handle.
func (r *ProviderRepo) GetBySlug(ctx context.Context, slug string) (model.Provider, error) {
	return getProvider(ctx, r.DB, "slug = ? AND is_active = 1", strings.ToLower(strings.TrimSpace(slug)))
}

// SetPayoutAccount stores the external connected-account reference.
func (r *ProviderRepo) SetPayoutAccount(ctx context.Context, id uint64, accountRef string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE providers SET payout_account_ref = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?",
		nullString(accountRef), id)
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

// GetProvider lets the engine read the payout account inside its own store.
func (s *SQLStore) GetProvider(ctx context.Context, id uint64) (model.Provider, error) {
	return getProvider(ctx, s.db, "id = ?", id)
}
