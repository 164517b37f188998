package model

import "time"

// RoleProvider is the only role issued in access tokens.  Clients never
// authenticate; they are identified by email at checkout.
const RoleProvider = "PROVIDER"

// Provider represents a service provider ("master") as stored in the
// `providers` table.  A provider owns services, receives bookings and
// accumulates a ledger balance that is drained by payouts.
//
// Fields:
//
//	ID               – primary key identifier.
//	Email            – unique login email.
//	PasswordHash     – bcrypt hashed password.
//	Name             – display name shown on the public booking page.
//	Slug             – unique public booking handle (/v1/providers/:slug).
//	PayoutAccountRef – external connected-account id; empty until onboarded.
//	Role             – always PROVIDER.
//	IsActive         – whether the account can log in.
//	CreatedAt        – timestamp of creation.
//	UpdatedAt        – timestamp of last update.
type Provider struct {
	ID               uint64    `json:"id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	PayoutAccountRef string    `json:"payout_account_ref,omitempty"`
	Role             string    `json:"role"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID         uint64     // refresh_tokens.id
	ProviderID uint64     // refresh_tokens.provider_id
	TokenHash  string     // refresh_tokens.token_hash
	ExpiresAt  time.Time  // refresh_tokens.expires_at
	RevokedAt  *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt  time.Time  // refresh_tokens.created_at
}
