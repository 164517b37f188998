package model

import "time"

// OwnerKind separates provider balances from client wallets.
type OwnerKind string

const (
	OwnerProvider OwnerKind = "provider"
	OwnerClient   OwnerKind = "client"
)

// Owner identifies one balance in the ledger.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   uint64    `json:"id"`
}

func ProviderOwner(id uint64) Owner { return Owner{Kind: OwnerProvider, ID: id} }
func ClientOwner(id uint64) Owner   { return Owner{Kind: OwnerClient, ID: id} }

// TransactionType enumerates balance-affecting events.
type TransactionType string

const (
	TxRelease             TransactionType = "release"
	TxCaptureCompensation TransactionType = "capture-compensation"
	TxWalletCredit        TransactionType = "wallet-credit"
	TxPayout              TransactionType = "payout"
	TxFee                 TransactionType = "fee"
)

// LedgerTransaction is immutable once written.  AmountCents is signed in the
// owner's frame: credits are positive, payouts and fees negative.
//
// Fields:
//
//	ID          – uuid primary key.
//	Owner       – provider or client the row belongs to.
//	Type        – see TransactionType.
//	AmountCents – signed amount in minor units; 0 for release markers.
//	BookingID   – linked booking, empty for payouts and fees.
//	PayoutID    – linked payout request, empty for booking settlements.
//	CreatedAt   – write time (UTC).
type LedgerTransaction struct {
	ID          string          `json:"id"`
	Owner       Owner           `json:"owner"`
	Type        TransactionType `json:"type"`
	AmountCents int64           `json:"amount_cents"`
	Currency    string          `json:"currency"`
	BookingID   string          `json:"booking_id,omitempty"`
	PayoutID    string          `json:"payout_id,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
