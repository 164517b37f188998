package handler

import (
	"context"
	"time"

	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/payment"
	"github.com/iliyamo/slotta-engine/internal/service"
)

// The interfaces below are what the handlers need from the repositories and
// the engine.  The concrete types in repository and service satisfy them.

type ProviderStore interface {
	Create(ctx context.Context, email, password, name, slug string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.Provider, error)
	GetByID(ctx context.Context, id uint64) (model.Provider, error)
	GetBySlug(ctx context.Context, slug string) (model.Provider, error)
	SetPayoutAccount(ctx context.Context, id uint64, accountRef string) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, providerID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForProvider(ctx context.Context, providerID uint64) error
}

type ServiceCatalog interface {
	GetByID(ctx context.Context, id uint64) (model.Service, error)
	ListByProvider(ctx context.Context, providerID uint64, activeOnly bool) ([]model.Service, error)
	Create(ctx context.Context, s *model.Service) error
	Update(ctx context.Context, providerID uint64, s *model.Service) error
	Deactivate(ctx context.Context, providerID, id uint64) error
}

type BookingEngine interface {
	Quote(ctx context.Context, serviceID uint64, clientEmail string) (service.Quote, error)
	CreateWithPayment(ctx context.Context, in service.CreateBookingInput) (service.CreateResult, error)
	MarkCompleted(ctx context.Context, providerID uint64, id string) (service.TransitionResult, error)
	MarkNoShow(ctx context.Context, providerID uint64, id string) (service.TransitionResult, error)
	Cancel(ctx context.Context, providerID uint64, id, reason string) (service.TransitionResult, error)
	Reschedule(ctx context.Context, providerID uint64, id string, newAt time.Time) (model.Booking, error)
	HandleWebhook(ctx context.Context, ev payment.WebhookEvent) (service.TransitionResult, error)
	Get(ctx context.Context, providerID uint64, id string) (service.BookingDetail, error)
	List(ctx context.Context, providerID uint64, status model.BookingStatus, limit int) ([]model.Booking, error)
	Clients(ctx context.Context, providerID uint64) ([]model.ClientSummary, error)
}

type PayoutEngine interface {
	RequestPayout(ctx context.Context, providerID uint64, amount *int64, idempotencyKey string) (model.PayoutRequest, error)
	List(ctx context.Context, providerID uint64, limit int) ([]model.PayoutRequest, error)
}

type WalletReader interface {
	Wallet(ctx context.Context, providerID uint64, limit int) (service.WalletSummary, error)
}

type AnalyticsReader interface {
	ProviderAnalytics(ctx context.Context, providerID uint64) (service.ProviderAnalytics, error)
}
