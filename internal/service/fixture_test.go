package service

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/payment"
	"github.com/iliyamo/slotta-engine/internal/policy"
	"github.com/iliyamo/slotta-engine/internal/queue"
	"github.com/iliyamo/slotta-engine/internal/repository"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

const (
	providerAnna   uint64 = 1
	providerBoris  uint64 = 2 // no payout account
	serviceCut     uint64 = 10
	serviceOff     uint64 = 11
	servicePeak    uint64 = 12
	serviceLongFix uint64 = 13
)

type fixture struct {
	store     *memStore
	sandbox   *payment.Sandbox
	gateway   payment.Gateway
	events    *recordingPublisher
	metrics   *Metrics
	now       time.Time
	ledger    *Ledger
	bookings  *BookingService
	payouts   *PayoutService
	analytics *AnalyticsService
	cache     *AnalyticsCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newMemStore()
	st.st.providers[providerAnna] = model.Provider{ID: providerAnna, Email: "anna@example.com", Name: "Anna", Slug: "anna",
		PayoutAccountRef: "acct_anna", Role: model.RoleProvider, IsActive: true}
	st.st.providers[providerBoris] = model.Provider{ID: providerBoris, Email: "boris@example.com", Name: "Boris", Slug: "boris",
		Role: model.RoleProvider, IsActive: true}
	st.st.services[serviceCut] = model.Service{ID: serviceCut, ProviderID: providerAnna, Name: "Haircut", PriceCents: 15000, DurationMinutes: 60, IsActive: true}
	st.st.services[serviceOff] = model.Service{ID: serviceOff, ProviderID: providerAnna, Name: "Retired", PriceCents: 5000, DurationMinutes: 30}
	st.st.services[servicePeak] = model.Service{ID: servicePeak, ProviderID: providerAnna, Name: "Saturday cut", PriceCents: 15000, DurationMinutes: 60, IsPeak: true, IsActive: true}
	st.st.services[serviceLongFix] = model.Service{ID: serviceLongFix, ProviderID: providerBoris, Name: "Colour", PriceCents: 20000, DurationMinutes: 240, IsActive: true}

	sb := payment.NewSandbox()
	f := &fixture{
		store:   st,
		sandbox: sb,
		gateway: sb,
		events:  &recordingPublisher{},
		metrics: NewMetrics(nil),
		now:     testNow,
	}
	f.rebuild()
	return f
}

// rebuild wires the services again after the gateway or cache changed.
func (f *fixture) rebuild() {
	log, _ := test.NewNullLogger()
	d := Deps{
		Store:   f.store,
		Gateway: f.gateway,
		Policy:  policy.Default(),
		Events:  f.events,
		Metrics: f.metrics,
		Cache:   f.cache,
		Log:     log,
		Now:     func() time.Time { return f.now },
	}
	f.ledger = NewLedger(d)
	f.bookings = NewBookingService(d, f.ledger)
	f.payouts = NewPayoutService(d, f.ledger)
	f.analytics = NewAnalyticsService(d)
}

func (f *fixture) book(t *testing.T, serviceID uint64, email string, at time.Time, card string) CreateResult {
	t.Helper()
	res, err := f.bookings.CreateWithPayment(context.Background(), CreateBookingInput{
		ServiceID:        serviceID,
		ScheduledAt:      at,
		ClientEmail:      email,
		PaymentMethodRef: card,
	})
	require.NoError(t, err)
	return res
}

// seedClient stores a client with history.
func (f *fixture) seedClient(email string, total, completed, noShows, cancellations int) model.Client {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.st.nextID++
	c := model.Client{ID: f.store.st.nextID, Email: email, Name: email, TotalBookings: total, CompletedBookings: completed,
		NoShows: noShows, Cancellations: cancellations}
	f.store.st.clients[c.ID] = c
	return c
}

// credit puts money on a provider balance through the ledger.
func (f *fixture) credit(t *testing.T, providerID uint64, cents int64) {
	t.Helper()
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := f.ledger.Apply(ctx, tx, Entry{Owner: model.ProviderOwner(providerID), Type: model.TxCaptureCompensation, AmountCents: cents})
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) balance(owner model.Owner) int64 {
	bal, _ := f.store.Balance(context.Background(), owner)
	return bal
}

func (f *fixture) ledgerRows(bookingID string) []model.LedgerTransaction {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []model.LedgerTransaction
	for _, lt := range f.store.st.txs {
		if lt.BookingID == bookingID {
			out = append(out, lt)
		}
	}
	return out
}

// requireReconciled checks sum(rows) == cached balance for every owner.
func (f *fixture) requireReconciled(t *testing.T) {
	t.Helper()
	f.store.mu.Lock()
	owners := make([]model.Owner, 0, len(f.store.st.balances))
	for o := range f.store.st.balances {
		owners = append(owners, o)
	}
	f.store.mu.Unlock()
	for _, o := range owners {
		rec, err := f.ledger.Reconcile(context.Background(), o)
		require.NoError(t, err)
		require.Truef(t, rec.OK, "owner %+v: balance %d ledger %d", o, rec.BalanceCents, rec.LedgerCents)
	}
}

type recordingPublisher struct {
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// faultyGateway overrides single gateway calls.
type faultyGateway struct {
	payment.Gateway
	captureErr error
	releaseErr error
	// beforeCapture runs before the capture is forwarded.
	beforeCapture func()
}

func (g *faultyGateway) CaptureHold(ctx context.Context, ref string, amount int64) error {
	if g.beforeCapture != nil {
		g.beforeCapture()
	}
	if g.captureErr != nil {
		return g.captureErr
	}
	return g.Gateway.CaptureHold(ctx, ref, amount)
}

func (g *faultyGateway) ReleaseHold(ctx context.Context, ref string) error {
	if g.releaseErr != nil {
		return g.releaseErr
	}
	return g.Gateway.ReleaseHold(ctx, ref)
}

// payoutGateway forwards transfers but can drop the processor's reply.
type payoutGateway struct {
	payment.Gateway
	// lostReplies is how many successful transfers report a timeout.
	lostReplies int
	// beforeSend runs before the transfer is forwarded.
	beforeSend func()
}

func (g *payoutGateway) SendPayout(ctx context.Context, account string, amount int64, currency, key string) (string, error) {
	if g.beforeSend != nil {
		g.beforeSend()
	}
	ref, err := g.Gateway.SendPayout(ctx, account, amount, currency, key)
	if err == nil && g.lostReplies > 0 {
		g.lostReplies--
		return "", context.DeadlineExceeded
	}
	return ref, err
}
