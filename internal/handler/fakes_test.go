package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/slotta-engine/internal/config"
	"github.com/iliyamo/slotta-engine/internal/middleware"
	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/payment"
	"github.com/iliyamo/slotta-engine/internal/repository"
	"github.com/iliyamo/slotta-engine/internal/service"
	"github.com/iliyamo/slotta-engine/internal/utils"
)

const secret = "handler-secret"

var testCfg = config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}

type fakeProviders struct {
	mu   sync.Mutex
	byID map[uint64]model.Provider
	next uint64
}

func newFakeProviders() *fakeProviders {
	return &fakeProviders{byID: map[uint64]model.Provider{}, next: 1}
}

func (f *fakeProviders) Create(_ context.Context, email, password, name, slug string, cost int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.Email == email || p.Slug == slug {
			return 0, repository.ErrDuplicate
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	id := f.next
	f.next++
	f.byID[id] = model.Provider{ID: id, Email: email, PasswordHash: hash, Name: name, Slug: slug, Role: model.RoleProvider, IsActive: true}
	return id, nil
}

func (f *fakeProviders) find(match func(model.Provider) bool) (model.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if match(p) {
			return p, nil
		}
	}
	return model.Provider{}, repository.ErrNotFound
}

func (f *fakeProviders) GetByEmail(_ context.Context, email string) (model.Provider, error) {
	return f.find(func(p model.Provider) bool { return p.Email == email })
}

func (f *fakeProviders) GetByID(_ context.Context, id uint64) (model.Provider, error) {
	return f.find(func(p model.Provider) bool { return p.ID == id })
}

func (f *fakeProviders) GetBySlug(_ context.Context, slug string) (model.Provider, error) {
	return f.find(func(p model.Provider) bool { return p.Slug == slug && p.IsActive })
}

func (f *fakeProviders) SetPayoutAccount(_ context.Context, id uint64, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.PayoutAccountRef = ref
	f.byID[id] = p
	return nil
}

type fakeToken struct {
	providerID uint64
	revoked    bool
}

type fakeTokens struct {
	mu     sync.Mutex
	byHash map[string]*fakeToken
}

func newFakeTokens() *fakeTokens { return &fakeTokens{byHash: map[string]*fakeToken{}} }

func (f *fakeTokens) StoreRefresh(_ context.Context, pid uint64, hash string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHash[hash] = &fakeToken{providerID: pid}
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byHash[hash]
	if !ok || t.revoked {
		return 0, repository.ErrNotFound
	}
	return t.providerID, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.byHash[hash]; ok {
		t.revoked = true
	}
	return nil
}

func (f *fakeTokens) RevokeAllForProvider(_ context.Context, pid uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byHash {
		if t.providerID == pid {
			t.revoked = true
		}
	}
	return nil
}

func (f *fakeTokens) active(pid uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.byHash {
		if t.providerID == pid && !t.revoked {
			n++
		}
	}
	return n
}

type fakeCatalog struct {
	mu   sync.Mutex
	byID map[uint64]model.Service
	next uint64
}

func newFakeCatalog(svcs ...model.Service) *fakeCatalog {
	f := &fakeCatalog{byID: map[uint64]model.Service{}, next: 100}
	for _, s := range svcs {
		f.byID[s.ID] = s
	}
	return f
}

func (f *fakeCatalog) GetByID(_ context.Context, id uint64) (model.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return model.Service{}, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeCatalog) ListByProvider(_ context.Context, pid uint64, activeOnly bool) ([]model.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Service{}
	for _, s := range f.byID {
		if s.ProviderID == pid && (!activeOnly || s.IsActive) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCatalog) Create(_ context.Context, s *model.Service) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = f.next
	f.next++
	f.byID[s.ID] = *s
	return nil
}

func (f *fakeCatalog) Update(_ context.Context, pid uint64, s *model.Service) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[s.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.ProviderID != pid {
		return repository.ErrForbidden
	}
	f.byID[s.ID] = *s
	return nil
}

func (f *fakeCatalog) Deactivate(_ context.Context, pid, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[id]
	switch {
	case !ok:
		return repository.ErrNotFound
	case cur.ProviderID != pid:
		return repository.ErrForbidden
	case !cur.IsActive:
		return repository.ErrNoChange
	}
	cur.IsActive = false
	f.byID[id] = cur
	return nil
}

// fakeEngine answers with whatever the test configured.  Calls are
// recorded by name.
type fakeEngine struct {
	mu    sync.Mutex
	calls []string

	quote      service.Quote
	created    service.CreateResult
	transition service.TransitionResult
	booking    model.Booking
	detail     service.BookingDetail
	list       []model.Booking
	clients    []model.ClientSummary
	wallet     service.WalletSummary
	analytics  service.ProviderAnalytics
	payout     model.PayoutRequest
	payouts    []model.PayoutRequest
	err        error

	lastInput  service.CreateBookingInput
	lastReason string
	lastAmount *int64
	lastKey    string
	lastStatus model.BookingStatus
	lastEvent  payment.WebhookEvent
}

func (f *fakeEngine) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeEngine) Quote(_ context.Context, id uint64, _ string) (service.Quote, error) {
	f.record("quote")
	q := f.quote
	q.ServiceID = id
	return q, f.err
}

func (f *fakeEngine) CreateWithPayment(_ context.Context, in service.CreateBookingInput) (service.CreateResult, error) {
	f.record("create")
	f.lastInput = in
	return f.created, f.err
}

func (f *fakeEngine) MarkCompleted(context.Context, uint64, string) (service.TransitionResult, error) {
	f.record("complete")
	return f.transition, f.err
}

func (f *fakeEngine) MarkNoShow(context.Context, uint64, string) (service.TransitionResult, error) {
	f.record("no-show")
	return f.transition, f.err
}

func (f *fakeEngine) Cancel(_ context.Context, _ uint64, _ string, reason string) (service.TransitionResult, error) {
	f.record("cancel")
	f.lastReason = reason
	return f.transition, f.err
}

func (f *fakeEngine) Reschedule(_ context.Context, _ uint64, _ string, at time.Time) (model.Booking, error) {
	f.record("reschedule")
	b := f.booking
	b.ScheduledAt = at
	return b, f.err
}

func (f *fakeEngine) HandleWebhook(_ context.Context, ev payment.WebhookEvent) (service.TransitionResult, error) {
	f.record("webhook")
	f.lastEvent = ev
	return f.transition, f.err
}

func (f *fakeEngine) Get(context.Context, uint64, string) (service.BookingDetail, error) {
	f.record("get")
	return f.detail, f.err
}

func (f *fakeEngine) List(_ context.Context, _ uint64, status model.BookingStatus, _ int) ([]model.Booking, error) {
	f.record("list")
	f.lastStatus = status
	return f.list, f.err
}

func (f *fakeEngine) Clients(context.Context, uint64) ([]model.ClientSummary, error) {
	f.record("clients")
	return f.clients, f.err
}

func (f *fakeEngine) Wallet(context.Context, uint64, int) (service.WalletSummary, error) {
	f.record("wallet")
	return f.wallet, f.err
}

func (f *fakeEngine) ProviderAnalytics(context.Context, uint64) (service.ProviderAnalytics, error) {
	f.record("analytics")
	return f.analytics, f.err
}

func (f *fakeEngine) RequestPayout(_ context.Context, _ uint64, amount *int64, key string) (model.PayoutRequest, error) {
	f.record("payout")
	f.lastAmount = amount
	f.lastKey = key
	return f.payout, f.err
}

// PayoutEngine.List collides with BookingEngine.List, so payouts get their
// own adapter.
type fakePayouts struct{ *fakeEngine }

func (f fakePayouts) List(context.Context, uint64, int) ([]model.PayoutRequest, error) {
	f.record("payouts")
	return f.payouts, f.err
}

// authed wraps h with the same JWT middleware the router uses.
func authed(e *echo.Echo, method, path string, h echo.HandlerFunc) {
	e.Add(method, path, h, middleware.JWTAuth(secret), middleware.RequireRole(model.RoleProvider))
}

func bearer(t *testing.T, pid uint64) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, pid, model.RoleProvider, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func do(e *echo.Echo, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
