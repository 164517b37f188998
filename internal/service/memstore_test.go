package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/repository"
)

// memStore is an in-memory repository.Store.  Transactions are serialized
// by one mutex and roll back by restoring a snapshot, which is enough to
// observe the all-or-nothing behaviour of the engine.
type memStore struct {
	mu sync.Mutex
	st memState
	// commitErr, when set, fails the next commit.
	commitErr error
}

type memState struct {
	providers map[uint64]model.Provider
	services  map[uint64]model.Service
	clients   map[uint64]model.Client
	bookings  map[string]model.Booking
	events    []model.BookingEvent
	txs       []model.LedgerTransaction
	balances  map[model.Owner]int64
	payouts   map[string]model.PayoutRequest
	nextID    uint64
}

func newMemStore() *memStore {
	return &memStore{st: memState{
		providers: map[uint64]model.Provider{},
		services:  map[uint64]model.Service{},
		clients:   map[uint64]model.Client{},
		bookings:  map[string]model.Booking{},
		balances:  map[model.Owner]int64{},
		payouts:   map[string]model.PayoutRequest{},
		nextID:    100,
	}}
}

func (s memState) clone() memState {
	c := memState{
		providers: make(map[uint64]model.Provider, len(s.providers)),
		services:  make(map[uint64]model.Service, len(s.services)),
		clients:   make(map[uint64]model.Client, len(s.clients)),
		bookings:  make(map[string]model.Booking, len(s.bookings)),
		events:    append([]model.BookingEvent(nil), s.events...),
		txs:       append([]model.LedgerTransaction(nil), s.txs...),
		balances:  make(map[model.Owner]int64, len(s.balances)),
		payouts:   make(map[string]model.PayoutRequest, len(s.payouts)),
		nextID:    s.nextID,
	}
	for k, v := range s.providers {
		c.providers[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.payouts {
		c.payouts[k] = v
	}
	return c
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	err := fn(ctx, &memTx{st: &s.st})
	if err == nil {
		err = ctx.Err()
	}
	if err == nil && s.commitErr != nil {
		err, s.commitErr = s.commitErr, nil
	}
	if err != nil {
		s.st = snapshot
	}
	return err
}

// ---- Reader ----

func (s *memStore) GetBooking(_ context.Context, id string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.st.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (s *memStore) GetBookingByAuthorization(_ context.Context, ref string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.st.bookings {
		if b.AuthorizationRef == ref {
			return b, nil
		}
	}
	return model.Booking{}, repository.ErrNotFound
}

func (s *memStore) ListBookings(_ context.Context, providerID uint64, status model.BookingStatus, limit int) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.st.bookings {
		if b.ProviderID == providerID && (status == "" || b.Status == status) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ListBookingEvents(_ context.Context, bookingID string) ([]model.BookingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.BookingEvent, 0)
	for _, ev := range s.st.events {
		if ev.BookingID == bookingID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *memStore) BookingStats(_ context.Context, providerID uint64) (model.BookingStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st model.BookingStats
	for _, b := range s.st.bookings {
		if b.ProviderID != providerID {
			continue
		}
		st.Total++
		st.HoldSumCents += b.HoldCents
		switch b.Status {
		case model.StatusCompleted:
			st.Completed++
			st.ProtectedHoldCents += b.HoldCents
		case model.StatusNoShow:
			st.NoShows++
		case model.StatusCancelled:
			st.Cancelled++
		default:
			st.Active++
			st.ProtectedHoldCents += b.HoldCents
		}
	}
	return st, nil
}

func (s *memStore) GetService(_ context.Context, id uint64) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.st.services[id]
	if !ok {
		return model.Service{}, repository.ErrNotFound
	}
	return svc, nil
}

func (s *memStore) GetProvider(_ context.Context, id uint64) (model.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.providers[id]
	if !ok {
		return model.Provider{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *memStore) GetClient(_ context.Context, id uint64) (model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.clients[id]
	if !ok {
		return model.Client{}, repository.ErrNotFound
	}
	return c, nil
}

func (s *memStore) GetClientByEmail(_ context.Context, email string) (model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.clientByEmail(email)
}

func (s *memState) clientByEmail(email string) (model.Client, error) {
	for _, c := range s.clients {
		if c.Email == email {
			return c, nil
		}
	}
	return model.Client{}, repository.ErrNotFound
}

func (s *memStore) ListClients(_ context.Context, providerID uint64) ([]model.ClientSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[uint64]int{}
	for _, b := range s.st.bookings {
		if b.ProviderID == providerID {
			counts[b.ClientID]++
		}
	}
	out := make([]model.ClientSummary, 0, len(counts))
	for id, n := range counts {
		out = append(out, model.ClientSummary{
			Client:        s.st.clients[id],
			WalletCents:   s.st.balances[model.ClientOwner(id)],
			BookingsCount: n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) Balance(_ context.Context, owner model.Owner) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.balances[owner], nil
}

func (s *memStore) SumTransactions(_ context.Context, owner model.Owner, types ...model.TransactionType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, lt := range s.st.txs {
		if lt.Owner != owner {
			continue
		}
		if len(types) > 0 && !containsType(types, lt.Type) {
			continue
		}
		sum += lt.AmountCents
	}
	return sum, nil
}

func containsType(types []model.TransactionType, t model.TransactionType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func (s *memStore) ListTransactions(_ context.Context, owner model.Owner, limit int) ([]model.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.LedgerTransaction, 0)
	for i := len(s.st.txs) - 1; i >= 0; i-- {
		if s.st.txs[i].Owner == owner {
			out = append(out, s.st.txs[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) GetPayoutByKey(_ context.Context, providerID uint64, key string) (model.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.payoutByKey(providerID, key)
}

func (s *memState) payoutByKey(providerID uint64, key string) (model.PayoutRequest, error) {
	for _, p := range s.payouts {
		if p.ProviderID == providerID && p.IdempotencyKey == key {
			return p, nil
		}
	}
	return model.PayoutRequest{}, repository.ErrNotFound
}

func (s *memStore) ListPayouts(_ context.Context, providerID uint64, limit int) ([]model.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PayoutRequest, 0)
	for _, p := range s.st.payouts {
		if p.ProviderID == providerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) SumPayouts(_ context.Context, providerID uint64, status model.PayoutStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, p := range s.st.payouts {
		if p.ProviderID == providerID && p.Status == status {
			sum += p.AmountCents
		}
	}
	return sum, nil
}

// ---- Tx ----

type memTx struct {
	st *memState
}

func (t *memTx) GetBookingForUpdate(_ context.Context, id string) (model.Booking, error) {
	b, ok := t.st.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	if _, ok := t.st.bookings[b.ID]; ok {
		return repository.ErrDuplicate
	}
	t.st.bookings[b.ID] = *b
	return nil
}

func (t *memTx) UpdateBookingStatus(_ context.Context, id string, from, to model.BookingStatus, at time.Time) error {
	b, ok := t.st.bookings[id]
	if !ok || b.Status != from {
		return fmt.Errorf("booking %s not in status %s: %w", id, from, repository.ErrConflict)
	}
	b.Status, b.StatusChangedAt, b.UpdatedAt = to, at, at
	t.st.bookings[id] = b
	return nil
}

func (t *memTx) UpdateBookingSchedule(_ context.Context, id string, scheduledAt, deadline, at time.Time) error {
	b, ok := t.st.bookings[id]
	if !ok || !b.Status.Active() {
		return repository.ErrConflict
	}
	b.ScheduledAt, b.RescheduleDeadline, b.UpdatedAt = scheduledAt, deadline, at
	t.st.bookings[id] = b
	return nil
}

func (t *memTx) InsertBookingEvent(_ context.Context, ev *model.BookingEvent) error {
	t.st.nextID++
	ev.ID = t.st.nextID
	t.st.events = append(t.st.events, *ev)
	return nil
}

func (t *memTx) FindClientByEmailForUpdate(_ context.Context, email string) (model.Client, error) {
	return t.st.clientByEmail(email)
}

func (t *memTx) GetClientForUpdate(_ context.Context, id uint64) (model.Client, error) {
	c, ok := t.st.clients[id]
	if !ok {
		return model.Client{}, repository.ErrNotFound
	}
	return c, nil
}

func (t *memTx) InsertClient(_ context.Context, c *model.Client) error {
	if _, err := t.st.clientByEmail(c.Email); err == nil {
		return repository.ErrDuplicate
	}
	t.st.nextID++
	c.ID = t.st.nextID
	t.st.clients[c.ID] = *c
	return nil
}

func (t *memTx) AddClientCounters(_ context.Context, id uint64, d model.CounterDelta) error {
	c, ok := t.st.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.TotalBookings += d.Total
	c.CompletedBookings += d.Completed
	c.NoShows += d.NoShows
	c.Cancellations += d.Cancellations
	if c.NoShows > c.TotalBookings {
		return fmt.Errorf("client %d no_shows > total_bookings", id)
	}
	t.st.clients[id] = c
	return nil
}

func (t *memTx) LockBalance(_ context.Context, owner model.Owner) (int64, error) {
	return t.st.balances[owner], nil
}

func (t *memTx) SetBalance(_ context.Context, owner model.Owner, balance int64) error {
	t.st.balances[owner] = balance
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, lt *model.LedgerTransaction) error {
	t.st.txs = append(t.st.txs, *lt)
	return nil
}

func (t *memTx) GetPayoutByKeyForUpdate(_ context.Context, providerID uint64, key string) (model.PayoutRequest, error) {
	return t.st.payoutByKey(providerID, key)
}

func (t *memTx) GetPayoutForUpdate(_ context.Context, id string) (model.PayoutRequest, error) {
	p, ok := t.st.payouts[id]
	if !ok {
		return model.PayoutRequest{}, repository.ErrNotFound
	}
	return p, nil
}

func (t *memTx) InsertPayout(_ context.Context, p *model.PayoutRequest) error {
	if _, err := t.st.payoutByKey(p.ProviderID, p.IdempotencyKey); err == nil {
		return repository.ErrDuplicate
	}
	t.st.payouts[p.ID] = *p
	return nil
}

func (t *memTx) UpdatePayout(_ context.Context, p *model.PayoutRequest) error {
	if _, ok := t.st.payouts[p.ID]; !ok {
		return repository.ErrNotFound
	}
	t.st.payouts[p.ID] = *p
	return nil
}

var _ repository.Store = (*memStore)(nil)
