package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/slotta-engine/internal/lifecycle"
	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/payment"
	"github.com/iliyamo/slotta-engine/internal/policy"
	"github.com/iliyamo/slotta-engine/internal/queue"
	"github.com/iliyamo/slotta-engine/internal/repository"
)

// BookingService creates bookings against an authorized hold and executes
// lifecycle transitions together with their settlement.
type BookingService struct {
	Deps
	ledger *Ledger
	rules  lifecycle.Rules
}

func NewBookingService(d Deps, ledger *Ledger) *BookingService {
	return &BookingService{
		Deps:   d,
		ledger: ledger,
		rules: lifecycle.Rules{
			CancellationNotice: d.Policy.CancellationNotice,
			RescheduleCutoff:   d.Policy.RescheduleCutoff,
		},
	}
}

func counters(c model.Client) policy.Counters {
	return policy.Counters{
		Total:         c.TotalBookings,
		Completed:     c.CompletedBookings,
		NoShows:       c.NoShows,
		Cancellations: c.Cancellations,
	}
}

// Quote is the hold a client would be asked for today.
type Quote struct {
	ServiceID        uint64      `json:"service_id"`
	PriceCents       int64       `json:"price_cents"`
	DurationMinutes  int         `json:"duration_minutes"`
	Tier             policy.Tier `json:"tier"`
	DemandMultiplier string      `json:"demand_multiplier"`
	HoldCents        int64       `json:"hold_cents"`
	MaxHoldCents     int64       `json:"max_hold_cents"`
	Currency         string      `json:"currency"`
}

func (s *BookingService) quote(svc model.Service, c model.Client) (Quote, error) {
	tier := s.Policy.Classify(counters(c))
	mult := s.Policy.DemandMultiplier(svc.IsPeak, c.Cancellations)
	hold, err := s.Policy.ComputeHold(policy.HoldInput{
		PriceCents:        svc.PriceCents,
		DurationMinutes:   svc.DurationMinutes,
		Tier:              tier,
		DemandMultiplier:  mult,
		BaseOverrideCents: svc.BaseHoldCents,
	})
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		ServiceID:        svc.ID,
		PriceCents:       svc.PriceCents,
		DurationMinutes:  svc.DurationMinutes,
		Tier:             tier,
		DemandMultiplier: mult.String(),
		HoldCents:        hold,
		MaxHoldCents:     s.Policy.MaxHold(svc.PriceCents),
		Currency:         s.Policy.Currency,
	}, nil
}

// Quote previews the hold for a service.  An empty or unknown email is
// priced as a new client.
func (s *BookingService) Quote(ctx context.Context, serviceID uint64, clientEmail string) (Quote, error) {
	svc, err := s.bookableService(ctx, serviceID)
	if err != nil {
		return Quote{}, err
	}
	var c model.Client
	if strings.TrimSpace(clientEmail) != "" {
		c, err = s.Store.GetClientByEmail(ctx, clientEmail)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return Quote{}, err
		}
	}
	return s.quote(svc, c)
}

func (s *BookingService) bookableService(ctx context.Context, id uint64) (model.Service, error) {
	svc, err := s.Store.GetService(ctx, id)
	if err != nil {
		return model.Service{}, err
	}
	if !svc.IsActive {
		return model.Service{}, fmt.Errorf("service %d: %w", id, ErrServiceInactive)
	}
	return svc, nil
}

// CreateBookingInput is a checkout submitted by a client.
type CreateBookingInput struct {
	ServiceID        uint64
	ScheduledAt      time.Time
	ClientEmail      string
	ClientName       string
	ClientPhone      string
	PaymentMethodRef string
	Notes            string
}

func (in *CreateBookingInput) normalize() error {
	in.ClientEmail = strings.ToLower(strings.TrimSpace(in.ClientEmail))
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.PaymentMethodRef = strings.TrimSpace(in.PaymentMethodRef)
	if in.ServiceID == 0 {
		return fmt.Errorf("service_id required: %w", ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(in.ClientEmail); err != nil || addr.Address != in.ClientEmail {
		return fmt.Errorf("client email %q: %w", in.ClientEmail, ErrInvalidInput)
	}
	if in.PaymentMethodRef == "" {
		return fmt.Errorf("payment method required: %w", ErrInvalidInput)
	}
	if in.ClientName == "" {
		in.ClientName = in.ClientEmail[:strings.Index(in.ClientEmail, "@")]
	}
	return nil
}

// CreateResult is a booking together with the pricing that produced it.
type CreateResult struct {
	Booking model.Booking `json:"booking"`
	Client  model.Client  `json:"client"`
	Quote   Quote         `json:"quote"`
}

// CreateWithPayment classifies the client, sizes the hold, authorizes it
// and records the booking.  The booking is confirmed when the processor
// authorized the hold at once and pending while the card holder still has
// to authenticate.  A failed authorization leaves nothing behind.
func (s *BookingService) CreateWithPayment(ctx context.Context, in CreateBookingInput) (CreateResult, error) {
	if err := in.normalize(); err != nil {
		return CreateResult{}, err
	}
	now := s.now()
	if !in.ScheduledAt.After(now) {
		return CreateResult{}, ErrInvalidSchedule
	}
	svc, err := s.bookableService(ctx, in.ServiceID)
	if err != nil {
		return CreateResult{}, err
	}

	var (
		res     CreateResult
		authRef string
	)
	err = s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		c, err := tx.FindClientByEmailForUpdate(ctx, in.ClientEmail)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c = model.Client{Email: in.ClientEmail, Name: in.ClientName, Phone: in.ClientPhone, CreatedAt: now, UpdatedAt: now}
			if err := tx.InsertClient(ctx, &c); err != nil {
				return err
			}
		case err != nil:
			return err
		}

		q, err := s.quote(svc, c)
		if err != nil {
			return err
		}
		b := model.Booking{
			ID:                 uuid.NewString(),
			ProviderID:         svc.ProviderID,
			ServiceID:          svc.ID,
			ClientID:           c.ID,
			ScheduledAt:        in.ScheduledAt.UTC(),
			DurationMinutes:    svc.DurationMinutes,
			PriceCents:         svc.PriceCents,
			HoldCents:          q.HoldCents,
			Currency:           s.Policy.Currency,
			ClientTier:         string(q.Tier),
			RiskScore:          s.Policy.RiskScore(counters(c), in.ScheduledAt.Sub(now)),
			RescheduleDeadline: s.rules.RescheduleDeadline(in.ScheduledAt.UTC()),
			Notes:              in.Notes,
			CreatedAt:          now,
			StatusChangedAt:    now,
			UpdatedAt:          now,
		}

		auth, err := s.Gateway.AuthorizeHold(ctx, payment.HoldRequest{
			PaymentMethodRef: in.PaymentMethodRef,
			AmountCents:      q.HoldCents,
			Currency:         s.Policy.Currency,
			Description:      fmt.Sprintf("Slot hold: %s", svc.Name),
			Metadata:         map[string]string{"booking_id": b.ID, "provider_id": fmt.Sprint(svc.ProviderID)},
		})
		s.Metrics.IncGateway("authorize", err)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPaymentAuthorizationFailed, err)
		}
		authRef = auth.Ref
		b.AuthorizationRef = auth.Ref
		b.Status = model.StatusConfirmed
		if auth.Status == payment.AuthPending {
			b.Status = model.StatusPending
		}

		if err := tx.InsertBooking(ctx, &b); err != nil {
			return err
		}
		// A pending booking counts once its hold is authorized.
		if b.Status == model.StatusConfirmed {
			if err := tx.AddClientCounters(ctx, c.ID, model.CounterDelta{Total: 1}); err != nil {
				return err
			}
			c.TotalBookings++
		}
		if err := tx.InsertBookingEvent(ctx, &model.BookingEvent{
			BookingID:   b.ID,
			ToStatus:    b.Status,
			Event:       "create",
			Settlement:  string(lifecycle.SettleNone),
			ScheduledAt: b.ScheduledAt,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		res = CreateResult{Booking: b, Client: c, Quote: q}
		return nil
	})
	if err != nil {
		s.Metrics.IncCheckout(string(res.Quote.Tier), "error")
		if authRef != "" {
			// The hold was placed but the booking did not commit.
			rerr := s.Gateway.ReleaseHold(context.WithoutCancel(ctx), authRef)
			s.Metrics.IncGateway("release", rerr)
			if rerr != nil {
				s.logger().WithError(rerr).WithField("authorization_ref", authRef).Error("orphaned hold not released")
			}
		}
		return CreateResult{}, err
	}

	s.Metrics.IncCheckout(string(res.Quote.Tier), "ok")
	s.logger().WithFields(logrus.Fields{
		"booking_id":  res.Booking.ID,
		"provider_id": res.Booking.ProviderID,
		"tier":        res.Booking.ClientTier,
		"hold_cents":  res.Booking.HoldCents,
		"status":      res.Booking.Status,
	}).Info("booking created")
	s.afterCommit(ctx, res.Booking.ProviderID, s.bookingEvent(queue.BookingCreated, res.Booking, res.Client.Email))
	return res, nil
}

func (s *BookingService) bookingEvent(typ string, b model.Booking, email string) queue.Event {
	return queue.Event{
		Type:        typ,
		ProviderID:  b.ProviderID,
		ClientID:    b.ClientID,
		ClientEmail: email,
		BookingID:   b.ID,
		Status:      string(b.Status),
		ScheduledAt: b.ScheduledAt,
		AmountCents: b.HoldCents,
		Currency:    b.Currency,
	}
}

// TransitionResult is the booking after an event and the ledger rows the
// event wrote.
type TransitionResult struct {
	Booking      model.Booking             `json:"booking"`
	Settlement   lifecycle.Settlement      `json:"settlement"`
	Late         bool                      `json:"late_cancellation,omitempty"`
	NoOp         bool                      `json:"no_op,omitempty"`
	Transactions []model.LedgerTransaction `json:"transactions,omitempty"`
}

// transitionOpts tweak how a transition is recorded.
type transitionOpts struct {
	// system transitions come from the processor and skip the owner check.
	system bool
	reason string
}

// MarkCompleted releases the hold of a fulfilled appointment.
func (s *BookingService) MarkCompleted(ctx context.Context, providerID uint64, id string) (TransitionResult, error) {
	return s.transition(ctx, providerID, id, lifecycle.EventComplete, transitionOpts{})
}

// MarkNoShow captures the hold and splits it between provider and client.
func (s *BookingService) MarkNoShow(ctx context.Context, providerID uint64, id string) (TransitionResult, error) {
	return s.transition(ctx, providerID, id, lifecycle.EventNoShow, transitionOpts{})
}

// Cancel releases the hold, or settles it like a no-show inside the
// cancellation notice window.
func (s *BookingService) Cancel(ctx context.Context, providerID uint64, id, reason string) (TransitionResult, error) {
	return s.transition(ctx, providerID, id, lifecycle.EventCancel, transitionOpts{reason: reason})
}

func (s *BookingService) transition(ctx context.Context, providerID uint64, id string, ev lifecycle.Event, opts transitionOpts) (TransitionResult, error) {
	now := s.now()
	var (
		res   TransitionResult
		email string
		split [2]int64
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !opts.system && b.ProviderID != providerID {
			return fmt.Errorf("booking %s: %w", id, ErrForbidden)
		}
		plan, err := s.rules.Plan(b, ev, now)
		if err != nil {
			return err
		}
		res = TransitionResult{Booking: b, Settlement: plan.Settlement, Late: plan.Late, NoOp: plan.NoOp}
		if plan.NoOp {
			return nil
		}

		if err := tx.UpdateBookingStatus(ctx, b.ID, plan.From, plan.To, now); err != nil {
			return err
		}
		b.Status = plan.To
		b.StatusChangedAt = now
		b.UpdatedAt = now

		event := string(ev)
		if opts.reason != "" {
			event += ":" + opts.reason
		}
		if err := tx.InsertBookingEvent(ctx, &model.BookingEvent{
			BookingID:   b.ID,
			FromStatus:  plan.From,
			ToStatus:    plan.To,
			Event:       event,
			Settlement:  string(plan.Settlement),
			ScheduledAt: b.ScheduledAt,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		c, err := tx.GetClientForUpdate(ctx, b.ClientID)
		if err != nil {
			return err
		}
		email = c.Email
		// Counters only follow bookings whose hold was authorized.
		pending := plan.From == model.StatusPending
		var d model.CounterDelta
		switch ev {
		case lifecycle.EventConfirm:
			d.Total = 1
		case lifecycle.EventComplete:
			d.Completed = 1
			if pending {
				d.Total = 1
			}
		case lifecycle.EventNoShow:
			d.NoShows = 1
		case lifecycle.EventCancel:
			if !pending {
				d.Cancellations = 1
			}
		}
		if d != (model.CounterDelta{}) {
			if err := tx.AddClientCounters(ctx, c.ID, d); err != nil {
				return err
			}
		}

		// Ledger rows first, the payment call last: if the processor
		// refuses, everything above rolls back with the transaction.
		switch plan.Settlement {
		case lifecycle.SettleRelease:
			lt, err := s.ledger.Apply(ctx, tx, Entry{
				Owner:       model.ClientOwner(b.ClientID),
				Type:        model.TxRelease,
				BookingID:   b.ID,
				Description: fmt.Sprintf("hold of %d released", b.HoldCents),
			})
			if err != nil {
				return err
			}
			res.Transactions = append(res.Transactions, lt)
			err = s.Gateway.ReleaseHold(ctx, b.AuthorizationRef)
			s.Metrics.IncGateway("release", err)
			if err != nil && !errors.Is(err, payment.ErrAlreadyReleased) {
				return fmt.Errorf("%w: %w", ErrPaymentReleaseFailed, err)
			}

		case lifecycle.SettleCapture:
			providerShare, clientShare := s.Policy.SplitNoShow(b.HoldCents)
			split = [2]int64{providerShare, clientShare}
			for _, e := range []Entry{
				{Owner: model.ProviderOwner(b.ProviderID), Type: model.TxCaptureCompensation, AmountCents: providerShare},
				{Owner: model.ClientOwner(b.ClientID), Type: model.TxWalletCredit, AmountCents: clientShare},
			} {
				e.BookingID = b.ID
				e.Description = string(ev)
				lt, err := s.ledger.Apply(ctx, tx, e)
				if err != nil {
					return err
				}
				res.Transactions = append(res.Transactions, lt)
			}
			err = s.Gateway.CaptureHold(ctx, b.AuthorizationRef, b.HoldCents)
			s.Metrics.IncGateway("capture", err)
			if err != nil && !errors.Is(err, payment.ErrAlreadyCaptured) {
				return fmt.Errorf("%w: %w", ErrPaymentCaptureFailed, err)
			}
		}
		res.Booking = b
		return nil
	})
	if err != nil {
		s.Metrics.IncTransition(string(ev), "error")
		s.logger().WithError(err).WithFields(logrus.Fields{"booking_id": id, "event": ev}).Warn("transition rejected")
		return TransitionResult{}, err
	}
	if res.NoOp {
		s.Metrics.IncTransition(string(ev), "noop")
		return res, nil
	}

	s.Metrics.IncTransition(string(ev), "ok")
	for _, lt := range res.Transactions {
		s.Metrics.AddLedger(string(lt.Type), lt.AmountCents)
	}
	s.logger().WithFields(logrus.Fields{
		"booking_id": res.Booking.ID,
		"event":      ev,
		"status":     res.Booking.Status,
		"settlement": res.Settlement,
		"late":       res.Late,
	}).Info("booking transitioned")

	out := s.bookingEvent(eventType(ev), res.Booking, email)
	out.ProviderShareCents, out.ClientShareCents = split[0], split[1]
	s.afterCommit(ctx, res.Booking.ProviderID, out)
	return res, nil
}

func eventType(ev lifecycle.Event) string {
	switch ev {
	case lifecycle.EventConfirm:
		return queue.BookingConfirmed
	case lifecycle.EventComplete:
		return queue.BookingCompleted
	case lifecycle.EventNoShow:
		return queue.BookingNoShow
	case lifecycle.EventCancel:
		return queue.BookingCancelled
	}
	return queue.BookingRescheduled
}

// Reschedule moves an active booking to newAt before its reschedule
// deadline.  The hold is kept as is and the deadline follows the new time.
func (s *BookingService) Reschedule(ctx context.Context, providerID uint64, id string, newAt time.Time) (model.Booking, error) {
	now := s.now()
	newAt = newAt.UTC()
	var (
		b     model.Booking
		email string
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		b, err = tx.GetBookingForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.ProviderID != providerID {
			return fmt.Errorf("booking %s: %w", id, ErrForbidden)
		}
		_, deadline, err := s.rules.PlanReschedule(b, newAt, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateBookingSchedule(ctx, b.ID, newAt, deadline, now); err != nil {
			return err
		}
		if err := tx.InsertBookingEvent(ctx, &model.BookingEvent{
			BookingID:   b.ID,
			FromStatus:  b.Status,
			ToStatus:    b.Status,
			Event:       string(lifecycle.EventReschedule),
			Settlement:  string(lifecycle.SettleNone),
			ScheduledAt: newAt,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		c, err := tx.GetClientForUpdate(ctx, b.ClientID)
		if err != nil {
			return err
		}
		email = c.Email
		b.ScheduledAt = newAt
		b.RescheduleDeadline = deadline
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.Metrics.IncTransition(string(lifecycle.EventReschedule), "error")
		return model.Booking{}, err
	}
	s.Metrics.IncTransition(string(lifecycle.EventReschedule), "ok")
	s.afterCommit(ctx, b.ProviderID, s.bookingEvent(queue.BookingRescheduled, b, email))
	return b, nil
}

// HandleWebhook applies a verified processor notification.  An authorized
// hold confirms its pending booking; a failed one cancels it.  Neither a
// failed hold nor its cancellation counts against the client.
func (s *BookingService) HandleWebhook(ctx context.Context, ev payment.WebhookEvent) (TransitionResult, error) {
	if ev.Kind == payment.WebhookIgnored || ev.AuthorizationRef == "" {
		return TransitionResult{NoOp: true}, nil
	}
	b, err := s.Store.GetBookingByAuthorization(ctx, ev.AuthorizationRef)
	if err != nil {
		return TransitionResult{}, err
	}
	switch ev.Kind {
	case payment.WebhookHoldAuthorized:
		return s.transition(ctx, 0, b.ID, lifecycle.EventConfirm, transitionOpts{system: true})
	case payment.WebhookHoldFailed:
		if b.Status != model.StatusPending {
			return TransitionResult{Booking: b, NoOp: true}, nil
		}
		return s.transition(ctx, 0, b.ID, lifecycle.EventCancel, transitionOpts{system: true, reason: "hold-failed"})
	}
	return TransitionResult{Booking: b, NoOp: true}, nil
}

// BookingDetail is a booking with its status history.
type BookingDetail struct {
	model.Booking
	History []model.BookingEvent `json:"history"`
}

func (s *BookingService) Get(ctx context.Context, providerID uint64, id string) (BookingDetail, error) {
	b, err := s.Store.GetBooking(ctx, id)
	if err != nil {
		return BookingDetail{}, err
	}
	if b.ProviderID != providerID {
		return BookingDetail{}, fmt.Errorf("booking %s: %w", id, ErrForbidden)
	}
	events, err := s.Store.ListBookingEvents(ctx, id)
	if err != nil {
		return BookingDetail{}, err
	}
	return BookingDetail{Booking: b, History: events}, nil
}

func (s *BookingService) List(ctx context.Context, providerID uint64, status model.BookingStatus, limit int) ([]model.Booking, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("status %q: %w", status, ErrInvalidInput)
	}
	return s.Store.ListBookings(ctx, providerID, status, limit)
}

// Clients lists the provider's clients with their tier derived from the
// counters at read time.
func (s *BookingService) Clients(ctx context.Context, providerID uint64) ([]model.ClientSummary, error) {
	out, err := s.Store.ListClients(ctx, providerID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Tier = string(s.Policy.Classify(counters(out[i].Client)))
	}
	return out, nil
}
