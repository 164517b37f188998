package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/slotta-engine/internal/model"
	"github.com/iliyamo/slotta-engine/internal/payment"
	"github.com/iliyamo/slotta-engine/internal/queue"
	"github.com/iliyamo/slotta-engine/internal/repository"
)

// PayoutService drains provider balances to their external accounts.
//
// A request is recorded and debited in one transaction, sent to the
// processor after commit, then marked sent or failed in a second
// transaction.  Only a transfer the processor refused is marked failed and
// reversed with compensating rows.  When the outcome is unknown the request
// stays requested and keeps its debit.  The caller's idempotency key makes
// the whole sequence safe to retry: a key that was seen before returns the
// stored request, and a request still marked requested is sent again with
// the same key, which the processor deduplicates.
type PayoutService struct {
	Deps
	ledger *Ledger
}

// payoutSendTimeout bounds one transfer call.  It does not follow the
// caller's deadline.
const payoutSendTimeout = 30 * time.Second

func NewPayoutService(d Deps, ledger *Ledger) *PayoutService {
	return &PayoutService{Deps: d, ledger: ledger}
}

// RequestPayout pays amount out of the provider balance.  A nil amount
// drains the whole balance.
func (s *PayoutService) RequestPayout(ctx context.Context, providerID uint64, amount *int64, idempotencyKey string) (model.PayoutRequest, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" || len(key) > 128 {
		return model.PayoutRequest{}, fmt.Errorf("idempotency key required: %w", ErrInvalidInput)
	}
	prov, err := s.Store.GetProvider(ctx, providerID)
	if err != nil {
		return model.PayoutRequest{}, err
	}
	if prov.PayoutAccountRef == "" {
		return model.PayoutRequest{}, fmt.Errorf("provider %d: %w", providerID, ErrPayoutAccountMissing)
	}

	p, resend, err := s.reserve(ctx, providerID, amount, key)
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent request with the same key won the insert.
		p, err = s.Store.GetPayoutByKey(ctx, providerID, key)
		resend = err == nil && p.Status == model.PayoutRequested
	}
	if err != nil {
		return model.PayoutRequest{}, err
	}
	if !resend {
		return p, nil
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), payoutSendTimeout)
	ref, sendErr := s.Gateway.SendPayout(sendCtx, prov.PayoutAccountRef, p.AmountCents, p.Currency, key)
	cancel()
	s.Metrics.IncGateway("payout", sendErr)
	if sendErr != nil && !payment.PayoutRejected(sendErr) {
		// The transfer may have gone through.  Keep the debit; a retry with
		// the same key settles it.
		s.logger().WithError(sendErr).WithFields(logrus.Fields{
			"payout_id":   p.ID,
			"provider_id": p.ProviderID,
		}).Warn("payout outcome unknown")
		return p, fmt.Errorf("%w: %w", ErrPayoutPending, sendErr)
	}
	return s.finish(ctx, p, ref, sendErr)
}

// reserve records the request and debits amount plus fee.  It returns an
// existing request for a known key, with resend set while it is still in
// flight.
func (s *PayoutService) reserve(ctx context.Context, providerID uint64, amount *int64, key string) (model.PayoutRequest, bool, error) {
	now := s.now()
	var (
		p      model.PayoutRequest
		resend bool
	)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		existing, err := tx.GetPayoutByKeyForUpdate(ctx, providerID, key)
		if err == nil {
			p, resend = existing, existing.Status == model.PayoutRequested
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		owner := model.ProviderOwner(providerID)
		bal, err := tx.LockBalance(ctx, owner)
		if err != nil {
			return err
		}
		amt := bal
		if amount != nil {
			amt = *amount
		}
		if amt < s.Policy.MinPayoutCents {
			return fmt.Errorf("%d < %d: %w", amt, s.Policy.MinPayoutCents, ErrBelowMinimum)
		}
		if amt > bal {
			return fmt.Errorf("%d > %d: %w", amt, bal, ErrInsufficientBalance)
		}

		p = model.PayoutRequest{
			ID:             uuid.NewString(),
			ProviderID:     providerID,
			AmountCents:    amt,
			FeeCents:       s.Policy.PayoutFeeCents,
			Currency:       s.Policy.Currency,
			Status:         model.PayoutRequested,
			IdempotencyKey: key,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertPayout(ctx, &p); err != nil {
			return err
		}
		if _, err := s.ledger.Apply(ctx, tx, Entry{Owner: owner, Type: model.TxPayout, AmountCents: -amt, PayoutID: p.ID, Description: "payout"}); err != nil {
			return err
		}
		if p.FeeCents > 0 {
			if _, err := s.ledger.Apply(ctx, tx, Entry{Owner: owner, Type: model.TxFee, AmountCents: -p.FeeCents, PayoutID: p.ID, Description: "payout fee"}); err != nil {
				return err
			}
		}
		resend = true
		return nil
	})
	return p, resend, err
}

// finish records the transfer outcome.  A rejection reverses the debit.
func (s *PayoutService) finish(ctx context.Context, p model.PayoutRequest, ref string, sendErr error) (model.PayoutRequest, error) {
	now := s.now()
	// The transfer already happened or definitively failed; record it even
	// if the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cur, err := tx.GetPayoutForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		if cur.Status != model.PayoutRequested {
			p = cur
			return nil
		}
		cur.UpdatedAt = now
		if sendErr == nil {
			cur.Status = model.PayoutSent
			cur.ExternalRef = ref
		} else {
			cur.Status = model.PayoutFailed
			cur.FailureReason = sendErr.Error()
			owner := model.ProviderOwner(cur.ProviderID)
			if _, err := s.ledger.Apply(ctx, tx, Entry{Owner: owner, Type: model.TxPayout, AmountCents: cur.AmountCents, PayoutID: cur.ID, Description: "payout reversal"}); err != nil {
				return err
			}
			if cur.FeeCents > 0 {
				if _, err := s.ledger.Apply(ctx, tx, Entry{Owner: owner, Type: model.TxFee, AmountCents: cur.FeeCents, PayoutID: cur.ID, Description: "payout fee reversal"}); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdatePayout(ctx, &cur); err != nil {
			return err
		}
		p = cur
		return nil
	})
	if err != nil {
		s.logger().WithError(err).WithField("payout_id", p.ID).Error("payout outcome not recorded")
		return p, err
	}

	s.Metrics.IncPayout(string(p.Status))
	fields := logrus.Fields{"payout_id": p.ID, "provider_id": p.ProviderID, "amount_cents": p.AmountCents, "status": p.Status}
	ev := queue.Event{
		Type:        queue.PayoutSent,
		ProviderID:  p.ProviderID,
		PayoutID:    p.ID,
		Status:      string(p.Status),
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
	}
	if p.Status == model.PayoutFailed {
		ev.Type = queue.PayoutFailed
		s.logger().WithFields(fields).WithError(sendErr).Warn("payout failed")
		s.afterCommit(ctx, p.ProviderID, ev)
		return p, fmt.Errorf("%w: %s", ErrPayoutFailed, p.FailureReason)
	}
	s.logger().WithFields(fields).Info("payout sent")
	s.afterCommit(ctx, p.ProviderID, ev)
	return p, nil
}

func (s *PayoutService) List(ctx context.Context, providerID uint64, limit int) ([]model.PayoutRequest, error) {
	return s.Store.ListPayouts(ctx, providerID, limit)
}
