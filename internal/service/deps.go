// Package service is the hold and settlement engine.  It drives booking
// transitions, writes the ledger and coordinates payouts, each inside one
// database transaction together with the payment call it depends on.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/slotta-engine/internal/payment"
	"github.com/iliyamo/slotta-engine/internal/policy"
	"github.com/iliyamo/slotta-engine/internal/queue"
	"github.com/iliyamo/slotta-engine/internal/repository"
)

// Publisher receives domain events after commit.  *queue.Publisher
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Deps are the collaborators shared by the engine services.  Events,
// Metrics and Cache are optional.
type Deps struct {
	Store   repository.Store
	Gateway payment.Gateway
	Policy  policy.Policy
	Events  Publisher
	Metrics *Metrics
	Cache   *AnalyticsCache
	Log     *logrus.Logger
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) logger() *logrus.Logger {
	if d.Log != nil {
		return d.Log
	}
	return logrus.StandardLogger()
}

// afterCommit publishes events and drops the provider's cached analytics.
// Failures are logged only: the transaction is already durable.
func (d Deps) afterCommit(ctx context.Context, providerID uint64, events ...queue.Event) {
	d.Cache.Invalidate(ctx, providerID)
	if d.Events == nil {
		return
	}
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = d.now()
		}
		if err := d.Events.Publish(ctx, ev); err != nil {
			d.logger().WithError(err).WithField("event", ev.Type).Warn("event publish failed")
		}
	}
}
