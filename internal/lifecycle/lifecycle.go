// Package lifecycle decides which booking transitions are legal and what
// happens to the hold on each of them.  It does not touch storage or the
// payment gateway; the booking service executes the returned Plan.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/slotta-engine/internal/model"
)

var (
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrRescheduleWindowClosed = errors.New("reschedule window closed")
	ErrInvalidSchedule        = errors.New("scheduled time must be in the future")
)

// Event is something that happens to a booking.
type Event string

const (
	EventConfirm    Event = "confirm"
	EventComplete   Event = "complete"
	EventCancel     Event = "cancel"
	EventNoShow     Event = "no-show"
	EventReschedule Event = "reschedule"
)

// Settlement is what happens to the authorized hold.
type Settlement string

const (
	SettleNone    Settlement = "none"
	SettleRelease Settlement = "release"
	// SettleCapture captures the full hold and splits it between the
	// provider balance and the client wallet.
	SettleCapture Settlement = "capture-split"
)

// Plan is the outcome of applying an event to a booking.
type Plan struct {
	Event      Event
	From       model.BookingStatus
	To         model.BookingStatus
	Settlement Settlement
	// Late is set for cancellations inside the notice window.
	Late bool
	// NoOp is set when the booking already sits in the event's target
	// state; the caller returns the stored booking untouched.
	NoOp bool
}

// Rules carries the two time windows of the lifecycle.
type Rules struct {
	CancellationNotice time.Duration
	RescheduleCutoff   time.Duration
}

// RescheduleDeadline is the last instant a booking at scheduledAt may be
// moved.
func (r Rules) RescheduleDeadline(scheduledAt time.Time) time.Time {
	return scheduledAt.Add(-r.RescheduleCutoff)
}

// target is the terminal (or resulting) status for an event.
func target(ev Event) (model.BookingStatus, bool) {
	switch ev {
	case EventConfirm:
		return model.StatusConfirmed, true
	case EventComplete:
		return model.StatusCompleted, true
	case EventCancel:
		return model.StatusCancelled, true
	case EventNoShow:
		return model.StatusNoShow, true
	}
	return "", false
}

// Plan validates ev against b at time now.  Retrying an event whose target
// the booking already reached is a no-op; any other event on a terminal
// booking is ErrInvalidTransition.
func (r Rules) Plan(b model.Booking, ev Event, now time.Time) (Plan, error) {
	p := Plan{Event: ev, From: b.Status, To: b.Status, Settlement: SettleNone}

	if ev == EventReschedule {
		if !b.Status.Active() {
			return p, fmt.Errorf("reschedule %s booking: %w", b.Status, ErrInvalidTransition)
		}
		if !now.Before(b.RescheduleDeadline) {
			return p, fmt.Errorf("deadline %s passed: %w", b.RescheduleDeadline.UTC().Format(time.RFC3339), ErrRescheduleWindowClosed)
		}
		return p, nil
	}

	to, ok := target(ev)
	if !ok {
		return p, fmt.Errorf("unknown event %q: %w", ev, ErrInvalidTransition)
	}
	if b.Status == to {
		p.NoOp = true
		return p, nil
	}
	if b.Status.Terminal() {
		return p, fmt.Errorf("%s on %s booking: %w", ev, b.Status, ErrInvalidTransition)
	}
	p.To = to

	switch ev {
	case EventConfirm:
		if b.Status != model.StatusPending {
			return p, fmt.Errorf("confirm %s booking: %w", b.Status, ErrInvalidTransition)
		}
	case EventComplete:
		p.Settlement = SettleRelease
	case EventNoShow:
		// A pending booking has no captured-able authorization yet.
		if b.Status != model.StatusConfirmed {
			return p, fmt.Errorf("no-show on %s booking: %w", b.Status, ErrInvalidTransition)
		}
		p.Settlement = SettleCapture
	case EventCancel:
		p.Settlement = SettleRelease
		if now.After(b.ScheduledAt.Add(-r.CancellationNotice)) {
			p.Late = true
			if b.Status == model.StatusConfirmed {
				p.Settlement = SettleCapture
			}
		}
	}
	return p, nil
}

// PlanReschedule validates a reschedule to newAt and returns the new
// reschedule deadline.
func (r Rules) PlanReschedule(b model.Booking, newAt, now time.Time) (Plan, time.Time, error) {
	p, err := r.Plan(b, EventReschedule, now)
	if err != nil {
		return p, time.Time{}, err
	}
	if !newAt.After(now) {
		return p, time.Time{}, ErrInvalidSchedule
	}
	return p, r.RescheduleDeadline(newAt), nil
}
