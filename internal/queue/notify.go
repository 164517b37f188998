package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Notification is the message a delivery channel (mail, SMS, push) would
// send for an event.  Delivery itself lives outside this service.
type Notification struct {
	Audience string // client | provider
	Subject  string
	Body     string
}

func euros(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}

// Render maps an event to the notifications it triggers.
func Render(ev Event) []Notification {
	when := ev.ScheduledAt.UTC().Format(time.RFC1123)
	switch ev.Type {
	case BookingCreated:
		return []Notification{
			{"client", "Booking received", fmt.Sprintf("Your appointment on %s is booked. A hold of %s protects the slot.", when, euros(ev.AmountCents, ev.Currency))},
			{"provider", "New booking", fmt.Sprintf("New booking %s on %s.", ev.BookingID, when)},
		}
	case BookingConfirmed:
		return []Notification{{"client", "Booking confirmed", fmt.Sprintf("Your card was verified for the appointment on %s.", when)}}
	case BookingCompleted:
		return []Notification{{"client", "Thank you", fmt.Sprintf("Your hold of %s was released.", euros(ev.AmountCents, ev.Currency))}}
	case BookingCancelled:
		if ev.ProviderShareCents > 0 {
			return []Notification{
				{"client", "Late cancellation", fmt.Sprintf("The hold was captured; %s was added to your wallet.", euros(ev.ClientShareCents, ev.Currency))},
				{"provider", "Late cancellation", fmt.Sprintf("You received %s for booking %s.", euros(ev.ProviderShareCents, ev.Currency), ev.BookingID)},
			}
		}
		return []Notification{{"client", "Booking cancelled", fmt.Sprintf("Your hold of %s was released.", euros(ev.AmountCents, ev.Currency))}}
	case BookingNoShow:
		return []Notification{
			{"client", "Missed appointment", fmt.Sprintf("The hold was captured; %s was added to your wallet for a future visit.", euros(ev.ClientShareCents, ev.Currency))},
			{"provider", "No-show compensation", fmt.Sprintf("You received %s for booking %s.", euros(ev.ProviderShareCents, ev.Currency), ev.BookingID)},
		}
	case BookingRescheduled:
		return []Notification{{"client", "Booking moved", fmt.Sprintf("Your appointment now takes place on %s.", when)}}
	case PayoutSent:
		return []Notification{{"provider", "Payout sent", fmt.Sprintf("%s is on its way to your account.", euros(ev.AmountCents, ev.Currency))}}
	case PayoutFailed:
		return []Notification{{"provider", "Payout failed", fmt.Sprintf("The payout of %s failed and was returned to your balance.", euros(ev.AmountCents, ev.Currency))}}
	}
	return nil
}

// LogNotifier records the rendered notifications with the logger.
func LogNotifier(log *logrus.Logger) Handler {
	return func(_ context.Context, ev Event) error {
		for _, n := range Render(ev) {
			log.WithFields(logrus.Fields{
				"event":       ev.Type,
				"audience":    n.Audience,
				"booking_id":  ev.BookingID,
				"payout_id":   ev.PayoutID,
				"provider_id": ev.ProviderID,
				"client":      ev.ClientEmail,
			}).Infof("notify: %s | %s", n.Subject, n.Body)
		}
		return nil
	}
}
