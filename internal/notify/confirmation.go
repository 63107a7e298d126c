package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/asperus/agenda/internal/reservations"
	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

// Notifier sends reservation confirmations. Delivery failures are logged and
// never reach the caller, so a committed reservation is never reported as failed.
type Notifier struct {
	email  EmailSender
	logger *logging.Logger
}

func NewNotifier(email EmailSender, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{email: email, logger: logger}
}

// ReservationConfirmed emails the customer when the contact is an email
// address. Other contacts (phone numbers) are skipped.
func (n *Notifier) ReservationConfirmed(ctx context.Context, store stores.Store, res reservations.Reservation) {
	if n == nil || n.email == nil {
		return
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(res.Contact))
	if err != nil {
		n.logger.Debug("notify: contact is not an email, skipping confirmation", "reservation_id", res.ID)
		return
	}
	msg := ConfirmationMessage(store, res)
	msg.To = addr.Address
	msg.ToName = res.Name
	if err := n.email.Send(ctx, msg); err != nil {
		n.logger.Error("notify: confirmation email failed", "error", err, "reservation_id", res.ID, "store_id", res.StoreID)
	}
}

// ConfirmationMessage renders the confirmation text.
func ConfirmationMessage(store stores.Store, res reservations.Reservation) EmailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", res.Name)
	fmt.Fprintf(&b, "Your reservation at %s is confirmed.\n\n", store.Name)
	fmt.Fprintf(&b, "Date: %s\n", res.Day)
	fmt.Fprintf(&b, "Time: %s\n", res.Time)
	if res.Professional != "" {
		fmt.Fprintf(&b, "Professional: %s\n", res.Professional)
	}
	fmt.Fprintf(&b, "Service: %s\n", res.Service)
	if store.Address != "" {
		fmt.Fprintf(&b, "\nAddress: %s\n", store.Address)
	}
	if store.MapsURL != "" {
		fmt.Fprintf(&b, "Map: %s\n", store.MapsURL)
	}
	if store.Instructions != "" {
		fmt.Fprintf(&b, "\n%s\n", store.Instructions)
	}
	return EmailMessage{
		Subject: fmt.Sprintf("Reservation confirmed: %s %s at %s", res.Day, res.Time, store.Name),
		Body:    b.String(),
	}
}
