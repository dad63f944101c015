// README: Notification boundary; delivery mechanics live outside this service.
package notify

import (
	"context"
	"log"

	"camionback/internal/types"
)

// EventKind names a lifecycle moment the surrounding system may want to relay
// to clients or transporters (push, SMS, email - not our concern here).
type EventKind string

const (
	EventRequestPublished   EventKind = "request_published"
	EventInterestReceived   EventKind = "interest_received"
	EventRequestAssigned    EventKind = "request_assigned"
	EventRequestCancelled   EventKind = "request_cancelled"
	EventRequestRequalified EventKind = "request_requalified"
	EventPaymentPending     EventKind = "payment_pending"
)

// Event carries just enough for the collaborator to build a message.
type Event struct {
	Kind          EventKind
	RequestID     types.ID
	Reference     string
	TransporterID types.ID
}

// Notifier is implemented by the surrounding notification system.
// Calls are best-effort: the core never retries and never blocks a state
// transition on delivery.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// LogNotifier writes events to the process log. Default wiring in development
// and in tests.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, e Event) {
	log.Printf("notify %s request=%s ref=%s transporter=%s", e.Kind, e.RequestID, e.Reference, e.TransporterID)
}
