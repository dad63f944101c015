// README: Legacy direct-offer path: a transporter proposes a price outright.
package offer

import (
	"time"

	"camionback/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Offer predates the interest/assignment protocol and is kept for backward
// compatibility. Accepting one commits the request exactly like an assignment,
// so the two paths stay mutually exclusive.
type Offer struct {
	ID            types.ID
	RequestID     types.ID
	TransporterID types.ID
	Amount        int64
	LoadType      string
	PickupDate    time.Time
	Status        Status
	CreatedAt     time.Time
}
