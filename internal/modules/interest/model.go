// README: Interest signals: transporter availability for a published request.
package interest

import (
	"errors"
	"time"

	"camionback/internal/types"
)

// ErrNoInterest is returned when assigning a transporter that never expressed
// (or has withdrawn) interest for the request. The loser of a commitment race
// gets request.ErrAlreadyAssigned instead.
var ErrNoInterest = errors.New("transporter has no active interest signal")

// State tracks what happened to a signal. Signals are never silently deleted
// at commitment: losers flip to invalidated and stay for audit.
type State string

const (
	StateActive      State = "active"
	StateCommitted   State = "committed"
	StateInvalidated State = "invalidated"
)

// Signal is one transporter's availability for one request. At most one row
// per (request, transporter): resubmission updates the date.
type Signal struct {
	ID               types.ID
	RequestID        types.ID
	TransporterID    types.ID
	AvailabilityDate time.Time
	Hidden           bool
	State            State
	CreatedAt        time.Time
}

// TransporterProfile is the slice of profile data coordinators see next to a
// signal, fetched from the profile collaborator.
type TransporterProfile struct {
	ID             types.ID
	Name           string
	Phone          string
	Rating         *float64
	TruckPhotoURLs []string
}

// SignalView is a Signal annotated for the coordinator listing.
type SignalView struct {
	Signal

	// ExactDate is true when the availability matches the request's desired
	// date; false marks an alternative proposal.
	ExactDate bool

	Profile *TransporterProfile
}
