// README: Request aggregate, status axes, and the transition table.
package request

import (
	"time"

	"camionback/internal/types"
)

// Status is the client/transporter-visible lifecycle axis.
type Status string

const (
	StatusNone                 Status = "none"
	StatusOpen                 Status = "open"
	StatusQualificationPending Status = "qualification_pending"
	StatusPublished            Status = "published_for_matching"
	StatusAccepted             Status = "accepted"
	StatusInProgress           Status = "in_progress"
	StatusCompleted            Status = "completed"
	StatusCancelled            Status = "cancelled"
	StatusArchived             Status = "archived"
)

// CoordinationStatus is the internal triage axis. It is independent from
// Status: coordinators move requests between triage buckets without touching
// the visible lifecycle.
type CoordinationStatus string

const (
	CoordNouveau     CoordinationStatus = "nouveau"
	CoordEnAction    CoordinationStatus = "en_action"
	CoordPrioritaire CoordinationStatus = "prioritaire"
	CoordArchive     CoordinationStatus = "archivé"
)

// AllowedTransitions represents the request state flow (diagram) as code.
// Cancel and archive are reachable from every non-terminal state; archived is
// soft-terminal (republish reopens it), cancelled and completed are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusOpen:                 {StatusQualificationPending, StatusPublished, StatusCancelled, StatusArchived},
	StatusQualificationPending: {StatusPublished, StatusCancelled, StatusArchived},
	StatusPublished:            {StatusAccepted, StatusCancelled, StatusArchived},
	StatusAccepted:             {StatusInProgress, StatusPublished, StatusCancelled, StatusArchived},
	StatusInProgress:           {StatusCompleted, StatusPublished, StatusCancelled, StatusArchived},
	StatusArchived:             {StatusQualificationPending, StatusPublished},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing transitions at all.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Request is the central entity: one transport job posted by a client.
type Request struct {
	ID        types.ID
	Reference string
	ClientID  types.ID

	OriginCity         string
	OriginAddress      string
	DestinationCity    string
	DestinationAddress string
	DistanceKm         *float64

	CargoCategory   string
	Description     string
	EstimatedWeight *float64
	FloorOrigin     int
	FloorDest       int
	HasElevator     bool

	// DesiredDate is a naive local date; no timezone logic applies.
	DesiredDate time.Time

	// Commercial fields are nil until qualification.
	// Invariant once set: client_total == transporter_fee + platform_fee.
	ClientTotal     *int64
	TransporterFee  *int64
	PlatformFee     *int64
	PriceConfidence *float64

	Status             Status
	StatusVersion      int
	CoordinationStatus CoordinationStatus

	CoordinatorID *types.ID
	TransporterID *types.ID

	Hidden bool

	ArchiveReason  *string
	ArchiveComment *string
	CancelReason   *string

	CreatedAt               time.Time
	QualifiedAt             *time.Time
	PublishedForMatchingAt  *time.Time
	CoordinationUpdatedAt   *time.Time
}

// Event is one row of the append-only transition audit trail.
type Event struct {
	ID         int64
	RequestID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// Note is free-form coordinator commentary attached to a request.
type Note struct {
	ID        int64
	RequestID types.ID
	AuthorID  types.ID
	Body      string
	CreatedAt time.Time
}
