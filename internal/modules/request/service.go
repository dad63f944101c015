// README: Request service implements lifecycle transitions and the coordination ledger.
package request

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"camionback/internal/modules/pricing"
	"camionback/internal/notify"
	"camionback/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyAssigned   = errors.New("request already assigned")
	ErrNotFound          = errors.New("request not found")
	ErrConflict          = errors.New("request state conflict")
	ErrValidation        = errors.New("invalid request payload")
)

// Pricer produces the commercial split at qualification time.
// Implemented by pricing.Service; it never fails.
type Pricer interface {
	Quote(ctx context.Context, in pricing.QuoteInput) pricing.Quote
}

// DistanceResolver looks up the road distance for requests created without one.
// Implemented by maps.RouteService; optional.
type DistanceResolver interface {
	RoadDistanceKm(ctx context.Context, origin, destination string) (float64, error)
}

// RefSource hands out human-facing sequential reference codes.
type RefSource interface {
	NextReference(ctx context.Context) (string, error)
}

// Update carries the field writes a transition applies atomically with the
// status change. Nil pointers leave columns untouched.
type Update struct {
	ClientTotal     *int64
	TransporterFee  *int64
	PlatformFee     *int64
	PriceConfidence *float64
	DistanceKm      *float64

	CancelReason   *string
	ArchiveReason  *string
	ArchiveComment *string

	// ClearTransporter drops the committed assignee (requalification).
	ClearTransporter bool
	// ClearArchive wipes archive metadata (republish).
	ClearArchive bool
	// Restamp forces a fresh published_for_matching_at even when one is already
	// set. Only explicit requalification does this.
	Restamp bool
}

// Storage is the persistence contract for requests. The pgx Store implements
// it; tests use an in-memory double with the same CAS semantics.
type Storage interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id types.ID) (*Request, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, upd Update) (bool, error)

	// Requalify atomically re-enters matching: the status CAS, the assignee
	// clear, the publication restamp, and the interest-pool wipe land in one
	// transaction, so a concurrent assignment can never commit from the stale
	// pool.
	Requalify(ctx context.Context, id types.ID, from Status, version int) (bool, error)

	SetCoordination(ctx context.Context, id types.ID, status *CoordinationStatus, coordinatorID *types.ID) (bool, error)
	SetVisibility(ctx context.Context, id types.ID, hidden bool) (bool, error)
	AddNote(ctx context.Context, n *Note) error
	ListNotes(ctx context.Context, id types.ID) ([]Note, error)
	AppendEvent(ctx context.Context, e *Event) error
}

// Deps wires the service's collaborators. Pricer and Store are mandatory;
// the rest degrade gracefully when nil.
type Deps struct {
	Store    Storage
	Pricer   Pricer
	Distance DistanceResolver
	Refs     RefSource
	Notifier notify.Notifier
}

type Service struct {
	store    Storage
	pricer   Pricer
	distance DistanceResolver
	refs     RefSource
	notifier notify.Notifier
}

func NewService(d Deps) *Service {
	return &Service{
		store:    d.Store,
		pricer:   d.Pricer,
		distance: d.Distance,
		refs:     d.Refs,
		notifier: d.Notifier,
	}
}

type CreateCommand struct {
	ClientID           types.ID
	OriginCity         string
	OriginAddress      string
	DestinationCity    string
	DestinationAddress string
	DistanceKm         *float64
	CargoCategory      string
	Description        string
	EstimatedWeight    *float64
	FloorOrigin        int
	FloorDest          int
	HasElevator        bool
	DesiredDate        time.Time
}

// Create is the entry point used by the client-facing collaborator. The new
// request lands in qualification_pending, triage bucket "nouveau".
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Request, error) {
	if cmd.ClientID == "" || cmd.OriginCity == "" || cmd.DestinationCity == "" || cmd.CargoCategory == "" {
		return nil, ErrValidation
	}
	if cmd.DesiredDate.IsZero() {
		return nil, ErrValidation
	}

	ref := ""
	if s.refs != nil {
		var err error
		if ref, err = s.refs.NextReference(ctx); err != nil {
			return nil, err
		}
	}

	r := &Request{
		ID:                 types.ID(uuid.NewString()),
		Reference:          ref,
		ClientID:           cmd.ClientID,
		OriginCity:         cmd.OriginCity,
		OriginAddress:      cmd.OriginAddress,
		DestinationCity:    cmd.DestinationCity,
		DestinationAddress: cmd.DestinationAddress,
		DistanceKm:         cmd.DistanceKm,
		CargoCategory:      cmd.CargoCategory,
		Description:        cmd.Description,
		EstimatedWeight:    cmd.EstimatedWeight,
		FloorOrigin:        cmd.FloorOrigin,
		FloorDest:          cmd.FloorDest,
		HasElevator:        cmd.HasElevator,
		DesiredDate:        cmd.DesiredDate,
		Status:             StatusQualificationPending,
		StatusVersion:      0,
		CoordinationStatus: CoordNouveau,
		CreatedAt:          time.Now(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RequestID:  r.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusQualificationPending,
		ActorType:  "client",
		ActorID:    &cmd.ClientID,
		CreatedAt:  r.CreatedAt,
	})
	return r, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Request, error) {
	return s.store.Get(ctx, id)
}

// FeeOverride lets a coordinator replace the engine's split at qualification.
type FeeOverride struct {
	ClientTotal    int64
	TransporterFee int64
	PlatformFee    int64
}

type QualifyCommand struct {
	RequestID     types.ID
	CoordinatorID types.ID
	Override      *FeeOverride
}

// Qualify prices the request and publishes it for matching. The pricing call
// runs before the conditional write, so no row is held while the external
// estimator is in flight.
func (s *Service) Qualify(ctx context.Context, cmd QualifyCommand) (*Request, error) {
	r, err := s.store.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	// Requalification and republishing have their own entry points; plain
	// qualification only applies to unqualified requests.
	if r.Status != StatusOpen && r.Status != StatusQualificationPending {
		return nil, ErrInvalidTransition
	}

	upd := Update{}

	km := 0.0
	if r.DistanceKm != nil {
		km = *r.DistanceKm
	} else if s.distance != nil {
		if d, derr := s.distance.RoadDistanceKm(ctx, routePoint(r.OriginAddress, r.OriginCity), routePoint(r.DestinationAddress, r.DestinationCity)); derr == nil {
			km = d
			upd.DistanceKm = &d
		}
	}

	weight := 0.0
	if r.EstimatedWeight != nil {
		weight = *r.EstimatedWeight
	}
	quote := s.pricer.Quote(ctx, pricing.QuoteInput{
		OriginCity:      r.OriginCity,
		DestinationCity: r.DestinationCity,
		DistanceKm:      km,
		CargoCategory:   r.CargoCategory,
		Description:     r.Description,
		EstimatedWeight: weight,
		FloorOrigin:     r.FloorOrigin,
		FloorDest:       r.FloorDest,
		HasElevator:     r.HasElevator,
	})

	total, transporter, platform := quote.ClientTotal, quote.TransporterFee, quote.PlatformFee
	if cmd.Override != nil {
		o := cmd.Override
		if o.ClientTotal != o.TransporterFee+o.PlatformFee || o.PlatformFee < pricing.MinPlatformFee || o.TransporterFee < 0 {
			return nil, ErrValidation
		}
		total, transporter, platform = o.ClientTotal, o.TransporterFee, o.PlatformFee
	}
	upd.ClientTotal = &total
	upd.TransporterFee = &transporter
	upd.PlatformFee = &platform
	upd.PriceConfidence = &quote.Confidence

	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusPublished, r.StatusVersion, upd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.recordAndNotify(ctx, r, StatusPublished, "coordinator", &cmd.CoordinatorID, notify.EventRequestPublished, nil)
	return s.store.Get(ctx, r.ID)
}

type StartCommand struct {
	RequestID types.ID
	ActorID   types.ID
}

// Start marks pickup: accepted -> in_progress.
func (s *Service) Start(ctx context.Context, cmd StartCommand) error {
	return s.transition(ctx, cmd.RequestID, StatusInProgress, "transporter", &cmd.ActorID, Update{}, "")
}

type CompleteCommand struct {
	RequestID types.ID
	ActorID   types.ID
}

// Complete confirms delivery and triggers the payment-pending flow on the
// collaborator side.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	return s.transition(ctx, cmd.RequestID, StatusCompleted, "transporter", &cmd.ActorID, Update{}, notify.EventPaymentPending)
}

type CancelCommand struct {
	RequestID types.ID
	ActorType string
	ActorID   types.ID
	Reason    string
}

// Cancel moves any non-terminal request to cancelled. The reason is mandatory.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	if cmd.Reason == "" {
		return ErrValidation
	}
	return s.transition(ctx, cmd.RequestID, StatusCancelled, cmd.ActorType, &cmd.ActorID,
		Update{CancelReason: &cmd.Reason}, notify.EventRequestCancelled)
}

type ArchiveCommand struct {
	RequestID     types.ID
	CoordinatorID types.ID
	ReasonCode    string
	Comment       string
}

// Archive is coordinator housekeeping: soft-terminal, reversible by Republish.
func (s *Service) Archive(ctx context.Context, cmd ArchiveCommand) error {
	if cmd.ReasonCode == "" {
		return ErrValidation
	}
	upd := Update{ArchiveReason: &cmd.ReasonCode}
	if cmd.Comment != "" {
		upd.ArchiveComment = &cmd.Comment
	}
	return s.transition(ctx, cmd.RequestID, StatusArchived, "coordinator", &cmd.CoordinatorID, upd, "")
}

type RepublishCommand struct {
	RequestID     types.ID
	CoordinatorID types.ID
}

// Republish reopens an archived request. A request that was already qualified
// returns straight to matching; one that never was goes back to qualification.
// Timestamps are never reset here.
func (s *Service) Republish(ctx context.Context, cmd RepublishCommand) error {
	r, err := s.store.Get(ctx, cmd.RequestID)
	if err != nil {
		return err
	}
	if r.Status != StatusArchived {
		return ErrInvalidTransition
	}
	target := StatusQualificationPending
	if r.ClientTotal != nil {
		target = StatusPublished
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, target, r.StatusVersion, Update{ClearArchive: true})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.recordAndNotify(ctx, r, target, "coordinator", &cmd.CoordinatorID, "", nil)
	return nil
}

type RequalifyCommand struct {
	RequestID     types.ID
	CoordinatorID types.ID
}

// Requalify ("cancel & requalify") discards the committed assignment of an
// accepted or in-progress request and re-enters the matching pool with a fresh,
// empty interest set and a fresh publication timestamp. The pool wipe commits
// with the status CAS, so no assignment can slip in from the old signals.
func (s *Service) Requalify(ctx context.Context, cmd RequalifyCommand) error {
	r, err := s.store.Get(ctx, cmd.RequestID)
	if err != nil {
		return err
	}
	if r.Status != StatusAccepted && r.Status != StatusInProgress {
		return ErrInvalidTransition
	}
	ok, err := s.store.Requalify(ctx, r.ID, r.Status, r.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.recordAndNotify(ctx, r, StatusPublished, "coordinator", &cmd.CoordinatorID, notify.EventRequestRequalified, r.TransporterID)
	return nil
}

type CoordinationCommand struct {
	RequestID     types.ID
	Status        *CoordinationStatus
	CoordinatorID *types.ID
}

// UpdateCoordination moves a request between triage buckets and/or records the
// coordinator who claimed it. Pure ledger write: the lifecycle axis is untouched.
func (s *Service) UpdateCoordination(ctx context.Context, cmd CoordinationCommand) error {
	if cmd.Status == nil && cmd.CoordinatorID == nil {
		return ErrValidation
	}
	if cmd.Status != nil {
		switch *cmd.Status {
		case CoordNouveau, CoordEnAction, CoordPrioritaire, CoordArchive:
		default:
			return ErrValidation
		}
	}
	ok, err := s.store.SetCoordination(ctx, cmd.RequestID, cmd.Status, cmd.CoordinatorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

type VisibilityCommand struct {
	RequestID types.ID
	Hidden    bool
}

// SetVisibility hides a request from client-facing views without changing status.
func (s *Service) SetVisibility(ctx context.Context, cmd VisibilityCommand) error {
	ok, err := s.store.SetVisibility(ctx, cmd.RequestID, cmd.Hidden)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

type NoteCommand struct {
	RequestID types.ID
	AuthorID  types.ID
	Body      string
}

func (s *Service) AddNote(ctx context.Context, cmd NoteCommand) error {
	if cmd.Body == "" || cmd.AuthorID == "" {
		return ErrValidation
	}
	if _, err := s.store.Get(ctx, cmd.RequestID); err != nil {
		return err
	}
	return s.store.AddNote(ctx, &Note{
		RequestID: cmd.RequestID,
		AuthorID:  cmd.AuthorID,
		Body:      cmd.Body,
		CreatedAt: time.Now(),
	})
}

func (s *Service) Notes(ctx context.Context, id types.ID) ([]Note, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, id)
}

// transition is the shared CAS path for simple single-row transitions.
func (s *Service) transition(ctx context.Context, id types.ID, to Status, actorType string, actorID *types.ID, upd Update, event notify.EventKind) error {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(r.Status, to) {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, to, r.StatusVersion, upd)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.recordAndNotify(ctx, r, to, actorType, actorID, event, nil)
	return nil
}

func (s *Service) recordAndNotify(ctx context.Context, r *Request, to Status, actorType string, actorID *types.ID, event notify.EventKind, transporterID *types.ID) {
	_ = s.store.AppendEvent(ctx, &Event{
		RequestID:  r.ID,
		FromStatus: r.Status,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	})
	if s.notifier != nil && event != "" {
		e := notify.Event{Kind: event, RequestID: r.ID, Reference: r.Reference}
		if transporterID != nil {
			e.TransporterID = *transporterID
		}
		s.notifier.Notify(ctx, e)
	}
}

func routePoint(address, city string) string {
	if address != "" {
		return address + ", " + city
	}
	return city
}
