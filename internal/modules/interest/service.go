// README: Interest service: express/withdraw/list signals, commit assignments.
package interest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"camionback/internal/modules/pricing"
	"camionback/internal/modules/request"
	"camionback/internal/notify"
	"camionback/internal/types"
)

// Storage is the persistence contract for signals plus the cross-table
// assignment commit. The pgx Store implements it; tests use an in-memory
// double with the same compare-and-set semantics.
type Storage interface {
	Upsert(ctx context.Context, sig *Signal) error
	Withdraw(ctx context.Context, requestID, transporterID types.ID) error
	ListByRequest(ctx context.Context, requestID types.ID) ([]Signal, error)
	SetHidden(ctx context.Context, signalID types.ID, hidden bool) (bool, error)

	// CommitAssignment atomically moves the request from published_for_matching
	// to accepted with the given transporter and fees, marks the winning signal
	// committed and every other active signal invalidated, and rejects pending
	// legacy offers. Exactly one concurrent caller can succeed.
	CommitAssignment(ctx context.Context, requestID, transporterID types.ID, transporterFee, platformFee int64) error
}

// RequestSource reads the parent request. Implemented by request.Service.
type RequestSource interface {
	Get(ctx context.Context, id types.ID) (*request.Request, error)
}

// ProfileSource is the user/profile collaborator boundary.
type ProfileSource interface {
	Profile(ctx context.Context, transporterID types.ID) (*TransporterProfile, error)
}

// AssignGuard deduplicates assignment notifications across instances.
// Optional; nil means every commit notifies.
type AssignGuard interface {
	FirstAssign(ctx context.Context, requestID types.ID) bool
}

type Deps struct {
	Store    Storage
	Requests RequestSource
	Profiles ProfileSource
	Guard    AssignGuard
	Notifier notify.Notifier
}

type Service struct {
	store    Storage
	requests RequestSource
	profiles ProfileSource
	guard    AssignGuard
	notifier notify.Notifier
}

func NewService(d Deps) *Service {
	return &Service{
		store:    d.Store,
		requests: d.Requests,
		profiles: d.Profiles,
		guard:    d.Guard,
		notifier: d.Notifier,
	}
}

type ExpressCommand struct {
	RequestID        types.ID
	TransporterID    types.ID
	AvailabilityDate time.Time
}

// Express upserts a transporter's availability signal. Idempotent: a second
// call updates the date on the existing row instead of duplicating it.
func (s *Service) Express(ctx context.Context, cmd ExpressCommand) (*Signal, error) {
	if cmd.TransporterID == "" || cmd.AvailabilityDate.IsZero() {
		return nil, request.ErrValidation
	}
	r, err := s.requests.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if r.Status != request.StatusPublished {
		return nil, request.ErrInvalidTransition
	}

	sig := &Signal{
		ID:               types.ID(uuid.NewString()),
		RequestID:        cmd.RequestID,
		TransporterID:    cmd.TransporterID,
		AvailabilityDate: cmd.AvailabilityDate,
		State:            StateActive,
		CreatedAt:        time.Now(),
	}
	if err := s.store.Upsert(ctx, sig); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, notify.Event{
			Kind:          notify.EventInterestReceived,
			RequestID:     r.ID,
			Reference:     r.Reference,
			TransporterID: cmd.TransporterID,
		})
	}
	return sig, nil
}

// Withdraw removes a transporter's active signal. Absent or already-settled
// signals are a no-op: rows committed or invalidated by an assignment are
// audit records and cannot be withdrawn.
func (s *Service) Withdraw(ctx context.Context, requestID, transporterID types.ID) error {
	if _, err := s.requests.Get(ctx, requestID); err != nil {
		return err
	}
	return s.store.Withdraw(ctx, requestID, transporterID)
}

// List returns the request's signals in submission order, each annotated with
// whether the availability matches the desired date and with the transporter's
// profile. Profile lookups are best-effort: a failing collaborator never blanks
// the listing.
func (s *Service) List(ctx context.Context, requestID types.ID) ([]SignalView, error) {
	r, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	signals, err := s.store.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	views := make([]SignalView, 0, len(signals))
	for _, sig := range signals {
		v := SignalView{Signal: sig, ExactDate: sameDay(sig.AvailabilityDate, r.DesiredDate)}
		if s.profiles != nil {
			if p, perr := s.profiles.Profile(ctx, sig.TransporterID); perr == nil {
				v.Profile = p
			}
		}
		views = append(views, v)
	}
	return views, nil
}

type AssignCommand struct {
	RequestID      types.ID
	TransporterID  types.ID
	TransporterFee int64
	PlatformFee    int64
}

// Assign commits the request to one transporter, at most once. Two concurrent
// calls resolve to exactly one winner; the loser gets ErrAlreadyAssigned.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) (*request.Request, error) {
	if cmd.TransporterID == "" || cmd.TransporterFee < 0 || cmd.PlatformFee < pricing.MinPlatformFee {
		return nil, request.ErrValidation
	}

	err := s.store.CommitAssignment(ctx, cmd.RequestID, cmd.TransporterID, cmd.TransporterFee, cmd.PlatformFee)
	if err != nil {
		return nil, err
	}

	r, err := s.requests.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil && (s.guard == nil || s.guard.FirstAssign(ctx, cmd.RequestID)) {
		s.notifier.Notify(ctx, notify.Event{
			Kind:          notify.EventRequestAssigned,
			RequestID:     r.ID,
			Reference:     r.Reference,
			TransporterID: cmd.TransporterID,
		})
	}
	return r, nil
}

// ToggleVisibility hides or reveals one signal in client-facing aggregates.
func (s *Service) ToggleVisibility(ctx context.Context, signalID types.ID, hidden bool) error {
	ok, err := s.store.SetHidden(ctx, signalID, hidden)
	if err != nil {
		return err
	}
	if !ok {
		return request.ErrNotFound
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
