// README: Offer service: submit/accept/reject direct price proposals.
package offer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"camionback/internal/modules/pricing"
	"camionback/internal/modules/request"
	"camionback/internal/notify"
	"camionback/internal/types"
)

// Storage is the persistence contract for offers, including the accept commit
// that shares its compare-and-set with the assignment path.
type Storage interface {
	Insert(ctx context.Context, o *Offer) error
	Get(ctx context.Context, id types.ID) (*Offer, error)
	ListByRequest(ctx context.Context, requestID types.ID) ([]Offer, error)

	// AcceptOffer atomically commits the parent request to the offer's
	// transporter, marks this offer accepted, rejects its pending siblings, and
	// invalidates active interest signals.
	AcceptOffer(ctx context.Context, offerID types.ID, platformFee int64) error

	SetStatus(ctx context.Context, id types.ID, from, to Status) (bool, error)
}

// RequestSource reads the parent request. Implemented by request.Service.
type RequestSource interface {
	Get(ctx context.Context, id types.ID) (*request.Request, error)
}

type Service struct {
	store    Storage
	requests RequestSource
	notifier notify.Notifier
}

func NewService(store Storage, requests RequestSource, notifier notify.Notifier) *Service {
	return &Service{store: store, requests: requests, notifier: notifier}
}

type SubmitCommand struct {
	RequestID     types.ID
	TransporterID types.ID
	Amount        int64
	LoadType      string
	PickupDate    time.Time
}

// Submit records a direct price proposal for a published request.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Offer, error) {
	if cmd.TransporterID == "" || cmd.Amount <= 0 || cmd.PickupDate.IsZero() {
		return nil, request.ErrValidation
	}
	r, err := s.requests.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if r.Status != request.StatusPublished {
		return nil, request.ErrInvalidTransition
	}

	o := &Offer{
		ID:            types.ID(uuid.NewString()),
		RequestID:     cmd.RequestID,
		TransporterID: cmd.TransporterID,
		Amount:        cmd.Amount,
		LoadType:      cmd.LoadType,
		PickupDate:    cmd.PickupDate,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}
	if err := s.store.Insert(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

type AcceptCommand struct {
	OfferID types.ID
	// PlatformFee tops up the transporter's asking price to the client total.
	// Zero means "use the qualified split's platform margin".
	PlatformFee int64
}

// Accept commits the request to the offering transporter. Mutually exclusive
// with interest assignment: both go through the same conditional status write.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Offer, error) {
	o, err := s.store.Get(ctx, cmd.OfferID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, request.ErrInvalidTransition
	}

	platformFee := cmd.PlatformFee
	if platformFee == 0 {
		r, rerr := s.requests.Get(ctx, o.RequestID)
		if rerr != nil {
			return nil, rerr
		}
		if r.PlatformFee != nil {
			platformFee = *r.PlatformFee
		}
	}
	if platformFee < pricing.MinPlatformFee {
		return nil, request.ErrValidation
	}

	if err := s.store.AcceptOffer(ctx, o.ID, platformFee); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		r, rerr := s.requests.Get(ctx, o.RequestID)
		if rerr == nil {
			s.notifier.Notify(ctx, notify.Event{
				Kind:          notify.EventRequestAssigned,
				RequestID:     r.ID,
				Reference:     r.Reference,
				TransporterID: o.TransporterID,
			})
		}
	}
	return s.store.Get(ctx, o.ID)
}

// Reject declines a pending offer without touching the request.
func (s *Service) Reject(ctx context.Context, offerID types.ID) error {
	ok, err := s.store.SetStatus(ctx, offerID, StatusPending, StatusRejected)
	if err != nil {
		return err
	}
	if !ok {
		return request.ErrInvalidTransition
	}
	return nil
}

// Complete closes an accepted offer once its request is delivered.
func (s *Service) Complete(ctx context.Context, offerID types.ID) error {
	ok, err := s.store.SetStatus(ctx, offerID, StatusAccepted, StatusCompleted)
	if err != nil {
		return err
	}
	if !ok {
		return request.ErrInvalidTransition
	}
	return nil
}

func (s *Service) ListByRequest(ctx context.Context, requestID types.ID) ([]Offer, error) {
	if _, err := s.requests.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return s.store.ListByRequest(ctx, requestID)
}
