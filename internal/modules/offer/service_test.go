// README: Legacy offer path tests: submit/accept/reject against a fake store.
package offer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"camionback/internal/modules/request"
	"camionback/internal/types"
)

// memBackend holds one request and its offers, with the same conditional
// commit rule as the SQL store.
type memBackend struct {
	mu     sync.Mutex
	req    *request.Request
	offers map[types.ID]*Offer
}

func newMemBackend(status request.Status) *memBackend {
	return &memBackend{
		req: &request.Request{
			ID:          "r1",
			Reference:   "CB-000007",
			ClientID:    "c1",
			Status:      status,
			DesiredDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		},
		offers: make(map[types.ID]*Offer),
	}
}

func (m *memBackend) Get(_ context.Context, id types.ID) (*Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memBackend) Insert(_ context.Context, o *Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.offers[o.ID] = &cp
	return nil
}

func (m *memBackend) ListByRequest(_ context.Context, requestID types.ID) ([]Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Offer
	for _, o := range m.offers {
		if o.RequestID == requestID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memBackend) AcceptOffer(_ context.Context, offerID types.ID, platformFee int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[offerID]
	if !ok {
		return request.ErrNotFound
	}
	if o.Status != StatusPending {
		return request.ErrInvalidTransition
	}
	if m.req.ID != o.RequestID {
		return request.ErrNotFound
	}
	if m.req.Status != request.StatusPublished {
		switch m.req.Status {
		case request.StatusAccepted, request.StatusInProgress, request.StatusCompleted:
			return request.ErrAlreadyAssigned
		default:
			return request.ErrInvalidTransition
		}
	}
	m.req.Status = request.StatusAccepted
	m.req.StatusVersion++
	m.req.TransporterID = &o.TransporterID
	total := o.Amount + platformFee
	m.req.TransporterFee = &o.Amount
	m.req.PlatformFee = &platformFee
	m.req.ClientTotal = &total
	o.Status = StatusAccepted
	for _, other := range m.offers {
		if other.RequestID == o.RequestID && other.ID != o.ID && other.Status == StatusPending {
			other.Status = StatusRejected
		}
	}
	return nil
}

func (m *memBackend) SetStatus(_ context.Context, id types.ID, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (m *memBackend) request(_ context.Context, id types.ID) (*request.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.req.ID {
		return nil, request.ErrNotFound
	}
	cp := *m.req
	return &cp, nil
}

type requestSourceFunc func(ctx context.Context, id types.ID) (*request.Request, error)

func (f requestSourceFunc) Get(ctx context.Context, id types.ID) (*request.Request, error) {
	return f(ctx, id)
}

func newTestService(backend *memBackend) *Service {
	return NewService(backend, requestSourceFunc(backend.request), nil)
}

func mustSubmit(t *testing.T, svc *Service, transporter types.ID, amount int64) *Offer {
	t.Helper()
	o, err := svc.Submit(context.Background(), SubmitCommand{
		RequestID:     "r1",
		TransporterID: transporter,
		Amount:        amount,
		LoadType:      "full",
		PickupDate:    time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("submit(%s): %v", transporter, err)
	}
	return o
}

func TestSubmitRequiresPublishedRequest(t *testing.T) {
	svc := newTestService(newMemBackend(request.StatusQualificationPending))
	_, err := svc.Submit(context.Background(), SubmitCommand{
		RequestID:     "r1",
		TransporterID: "t1",
		Amount:        700,
		PickupDate:    time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, request.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestSubmitValidatesPayload(t *testing.T) {
	svc := newTestService(newMemBackend(request.StatusPublished))
	cases := []SubmitCommand{
		{RequestID: "r1", Amount: 700, PickupDate: time.Now()},         // missing transporter
		{RequestID: "r1", TransporterID: "t1", PickupDate: time.Now()}, // zero amount
		{RequestID: "r1", TransporterID: "t1", Amount: 700},            // missing pickup date
	}
	for _, cmd := range cases {
		if _, err := svc.Submit(context.Background(), cmd); !errors.Is(err, request.ErrValidation) {
			t.Errorf("cmd %+v: err = %v, want ErrValidation", cmd, err)
		}
	}
}

func TestAcceptCommitsRequestAndSettlesSiblings(t *testing.T) {
	backend := newMemBackend(request.StatusPublished)
	svc := newTestService(backend)
	ctx := context.Background()

	winner := mustSubmit(t, svc, "t1", 700)
	loser := mustSubmit(t, svc, "t2", 650)

	accepted, err := svc.Accept(ctx, AcceptCommand{OfferID: winner.ID, PlatformFee: 250})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != StatusAccepted {
		t.Fatalf("offer status = %s, want %s", accepted.Status, StatusAccepted)
	}

	r, _ := backend.request(ctx, "r1")
	if r.Status != request.StatusAccepted || r.TransporterID == nil || *r.TransporterID != "t1" {
		t.Fatalf("request not committed: %+v", r)
	}
	if *r.TransporterFee != 700 || *r.PlatformFee != 250 || *r.ClientTotal != 950 {
		t.Fatalf("fees wrong: %d/%d/%d", *r.TransporterFee, *r.PlatformFee, *r.ClientTotal)
	}

	got, _ := backend.Get(ctx, loser.ID)
	if got.Status != StatusRejected {
		t.Fatalf("sibling offer status = %s, want %s", got.Status, StatusRejected)
	}
}

func TestAcceptDefaultsPlatformFeeFromQualifiedSplit(t *testing.T) {
	backend := newMemBackend(request.StatusPublished)
	platform := int64(300)
	backend.req.PlatformFee = &platform
	svc := newTestService(backend)
	ctx := context.Background()

	o := mustSubmit(t, svc, "t1", 700)
	if _, err := svc.Accept(ctx, AcceptCommand{OfferID: o.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	r, _ := backend.request(ctx, "r1")
	if *r.PlatformFee != 300 || *r.ClientTotal != 1000 {
		t.Fatalf("split wrong: platform %d, total %d", *r.PlatformFee, *r.ClientTotal)
	}
}

func TestAcceptWithoutFeeOrQualifiedSplitFails(t *testing.T) {
	backend := newMemBackend(request.StatusPublished)
	svc := newTestService(backend)
	o := mustSubmit(t, svc, "t1", 700)

	_, err := svc.Accept(context.Background(), AcceptCommand{OfferID: o.ID})
	if !errors.Is(err, request.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestAcceptRejectsLowPlatformFee(t *testing.T) {
	backend := newMemBackend(request.StatusPublished)
	svc := newTestService(backend)
	o := mustSubmit(t, svc, "t1", 700)

	_, err := svc.Accept(context.Background(), AcceptCommand{OfferID: o.ID, PlatformFee: 100})
	if !errors.Is(err, request.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestAcceptTwiceFails(t *testing.T) {
	backend := newMemBackend(request.StatusPublished)
	svc := newTestService(backend)
	ctx := context.Background()

	first := mustSubmit(t, svc, "t1", 700)
	second := mustSubmit(t, svc, "t2", 650)

	if _, err := svc.Accept(ctx, AcceptCommand{OfferID: first.ID, PlatformFee: 250}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// The sibling was auto-rejected in the same commit, so a second accept
	// fails on the offer state before it ever reaches the request.
	_, err := svc.Accept(ctx, AcceptCommand{OfferID: second.ID, PlatformFee: 250})
	if !errors.Is(err, request.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCompleteRequiresAcceptedOffer(t *testing.T) {
	backend := newMemBackend(request.StatusPublished)
	svc := newTestService(backend)
	ctx := context.Background()

	o := mustSubmit(t, svc, "t1", 700)
	if err := svc.Complete(ctx, o.ID); !errors.Is(err, request.ErrInvalidTransition) {
		t.Fatalf("complete pending: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Accept(ctx, AcceptCommand{OfferID: o.ID, PlatformFee: 250}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := svc.Complete(ctx, o.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := backend.Get(ctx, o.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("offer status = %s, want %s", got.Status, StatusCompleted)
	}
}

func TestRejectOnlyPendingOffers(t *testing.T) {
	backend := newMemBackend(request.StatusPublished)
	svc := newTestService(backend)
	ctx := context.Background()

	o := mustSubmit(t, svc, "t1", 700)
	if err := svc.Reject(ctx, o.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := svc.Reject(ctx, o.ID); !errors.Is(err, request.ErrInvalidTransition) {
		t.Fatalf("second reject: err = %v, want ErrInvalidTransition", err)
	}
}
