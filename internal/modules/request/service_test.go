// README: Request service tests over an in-memory store with the same
// conditional-update semantics as the SQL store.
package request

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"camionback/internal/modules/pricing"
	"camionback/internal/types"
)

// memStore mimics the Postgres store: every transition is a compare-and-set on
// (status, status_version).
type memStore struct {
	mu       sync.Mutex
	requests map[types.ID]*Request
	events   []Event
	notes    []Note

	// pool stands in for the interest_signals table: Requalify must wipe it
	// in the same step as the status change, or not at all.
	pool map[types.ID][]types.ID
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[types.ID]*Request),
		pool:     make(map[types.ID][]types.ID),
	}
}

func (m *memStore) Create(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, upd Update) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	r.Status = to
	r.StatusVersion++
	if upd.ClientTotal != nil {
		r.ClientTotal = upd.ClientTotal
	}
	if upd.TransporterFee != nil {
		r.TransporterFee = upd.TransporterFee
	}
	if upd.PlatformFee != nil {
		r.PlatformFee = upd.PlatformFee
	}
	if upd.PriceConfidence != nil {
		r.PriceConfidence = upd.PriceConfidence
	}
	if upd.DistanceKm != nil {
		r.DistanceKm = upd.DistanceKm
	}
	if upd.CancelReason != nil {
		r.CancelReason = upd.CancelReason
	}
	if upd.ClearArchive {
		r.ArchiveReason, r.ArchiveComment = nil, nil
	} else {
		if upd.ArchiveReason != nil {
			r.ArchiveReason = upd.ArchiveReason
		}
		if upd.ArchiveComment != nil {
			r.ArchiveComment = upd.ArchiveComment
		}
	}
	if upd.ClearTransporter {
		r.TransporterID = nil
	}
	now := time.Now()
	if to == StatusPublished && r.QualifiedAt == nil {
		r.QualifiedAt = &now
	}
	if upd.Restamp || (to == StatusPublished && r.PublishedForMatchingAt == nil) {
		r.PublishedForMatchingAt = &now
	}
	return true, nil
}

func (m *memStore) Requalify(_ context.Context, id types.ID, from Status, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	r.Status = StatusPublished
	r.StatusVersion++
	r.TransporterID = nil
	now := time.Now()
	r.PublishedForMatchingAt = &now
	delete(m.pool, id)
	return true, nil
}

func (m *memStore) SetCoordination(_ context.Context, id types.ID, status *CoordinationStatus, coordinatorID *types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return false, nil
	}
	if status != nil {
		r.CoordinationStatus = *status
	}
	if coordinatorID != nil {
		r.CoordinatorID = coordinatorID
	}
	now := time.Now()
	r.CoordinationUpdatedAt = &now
	return true, nil
}

func (m *memStore) SetVisibility(_ context.Context, id types.ID, hidden bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return false, nil
	}
	r.Hidden = hidden
	return true, nil
}

func (m *memStore) AddNote(_ context.Context, n *Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = int64(len(m.notes) + 1)
	m.notes = append(m.notes, *n)
	return nil
}

func (m *memStore) ListNotes(_ context.Context, id types.ID) ([]Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Note
	for _, n := range m.notes {
		if n.RequestID == id {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

// fixedPricer returns the same split for every input.
type fixedPricer struct {
	quote pricing.Quote
}

func (p fixedPricer) Quote(context.Context, pricing.QuoteInput) pricing.Quote {
	return p.quote
}

type seqRefs struct {
	mu sync.Mutex
	n  int
}

func (r *seqRefs) NextReference(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return fmt.Sprintf("CB-%06d", r.n), nil
}

func defaultQuote() pricing.Quote {
	return pricing.Quote{
		ClientTotal:    1000,
		TransporterFee: 600,
		PlatformFee:    400,
		Confidence:     0.8,
		Source:         pricing.SourceHeuristic,
	}
}

func newTestService(store *memStore) *Service {
	return NewService(Deps{
		Store:  store,
		Pricer: fixedPricer{quote: defaultQuote()},
		Refs:   &seqRefs{},
	})
}

func mustCreate(t *testing.T, svc *Service) *Request {
	t.Helper()
	r, err := svc.Create(context.Background(), CreateCommand{
		ClientID:        "c1",
		OriginCity:      "Paris",
		DestinationCity: "Lyon",
		CargoCategory:   "meubles",
		DesiredDate:     time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return r
}

func assignFor(t *testing.T, store *memStore, id types.ID, transporter types.ID) {
	t.Helper()
	r, _ := store.Get(context.Background(), id)
	ok, err := store.UpdateStatus(context.Background(), id, r.Status, StatusAccepted, r.StatusVersion, Update{})
	if err != nil || !ok {
		t.Fatalf("force accept: ok=%v err=%v", ok, err)
	}
	store.mu.Lock()
	store.requests[id].TransporterID = &transporter
	store.mu.Unlock()
}

func TestCreateStartsInQualification(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	r := mustCreate(t, svc)
	if r.Status != StatusQualificationPending {
		t.Fatalf("status = %s, want %s", r.Status, StatusQualificationPending)
	}
	if r.CoordinationStatus != CoordNouveau {
		t.Fatalf("coordination = %s, want %s", r.CoordinationStatus, CoordNouveau)
	}
	if r.Reference != "CB-000001" {
		t.Fatalf("reference = %q", r.Reference)
	}
	if len(store.events) != 1 || store.events[0].ToStatus != StatusQualificationPending {
		t.Fatalf("expected one creation event, got %+v", store.events)
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.Create(context.Background(), CreateCommand{ClientID: "c1", OriginCity: "Paris"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestQualifyPublishesWithEngineSplit(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)

	out, err := svc.Qualify(context.Background(), QualifyCommand{RequestID: r.ID, CoordinatorID: "coord1"})
	if err != nil {
		t.Fatalf("qualify: %v", err)
	}
	if out.Status != StatusPublished {
		t.Fatalf("status = %s, want %s", out.Status, StatusPublished)
	}
	if out.ClientTotal == nil || *out.ClientTotal != 1000 {
		t.Fatalf("client_total = %v, want 1000", out.ClientTotal)
	}
	if *out.TransporterFee+*out.PlatformFee != *out.ClientTotal {
		t.Fatalf("split does not add up: %d + %d != %d", *out.TransporterFee, *out.PlatformFee, *out.ClientTotal)
	}
	if out.QualifiedAt == nil || out.PublishedForMatchingAt == nil {
		t.Fatal("expected qualification timestamps to be set")
	}
}

func TestQualifyHonorsCoordinatorOverride(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)

	out, err := svc.Qualify(context.Background(), QualifyCommand{
		RequestID:     r.ID,
		CoordinatorID: "coord1",
		Override:      &FeeOverride{ClientTotal: 900, TransporterFee: 600, PlatformFee: 300},
	})
	if err != nil {
		t.Fatalf("qualify: %v", err)
	}
	if *out.ClientTotal != 900 || *out.TransporterFee != 600 || *out.PlatformFee != 300 {
		t.Fatalf("override not applied: %d/%d/%d", *out.ClientTotal, *out.TransporterFee, *out.PlatformFee)
	}
}

func TestQualifyRejectsInconsistentOverride(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)

	cases := []FeeOverride{
		{ClientTotal: 900, TransporterFee: 500, PlatformFee: 300}, // sum mismatch
		{ClientTotal: 700, TransporterFee: 550, PlatformFee: 150}, // platform below floor
		{ClientTotal: 100, TransporterFee: -100, PlatformFee: 200},
	}
	for _, o := range cases {
		o := o
		_, err := svc.Qualify(context.Background(), QualifyCommand{RequestID: r.ID, CoordinatorID: "coord1", Override: &o})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("override %+v: err = %v, want ErrValidation", o, err)
		}
	}

	got, _ := svc.Get(context.Background(), r.ID)
	if got.Status != StatusQualificationPending {
		t.Fatalf("rejected override must not transition, status = %s", got.Status)
	}
}

func TestQualifyOnlyFromUnqualifiedStates(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)

	if _, err := svc.Qualify(context.Background(), QualifyCommand{RequestID: r.ID, CoordinatorID: "coord1"}); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	if _, err := svc.Qualify(context.Background(), QualifyCommand{RequestID: r.ID, CoordinatorID: "coord1"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second qualify: err = %v, want ErrInvalidTransition", err)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()
	r := mustCreate(t, svc)

	if _, err := svc.Qualify(ctx, QualifyCommand{RequestID: r.ID, CoordinatorID: "coord1"}); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	assignFor(t, store, r.ID, "t1")

	if err := svc.Start(ctx, StartCommand{RequestID: r.ID, ActorID: "t1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.Complete(ctx, CompleteCommand{RequestID: r.ID, ActorID: "t1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := svc.Get(ctx, r.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, StatusCompleted)
	}
}

func TestStartRequiresAccepted(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)

	err := svc.Start(context.Background(), StartCommand{RequestID: r.ID, ActorID: "t1"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)

	err := svc.Cancel(context.Background(), CancelCommand{RequestID: r.ID, ActorType: "client", ActorID: "c1"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	if err := svc.Cancel(context.Background(), CancelCommand{RequestID: r.ID, ActorType: "client", ActorID: "c1", Reason: "changed plans"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ := svc.Get(context.Background(), r.ID)
	if got.Status != StatusCancelled || got.CancelReason == nil || *got.CancelReason != "changed plans" {
		t.Fatalf("cancel not recorded: %+v", got)
	}
}

func TestCancelTerminalRequestFails(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)

	if err := svc.Cancel(context.Background(), CancelCommand{RequestID: r.ID, ActorType: "client", ActorID: "c1", Reason: "first"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	err := svc.Cancel(context.Background(), CancelCommand{RequestID: r.ID, ActorType: "client", ActorID: "c1", Reason: "again"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestArchiveRequiresReasonCode(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)

	if err := svc.Archive(context.Background(), ArchiveCommand{RequestID: r.ID, CoordinatorID: "coord1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if err := svc.Archive(context.Background(), ArchiveCommand{RequestID: r.ID, CoordinatorID: "coord1", ReasonCode: "duplicate", Comment: "dup of CB-000007"}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	got, _ := svc.Get(context.Background(), r.ID)
	if got.Status != StatusArchived || got.ArchiveReason == nil || *got.ArchiveReason != "duplicate" {
		t.Fatalf("archive not recorded: %+v", got)
	}
}

func TestRepublishTargetDependsOnQualification(t *testing.T) {
	ctx := context.Background()

	// Never qualified: back to qualification_pending.
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)
	if err := svc.Archive(ctx, ArchiveCommand{RequestID: r.ID, CoordinatorID: "coord1", ReasonCode: "stale"}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := svc.Republish(ctx, RepublishCommand{RequestID: r.ID, CoordinatorID: "coord1"}); err != nil {
		t.Fatalf("republish: %v", err)
	}
	got, _ := svc.Get(ctx, r.ID)
	if got.Status != StatusQualificationPending {
		t.Fatalf("status = %s, want %s", got.Status, StatusQualificationPending)
	}
	if got.ArchiveReason != nil {
		t.Fatal("archive metadata must be cleared on republish")
	}

	// Already qualified: straight back to matching.
	store2 := newMemStore()
	svc2 := newTestService(store2)
	r2 := mustCreate(t, svc2)
	if _, err := svc2.Qualify(ctx, QualifyCommand{RequestID: r2.ID, CoordinatorID: "coord1"}); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	if err := svc2.Archive(ctx, ArchiveCommand{RequestID: r2.ID, CoordinatorID: "coord1", ReasonCode: "stale"}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	published, _ := svc2.Get(ctx, r2.ID)
	stamp := published.PublishedForMatchingAt

	if err := svc2.Republish(ctx, RepublishCommand{RequestID: r2.ID, CoordinatorID: "coord1"}); err != nil {
		t.Fatalf("republish: %v", err)
	}
	got2, _ := svc2.Get(ctx, r2.ID)
	if got2.Status != StatusPublished {
		t.Fatalf("status = %s, want %s", got2.Status, StatusPublished)
	}
	if got2.PublishedForMatchingAt == nil || !got2.PublishedForMatchingAt.Equal(*stamp) {
		t.Fatal("republish must not reset the publication timestamp")
	}
}

func TestRepublishOnlyFromArchived(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)

	err := svc.Republish(context.Background(), RepublishCommand{RequestID: r.ID, CoordinatorID: "coord1"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestRequalifyClearsAssignmentAndInterests(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()
	r := mustCreate(t, svc)

	if _, err := svc.Qualify(ctx, QualifyCommand{RequestID: r.ID, CoordinatorID: "coord1"}); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	published, _ := svc.Get(ctx, r.ID)
	firstStamp := published.PublishedForMatchingAt

	assignFor(t, store, r.ID, "t1")
	store.mu.Lock()
	store.pool[r.ID] = []types.ID{"t1", "t2", "t3"}
	store.mu.Unlock()
	time.Sleep(5 * time.Millisecond)

	if err := svc.Requalify(ctx, RequalifyCommand{RequestID: r.ID, CoordinatorID: "coord1"}); err != nil {
		t.Fatalf("requalify: %v", err)
	}

	got, _ := svc.Get(ctx, r.ID)
	if got.Status != StatusPublished {
		t.Fatalf("status = %s, want %s", got.Status, StatusPublished)
	}
	if got.TransporterID != nil {
		t.Fatal("transporter must be cleared on requalification")
	}
	if got.PublishedForMatchingAt == nil || !got.PublishedForMatchingAt.After(*firstStamp) {
		t.Fatal("requalification must restamp the publication time")
	}
	store.mu.Lock()
	remaining := len(store.pool[r.ID])
	store.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("interest pool not cleared, %d signals left", remaining)
	}
}

func TestRequalifyLostRaceLeavesPoolIntact(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()
	r := mustCreate(t, svc)

	if _, err := svc.Qualify(ctx, QualifyCommand{RequestID: r.ID, CoordinatorID: "coord1"}); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	assignFor(t, store, r.ID, "t1")
	store.mu.Lock()
	store.pool[r.ID] = []types.ID{"t1", "t2"}
	store.mu.Unlock()

	// A concurrent transition bumps the version between our read and our
	// write, so the compare-and-set below runs with a stale version.
	got, _ := store.Get(ctx, r.ID)
	store.mu.Lock()
	store.requests[r.ID].StatusVersion = got.StatusVersion + 1
	store.mu.Unlock()

	ok, err := store.Requalify(ctx, r.ID, StatusAccepted, got.StatusVersion)
	if err != nil {
		t.Fatalf("requalify: %v", err)
	}
	if ok {
		t.Fatal("stale compare-and-set must lose")
	}
	store.mu.Lock()
	remaining := len(store.pool[r.ID])
	store.mu.Unlock()
	if remaining != 2 {
		t.Fatalf("lost race must leave the pool untouched, %d signals left", remaining)
	}
}

func TestRequalifyOnlyWhenCommitted(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)

	err := svc.Requalify(context.Background(), RequalifyCommand{RequestID: r.ID, CoordinatorID: "coord1"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateCoordinationIsIndependentAxis(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()
	r := mustCreate(t, svc)

	st := CoordPrioritaire
	coord := types.ID("coord1")
	if err := svc.UpdateCoordination(ctx, CoordinationCommand{RequestID: r.ID, Status: &st, CoordinatorID: &coord}); err != nil {
		t.Fatalf("coordination: %v", err)
	}
	got, _ := svc.Get(ctx, r.ID)
	if got.CoordinationStatus != CoordPrioritaire || got.CoordinatorID == nil || *got.CoordinatorID != coord {
		t.Fatalf("ledger write missing: %+v", got)
	}
	if got.Status != StatusQualificationPending {
		t.Fatalf("lifecycle status must not move, got %s", got.Status)
	}
	if got.CoordinationUpdatedAt == nil {
		t.Fatal("coordination_updated_at must be stamped")
	}
}

func TestUpdateCoordinationRejectsUnknownBucket(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	r := mustCreate(t, svc)

	st := CoordinationStatus("urgent")
	err := svc.UpdateCoordination(context.Background(), CoordinationCommand{RequestID: r.ID, Status: &st})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestNotesRoundTrip(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()
	r := mustCreate(t, svc)

	if err := svc.AddNote(ctx, NoteCommand{RequestID: r.ID, AuthorID: "coord1", Body: "client prefers morning pickup"}); err != nil {
		t.Fatalf("add note: %v", err)
	}
	if err := svc.AddNote(ctx, NoteCommand{RequestID: r.ID, AuthorID: "coord2", Body: "transporter confirmed by phone"}); err != nil {
		t.Fatalf("add note: %v", err)
	}
	notes, err := svc.Notes(ctx, r.ID)
	if err != nil {
		t.Fatalf("notes: %v", err)
	}
	if len(notes) != 2 || notes[0].Body != "client prefers morning pickup" {
		t.Fatalf("unexpected notes: %+v", notes)
	}

	if err := svc.AddNote(ctx, NoteCommand{RequestID: "missing", AuthorID: "coord1", Body: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("note on missing request: err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentCancelVsRequalify(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()
	r := mustCreate(t, svc)

	if _, err := svc.Qualify(ctx, QualifyCommand{RequestID: r.ID, CoordinatorID: "coord1"}); err != nil {
		t.Fatalf("qualify: %v", err)
	}
	assignFor(t, store, r.ID, "t1")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	start := make(chan struct{})

	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		errs <- svc.Cancel(ctx, CancelCommand{RequestID: r.ID, ActorType: "client", ActorID: "c1", Reason: "late"})
	}()
	go func() {
		defer wg.Done()
		<-start
		errs <- svc.Requalify(ctx, RequalifyCommand{RequestID: r.ID, CoordinatorID: "coord1"})
	}()

	close(start)
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Cancel and requalify both start from accepted; exactly one CAS can win,
	// but the loser may also retry-fail cleanly after the winner moved the row.
	if success < 1 || success > 2 {
		t.Fatalf("expected 1 or 2 successes, got %d", success)
	}

	got, _ := svc.Get(ctx, r.ID)
	if got.Status != StatusCancelled && got.Status != StatusPublished {
		t.Fatalf("unexpected final status: %s", got.Status)
	}
}
