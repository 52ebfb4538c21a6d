package visitor

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

type stubClock struct {
	now time.Time
}

func (s stubClock) Now() time.Time {
	return s.now
}

type fakeNotifier struct {
	mu             sync.Mutex
	submissionErr  error
	outcomeErr     error
	submissions    []*Entry
	submittedLinks []Links
	outcomes       []*Entry
}

func (n *fakeNotifier) SendSubmissionNotice(_ context.Context, e *Entry, links Links) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submissions = append(n.submissions, cloneEntry(e))
	n.submittedLinks = append(n.submittedLinks, links)
	return n.submissionErr
}

func (n *fakeNotifier) SendOutcomeNotice(_ context.Context, e *Entry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, cloneEntry(e))
	return n.outcomeErr
}

type recordedEvent struct {
	name string
	data any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEmitter) Emit(event string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: event, data: data})
	return nil
}

type fakePhotos struct {
	saved   map[string]string
	deleted []string
	saveErr error
}

func newFakePhotos() *fakePhotos {
	return &fakePhotos{saved: make(map[string]string)}
}

func (p *fakePhotos) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if p.saveErr != nil {
		return "", p.saveErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	ref := "1700000000000-" + name
	p.saved[ref] = string(b)
	return ref, nil
}

func (p *fakePhotos) Delete(_ context.Context, ref string) error {
	p.deleted = append(p.deleted, ref)
	delete(p.saved, ref)
	return nil
}

type stubTokens struct{}

func (stubTokens) Issue(entryID string) (string, error) {
	return "tok-" + entryID, nil
}

type failingCreateRepo struct {
	*MemoryRepository
}

func (failingCreateRepo) Create(context.Context, *Entry) (*Entry, error) {
	return nil, errors.New("connection refused")
}

type fixture struct {
	repo     *MemoryRepository
	photos   *fakePhotos
	notifier *fakeNotifier
	events   *recordingEmitter
	clock    stubClock
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     NewMemoryRepository(),
		photos:   newFakePhotos(),
		notifier: &fakeNotifier{},
		events:   &recordingEmitter{},
		clock:    stubClock{now: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)},
	}
	f.svc = NewService(f.repo, f.photos, f.notifier, f.events, "https://desk.example.com/", WithClock(f.clock), WithTokens(stubTokens{}))
	return f
}

func aliceInput() SubmitInput {
	return SubmitInput{
		Name:         "Alice",
		Email:        "a@x.com",
		PersonToMeet: "b@x.com",
		Purpose:      "Meeting",
		Photo:        &Photo{Filename: "alice.jpg", Content: strings.NewReader("jpeg-bytes")},
	}
}

func TestService_Submit_Success(t *testing.T) {
	t.Parallel()

	f := newFixture()
	entry, err := f.svc.Submit(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if entry.Status != StatusPending {
		t.Errorf("expected pending, got %s", entry.Status)
	}
	if !entry.NotificationSent {
		t.Error("expected notificationSent after successful notice")
	}
	if entry.CreatedAt != f.clock.now {
		t.Errorf("expected createdAt from clock, got %v", entry.CreatedAt)
	}
	if got := f.photos.saved[entry.Photo]; got != "jpeg-bytes" {
		t.Errorf("expected photo stored under %s, got %q", entry.Photo, got)
	}

	stored, err := f.repo.FindByID(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if !stored.NotificationSent {
		t.Error("expected stored entry to be marked notified")
	}

	all, _ := f.repo.List(context.Background(), ListFilter{})
	if len(all) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(all))
	}

	if len(f.notifier.submissions) != 1 {
		t.Fatalf("expected one submission notice, got %d", len(f.notifier.submissions))
	}
	links := f.notifier.submittedLinks[0]
	approve, err := url.Parse(links.Approve)
	if err != nil {
		t.Fatalf("approve link not a url: %v", err)
	}
	if approve.Path != "/api/visitor/approve" || approve.Host != "desk.example.com" {
		t.Errorf("unexpected approve link %s", links.Approve)
	}
	q := approve.Query()
	if q.Get("visitor") != "Alice" || q.Get("email") != "a@x.com" || q.Get("token") != "tok-"+entry.ID {
		t.Errorf("unexpected approve query %v", q)
	}
	if !strings.HasPrefix(links.Disapprove, "https://desk.example.com/api/visitor/disapprove?") {
		t.Errorf("unexpected disapprove link %s", links.Disapprove)
	}
}

func TestService_Submit_PhotoRequired(t *testing.T) {
	t.Parallel()

	f := newFixture()
	in := aliceInput()
	in.Photo = nil

	_, err := f.svc.Submit(context.Background(), in)
	if !errors.Is(err, ErrPhotoRequired) {
		t.Fatalf("expected ErrPhotoRequired, got %v", err)
	}

	all, _ := f.repo.List(context.Background(), ListFilter{})
	if len(all) != 0 {
		t.Fatalf("expected no entry persisted, got %d", len(all))
	}
	if len(f.notifier.submissions) != 0 {
		t.Error("expected no notice for rejected submission")
	}
}

func TestService_Submit_InvalidInput(t *testing.T) {
	t.Parallel()

	f := newFixture()
	in := aliceInput()
	in.Purpose = "   "
	in.Email = "not-an-address"

	_, err := f.svc.Submit(context.Background(), in)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "purpose") {
		t.Errorf("expected missing field named, got %v", err)
	}
	if len(f.photos.saved) != 0 {
		t.Error("expected no photo stored for invalid input")
	}
}

func TestService_Submit_NotificationFailureKeepsEntry(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.notifier.submissionErr = errors.New("smtp: 535 authentication failed")

	entry, err := f.svc.Submit(context.Background(), aliceInput())
	if !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("expected ErrNotificationFailed, got %v", err)
	}
	if entry == nil || entry.ID == "" {
		t.Fatal("expected persisted entry returned with the error")
	}

	stored, err := f.repo.FindByID(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("expected entry to persist, got %v", err)
	}
	if stored.NotificationSent {
		t.Error("expected notificationSent to stay false")
	}
	if stored.Status != StatusPending {
		t.Errorf("expected pending, got %s", stored.Status)
	}
}

func TestService_Submit_CreateFailureRemovesPhoto(t *testing.T) {
	t.Parallel()

	f := newFixture()
	svc := NewService(failingCreateRepo{f.repo}, f.photos, f.notifier, f.events, "http://localhost")

	if _, err := svc.Submit(context.Background(), aliceInput()); err == nil {
		t.Fatal("expected create failure")
	}
	if len(f.photos.deleted) != 1 {
		t.Fatalf("expected stored photo to be removed, got %v", f.photos.deleted)
	}
}

func TestService_ResendNotice(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.notifier.submissionErr = errors.New("timeout")
	entry, _ := f.svc.Submit(context.Background(), aliceInput())

	f.notifier.submissionErr = nil
	resent, err := f.svc.ResendNotice(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("ResendNotice returned error: %v", err)
	}
	if !resent.NotificationSent {
		t.Error("expected notificationSent after resend")
	}
	if len(f.notifier.submissions) != 2 {
		t.Errorf("expected two notice attempts, got %d", len(f.notifier.submissions))
	}

	if _, err := f.svc.Approve(context.Background(), DecisionInput{EntryID: entry.ID}); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if _, err := f.svc.ResendNotice(context.Background(), entry.ID); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided for decided entry, got %v", err)
	}
}

func TestService_Approve(t *testing.T) {
	t.Parallel()

	f := newFixture()
	entry, _ := f.svc.Submit(context.Background(), aliceInput())

	approved, err := f.svc.Approve(context.Background(), DecisionInput{Name: "Alice", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if approved.ID != entry.ID {
		t.Fatalf("expected entry %s, got %s", entry.ID, approved.ID)
	}
	if approved.Status != StatusApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}
	if approved.ApprovedAt == nil || !approved.ApprovedAt.Equal(f.clock.now) {
		t.Errorf("expected approvedAt %v, got %v", f.clock.now, approved.ApprovedAt)
	}
	if approved.DisapprovedAt != nil {
		t.Error("expected disapprovedAt unset")
	}

	if len(f.events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.events.events))
	}
	evt := f.events.events[0]
	if evt.name != StatusUpdateEvent {
		t.Errorf("expected %s, got %s", StatusUpdateEvent, evt.name)
	}
	if got, ok := evt.data.(StatusEvent); !ok || got.Visitor != "Alice" || got.Status != StatusApproved {
		t.Errorf("unexpected event payload %+v", evt.data)
	}

	if len(f.notifier.outcomes) != 1 || f.notifier.outcomes[0].Status != StatusApproved {
		t.Errorf("expected one approved outcome notice, got %+v", f.notifier.outcomes)
	}
}

func TestService_Disapprove(t *testing.T) {
	t.Parallel()

	f := newFixture()
	entry, _ := f.svc.Submit(context.Background(), aliceInput())

	got, err := f.svc.Disapprove(context.Background(), DecisionInput{Name: "Alice", Email: "a@x.com", EntryID: entry.ID})
	if err != nil {
		t.Fatalf("Disapprove returned error: %v", err)
	}
	if got.Status != StatusDisapproved || got.DisapprovedAt == nil || got.ApprovedAt != nil {
		t.Errorf("unexpected entry after disapprove %+v", got)
	}
	if len(f.events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.events.events))
	}
	if ev := f.events.events[0].data.(StatusEvent); ev.Status != StatusDisapproved {
		t.Errorf("expected disapproved event, got %s", ev.Status)
	}
}

func TestService_Approve_Twice(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, _ = f.svc.Submit(context.Background(), aliceInput())
	in := DecisionInput{Name: "Alice", Email: "a@x.com"}

	if _, err := f.svc.Approve(context.Background(), in); err != nil {
		t.Fatalf("first Approve returned error: %v", err)
	}

	again, err := f.svc.Approve(context.Background(), in)
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
	if again == nil || again.Status != StatusApproved {
		t.Fatalf("expected current approved entry returned, got %+v", again)
	}

	if _, err := f.svc.Disapprove(context.Background(), in); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected disapprove after approve to be rejected, got %v", err)
	}

	if len(f.events.events) != 1 {
		t.Errorf("expected exactly one event, got %d", len(f.events.events))
	}
	if len(f.notifier.outcomes) != 1 {
		t.Errorf("expected exactly one outcome notice, got %d", len(f.notifier.outcomes))
	}
}

func TestService_Decide_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture()

	_, err := f.svc.Approve(context.Background(), DecisionInput{Name: "Nobody", Email: "n@x.com"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	entry, _ := f.svc.Submit(context.Background(), aliceInput())
	_, err = f.svc.Approve(context.Background(), DecisionInput{Name: "Mallory", Email: "a@x.com", EntryID: entry.ID})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for mismatched token subject, got %v", err)
	}

	_, err = f.svc.Approve(context.Background(), DecisionInput{Name: "Alice"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without email, got %v", err)
	}
	if len(f.events.events) != 0 {
		t.Errorf("expected no events, got %d", len(f.events.events))
	}
}

func TestService_Approve_EmailFailureKeepsDecision(t *testing.T) {
	t.Parallel()

	f := newFixture()
	entry, _ := f.svc.Submit(context.Background(), aliceInput())
	f.notifier.outcomeErr = errors.New("smtp down")

	got, err := f.svc.Approve(context.Background(), DecisionInput{EntryID: entry.ID})
	if !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("expected ErrNotificationFailed, got %v", err)
	}
	if got == nil || got.Status != StatusApproved {
		t.Fatalf("expected approved entry returned, got %+v", got)
	}

	stored, _ := f.repo.FindByID(context.Background(), entry.ID)
	if stored.Status != StatusApproved {
		t.Errorf("expected decision persisted, got %s", stored.Status)
	}
	if len(f.events.events) != 1 {
		t.Errorf("expected event before email, got %d", len(f.events.events))
	}
}

func TestService_Approve_NewestEntryWins(t *testing.T) {
	t.Parallel()

	f := newFixture()
	first, _ := f.svc.Submit(context.Background(), aliceInput())
	if _, err := f.svc.Approve(context.Background(), DecisionInput{EntryID: first.ID}); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	second, _ := f.svc.Submit(context.Background(), aliceInput())

	got, err := f.svc.Disapprove(context.Background(), DecisionInput{Name: "Alice", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("Disapprove returned error: %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("expected newest entry %s, got %s", second.ID, got.ID)
	}
}

func TestService_List_InvalidStatus(t *testing.T) {
	t.Parallel()

	f := newFixture()
	bad := Status("Approved")
	if _, err := f.svc.List(context.Background(), ListFilter{Status: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	_, _ = f.svc.Submit(context.Background(), aliceInput())
	pending := StatusPending
	got, err := f.svc.List(context.Background(), ListFilter{Status: &pending})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected one pending entry, got %d", len(got))
	}
}
