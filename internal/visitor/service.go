package visitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"visitordesk/internal/metrics"
)

// Notifier sends the workflow emails.
type Notifier interface {
	SendSubmissionNotice(ctx context.Context, e *Entry, links Links) error
	SendOutcomeNotice(ctx context.Context, e *Entry) error
}

// Emitter publishes a named event to every connected live status viewer.
type Emitter interface {
	Emit(event string, data any) error
}

// PhotoStore keeps uploaded visitor photos.
type PhotoStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// TokenIssuer mints the token embedded in decision links.
type TokenIssuer interface {
	Issue(entryID string) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Photo is an uploaded image attached to a submission.
type Photo struct {
	Filename string
	Content  io.Reader
}

// SubmitInput carries a front desk submission.
type SubmitInput struct {
	Name         string
	Email        string
	PersonToMeet string
	Purpose      string
	Photo        *Photo
}

// DecisionInput identifies the entry a host is deciding on.
// EntryID comes from a verified decision token and takes precedence over Name and Email.
type DecisionInput struct {
	Name    string
	Email   string
	EntryID string
}

// Service coordinates visitor submission and the approval workflow.
type Service struct {
	repo     Repository
	photos   PhotoStore
	notifier Notifier
	events   Emitter
	tokens   TokenIssuer
	clock    Clock
	baseURL  string
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithTokens embeds signed decision tokens in approval links.
func WithTokens(t TokenIssuer) Option {
	return func(s *Service) { s.tokens = t }
}

// NewService wires the workflow. baseURL is the public address of this API and prefixes decision links.
func NewService(repo Repository, photos PhotoStore, notifier Notifier, events Emitter, baseURL string, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		photos:   photos,
		notifier: notifier,
		events:   events,
		clock:    systemClock{},
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit records a pending entry and notifies the host.
// When the notice cannot be sent the persisted entry is returned together with an ErrNotificationFailed error.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Entry, error) {
	if in.Photo == nil || in.Photo.Content == nil {
		return nil, ErrPhotoRequired
	}
	if err := validateSubmission(&in); err != nil {
		return nil, err
	}

	ref, err := s.photos.Save(ctx, in.Photo.Filename, in.Photo.Content)
	if err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}

	entry, err := s.repo.Create(ctx, &Entry{
		Name:         in.Name,
		Email:        in.Email,
		PersonToMeet: in.PersonToMeet,
		Purpose:      in.Purpose,
		Photo:        ref,
		Status:       StatusPending,
		CreatedAt:    s.clock.Now(),
	})
	if err != nil {
		if derr := s.photos.Delete(ctx, ref); derr != nil {
			log.Printf("photo cleanup for %s failed: %v", ref, derr)
		}
		return nil, err
	}
	metrics.Submissions.Inc()
	log.Printf("visitor %s recorded for %s", entry.ID, entry.PersonToMeet)

	return s.notifyHost(ctx, entry)
}

// ResendNotice sends the host notice again for a pending entry.
func (s *Service) ResendNotice(ctx context.Context, id string) (*Entry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status != StatusPending {
		return entry, ErrAlreadyDecided
	}
	return s.notifyHost(ctx, entry)
}

func (s *Service) notifyHost(ctx context.Context, entry *Entry) (*Entry, error) {
	links, err := s.decisionLinks(entry)
	if err != nil {
		return entry, fmt.Errorf("build decision links: %w", err)
	}

	err = s.notifier.SendSubmissionNotice(ctx, entry, links)
	metrics.ObserveNotification("submission", err)
	if err != nil {
		log.Printf("submission notice for %s failed: %v", entry.ID, err)
		return entry, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	if err := s.repo.MarkNotified(ctx, entry.ID); err != nil {
		return entry, fmt.Errorf("mark notified: %w", err)
	}
	entry.NotificationSent = true
	return entry, nil
}

// Approve moves a pending entry to approved.
func (s *Service) Approve(ctx context.Context, in DecisionInput) (*Entry, error) {
	return s.decide(ctx, in, StatusApproved)
}

// Disapprove moves a pending entry to disapproved.
func (s *Service) Disapprove(ctx context.Context, in DecisionInput) (*Entry, error) {
	return s.decide(ctx, in, StatusDisapproved)
}

// decide persists the transition first, then broadcasts it, then emails the visitor.
// A failed email does not undo the decision.
func (s *Service) decide(ctx context.Context, in DecisionInput, status Status) (*Entry, error) {
	entry, err := s.resolve(ctx, in)
	if err != nil {
		metrics.Decisions.WithLabelValues(string(status), "not_found").Inc()
		return nil, err
	}

	updated, err := s.repo.Transition(ctx, entry.ID, status, s.clock.Now())
	if err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			metrics.Decisions.WithLabelValues(string(status), "conflict").Inc()
			if updated == nil {
				updated = entry
			}
			return updated, ErrAlreadyDecided
		}
		return nil, err
	}
	metrics.Decisions.WithLabelValues(string(status), metrics.ResultOK).Inc()
	log.Printf("visitor %s %s", updated.ID, status)

	if err := s.events.Emit(StatusUpdateEvent, StatusEvent{Visitor: updated.Name, Status: status}); err != nil {
		log.Printf("status broadcast for %s failed: %v", updated.ID, err)
	}

	err = s.notifier.SendOutcomeNotice(ctx, updated)
	metrics.ObserveNotification(string(status), err)
	if err != nil {
		log.Printf("outcome notice for %s failed: %v", updated.ID, err)
		return updated, fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return updated, nil
}

func (s *Service) resolve(ctx context.Context, in DecisionInput) (*Entry, error) {
	if in.EntryID != "" {
		entry, err := s.repo.FindByID(ctx, in.EntryID)
		if err != nil {
			return nil, err
		}
		if (in.Name != "" && in.Name != entry.Name) || (in.Email != "" && in.Email != entry.Email) {
			return nil, ErrNotFound
		}
		return entry, nil
	}
	if in.Name == "" || in.Email == "" {
		return nil, fmt.Errorf("%w: visitor and email are required", ErrInvalidInput)
	}
	return s.repo.FindByNameAndEmail(ctx, in.Name, in.Email)
}

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, id string) (*Entry, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns entries for the status display.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Entry, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *filter.Status)
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) decisionLinks(e *Entry) (Links, error) {
	q := url.Values{}
	q.Set("visitor", e.Name)
	q.Set("email", e.Email)
	if s.tokens != nil {
		token, err := s.tokens.Issue(e.ID)
		if err != nil {
			return Links{}, err
		}
		q.Set("token", token)
	}
	query := q.Encode()
	return Links{
		Approve:    s.baseURL + "/api/visitor/approve?" + query,
		Disapprove: s.baseURL + "/api/visitor/disapprove?" + query,
	}, nil
}

func validateSubmission(in *SubmitInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.PersonToMeet = strings.TrimSpace(in.PersonToMeet)
	in.Purpose = strings.TrimSpace(in.Purpose)

	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.PersonToMeet == "" {
		missing = append(missing, "personToMeet")
	}
	if in.Purpose == "" {
		missing = append(missing, "purpose")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: email %q is not a valid address", ErrInvalidInput, in.Email)
	}
	if _, err := mail.ParseAddress(in.PersonToMeet); err != nil {
		return fmt.Errorf("%w: personToMeet %q is not a valid address", ErrInvalidInput, in.PersonToMeet)
	}
	return nil
}
