package visitor

import (
	"context"
	"time"
)

// Status is the approval state of a visitor entry.
type Status string

const (
	StatusPending     Status = "pending"
	StatusApproved    Status = "approved"
	StatusDisapproved Status = "disapproved"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDisapproved:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDisapproved
}

// Entry is a recorded visitor request.
type Entry struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PersonToMeet     string     `json:"personToMeet"`
	Purpose          string     `json:"purpose"`
	Photo            string     `json:"photo"`
	Status           Status     `json:"status"`
	NotificationSent bool       `json:"notificationSent"`
	ApprovedAt       *time.Time `json:"approvedAt,omitempty"`
	DisapprovedAt    *time.Time `json:"disapprovedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

// Repository owns the lifecycle of visitor entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) (*Entry, error)
	FindByID(ctx context.Context, id string) (*Entry, error)
	// FindByNameAndEmail returns the most recently created entry with exactly this name and email.
	FindByNameAndEmail(ctx context.Context, name, email string) (*Entry, error)
	// Transition moves a pending entry to status and stamps the matching timestamp with at.
	Transition(ctx context.Context, id string, status Status, at time.Time) (*Entry, error)
	MarkNotified(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*Entry, error)
}

// StatusEvent is published to live status viewers when an entry is decided.
type StatusEvent struct {
	Visitor string `json:"visitor"`
	Status  Status `json:"status"`
}

// StatusUpdateEvent is the event name used for StatusEvent broadcasts.
const StatusUpdateEvent = "statusUpdate"

// Links are the decision URLs embedded in the host notification.
type Links struct {
	Approve    string
	Disapprove string
}

func cloneEntry(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.ApprovedAt != nil {
		t := *e.ApprovedAt
		c.ApprovedAt = &t
	}
	if e.DisapprovedAt != nil {
		t := *e.DisapprovedAt
		c.DisapprovedAt = &t
	}
	return &c
}
