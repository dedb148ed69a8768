// Package notify delivers guest e-mails (RSVP confirmations, password
// resets) through an external mail relay without blocking the request that
// triggered them.
package notify

import (
	"context"
	"time"
)

// Kinds of notification the relay knows how to render.
const (
	KindRSVPConfirmation = "rsvp_confirmation"
	KindPasswordReset    = "password_reset"
)

// State of a dispatched task.
type State string

const (
	StatePending State = "pending"
	StateSent    State = "sent"
	StateFailed  State = "failed"
	// StateSkipped is used when no relay is configured.
	StateSkipped State = "skipped"
)

// Notification is one e-mail to send.
type Notification struct {
	Kind     string `json:"kind"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Link     string `json:"link,omitempty"`

	// SubmittedBy is the user allowed to read the task status. Empty for
	// anonymous flows such as reset requests.
	SubmittedBy string `json:"-"`
}

// Task is the status record of a submitted notification.
type Task struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	State       State     `json:"state"`
	Error       string    `json:"error,omitempty"`
	SubmittedBy string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Relay sends a single notification. idempotencyKey is stable for a task so
// the relay can drop duplicates.
type Relay interface {
	Send(ctx context.Context, n Notification, idempotencyKey string) error
}
