// Package queue defines the outbound email events and the background
// consumer that drains them.  Actual delivery (SMTP, a provider API) is a
// deployment concern; the application's contract ends at publishing a
// well-formed event to the durable queue.
package queue

import "time"

// EmailQueueName is the durable queue all outbound email events go through.
const EmailQueueName = "email.outbound"

// Email event kinds.
const (
	EmailVerification  = "verification"
	EmailPasswordReset = "password_reset"
	EmailInvite        = "workspace_invite"
)

// EmailEvent is one outbound email.  Message already contains the full
// action link; consumers only deliver, they never mint tokens.
type EmailEvent struct {
	Kind     string    `json:"kind"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Message  string    `json:"message"`
	QueuedAt time.Time `json:"queued_at"`
}
