// Package email delivers transactional mail: verification links,
// password resets, and high-risk scan alerts.
package email

import "context"

// EmailSender delivers a single plain-text email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
