// Package email delivers alert notifications to operator inboxes.
package email

import "context"

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
