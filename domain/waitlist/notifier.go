package waitlist

import "context"

// Notifier sends the registration confirmation for a waitlist signup.
// Sends are best-effort: the service logs a failure and nothing else.
type Notifier interface {
	Notify(ctx context.Context, email string) error
}
