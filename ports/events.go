package ports

import "context"

// EventPublisher publishes authentication lifecycle events so embedding
// applications can observe logins, renewals and sign-outs.
type EventPublisher interface {
	PublishLogin(ctx context.Context, username string, deviceConfirmed bool) error
	PublishRenewal(ctx context.Context, username string) error
	PublishSignOut(ctx context.Context, username string) error
}
