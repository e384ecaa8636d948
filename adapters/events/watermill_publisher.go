package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/apiaryhq/hive/ports"
)

// LoginEvent is emitted after a session is established.
type LoginEvent struct {
	Username        string    `json:"username"`
	DeviceConfirmed bool      `json:"device_confirmed"`
	At              time.Time `json:"at"`
}

// RenewalEvent is emitted after tokens are refreshed.
type RenewalEvent struct {
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}

// SignOutEvent is emitted after a global sign-out.
type SignOutEvent struct {
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		now:       time.Now,
	}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, username string, deviceConfirmed bool) error {
	return p.publish("hive.login", LoginEvent{
		Username:        username,
		DeviceConfirmed: deviceConfirmed,
		At:              p.now().UTC(),
	})
}

// PublishRenewal publishes a token renewal event
func (p *WatermillPublisher) PublishRenewal(ctx context.Context, username string) error {
	return p.publish("hive.renewal", RenewalEvent{
		Username: username,
		At:       p.now().UTC(),
	})
}

// PublishSignOut publishes a sign-out event
func (p *WatermillPublisher) PublishSignOut(ctx context.Context, username string) error {
	return p.publish("hive.signout", SignOutEvent{
		Username: username,
		At:       p.now().UTC(),
	})
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
