// Package poller consumes checkout-completed events and closes the matching carts.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/logging"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic   = "checkout-outbox"
	DefaultGroupID = "cart-engine-consumer"

	completedEvent = "CheckoutCompleted"
)

var ErrMalformedEvent = errors.New("malformed checkout event")

// Completer closes an owner's cart after a successful checkout.
type Completer interface {
	CompleteCheckoutFor(ctx context.Context, ownerID, cartID string) (*domain.Cart, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// CheckoutCompletedEvent is the part of the checkout outbox payload the engine reads.
// Older producers send user_id only; cart_id is optional.
type CheckoutCompletedEvent struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
	OwnerID    string `json:"owner_id"`
	CartID     string `json:"cart_id"`
}

func (e CheckoutCompletedEvent) owner() string {
	if e.OwnerID != "" {
		return e.OwnerID
	}
	return e.UserID
}

type Poller struct {
	carts  Completer
	reader messageReader
	log    *slog.Logger
}

func NewPoller(carts Completer, topic, groupID string, brokers ...string) *Poller {
	if topic == "" {
		topic = DefaultTopic
	}
	if groupID == "" {
		groupID = DefaultGroupID
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{carts: carts, reader: reader, log: logging.New("poller")}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.log.Error("error reading message", "error", err)
			}
			continue
		}
		if err := p.handleMessage(ctx, m); err != nil {
			p.log.Error("failed to handle checkout event", "offset", m.Offset, "error", err)
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error("error closing reader", "error", err)
	}
}

// handleMessage completes the checkout described by m. Events for carts that are already
// closed are acknowledged quietly so redeliveries are harmless.
func (p *Poller) handleMessage(ctx context.Context, m kafka.Message) error {
	if t := eventType(m); t != "" && t != completedEvent {
		return nil
	}

	var event CheckoutCompletedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	owner := event.owner()
	if owner == "" {
		return fmt.Errorf("%w: missing user_id", ErrMalformedEvent)
	}

	_, err := p.carts.CompleteCheckoutFor(ctx, owner, event.CartID)
	if errors.Is(err, domain.ErrCartNotFound) {
		p.log.Info("no open cart for checkout", "owner_id", owner, "checkout_id", event.CheckoutID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("complete checkout %s: %w", event.CheckoutID, err)
	}

	p.log.Info("cart closed after checkout", "owner_id", owner, "checkout_id", event.CheckoutID)
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
