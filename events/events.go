package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeContributionConfirmed EventType = "contribution_confirmed"
	EventTypeRotationCreated       EventType = "rotation_created"
	EventTypeRotationPaid          EventType = "rotation_paid"
	EventTypeRotationFailed        EventType = "rotation_failed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// ContributionConfirmedEvent is emitted after a contribution's
// pending->confirmed transition has committed
type ContributionConfirmedEvent struct {
	ContributionID int64
	UserID         int64
	GroupID        int64
	Cycle          int
	Week           int
	Amount         int64
	Reference      string
}

func (e ContributionConfirmedEvent) Type() EventType {
	return EventTypeContributionConfirmed
}

// RotationCreatedEvent is emitted after a rotation row has been durably
// created for a completed period
type RotationCreatedEvent struct {
	RotationID  int64
	GroupID     int64
	RecipientID int64
	Cycle       int
	Week        int
	Amount      int64
}

func (e RotationCreatedEvent) Type() EventType {
	return EventTypeRotationCreated
}

// RotationPaidEvent is emitted after the payment provider confirmed a transfer
type RotationPaidEvent struct {
	RotationID        int64
	GroupID           int64
	RecipientID       int64
	Amount            int64
	TransferReference string
}

func (e RotationPaidEvent) Type() EventType {
	return EventTypeRotationPaid
}

// RotationFailedEvent is emitted when the provider reported a definite
// transfer failure
type RotationFailedEvent struct {
	RotationID  int64
	GroupID     int64
	RecipientID int64
	Amount      int64
	Reason      string
}

func (e RotationFailedEvent) Type() EventType {
	return EventTypeRotationFailed
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking the emitter
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// A transactional event bus for holding pending events coupled to the Unit of Work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Events outlive the transaction that produced them; emit with a
	// background context so cancellation of the request context cannot
	// drop committed side effects.
	eventCtx := context.Background()

	for _, ev := range b.pending {
		log.WithFields(log.Fields{
			"eventType": ev.Type(),
		}).Debug("Emitting committed event")
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
