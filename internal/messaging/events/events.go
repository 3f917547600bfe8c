package events

import "time"

// OrderStateChanged is emitted every time a history entry is appended to an
// order's state ledger.
type OrderStateChanged struct {
	OrderID       uint      `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	PreviousState string    `json:"previous_state,omitempty"`
	NewState      string    `json:"new_state"`
	Comment       string    `json:"comment,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher pushes order events to interested consumers. Publishing is
// best-effort: callers log failures and move on, the order transaction has
// already committed.
type Publisher interface {
	PublishOrderStateChanged(event *OrderStateChanged) error
	Close() error
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderStateChanged(*OrderStateChanged) error { return nil }
func (NoopPublisher) Close() error                                      { return nil }
