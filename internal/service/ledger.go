package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ambos-norte-backend/internal/messaging/events"
	"ambos-norte-backend/internal/model"
	"ambos-norte-backend/internal/repository"
)

// StatusLedger is the single place order state changes. Every transition
// updates the order (version-guarded) and appends exactly one history entry;
// the cancelled-implies-inactive invariant is enforced here, not at call
// sites.
type StatusLedger struct {
	orderRepo   repository.OrderRepository
	historyRepo repository.HistoryRepository
	publisher   events.Publisher
	logger      *log.Entry
}

func NewStatusLedger(
	orderRepo repository.OrderRepository,
	historyRepo repository.HistoryRepository,
	publisher events.Publisher,
) *StatusLedger {
	return &StatusLedger{
		orderRepo:   orderRepo,
		historyRepo: historyRepo,
		publisher:   publisher,
		logger:      log.WithField("component", "status-ledger"),
	}
}

// Transition moves order to newState within tx. The order struct is updated
// in place so callers see the new state and version. Returns the appended
// history entry.
func (l *StatusLedger) Transition(
	ctx context.Context,
	tx *gorm.DB,
	order *model.Order,
	newState model.OrderStatus,
	actorID *uint,
	comment string,
) (*model.OrderStatusEntry, error) {
	if !newState.Valid() {
		return nil, fmt.Errorf("%w: %q, valid states: %v", ErrInvalidState, newState, model.OrderStatuses())
	}

	active := order.Active
	if newState == model.OrderStatusCancelled {
		active = false
		if comment == "" {
			comment = "order cancelled automatically"
		}
	}

	ok, err := l.orderRepo.UpdateState(ctx, tx, order.ID, order.Version, newState, active)
	if err != nil {
		return nil, fmt.Errorf("update order state: %w", err)
	}
	if !ok {
		return nil, ErrConflict
	}

	previous := order.State
	entry := &model.OrderStatusEntry{
		OrderID:       order.ID,
		PreviousState: &previous,
		NewState:      newState,
		ActorID:       actorID,
		Comment:       comment,
	}
	if err := l.historyRepo.Append(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("append history entry: %w", err)
	}

	order.State = newState
	order.Active = active
	order.Version++

	return entry, nil
}

// Publish emits the event for a committed transition. Best-effort: failures
// are logged, never propagated.
func (l *StatusLedger) Publish(order *model.Order, entry *model.OrderStatusEntry) {
	if entry == nil {
		return
	}

	event := &events.OrderStateChanged{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		NewState:    string(entry.NewState),
		Comment:     entry.Comment,
		OccurredAt:  time.Now(),
	}
	if entry.PreviousState != nil {
		event.PreviousState = string(*entry.PreviousState)
	}

	if err := l.publisher.PublishOrderStateChanged(event); err != nil {
		l.logger.WithError(err).WithField("order_id", order.ID).
			Warn("publish order state change")
	}
}
