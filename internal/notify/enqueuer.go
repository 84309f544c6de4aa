package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/motorcraft/backend-configurator/internal/order"
)

// Enqueuer publishes order lifecycle tasks to the asynq queue. It satisfies
// order.Notifier; a nil Client turns it into a no-op so tests and local runs
// without Redis still work.
type Enqueuer struct {
	Client   *asynq.Client
	Currency string
	Timeout  time.Duration
}

// OrderCreated enqueues an order:created task.
func (e Enqueuer) OrderCreated(ctx context.Context, o order.Order) error {
	if e.Client == nil {
		return nil
	}
	payload, err := json.Marshal(OrderCreatedPayload{
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID.String(),
		Total:       o.Pricing.Total,
		Currency:    e.Currency,
	})
	if err != nil {
		return fmt.Errorf("marshal order:created payload: %w", err)
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	task := asynq.NewTask(TaskOrderCreated, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(timeout),
		asynq.TaskID(o.ID.String()),
	)
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue order:created: %w", err)
	}
	return nil
}
