package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/motorcraft/backend-configurator/internal/auth"
	"github.com/motorcraft/backend-configurator/internal/common"
)

// UserDirectory resolves the recipient of a notification.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (auth.UserRecord, error)
}

// Worker handles notification tasks on the consumer side.
type Worker struct {
	Users UserDirectory
	Mail  common.EmailSender
	From  string
	Log   zerolog.Logger
}

// Register attaches the worker's handlers to an asynq mux.
func (w Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskOrderCreated, w.HandleOrderCreated)
}

// HandleOrderCreated sends the order confirmation email. Payload and recipient
// problems are permanent, so they skip asynq's retry machinery.
func (w Worker) HandleOrderCreated(ctx context.Context, t *asynq.Task) error {
	var payload OrderCreatedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode order:created payload: %w: %w", err, asynq.SkipRetry)
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return fmt.Errorf("order:created user id %q: %w: %w", payload.UserID, err, asynq.SkipRetry)
	}

	user, err := w.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			w.Log.Warn().Str("order_number", payload.OrderNumber).Str("user_id", payload.UserID).Msg("order confirmation recipient no longer exists")
			return fmt.Errorf("recipient gone: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("load recipient: %w", err)
	}

	subject := fmt.Sprintf("Order %s received", payload.OrderNumber)
	body := orderCreatedBody(user.Name, payload)
	if err := w.Mail.Send(user.Email, subject, body); err != nil {
		return fmt.Errorf("send order confirmation: %w", err)
	}
	w.Log.Info().Str("order_number", payload.OrderNumber).Str("to", user.Email).Msg("order confirmation sent")
	return nil
}

func orderCreatedBody(name string, payload OrderCreatedPayload) string {
	return fmt.Sprintf(
		"<p>Hi %s,</p><p>We received your order <strong>%s</strong>.</p><p>Order total: %s %s</p><p>We will email you again once production is confirmed.</p>",
		name, payload.OrderNumber, payload.Currency, common.FormatMoney(payload.Total),
	)
}
