package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"coachplanner/internal/models"
)

// TaskHandler has the signature the outbox worker dispatches to.
type TaskHandler = func(ctx context.Context, task *models.OutboxTask) error

type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type TelegramDelivery interface {
	Send(ctx context.Context, msg TelegramMessage) error
}

type RowAppender interface {
	AppendRow(ctx context.Context, values []interface{}) error
}

func EmailHandler(sender EmailSender) TaskHandler {
	return func(ctx context.Context, task *models.OutboxTask) error {
		var msg EmailMessage
		if err := json.Unmarshal([]byte(task.Payload), &msg); err != nil {
			return fmt.Errorf("decode email payload: %w", err)
		}
		return sender.Send(ctx, msg)
	}
}

func TelegramHandler(sender TelegramDelivery) TaskHandler {
	return func(ctx context.Context, task *models.OutboxTask) error {
		var msg TelegramMessage
		if err := json.Unmarshal([]byte(task.Payload), &msg); err != nil {
			return fmt.Errorf("decode telegram payload: %w", err)
		}
		return sender.Send(ctx, msg)
	}
}

func SheetsHandler(appender RowAppender) TaskHandler {
	return func(ctx context.Context, task *models.OutboxTask) error {
		var row AgendaRow
		if err := json.Unmarshal([]byte(task.Payload), &row); err != nil {
			return fmt.Errorf("decode sheets payload: %w", err)
		}
		return appender.AppendRow(ctx, row.Values())
	}
}
