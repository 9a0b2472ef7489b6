package services

import (
	"context"

	"budgeteer/internal/amqp"
)

// EventPublisher is the outbound event port, implemented by *amqp.Client.
type EventPublisher interface {
	PublishExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error
	PublishBudgetsSaved(ctx context.Context, msg *amqp.BudgetsSavedMessage) error
}
