package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Routing keys of the events published on the exchange.
const (
	RoutingExpenseRecorded = "expense.recorded"
	RoutingBudgetsSaved    = "budgets.saved"
)

var errMissingOwner = errors.New("message has no owner")

// ExpenseRecordedMessage is published after an expense is stored. Month is
// 0-based. Spent and limit are the budget check of the write path.
type ExpenseRecordedMessage struct {
	ExpenseID   string    `json:"expense_id"`
	OwnerID     string    `json:"owner_id"`
	CategoryID  string    `json:"category_id"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	AmountCents int64     `json:"amount_cents"`
	SpentCents  int64     `json:"spent_cents"`
	LimitCents  int64     `json:"limit_cents"`
	Over        bool      `json:"over"`
	Timestamp   time.Time `json:"timestamp"`
}

// BudgetsSavedMessage is published after a bulk budget save.
type BudgetsSavedMessage struct {
	OwnerID   string    `json:"owner_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Saved     int       `json:"saved"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseRecordedMessage(expenseID, ownerID, categoryID string, year, month int, amount, spent, limit int64, over bool) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ExpenseID:   expenseID,
		OwnerID:     ownerID,
		CategoryID:  categoryID,
		Year:        year,
		Month:       month,
		AmountCents: amount,
		SpentCents:  spent,
		LimitCents:  limit,
		Over:        over,
		Timestamp:   time.Now(),
	}
}

func NewBudgetsSavedMessage(ownerID string, year, month, saved int) *BudgetsSavedMessage {
	return &BudgetsSavedMessage{
		OwnerID:   ownerID,
		Year:      year,
		Month:     month,
		Saved:     saved,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, errMissingOwner
	}
	return &msg, nil
}

func (m *BudgetsSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetsSavedMessageFromJSON(data []byte) (*BudgetsSavedMessage, error) {
	var msg BudgetsSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, errMissingOwner
	}
	return &msg, nil
}
